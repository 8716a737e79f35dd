package audit

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// BunSink.Open/Record need a live Postgres instance to exercise end to
// end, so this only covers the parts that don't: that BunSink satisfies
// Sink, and that BeforeInsert stamps defaults.

var _ Sink = (*BunSink)(nil)

func TestEventRecordBeforeInsertStampsDefaults(t *testing.T) {
	rec := &EventRecord{Kind: "node_started", NodeID: "a"}
	require.NoError(t, rec.BeforeInsert(context.Background()))

	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestEventRecordBeforeInsertDoesNotOverwriteExisting(t *testing.T) {
	id := uuid.New()
	rec := &EventRecord{ID: id, Kind: "node_ended"}
	require.NoError(t, rec.BeforeInsert(context.Background()))

	assert.Equal(t, id, rec.ID)
}
