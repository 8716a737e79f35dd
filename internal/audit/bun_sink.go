package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/smilemakc/playbookflow/internal/events"
	"github.com/smilemakc/playbookflow/internal/logging"
)

// EventRecord is the row shape persisted for every bus event.
type EventRecord struct {
	bun.BaseModel `bun:"table:playbookflow_event_log,alias:el"`

	ID             uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()"`
	Kind           string    `bun:"kind,notnull"`
	NodeID         string    `bun:"node_id"`
	NodeStatus     string    `bun:"node_status"`
	WorkflowStatus string    `bun:"workflow_status"`
	Content        string    `bun:"content,type:text"`
	CreatedAt      time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

func (r *EventRecord) BeforeInsert(ctx context.Context) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	return nil
}

// BunSink is a Sink backed by a Postgres table reached through bun.
type BunSink struct {
	db     *bun.DB
	logger *logging.Logger
}

// Open connects to dsn and ensures the event log table exists.
func Open(dsn string, logger *logging.Logger) (*BunSink, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	ctx := context.Background()
	if _, err := db.NewCreateTable().Model((*EventRecord)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, err
	}
	return &BunSink{db: db, logger: logger}, nil
}

// Record persists ev, logging (but not failing the caller on) write
// errors: audit logging must never back-pressure the engine's event bus
// (events.Bus already drops on a full listener queue for the same reason).
func (s *BunSink) Record(ctx context.Context, ev events.Event) {
	rec := &EventRecord{
		Kind:           string(ev.Kind),
		NodeID:         ev.NodeID,
		NodeStatus:     ev.NodeStatus.String(),
		WorkflowStatus: ev.WorkflowStatus.String(),
		Content:        ev.Content,
		CreatedAt:      ev.Timestamp,
	}
	if id, err := uuid.Parse(ev.ID); err == nil {
		rec.ID = id
	}
	if _, err := s.db.NewInsert().Model(rec).Exec(ctx); err != nil {
		s.logger.Warn("audit write failed", "error", err)
	}
}

// Close releases the underlying connection pool.
func (s *BunSink) Close() error {
	return s.db.DB.Close()
}
