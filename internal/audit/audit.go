// Package audit persists workflow and node lifecycle events to Postgres
// via bun. The in-process event bus only fans events out to live
// listeners, so anything connecting after the fact (or after a daemon
// restart) needs this table to reconstruct what happened.
package audit

import (
	"context"

	"github.com/smilemakc/playbookflow/internal/events"
)

// Sink receives every published event for durable storage. A nil Sink is
// valid: Server treats it as auditing disabled.
type Sink interface {
	Record(ctx context.Context, ev events.Event)
}
