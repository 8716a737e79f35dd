// Package events implements the typed event bus: node-level and
// workflow-level lifecycle streams fanned out to listeners that must be
// side-effect free with respect to the engine.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/smilemakc/playbookflow/internal/domain"
)

// Kind distinguishes the two event families.
type Kind string

const (
	KindNode     Kind = "node_event"
	KindWorkflow Kind = "workflow_event"
)

// Event is the single envelope type carried on the bus. Only the fields
// relevant to Kind are populated; one wide struct keeps listener code
// simple.
type Event struct {
	ID        string
	Kind      Kind
	Timestamp time.Time

	// Node fields, set when Kind == KindNode.
	NodeID     string
	NodeKind   domain.Kind
	NodeStatus domain.NodeStatus

	// Workflow fields, set when Kind == KindWorkflow.
	WorkflowStatus domain.WorkflowStatus
	Content        string
}

// NewNodeEvent builds a node lifecycle event from n's current state.
func NewNodeEvent(n *domain.Node) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       KindNode,
		Timestamp:  time.Now(),
		NodeID:     n.ID,
		NodeKind:   n.Kind,
		NodeStatus: statusOf(n),
	}
}

// NewWorkflowEvent builds a workflow-level event.
func NewWorkflowEvent(status domain.WorkflowStatus, content string) Event {
	return Event{
		ID:             uuid.NewString(),
		Kind:           KindWorkflow,
		Timestamp:      time.Now(),
		WorkflowStatus: status,
		Content:        content,
	}
}

func statusOf(n *domain.Node) domain.NodeStatus {
	return n.Status
}
