package engine

import (
	"context"
	"time"

	"github.com/smilemakc/playbookflow/internal/domain"
	"github.com/smilemakc/playbookflow/internal/events"
	"github.com/smilemakc/playbookflow/internal/runner"
)

type stepResult int

const (
	stepContinue stepResult = iota
	stepWorkflowEnded
	stepAwaitingOperator
)

// stepOnce performs exactly one scheduling step over a snapshot of the
// runnable set. It holds the engine guard for its whole duration: the
// engine is the sole writer of workflow state, so one step never races a
// concurrent request.
func (e *Engine) stepOnce() stepResult {
	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot := make([]string, 0, len(e.runnable))
	for id := range e.runnable {
		snapshot = append(snapshot, id)
	}

	for _, id := range snapshot {
		e.stepNode(id)
	}

	if len(e.runnable) > 0 {
		return stepContinue
	}

	if e.stopping && e.hasUnsettledPlaybooksLocked() {
		e.wf.SetStatus(domain.WorkflowStatusFailed)
		e.bus.Publish(events.NewWorkflowEvent(domain.WorkflowStatusFailed, "stopped"))
		return stepWorkflowEnded
	}

	if e.hasUnsettledPlaybooksLocked() {
		if e.wf.GetStatus() != domain.WorkflowStatusFailed {
			e.wf.SetStatus(domain.WorkflowStatusFailed)
			e.bus.Publish(events.NewWorkflowEvent(domain.WorkflowStatusFailed, "awaiting operator"))
		}
		return stepAwaitingOperator
	}

	e.wf.SetStatus(domain.WorkflowStatusEnded)
	e.bus.Publish(events.NewWorkflowEvent(domain.WorkflowStatusEnded, ""))
	return stepWorkflowEnded
}

// stepNode advances a single node already in the runnable set: it derives
// the node's current status (a Block settles instantly, a Playbook's
// status derives from its job handle), then reacts to that status. Caller
// holds e.mu.
func (e *Engine) stepNode(id string) {
	if id == domain.SourceNodeID {
		// _s is a pass-through sentinel: it settles the instant it is
		// observed, fanning out to its successors.
		e.settle(id)
		return
	}

	n := e.wf.Node(id)
	if n == nil {
		delete(e.runnable, id)
		return
	}

	switch {
	case n.IsBlock():
		// A Block is a pure container: it counts as ENDED the step after
		// it becomes runnable.
		n.Status = domain.NodeStatusEnded
	case n.Skipped:
		n.Status = domain.NodeStatusSkipped
	case n.Status == domain.NodeStatusRunning:
		e.refreshJobStatus(n)
	}

	switch n.Status {
	case domain.NodeStatusEnded, domain.NodeStatusSkipped:
		e.settle(id)
	case domain.NodeStatusFailed:
		delete(e.runnable, id)
		e.stampEnded(n)
		e.bus.Publish(events.NewNodeEvent(n))
		// Runtime failures stay node-local: successors are left
		// NOT_STARTED to permit a targeted restart, never marked runnable
		// from here. The engine keeps draining runnable peers.
	default:
		// PRE_RUNNING/RUNNING: stays in the runnable set for the next step.
	}
}

// refreshJobStatus derives a RUNNING Playbook's current status from its
// job handle. Caller holds e.mu.
func (e *Engine) refreshJobStatus(n *domain.Node) {
	if e.runner.IsAlive(n.Playbook.JobHandle) {
		return
	}
	if e.runner.FinalStatus(n.Playbook.JobHandle) == runner.FinalStatusOK {
		n.Status = domain.NodeStatusEnded
	} else {
		n.Status = domain.NodeStatusFailed
	}
}

// settle fans a node that just reached ENDED/SKIPPED out to its
// successors. Caller holds e.mu.
func (e *Engine) settle(id string) {
	delete(e.runnable, id)
	if id != domain.SourceNodeID {
		n := e.wf.Node(id)
		if n.Status != domain.NodeStatusSkipped {
			e.stampEnded(n)
		}
		e.bus.Publish(events.NewNodeEvent(n))
	}

	for _, next := range e.wf.ExecutionGraph.Out(id) {
		if next == domain.SinkNodeID {
			continue
		}
		if _, already := e.runnable[next]; already {
			continue
		}
		if e.stopping {
			continue
		}
		if !e.predecessorsSettled(next) {
			continue
		}
		e.runnable[next] = struct{}{}
		e.dispatch(next)
	}
}

// predecessorsSettled reports whether every predecessor of id is in
// {ENDED, SKIPPED}. The sentinel _s always counts as settled.
func (e *Engine) predecessorsSettled(id string) bool {
	for _, pred := range e.wf.ExecutionGraph.In(id) {
		if pred == domain.SourceNodeID {
			continue
		}
		n := e.wf.Node(pred)
		if n == nil || !n.Status.Settled() {
			return false
		}
	}
	return true
}

// dispatch brings a freshly-runnable node to life: a Block is left for the
// next step's instant-ENDED rule; a Playbook launches immediately unless
// it was pre-marked SKIPPED. Caller holds e.mu.
func (e *Engine) dispatch(id string) {
	n := e.wf.Node(id)
	if n == nil || n.IsBlock() {
		return
	}
	if n.Skipped {
		n.Status = domain.NodeStatusSkipped
		e.bus.Publish(events.NewNodeEvent(n))
		return
	}

	n.Status = domain.NodeStatusPreRunning
	e.bus.Publish(events.NewNodeEvent(n))
	e.launch(n)
}

// launch calls the runner adapter for n and transitions it to RUNNING. A
// launch error is logged and marks the node FAILED immediately; it never
// aborts the loop. Caller holds e.mu.
func (e *Engine) launch(n *domain.Node) {
	now := time.Now()
	n.StartedAt = &now

	ident := runner.NextIdent(e.opts.ArtifactDir, n.ID, n.Playbook.RetryCount)
	n.Playbook.Ident = ident

	req := runner.LaunchRequest{
		Playbook:    n.Playbook.PlaybookPath,
		Inventory:   n.Playbook.InventoryPath,
		ExtraVars:   e.resolveExtraVars(n.Playbook.ExtraVars),
		ProjectPath: n.Playbook.ProjectPath,
		Verbosity:   n.Playbook.Verbosity,
		CheckMode:   n.Playbook.CheckMode,
		DiffMode:    n.Playbook.DiffMode,
		VaultIDs:    n.Playbook.VaultIDs,
		Limit:       n.Playbook.Limit,
		ArtifactDir: e.opts.ArtifactDir,
		Ident:       ident,
	}

	handle, err := e.runner.Launch(context.Background(), req)
	if err != nil {
		e.logger.Error("launch failed", "node_id", n.ID, "error", err)
		n.Status = domain.NodeStatusFailed
		e.bus.Publish(events.NewNodeEvent(n))
		return
	}

	n.Playbook.JobHandle = handle
	n.Status = domain.NodeStatusRunning
	e.logger.Info("node launched", "node_id", n.ID, "ident", ident)
	e.bus.Publish(events.NewNodeEvent(n))
}

func (e *Engine) stampEnded(n *domain.Node) {
	if n.EndedAt != nil {
		return
	}
	now := time.Now()
	n.EndedAt = &now
}

func (e *Engine) hasUnsettledPlaybooksLocked() bool {
	for _, n := range e.wf.AllNodes() {
		if !n.IsPlaybook() {
			continue
		}
		if !n.Status.Settled() {
			return true
		}
	}
	return false
}
