package engine

import (
	"time"

	"github.com/smilemakc/playbookflow/internal/domain"
	"github.com/smilemakc/playbookflow/internal/events"
	"github.com/smilemakc/playbookflow/internal/runner"
)

// RestartNode re-launches a FAILED Playbook node; it is the only way a
// node leaves FAILED. The workflow status returns to RUNNING and the
// scheduling loop resumes immediately.
func (e *Engine) RestartNode(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := e.wf.Node(id)
	if n == nil {
		return domain.NewDomainError(domain.ErrCodeNotFound, "unknown node \""+id+"\"", nil)
	}
	if !n.IsPlaybook() {
		return domain.NewDomainError(domain.ErrCodeInvalidState, "node \""+id+"\" is not a playbook", nil)
	}
	if n.Status != domain.NodeStatusFailed {
		return domain.NewDomainError(domain.ErrCodeInvalidState, "node \""+id+"\" is not FAILED", nil)
	}

	n.Playbook.RetryCount++
	n.EndedAt = nil
	n.Status = domain.NodeStatusPreRunning
	e.bus.Publish(events.NewNodeEvent(n))
	e.launch(n)

	e.runnable[id] = struct{}{}
	if e.wf.GetStatus() == domain.WorkflowStatusFailed {
		e.wf.SetStatus(domain.WorkflowStatusRunning)
		e.bus.Publish(events.NewWorkflowEvent(domain.WorkflowStatusRunning, "resumed by restart_node"))
	}
	e.wake()
	return nil
}

// SkipNode marks a FAILED (or not-yet-started) Playbook node SKIPPED and
// re-adds it to the runnable set so the scheduler can fan out its
// successors.
func (e *Engine) SkipNode(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := e.wf.Node(id)
	if n == nil {
		return domain.NewDomainError(domain.ErrCodeNotFound, "unknown node \""+id+"\"", nil)
	}
	if !n.IsPlaybook() {
		return domain.NewDomainError(domain.ErrCodeInvalidState, "node \""+id+"\" is not a playbook", nil)
	}
	if n.Status.Settled() {
		return domain.NewDomainError(domain.ErrCodeInvalidState, "node \""+id+"\" has already settled", nil)
	}

	n.Skipped = true
	e.runnable[id] = struct{}{}
	if e.wf.GetStatus() == domain.WorkflowStatusFailed {
		e.wf.SetStatus(domain.WorkflowStatusRunning)
		e.bus.Publish(events.NewWorkflowEvent(domain.WorkflowStatusRunning, "resumed by skip_node"))
	}
	e.wake()
	return nil
}

// Stop signals cancellation. Graceful stop prevents new launches and lets
// in-flight jobs settle; hard stop additionally attempts to terminate
// live job handles via the runner, a best-effort capability not every
// Runner has.
func (e *Engine) Stop(mode domain.StopMode) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopping = true
	e.stopMode = mode
	e.logger.Info("stop requested", "mode", mode)

	if mode == domain.StopModeHard {
		if killer, ok := e.runner.(runner.Killer); ok {
			for _, n := range e.wf.AllNodes() {
				if n.IsPlaybook() && n.Status == domain.NodeStatusRunning {
					if err := killer.Kill(n.Playbook.JobHandle); err != nil {
						e.logger.Warn("hard kill failed", "node_id", n.ID, "error", err)
					}
				}
			}
		}
	}
	e.wake()
}

// StopMode reports the most recent stop mode requested, or "" if Stop has
// not been called.
func (e *Engine) StopMode() domain.StopMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stopMode
}

// WaitReady blocks until Run has returned or the budget elapses, and
// reports whether Run returned. Run returns once the workflow ends, is
// stopped, is cancelled, or fails validation; a workflow that is FAILED and
// awaiting operator input keeps Run going, so WaitReady times out then.
func (e *Engine) WaitReady(budget time.Duration) bool {
	select {
	case <-e.done:
		return true
	case <-time.After(budget):
		return false
	}
}
