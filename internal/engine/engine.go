// Package engine implements the concurrent DAG scheduler: it drives a
// compiled Workflow from _s to _e, launching Playbook jobs as their
// predecessors settle, honoring pruning, pause-on-failure, and
// cancellation. Nodes settle at independent, unpredictable times
// (external processes), so the loop steps per node rather than in
// topological waves.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/smilemakc/playbookflow/internal/domain"
	"github.com/smilemakc/playbookflow/internal/events"
	"github.com/smilemakc/playbookflow/internal/runner"
)

// Options configures a single run() call.
type Options struct {
	StartNode   string
	EndNode     string
	FilterNodes []string
	SkipNodes   []string
	VerifyOnly  bool

	ArtifactDir string

	// PollInterval is the scheduling loop's step cadence.
	PollInterval time.Duration

	// ResumeWaitInterval is the bounded wait used while the workflow is
	// failed and awaiting operator input, a separate knob from the step
	// cadence.
	ResumeWaitInterval time.Duration
}

// DefaultOptions returns the zero-config defaults: 500ms poll cadence and
// a 1s resume wait.
func DefaultOptions() Options {
	return Options{
		StartNode:          domain.SourceNodeID,
		EndNode:            domain.SinkNodeID,
		ArtifactDir:        ".",
		PollInterval:       500 * time.Millisecond,
		ResumeWaitInterval: time.Second,
	}
}

// Engine drives one Workflow's execution graph. It is the sole writer of
// the workflow's state: the scheduling loop and every external mutation
// (restart_node, skip_node, stop) or read (status, node_details)
// serialize through the same mutex.
type Engine struct {
	mu     sync.Mutex
	wf     *domain.Workflow
	runner runner.Runner
	bus    *events.Bus
	logger *slog.Logger
	opts   Options

	runnable map[string]struct{}
	stopping bool
	stopMode domain.StopMode

	// resume wakes the bounded awaiting-operator wait as soon as
	// restart_node/skip_node/stop is called, instead of leaving it to
	// sleep out the full ResumeWaitInterval.
	resume  chan struct{}
	started bool
	done    chan struct{}
}

// New constructs an Engine bound to a compiled Workflow.
func New(wf *domain.Workflow, r runner.Runner, bus *events.Bus, logger *slog.Logger, opts Options) *Engine {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultOptions().PollInterval
	}
	if opts.ResumeWaitInterval <= 0 {
		opts.ResumeWaitInterval = DefaultOptions().ResumeWaitInterval
	}
	if opts.StartNode == "" {
		opts.StartNode = domain.SourceNodeID
	}
	if opts.EndNode == "" {
		opts.EndNode = domain.SinkNodeID
	}
	return &Engine{
		wf:       wf,
		runner:   r,
		bus:      bus,
		logger:   logger,
		opts:     opts,
		runnable: make(map[string]struct{}),
		resume:   make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// CurrentOptions returns the Options the engine was constructed with, so a
// caller (the control server's run() handler) can apply per-call overrides
// such as start/end/verify_only without reconstructing the Engine.
func (e *Engine) CurrentOptions() Options {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.opts
}

// ApplyOptions replaces the engine's Options, provided Run has not yet
// started; it is a no-op afterward: a second run() call's parameters
// cannot retroactively change an execution already under way.
func (e *Engine) ApplyOptions(opts Options) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.opts = opts
}

// wake signals the resume channel without blocking if it is already full.
func (e *Engine) wake() {
	select {
	case e.resume <- struct{}{}:
	default:
	}
}

// Run validates and prunes the workflow, then drives the scheduling loop
// until the workflow reaches ENDED/FAILED or ctx is cancelled. It is
// idempotent while already running.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	e.mu.Unlock()
	defer close(e.done)

	if err := e.prepare(); err != nil {
		e.logger.Error("workflow validation failed", "error", err)
		return err
	}

	if e.opts.VerifyOnly {
		e.mu.Lock()
		e.wf.SetStatus(domain.WorkflowStatusEnded)
		e.mu.Unlock()
		e.bus.Publish(events.NewWorkflowEvent(domain.WorkflowStatusEnded, "verify_only"))
		e.logger.Info("verify_only run complete")
		return nil
	}

	e.mu.Lock()
	e.wf.SetStatus(domain.WorkflowStatusRunning)
	e.runnable[domain.SourceNodeID] = struct{}{}
	e.mu.Unlock()
	e.bus.Publish(events.NewWorkflowEvent(domain.WorkflowStatusRunning, ""))
	e.logger.Info("workflow started")

	e.loop(ctx)
	return nil
}

// Done returns a channel closed once Run has returned.
func (e *Engine) Done() <-chan struct{} { return e.done }

func (e *Engine) loop(ctx context.Context) {
	pollTicker := time.NewTicker(e.opts.PollInterval)
	defer pollTicker.Stop()

	for {
		res := e.stepOnce()
		switch res {
		case stepWorkflowEnded:
			e.logger.Info("workflow ended")
			return
		case stepAwaitingOperator:
			select {
			case <-ctx.Done():
				e.settleCancelled(ctx.Err())
				return
			case <-e.resume:
			case <-time.After(e.opts.ResumeWaitInterval):
			}
		default:
			select {
			case <-ctx.Done():
				e.settleCancelled(ctx.Err())
				return
			case <-pollTicker.C:
			case <-e.resume:
			}
		}
	}
}

func (e *Engine) settleCancelled(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.wf.SetStatus(domain.WorkflowStatusFailed)
	e.logger.Warn("workflow run cancelled", "error", err)
	e.bus.Publish(events.NewWorkflowEvent(domain.WorkflowStatusFailed, "cancelled: "+err.Error()))
}
