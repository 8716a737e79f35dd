// Package server implements the control server: a long-lived process that
// owns at most one workflow instance, exposes the RPC surface over HTTP
// via gin, and multiplexes live engine events to websocket clients.
package server

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/smilemakc/playbookflow/internal/audit"
	"github.com/smilemakc/playbookflow/internal/compiler"
	"github.com/smilemakc/playbookflow/internal/declaration"
	"github.com/smilemakc/playbookflow/internal/domain"
	"github.com/smilemakc/playbookflow/internal/draw"
	"github.com/smilemakc/playbookflow/internal/engine"
	"github.com/smilemakc/playbookflow/internal/events"
	"github.com/smilemakc/playbookflow/internal/logging"
	"github.com/smilemakc/playbookflow/internal/runner"
)

// Options configures a Server.
type Options struct {
	ArtifactDir        string
	LogDir             string
	PollInterval       time.Duration
	ResumeWaitInterval time.Duration
}

// Server owns the singleton workflow instance and everything an RPC
// handler needs to act on it.
type Server struct {
	mu sync.Mutex

	opts   Options
	runner runner.Runner
	logger *logging.Logger
	bus    *events.Bus
	hub    *wsHub
	audit  audit.Sink

	mermaid draw.Renderer
	ascii   draw.Renderer

	wf             *domain.Workflow
	eng            *engine.Engine
	loadedPath     string
	workflowLog    *logging.DailyRotatingFile
	workflowLogSub string

	shutdownOnce  sync.Once
	shutdownReady chan struct{}
}

// New constructs a Server with no workflow loaded.
func New(opts Options, r runner.Runner, logger *logging.Logger, sink audit.Sink) *Server {
	bus := events.NewBus()
	hub := newWSHub(logger)
	_, ch := bus.Subscribe()
	go hub.pump(ch)

	s := &Server{
		opts:          opts,
		runner:        r,
		logger:        logger,
		bus:           bus,
		hub:           hub,
		audit:         sink,
		mermaid:       draw.NewMermaidRenderer(),
		ascii:         draw.NewASCIIRenderer(),
		shutdownReady: make(chan struct{}),
	}

	if sink != nil {
		_, auditCh := bus.Subscribe()
		go func() {
			for ev := range auditCh {
				sink.Record(context.Background(), ev)
			}
		}()
	}

	return s
}

// loadResult distinguishes a fresh load from the reconnect no-op a second
// load_workflow call gets while an instance is already loaded.
type loadResult struct {
	Reconnected bool `json:"reconnected"`
}

// LoadWorkflow compiles and stores path as the singleton workflow, unless
// one is already loaded, in which case it is a no-op reconnect.
func (s *Server) LoadWorkflow(path, inventory string) (loadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.wf != nil {
		return loadResult{Reconnected: true}, nil
	}

	switch filepath.Ext(path) {
	case ".yml", ".yaml":
	default:
		return loadResult{}, domain.NewDomainError(domain.ErrCodeWorkflowFileTypeUnsupported,
			"unsupported workflow file type: "+filepath.Ext(path), nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return loadResult{}, domain.NewDomainError(domain.ErrCodeYAMLInvalid, "cannot read workflow file: "+path, err)
	}
	doc, err := declaration.Parse(data)
	if err != nil {
		return loadResult{}, err
	}

	projectPath := filepath.Dir(path)
	wf, err := compiler.Compile(doc, projectPath)
	if err != nil {
		return loadResult{}, err
	}
	if inventory != "" {
		for _, n := range wf.AllNodes() {
			if n.IsPlaybook() && n.Playbook.InventoryPath == "" {
				n.Playbook.InventoryPath = inventory
			}
		}
	}
	if err := wf.Validate(); err != nil {
		return loadResult{}, err
	}

	base := filepath.Base(path)
	stamp := time.Now().Format("20060102_150405")
	artifactDir := filepath.Join(s.opts.ArtifactDir, base+"_"+stamp)
	if err := os.MkdirAll(artifactDir, 0o755); err != nil {
		return loadResult{}, domain.NewDomainError(domain.ErrCodeWorkflowFailed, "cannot create artifact directory", err)
	}

	workflowLog, err := logging.NewDailyRotatingFile(artifactDir, "workflow.log")
	if err != nil {
		s.logger.Warn("failed to open workflow.log", "error", err)
	} else {
		wfLogger := logging.New(logging.Options{Level: "info", Format: "text", Output: workflowLog})
		subID, ch := s.bus.Subscribe()
		s.workflowLogSub = subID
		go func() {
			for ev := range ch {
				switch ev.Kind {
				case events.KindNode:
					wfLogger.Info("node event", "node_id", ev.NodeID, "status", ev.NodeStatus.String())
				case events.KindWorkflow:
					wfLogger.Info("workflow event", "status", ev.WorkflowStatus.String(), "content", ev.Content)
				}
			}
		}()
	}

	engOpts := engine.DefaultOptions()
	engOpts.ArtifactDir = artifactDir
	if s.opts.PollInterval > 0 {
		engOpts.PollInterval = s.opts.PollInterval
	}
	if s.opts.ResumeWaitInterval > 0 {
		engOpts.ResumeWaitInterval = s.opts.ResumeWaitInterval
	}

	s.wf = wf
	s.loadedPath = path
	s.workflowLog = workflowLog
	s.eng = engine.New(wf, s.runner, s.bus, s.logger.Slog(), engOpts)

	s.logger.Info("workflow loaded", "path", path, "artifact_dir", artifactDir)
	return loadResult{Reconnected: false}, nil
}

// RunOptions mirrors the run(start, end, verify_only) operation's
// parameters plus the filter/skip pruning sets.
type RunOptions struct {
	Start      string
	End        string
	VerifyOnly bool
	Filter     []string
	Skip       []string
}

// Run launches the engine's background task, idempotent while already
// running.
func (s *Server) Run(ctx context.Context, opts RunOptions) error {
	s.mu.Lock()
	eng := s.eng
	s.mu.Unlock()
	if eng == nil {
		return errNoWorkflowLoaded
	}

	engOpts := eng.CurrentOptions()
	if opts.Start != "" {
		engOpts.StartNode = opts.Start
	}
	if opts.End != "" {
		engOpts.EndNode = opts.End
	}
	engOpts.VerifyOnly = opts.VerifyOnly
	engOpts.FilterNodes = opts.Filter
	engOpts.SkipNodes = opts.Skip
	eng.ApplyOptions(engOpts)

	// The run outlives the RPC that started it: detach from the request
	// context so the engine is only ever stopped via stop()/shutdown.
	runCtx := context.WithoutCancel(ctx)
	go func() {
		if err := eng.Run(runCtx); err != nil {
			s.logger.Error("run failed", "error", err)
		}
	}()
	return nil
}

// Stop signals cancellation on the active engine.
func (s *Server) Stop(mode domain.StopMode) error {
	s.mu.Lock()
	eng := s.eng
	s.mu.Unlock()
	if eng == nil {
		return errNoWorkflowLoaded
	}
	eng.Stop(mode)
	return nil
}

// DrawGraph renders the active workflow's original graph, grouped into
// reference swimlanes, in the requested format ("mermaid" or "ascii",
// defaulting to mermaid).
func (s *Server) DrawGraph(format string) (string, error) {
	eng := s.Engine()
	if eng == nil {
		return "", errNoWorkflowLoaded
	}

	status := eng.Status()
	nodes := make([]draw.NodeInfo, 0, len(status.Nodes))
	for _, n := range status.Nodes {
		nodes = append(nodes, draw.NodeInfo{ID: n.ID, Reference: n.Reference})
	}
	edges := eng.Graph()

	renderer := s.mermaid
	if format == "ascii" {
		renderer = s.ascii
	}
	return renderer.Render(nodes, edges)
}

// Engine returns the active engine, or nil if none is loaded.
func (s *Server) Engine() *engine.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eng
}

// Loaded reports whether a workflow instance currently exists.
func (s *Server) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wf != nil
}

// RequestShutdown implements the one-way request_shutdown() operation: if
// the workflow is in a terminal state (or none is loaded), the daemon's
// own exit is scheduled; otherwise the request is ignored.
func (s *Server) RequestShutdown() {
	s.mu.Lock()
	eng := s.eng
	s.mu.Unlock()

	if eng == nil {
		s.triggerShutdown()
		return
	}
	status := eng.Status().WorkflowStatus
	if status == domain.WorkflowStatusEnded || status == domain.WorkflowStatusFailed {
		s.triggerShutdown()
	}
}

func (s *Server) triggerShutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownReady) })
}

// ShutdownRequested returns a channel closed once RequestShutdown has
// scheduled the daemon's own exit.
func (s *Server) ShutdownRequested() <-chan struct{} { return s.shutdownReady }

// Close releases the workflow-level log file, if one is open.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workflowLogSub != "" {
		s.bus.Unsubscribe(s.workflowLogSub)
		s.workflowLogSub = ""
	}
	if s.workflowLog != nil {
		s.workflowLog.Close()
	}
}
