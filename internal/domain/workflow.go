package domain

// Workflow owns two graphs: the original (hierarchical, authored) graph
// kept for display, and the compiled execution DAG the engine drives.
// Per-node mutable state lives in a separate map keyed by id.
//
// Workflow itself holds no lock: every mutation and every status read is
// serialized by the engine's own guard (internal/engine), not by this
// type. Callers outside the engine's goroutine must never touch a
// Workflow directly.
type Workflow struct {
	OriginalGraph  *Graph
	ExecutionGraph *Graph

	nodes map[string]*Node

	// StartNode/EndNode are the pruning bounds for the most recent run()
	// call; defaults are the sentinels.
	StartNode string
	EndNode   string

	Status      WorkflowStatus
	Declaration any // the parsed nested declaration, returned verbatim by input_data()
}

// NewWorkflow constructs an empty Workflow ready to receive compiled nodes.
func NewWorkflow() *Workflow {
	return &Workflow{
		OriginalGraph:  NewGraph(),
		ExecutionGraph: NewGraph(),
		nodes:          make(map[string]*Node),
		StartNode:      SourceNodeID,
		EndNode:        SinkNodeID,
		Status:         WorkflowStatusNotStarted,
	}
}

// AddNode registers a node's mutable state. It does not touch the graphs;
// the compiler is responsible for wiring edges as it visits the declaration.
func (w *Workflow) AddNode(n *Node) error {
	if _, exists := w.nodes[n.ID]; exists {
		return NewDomainError(ErrCodeDuplicateNodeID, "duplicate node id \""+n.ID+"\"", nil)
	}
	w.nodes[n.ID] = n
	return nil
}

// Node returns the node with the given id, or nil if unknown.
func (w *Workflow) Node(id string) *Node {
	return w.nodes[id]
}

// AllNodes returns a snapshot slice of every node, in execution-graph order.
func (w *Workflow) AllNodes() []*Node {
	ids := w.ExecutionGraph.Nodes()
	out := make([]*Node, 0, len(ids))
	for _, id := range ids {
		if n, ok := w.nodes[id]; ok {
			out = append(out, n)
		}
	}
	return out
}

// Validate checks the structural invariants that must hold before a run
// can begin: acyclic, single source/sink with correct degree, every
// non-sentinel node reachable from _s and able to reach _e.
func (w *Workflow) Validate() error {
	g := w.ExecutionGraph
	if !g.HasNode(SourceNodeID) || !g.HasNode(SinkNodeID) {
		return NewDomainError(ErrCodeWorkflowNotValid, "execution graph missing sentinel nodes", nil)
	}
	if g.InDegree(SourceNodeID) != 0 {
		return NewDomainError(ErrCodeWorkflowNotValid, "_s must have in-degree 0", nil)
	}
	if g.OutDegree(SinkNodeID) != 0 {
		return NewDomainError(ErrCodeWorkflowNotValid, "_e must have out-degree 0", nil)
	}
	if g.HasCycle() {
		return NewDomainError(ErrCodeWorkflowNotValid, "execution graph has a cycle", nil)
	}

	reachableFromSource := g.Descendants(SourceNodeID)
	canReachSink := g.Ancestors(SinkNodeID)
	for _, id := range g.Nodes() {
		if id == SourceNodeID || id == SinkNodeID {
			continue
		}
		if _, ok := reachableFromSource[id]; !ok {
			return NewDomainError(ErrCodeWorkflowNotValid, "node \""+id+"\" is not reachable from _s", nil)
		}
		if _, ok := canReachSink[id]; !ok {
			return NewDomainError(ErrCodeWorkflowNotValid, "node \""+id+"\" cannot reach _e", nil)
		}
	}
	return nil
}

// SetStatus sets the top-level workflow status. Callers must hold the
// engine guard.
func (w *Workflow) SetStatus(s WorkflowStatus) {
	w.Status = s
}

// GetStatus reads the top-level workflow status. Callers must hold the
// engine guard.
func (w *Workflow) GetStatus() WorkflowStatus {
	return w.Status
}
