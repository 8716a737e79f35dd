package engine

import (
	"os"

	"github.com/smilemakc/playbookflow/internal/domain"
)

// NodeRecord is the plain record shape returned to clients; UIs never
// hold direct references to node objects.
type NodeRecord struct {
	ID          string            `json:"id"`
	Kind        domain.Kind       `json:"kind"`
	Status      domain.NodeStatus `json:"status"`
	Description string            `json:"description,omitempty"`
	Reference   string            `json:"reference,omitempty"`
	Skipped     bool              `json:"skipped"`
	StartedAt   *int64            `json:"started_at,omitempty"`
	EndedAt     *int64            `json:"ended_at,omitempty"`
}

// StatusSnapshot is the payload of the status() RPC.
type StatusSnapshot struct {
	WorkflowStatus domain.WorkflowStatus `json:"workflow_status"`
	Nodes          []NodeRecord          `json:"nodes"`
}

func toRecord(n *domain.Node) NodeRecord {
	rec := NodeRecord{
		ID:          n.ID,
		Kind:        n.Kind,
		Status:      n.Status,
		Description: n.Description,
		Reference:   n.Reference,
		Skipped:     n.Skipped,
	}
	if n.StartedAt != nil {
		ms := n.StartedAt.UnixMilli()
		rec.StartedAt = &ms
	}
	if n.EndedAt != nil {
		ms := n.EndedAt.UnixMilli()
		rec.EndedAt = &ms
	}
	return rec
}

// Status returns the workflow status and a per-node record array.
func (e *Engine) Status() StatusSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	nodes := e.wf.AllNodes()
	out := make([]NodeRecord, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, toRecord(n))
	}
	return StatusSnapshot{
		WorkflowStatus: e.wf.GetStatus(),
		Nodes:          out,
	}
}

// NodeDetails returns the record for a single node, per node_details(id).
func (e *Engine) NodeDetails(id string) (NodeRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := e.wf.Node(id)
	if n == nil {
		return NodeRecord{}, domain.NewDomainError(domain.ErrCodeNotFound, "unknown node \""+id+"\"", nil)
	}
	return toRecord(n), nil
}

// Graph returns the original-graph edges, per graph().
func (e *Engine) Graph() []domain.Edge {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wf.OriginalGraph.Edges()
}

// InputData returns the original parsed declaration, per input_data().
func (e *Engine) InputData() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.wf.Declaration
}

// TailStdout implements tail_stdout(id, offset): it returns the bytes
// from offset to current EOF and the new EOF position. If the stdout file
// does not yet exist, returns empty content and offset 0. Readers
// tolerate truncation and never hold the file open across calls.
func (e *Engine) TailStdout(id string, offset int64) ([]byte, int64, error) {
	e.mu.Lock()
	n := e.wf.Node(id)
	var ident string
	if n != nil {
		ident = n.Playbook.Ident
	}
	artifactDir := e.opts.ArtifactDir
	r := e.runner
	e.mu.Unlock()

	if n == nil {
		return nil, 0, domain.NewDomainError(domain.ErrCodeNotFound, "unknown node \""+id+"\"", nil)
	}
	if ident == "" {
		return nil, 0, nil
	}

	path := r.StdoutFile(artifactDir, ident)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, err
	}
	size := info.Size()
	if offset < 0 || offset > size {
		offset = 0
	}

	buf := make([]byte, size-offset)
	if len(buf) > 0 {
		if _, err := f.ReadAt(buf, offset); err != nil {
			return nil, 0, err
		}
	}
	return buf, size, nil
}
