package engine

import (
	"os"
	"strings"

	"github.com/smilemakc/playbookflow/internal/domain"
	"github.com/smilemakc/playbookflow/internal/events"
)

// prepare runs the validation pass and pruning before the loop begins. On
// failure the workflow transitions to FAILED and the loop never starts.
func (e *Engine) prepare() error {
	if err := e.wf.Validate(); err != nil {
		e.failWorkflow(err.Error())
		return err
	}
	if !e.wf.ExecutionGraph.HasNode(e.opts.StartNode) {
		err := domain.NewDomainError(domain.ErrCodeStartNodeNotFound, "start node \""+e.opts.StartNode+"\" not found", nil)
		e.failWorkflow(err.Error())
		return err
	}
	if !e.wf.ExecutionGraph.HasNode(e.opts.EndNode) {
		err := domain.NewDomainError(domain.ErrCodeEndNodeNotFound, "end node \""+e.opts.EndNode+"\" not found", nil)
		e.failWorkflow(err.Error())
		return err
	}
	if err := e.validatePlaybookPaths(); err != nil {
		e.failWorkflow(err.Error())
		return err
	}
	e.prune()
	return nil
}

func (e *Engine) failWorkflow(message string) {
	e.mu.Lock()
	e.wf.SetStatus(domain.WorkflowStatusFailed)
	e.mu.Unlock()
	e.bus.Publish(events.NewWorkflowEvent(domain.WorkflowStatusFailed, message))
}

// validatePlaybookPaths checks that every Playbook's playbook, inventory,
// project, and vault-script paths exist on disk before anything launches.
func (e *Engine) validatePlaybookPaths() error {
	for _, n := range e.wf.AllNodes() {
		if !n.IsPlaybook() {
			continue
		}
		pb := n.Playbook
		for _, p := range []string{pb.PlaybookPath, pb.InventoryPath, pb.ProjectPath} {
			if p == "" {
				continue
			}
			if _, err := os.Stat(p); err != nil {
				return domain.NewDomainError(domain.ErrCodePlaybookParameterInvalid,
					"path does not exist: "+p, err)
			}
		}
		for _, vid := range pb.VaultIDs {
			source := vid
			if at := strings.IndexByte(vid, '@'); at >= 0 {
				source = vid[at+1:]
			}
			if source == "" || source == "prompt" {
				continue
			}
			if _, err := os.Stat(source); err != nil {
				return domain.NewDomainError(domain.ErrCodeVaultScriptMissing,
					"vault script does not exist: "+source, err)
			}
		}
	}
	return nil
}

// prune marks nodes SKIPPED per the four pruning rules: filter set, skip
// set, ancestors-of-start-node, descendants-of-end-node. A skipped node
// is still visited by the scheduler so downstream predecessors are
// satisfied, but it never launches.
func (e *Engine) prune() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.opts.FilterNodes) > 0 {
		keep := make(map[string]struct{}, len(e.opts.FilterNodes))
		for _, id := range e.opts.FilterNodes {
			keep[id] = struct{}{}
		}
		for _, n := range e.wf.AllNodes() {
			if !n.IsPlaybook() {
				continue
			}
			if _, ok := keep[n.ID]; !ok {
				n.Skipped = true
			}
		}
	}

	for _, id := range e.opts.SkipNodes {
		if n := e.wf.Node(id); n != nil {
			n.Skipped = true
		}
	}

	start := e.opts.StartNode
	if start != domain.SourceNodeID {
		for id := range e.wf.ExecutionGraph.Ancestors(start) {
			if n := e.wf.Node(id); n != nil {
				n.Skipped = true
			}
		}
	}

	end := e.opts.EndNode
	if end != domain.SinkNodeID {
		for id := range e.wf.ExecutionGraph.Descendants(end) {
			if n := e.wf.Node(id); n != nil {
				n.Skipped = true
			}
		}
	}
}
