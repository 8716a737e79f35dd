// Package compiler expands a parsed declaration into the two graphs a
// Workflow owns: the original hierarchical graph and the compiled
// execution DAG. The algorithm is a recursive walk that returns, for each
// subtree, its "frontier" (the zero-out-degree interior nodes) so the
// parent level can attach edges to it.
package compiler

import (
	"fmt"
	"math/rand"
	"path/filepath"

	"github.com/smilemakc/playbookflow/internal/declaration"
	"github.com/smilemakc/playbookflow/internal/domain"
)

const idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const idLength = 5

// idGenerator hands out random 5-char uppercase/digit tokens for entries
// that omit an id. It never repeats an id already seen in this compile.
type idGenerator struct {
	rng  *rand.Rand
	seen map[string]struct{}
}

func newIDGenerator(seen map[string]struct{}) *idGenerator {
	return &idGenerator{rng: rand.New(rand.NewSource(1)), seen: seen}
}

func (g *idGenerator) next() string {
	for {
		b := make([]byte, idLength)
		for i := range b {
			b[i] = idAlphabet[g.rng.Intn(len(idAlphabet))]
		}
		id := string(b)
		if _, taken := g.seen[id]; !taken {
			g.seen[id] = struct{}{}
			return id
		}
	}
}

// Compile expands doc into a fully populated Workflow: execution graph
// (with _s/_e sentinels), original graph, and registered node state.
func Compile(doc declaration.Document, projectPath string) (*domain.Workflow, error) {
	wf := domain.NewWorkflow()
	wf.Declaration = doc

	ids := make(map[string]struct{})
	gen := newIDGenerator(ids)

	// Reserve the sentinel and root ids up front so user-supplied ids can
	// never collide with them.
	ids[domain.SourceNodeID] = struct{}{}
	ids[domain.SinkNodeID] = struct{}{}
	ids[domain.RootNodeID] = struct{}{}

	wf.ExecutionGraph.AddNode(domain.SourceNodeID)
	wf.ExecutionGraph.AddNode(domain.SinkNodeID)
	// _root groups the authored forest so the original graph is one tree
	// (top-level entries hang off _root; block children off their block).
	wf.OriginalGraph.AddNode(domain.RootNodeID)

	c := &compilation{
		wf:          wf,
		ids:         ids,
		gen:         gen,
		projectPath: projectPath,
	}

	// The top-level list always runs serial from _s to _e.
	frontier, err := c.importNodes(doc, []string{domain.SourceNodeID}, domain.StrategySerial, domain.RootNodeID)
	if err != nil {
		return nil, err
	}
	for _, f := range frontier {
		wf.ExecutionGraph.AddEdge(f, domain.SinkNodeID)
	}

	if wf.ExecutionGraph.HasCycle() {
		return nil, domain.NewDomainError(domain.ErrCodeWorkflowNotValid, "execution graph has a cycle", nil)
	}

	return wf, nil
}

type compilation struct {
	wf          *domain.Workflow
	ids         map[string]struct{}
	gen         *idGenerator
	projectPath string
}

// importNodes walks entries under the given strategy, wiring edges from
// the caller's accumulated parentNodes, and returns the subtree's exported
// frontier.
//
// parentID, when non-empty, is the enclosing Block's id (_root for the
// top-level list); every entry at this level also gets an edge wired from
// that parent in the original (display) graph, independent of
// execution-graph serial/parallel wiring.
func (c *compilation) importNodes(entries []declaration.Entry, parentNodes []string, strategy domain.Strategy, parentID string) ([]string, error) {
	var frontier []string

	for i, entry := range entries {
		id, err := c.assignID(entry.ID)
		if err != nil {
			return nil, err
		}

		c.wf.ExecutionGraph.AddNode(id)
		c.wf.OriginalGraph.AddNode(id)
		if parentID != "" {
			c.wf.OriginalGraph.AddEdge(parentID, id)
		}

		for _, p := range parentNodes {
			c.wf.ExecutionGraph.AddEdge(p, id)
		}
		if strategy == domain.StrategySerial {
			parentNodes = nil
		}

		isLast := i == len(entries)-1

		if entry.IsBlock() {
			blockStrategy := entry.Strategy
			if blockStrategy == "" {
				blockStrategy = domain.StrategyParallel
			}
			if !blockStrategy.IsValid() {
				return nil, domain.NewDomainError(domain.ErrCodeValidationFailed,
					fmt.Sprintf("invalid strategy %q on block %q", blockStrategy, id), nil)
			}

			n := domain.NewBlockNode(id, blockStrategy, entry.Description, entry.Reference)
			if err := c.wf.AddNode(n); err != nil {
				return nil, err
			}

			subFrontier, err := c.importNodes(entry.Block, []string{id}, blockStrategy, id)
			if err != nil {
				return nil, err
			}

			if len(subFrontier) == 0 {
				// Empty block: no interior nodes, so the block itself is
				// the frontier contribution.
				subFrontier = []string{id}
			}

			if strategy == domain.StrategyParallel || isLast {
				frontier = append(frontier, subFrontier...)
			}
			if strategy == domain.StrategySerial {
				parentNodes = subFrontier
			}
			continue
		}

		pb := domain.Playbook{
			PlaybookPath:  entry.ImportPlaybook,
			InventoryPath: entry.Inventory,
			ExtraVars:     entry.Vars,
			ProjectPath:   c.projectPath,
		}
		if pb.PlaybookPath != "" && !filepath.IsAbs(pb.PlaybookPath) {
			pb.PlaybookPath = filepath.Join(c.projectPath, pb.PlaybookPath)
		}
		n := domain.NewPlaybookNode(id, pb, entry.Description, entry.Reference)
		n.Playbook.Ident = id
		if err := c.wf.AddNode(n); err != nil {
			return nil, err
		}

		if strategy == domain.StrategyParallel || isLast {
			frontier = append(frontier, id)
		}
		if strategy == domain.StrategySerial {
			parentNodes = []string{id}
		}
	}

	return frontier, nil
}

func (c *compilation) assignID(userID string) (string, error) {
	if userID == "" {
		return c.gen.next(), nil
	}
	if err := domain.ValidateNodeID(userID); err != nil {
		return "", err
	}
	if _, taken := c.ids[userID]; taken {
		return "", domain.NewDomainError(domain.ErrCodeDuplicateNodeID, "duplicate node id \""+userID+"\"", nil)
	}
	c.ids[userID] = struct{}{}
	return userID, nil
}
