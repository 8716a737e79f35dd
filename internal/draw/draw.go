// Package draw renders a compiled workflow's original graph for display:
// nodes are clustered into swimlanes by their reference tag ("General"
// when unset) before edges are drawn between them. The adapter targets
// Mermaid text, since the control server has no display surface of its
// own and a UI can render Mermaid directly; the Renderer interface is a
// single collaborator contract, swapped without touching the engine or
// compiler.
package draw

import (
	"fmt"
	"sort"
	"strings"

	"github.com/smilemakc/playbookflow/internal/domain"
)

// NodeInfo is the minimal shape the draw adapter needs per node: just
// enough to label and cluster it, kept separate from domain.Node so this
// package never depends on engine-internal mutable state.
type NodeInfo struct {
	ID        string
	Reference string
}

// Renderer turns a static graph into a displayable document.
type Renderer interface {
	Render(nodes []NodeInfo, edges []domain.Edge) (string, error)
}

// defaultReference is the swimlane a node with no reference tag falls into.
const defaultReference = "General"

// groupByReference buckets nodes by Reference, preserving first-seen
// cluster order for deterministic output.
func groupByReference(nodes []NodeInfo) (order []string, buckets map[string][]NodeInfo) {
	buckets = make(map[string][]NodeInfo)
	for _, n := range nodes {
		ref := n.Reference
		if ref == "" {
			ref = defaultReference
		}
		if _, ok := buckets[ref]; !ok {
			order = append(order, ref)
		}
		buckets[ref] = append(buckets[ref], n)
	}
	return order, buckets
}

// MermaidRenderer renders the workflow as a Mermaid flowchart with one
// subgraph per swimlane.
type MermaidRenderer struct{}

// NewMermaidRenderer returns a MermaidRenderer.
func NewMermaidRenderer() *MermaidRenderer { return &MermaidRenderer{} }

// Render produces a "flowchart LR" document: a subgraph per reference
// swimlane, then every edge, in that order.
func (MermaidRenderer) Render(nodes []NodeInfo, edges []domain.Edge) (string, error) {
	var b strings.Builder
	b.WriteString("flowchart LR\n")

	order, buckets := groupByReference(nodes)
	for i, ref := range order {
		fmt.Fprintf(&b, "    subgraph cluster_%d [%s]\n", i, mermaidLabel(ref))
		for _, n := range buckets[ref] {
			fmt.Fprintf(&b, "        %s[%s]\n", mermaidID(n.ID), mermaidLabel(n.ID))
		}
		b.WriteString("    end\n")
	}

	for _, e := range edges {
		fmt.Fprintf(&b, "    %s --> %s\n", mermaidID(e.From), mermaidID(e.To))
	}

	return b.String(), nil
}

func mermaidID(id string) string {
	return strings.NewReplacer(" ", "_", "-", "_").Replace(id)
}

func mermaidLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

// ASCIIRenderer renders a plain-text adjacency listing grouped by
// swimlane, for terminals that can't show Mermaid. The workflowctl graph
// subcommand's default when no --format flag is given.
type ASCIIRenderer struct{}

// NewASCIIRenderer returns an ASCIIRenderer.
func NewASCIIRenderer() *ASCIIRenderer { return &ASCIIRenderer{} }

// Render lists each swimlane's nodes, then every edge as "from -> to".
func (ASCIIRenderer) Render(nodes []NodeInfo, edges []domain.Edge) (string, error) {
	var b strings.Builder

	order, buckets := groupByReference(nodes)
	for _, ref := range order {
		fmt.Fprintf(&b, "[%s]\n", ref)
		ids := make([]string, 0, len(buckets[ref]))
		for _, n := range buckets[ref] {
			ids = append(ids, n.ID)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(&b, "  - %s\n", id)
		}
	}

	b.WriteString("\nedges:\n")
	for _, e := range edges {
		fmt.Fprintf(&b, "  %s -> %s\n", e.From, e.To)
	}

	return b.String(), nil
}
