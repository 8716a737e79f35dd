package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGraphAddEdgeRegistersNodes(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a", "b")
	assert.True(t, g.HasNode("a"))
	assert.True(t, g.HasNode("b"))
	assert.Equal(t, []string{"b"}, g.Out("a"))
	assert.Equal(t, []string{"a"}, g.In("b"))
}

func TestGraphEdgesPreservesInsertionOrder(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a", "b")
	g.AddEdge("a", "c")
	edges := g.Edges()
	assert.Equal(t, []Edge{{From: "a", To: "b"}, {From: "a", To: "c"}}, edges)
}

func TestGraphHasCycleDetectsCycle(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("c", "a")
	assert.True(t, g.HasCycle())
}

func TestGraphHasCycleFalseForDAG(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	assert.False(t, g.HasCycle())
}

func TestGraphTopologicalSortOrdersDependencies(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	order, ok := g.TopologicalSort()
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestGraphTopologicalSortFalseOnCycle(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a", "b")
	g.AddEdge("b", "a")
	_, ok := g.TopologicalSort()
	assert.False(t, ok)
}

func TestGraphAncestorsAndDescendants(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("b", "d")

	anc := g.Ancestors("c")
	_, hasA := anc["a"]
	_, hasB := anc["b"]
	assert.True(t, hasA)
	assert.True(t, hasB)

	desc := g.Descendants("a")
	_, hasC := desc["c"]
	_, hasD := desc["d"]
	assert.True(t, hasC)
	assert.True(t, hasD)
}
