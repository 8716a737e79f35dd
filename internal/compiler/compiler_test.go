package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/playbookflow/internal/declaration"
	"github.com/smilemakc/playbookflow/internal/domain"
)

func playbookEntry(id, path string) declaration.Entry {
	raw, err := declaration.Parse([]byte("- import_playbook: " + path + "\n  id: " + id + "\n"))
	if err != nil {
		panic(err)
	}
	return raw[0]
}

func blockEntry(id string, strategy domain.Strategy, children ...declaration.Entry) declaration.Entry {
	e := declaration.Entry{ID: id, Strategy: strategy, Block: children}
	// force IsBlock() true via the raw map check
	e = forceBlock(e)
	return e
}

// forceBlock works around Entry.IsBlock()'s reliance on a parsed "raw" map
// by round-tripping through Parse so tests build entries the same way the
// declaration loader does.
func forceBlock(e declaration.Entry) declaration.Entry {
	yaml := "- id: " + e.ID + "\n  block: []\n"
	raw, err := declaration.Parse([]byte(yaml))
	if err != nil {
		panic(err)
	}
	out := raw[0]
	out.Strategy = e.Strategy
	out.Block = e.Block
	return out
}

// Trivial serial declaration: [P1, P2].
func TestCompileTrivialSerial(t *testing.T) {
	doc := declaration.Document{
		playbookEntry("P1", "p1.yml"),
		playbookEntry("P2", "p2.yml"),
	}
	wf, err := Compile(doc, "/proj")
	require.NoError(t, err)

	g := wf.ExecutionGraph
	assert.ElementsMatch(t, []string{domain.SinkNodeID}, g.Out("P2"))
	assert.ElementsMatch(t, []string{"P2"}, g.Out("P1"))
	assert.ElementsMatch(t, []string{"P1"}, g.Out(domain.SourceNodeID))
}

// Parallel fan-out: [ block(parallel, [P1, P2, P3]) ].
func TestCompileParallelFanOut(t *testing.T) {
	doc := declaration.Document{
		blockEntry("B", domain.StrategyParallel,
			playbookEntry("P1", "p1.yml"),
			playbookEntry("P2", "p2.yml"),
			playbookEntry("P3", "p3.yml"),
		),
	}
	wf, err := Compile(doc, "/proj")
	require.NoError(t, err)

	g := wf.ExecutionGraph
	assert.ElementsMatch(t, []string{"P1", "P2", "P3"}, g.Out("B"))
	for _, p := range []string{"P1", "P2", "P3"} {
		assert.ElementsMatch(t, []string{domain.SinkNodeID}, g.Out(p))
	}
}

// Every compile produces exactly one source and one sink.
func TestCompileSingleSourceSink(t *testing.T) {
	doc := declaration.Document{
		playbookEntry("P1", "p1.yml"),
	}
	wf, err := Compile(doc, "/proj")
	require.NoError(t, err)

	g := wf.ExecutionGraph
	assert.Equal(t, 0, g.InDegree(domain.SourceNodeID))
	assert.Equal(t, 0, g.OutDegree(domain.SinkNodeID))
}

// Every playbook node is reachable from _s and can reach _e.
func TestCompileReachability(t *testing.T) {
	doc := declaration.Document{
		playbookEntry("P0", "p0.yml"),
		blockEntry("B", domain.StrategyParallel,
			playbookEntry("P1", "p1.yml"),
			playbookEntry("P2", "p2.yml"),
		),
		playbookEntry("P3", "p3.yml"),
	}
	wf, err := Compile(doc, "/proj")
	require.NoError(t, err)
	require.NoError(t, wf.Validate())
}

// Mixed serial/parallel: [ P0, block(parallel, [P1, P2]), P3 ].
// Graph: _s → P0 → B → {P1, P2} → P3 → _e. The block's frontier must be
// consumed by the following serial sibling, never exported to _e.
func TestCompileMixedSerialParallel(t *testing.T) {
	doc := declaration.Document{
		playbookEntry("P0", "p0.yml"),
		blockEntry("B", domain.StrategyParallel,
			playbookEntry("P1", "p1.yml"),
			playbookEntry("P2", "p2.yml"),
		),
		playbookEntry("P3", "p3.yml"),
	}
	wf, err := Compile(doc, "/proj")
	require.NoError(t, err)

	g := wf.ExecutionGraph
	assert.ElementsMatch(t, []string{"P0"}, g.Out(domain.SourceNodeID))
	assert.ElementsMatch(t, []string{"B"}, g.Out("P0"))
	assert.ElementsMatch(t, []string{"P1", "P2"}, g.Out("B"))
	assert.ElementsMatch(t, []string{"P3"}, g.Out("P1"))
	assert.ElementsMatch(t, []string{"P3"}, g.Out("P2"))
	assert.ElementsMatch(t, []string{domain.SinkNodeID}, g.Out("P3"))
	assert.ElementsMatch(t, []string{"P3"}, g.In(domain.SinkNodeID))

	og := wf.OriginalGraph
	assert.ElementsMatch(t, []string{"P0", "B", "P3"}, og.Out(domain.RootNodeID))
	assert.ElementsMatch(t, []string{"P1", "P2"}, og.Out("B"))
}

// Parallel siblings are edge-disjoint except at common attach points.
func TestCompileParallelNoCrossEdges(t *testing.T) {
	doc := declaration.Document{
		blockEntry("B", domain.StrategyParallel,
			playbookEntry("P1", "p1.yml"),
			playbookEntry("P2", "p2.yml"),
		),
	}
	wf, err := Compile(doc, "/proj")
	require.NoError(t, err)

	g := wf.ExecutionGraph
	assert.NotContains(t, g.Out("P1"), "P2")
	assert.NotContains(t, g.Out("P2"), "P1")
}

// Empty block tie-break: the block itself becomes the frontier contribution.
func TestCompileEmptyBlock(t *testing.T) {
	doc := declaration.Document{
		blockEntry("B", domain.StrategyParallel),
		playbookEntry("P1", "p1.yml"),
	}
	wf, err := Compile(doc, "/proj")
	require.NoError(t, err)

	g := wf.ExecutionGraph
	assert.Contains(t, g.Out("B"), "P1")
}

// Duplicate ids reused across branches fail the load with DUPLICATE_NODE_ID.
func TestCompileDuplicateIDRejected(t *testing.T) {
	doc := declaration.Document{
		playbookEntry("DUP", "p1.yml"),
		playbookEntry("DUP", "p2.yml"),
	}
	_, err := Compile(doc, "/proj")
	require.Error(t, err)
	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeDuplicateNodeID, derr.Code)
}

func TestCompileReservedIDRejected(t *testing.T) {
	doc := declaration.Document{
		playbookEntry("_s", "p1.yml"),
	}
	_, err := Compile(doc, "/proj")
	require.Error(t, err)
	var derr *domain.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, domain.ErrCodeDuplicateNodeID, derr.Code)
}
