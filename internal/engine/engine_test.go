package engine

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/playbookflow/internal/compiler"
	"github.com/smilemakc/playbookflow/internal/declaration"
	"github.com/smilemakc/playbookflow/internal/domain"
	"github.com/smilemakc/playbookflow/internal/events"
	"github.com/smilemakc/playbookflow/internal/runner"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testOptions(dir string) Options {
	o := DefaultOptions()
	o.ArtifactDir = dir
	o.PollInterval = 5 * time.Millisecond
	o.ResumeWaitInterval = 10 * time.Millisecond
	return o
}

func mustCompile(t *testing.T, yamlDoc string) *domain.Workflow {
	t.Helper()
	projectDir := t.TempDir()
	for _, name := range []string{"p0.yml", "p1.yml", "p2.yml", "p3.yml"} {
		require.NoError(t, os.WriteFile(filepath.Join(projectDir, name), []byte("---\n"), 0o644))
	}
	doc, err := declaration.Parse([]byte(yamlDoc))
	require.NoError(t, err)
	wf, err := compiler.Compile(doc, projectDir)
	require.NoError(t, err)
	return wf
}

func runToCompletion(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not finish in time")
	}
}

// Trivial serial declaration [P1, P2], both succeed.
func TestEngineTrivialSerial(t *testing.T) {
	wf := mustCompile(t, `
- import_playbook: p1.yml
  id: P1
- import_playbook: p2.yml
  id: P2
`)
	r := runner.NewFakeRunner()
	r.AutoFinish = time.Millisecond
	r.AutoStatus = runner.FinalStatusOK

	e := New(wf, r, events.NewBus(), testLogger(), testOptions(t.TempDir()))
	runToCompletion(t, e)

	snap := e.Status()
	assert.Equal(t, domain.WorkflowStatusEnded, snap.WorkflowStatus)
	for _, n := range snap.Nodes {
		if n.ID == "P1" || n.ID == "P2" {
			assert.Equal(t, domain.NodeStatusEnded, n.Status)
		}
	}
}

// Parallel fan-out: P1, P2 succeed, P3 fails; workflow ends FAILED,
// awaiting operator.
func TestEngineParallelFanOutOneFails(t *testing.T) {
	wf := mustCompile(t, `
- id: B
  strategy: parallel
  block:
    - import_playbook: p1.yml
      id: P1
    - import_playbook: p2.yml
      id: P2
    - import_playbook: p3.yml
      id: P3
`)
	r := runner.NewFakeRunner()
	e := New(wf, r, events.NewBus(), testLogger(), testOptions(t.TempDir()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = e.Run(ctx) }()

	require.Eventually(t, func() bool {
		snap := e.Status()
		for _, n := range snap.Nodes {
			if n.ID == "P1" && n.Status != domain.NodeStatusRunning {
				return false
			}
		}
		return true
	}, time.Second, 2*time.Millisecond)

	for _, id := range []string{"P1", "P2"} {
		n := wf.Node(id)
		h := n.Playbook.JobHandle
		r.Job(h).Finish(runner.FinalStatusOK)
	}
	time.Sleep(5 * time.Millisecond)
	r.Job(wf.Node("P3").Playbook.JobHandle).Finish(runner.FinalStatusFailed)

	require.Eventually(t, func() bool {
		return e.Status().WorkflowStatus == domain.WorkflowStatusFailed
	}, time.Second, 2*time.Millisecond)

	snap := e.Status()
	byID := map[string]domain.NodeStatus{}
	for _, n := range snap.Nodes {
		byID[n.ID] = n.Status
	}
	assert.Equal(t, domain.NodeStatusEnded, byID["P1"])
	assert.Equal(t, domain.NodeStatusEnded, byID["P2"])
	assert.Equal(t, domain.NodeStatusFailed, byID["P3"])
}

// Filter set: only P1 runs; P0, P2, P3 are pre-marked SKIPPED.
func TestEngineFilter(t *testing.T) {
	wf := mustCompile(t, `
- import_playbook: p0.yml
  id: P0
- id: B
  strategy: parallel
  block:
    - import_playbook: p1.yml
      id: P1
    - import_playbook: p2.yml
      id: P2
- import_playbook: p3.yml
  id: P3
`)
	r := runner.NewFakeRunner()
	r.AutoFinish = time.Millisecond
	r.AutoStatus = runner.FinalStatusOK

	opts := testOptions(t.TempDir())
	opts.FilterNodes = []string{"P1"}
	e := New(wf, r, events.NewBus(), testLogger(), opts)
	runToCompletion(t, e)

	snap := e.Status()
	byID := map[string]domain.NodeStatus{}
	for _, n := range snap.Nodes {
		byID[n.ID] = n.Status
	}
	assert.Equal(t, domain.NodeStatusSkipped, byID["P0"])
	assert.Equal(t, domain.NodeStatusEnded, byID["P1"])
	assert.Equal(t, domain.NodeStatusSkipped, byID["P2"])
	assert.Equal(t, domain.NodeStatusSkipped, byID["P3"])
	assert.Equal(t, domain.WorkflowStatusEnded, snap.WorkflowStatus)
}

// After a parallel branch fails, restart_node(P3) relaunches it with
// ident P3_1 and the workflow returns to RUNNING, then ENDED on success.
func TestEngineRestart(t *testing.T) {
	wf := mustCompile(t, `
- id: B
  strategy: parallel
  block:
    - import_playbook: p1.yml
      id: P1
    - import_playbook: p2.yml
      id: P2
    - import_playbook: p3.yml
      id: P3
`)
	r := runner.NewFakeRunner()
	e := New(wf, r, events.NewBus(), testLogger(), testOptions(t.TempDir()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = e.Run(ctx) }()

	require.Eventually(t, func() bool {
		return wf.Node("P3").Playbook.JobHandle != nil
	}, time.Second, 2*time.Millisecond)

	for _, id := range []string{"P1", "P2"} {
		r.Job(wf.Node(id).Playbook.JobHandle).Finish(runner.FinalStatusOK)
	}
	r.Job(wf.Node("P3").Playbook.JobHandle).Finish(runner.FinalStatusFailed)

	require.Eventually(t, func() bool {
		return e.Status().WorkflowStatus == domain.WorkflowStatusFailed
	}, time.Second, 2*time.Millisecond)

	require.NoError(t, e.RestartNode("P3"))

	require.Eventually(t, func() bool {
		return wf.Node("P3").Playbook.Ident == "P3_1"
	}, time.Second, 2*time.Millisecond)

	assert.Equal(t, domain.WorkflowStatusRunning, e.Status().WorkflowStatus)

	r.Job(wf.Node("P3").Playbook.JobHandle).Finish(runner.FinalStatusOK)

	require.Eventually(t, func() bool {
		return e.Status().WorkflowStatus == domain.WorkflowStatusEnded
	}, time.Second, 2*time.Millisecond)
}

// Duplicate ids reused across branches fail load with DUPLICATE_NODE_ID.
func TestCompileDuplicateID(t *testing.T) {
	doc, err := declaration.Parse([]byte(`
- import_playbook: p1.yml
  id: DUP
- import_playbook: p2.yml
  id: DUP
`))
	require.NoError(t, err)
	_, err = compiler.Compile(doc, t.TempDir())
	require.Error(t, err)
	var de *domain.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.ErrCodeDuplicateNodeID, de.Code)
}

func TestEngineVerifyOnly(t *testing.T) {
	wf := mustCompile(t, `
- import_playbook: p1.yml
  id: P1
`)
	r := runner.NewFakeRunner()
	opts := testOptions(t.TempDir())
	opts.VerifyOnly = true
	e := New(wf, r, events.NewBus(), testLogger(), opts)
	runToCompletion(t, e)

	assert.Equal(t, domain.WorkflowStatusEnded, e.Status().WorkflowStatus)
	assert.Empty(t, r.Launched, "verify_only must not launch anything")
}

func TestEngineVaultScriptMissingFailsValidation(t *testing.T) {
	wf := mustCompile(t, `
- import_playbook: p1.yml
  id: P1
`)
	wf.Node("P1").Playbook.VaultIDs = []string{"prod@/nonexistent/vault-pass.sh"}

	r := runner.NewFakeRunner()
	e := New(wf, r, events.NewBus(), testLogger(), testOptions(t.TempDir()))

	err := e.Run(context.Background())
	require.Error(t, err)
	var de *domain.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.ErrCodeVaultScriptMissing, de.Code)
	assert.Equal(t, domain.WorkflowStatusFailed, e.Status().WorkflowStatus)
	assert.Empty(t, r.Launched)
}

func TestEngineStartEndPruning(t *testing.T) {
	wf := mustCompile(t, `
- import_playbook: p0.yml
  id: P0
- import_playbook: p1.yml
  id: P1
- import_playbook: p2.yml
  id: P2
`)
	r := runner.NewFakeRunner()
	r.AutoFinish = time.Millisecond
	r.AutoStatus = runner.FinalStatusOK

	opts := testOptions(t.TempDir())
	opts.StartNode = "P1"
	opts.EndNode = "P1"
	e := New(wf, r, events.NewBus(), testLogger(), opts)
	runToCompletion(t, e)

	snap := e.Status()
	byID := map[string]domain.NodeStatus{}
	for _, n := range snap.Nodes {
		byID[n.ID] = n.Status
	}
	assert.Equal(t, domain.NodeStatusSkipped, byID["P0"])
	assert.Equal(t, domain.NodeStatusEnded, byID["P1"])
	assert.Equal(t, domain.NodeStatusSkipped, byID["P2"])
	assert.Equal(t, domain.WorkflowStatusEnded, snap.WorkflowStatus)
}

func TestEngineGracefulStop(t *testing.T) {
	wf := mustCompile(t, `
- import_playbook: p0.yml
  id: P0
- id: B
  strategy: parallel
  block:
    - import_playbook: p1.yml
      id: P1
    - import_playbook: p2.yml
      id: P2
- import_playbook: p3.yml
  id: P3
`)
	r := runner.NewFakeRunner()
	e := New(wf, r, events.NewBus(), testLogger(), testOptions(t.TempDir()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = e.Run(ctx) }()

	require.Eventually(t, func() bool {
		return wf.Node("P0").Playbook.JobHandle != nil
	}, time.Second, 2*time.Millisecond)

	e.Stop(domain.StopModeGraceful)
	r.Job(wf.Node("P0").Playbook.JobHandle).Finish(runner.FinalStatusOK)

	time.Sleep(30 * time.Millisecond)
	assert.Nil(t, wf.Node("P3").Playbook.JobHandle, "P3 must never launch once stop is set")
}
