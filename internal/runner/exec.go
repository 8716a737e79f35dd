package runner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// ExecRunner is a concrete Runner backed by an external command-line
// playbook executor (e.g. ansible-playbook). Stdout lands in
// <artifact_dir>/<ident>/stdout, the same layout ansible-runner uses, so
// tail_stdout works identically against either backend. Launch spawns the
// command and returns immediately.
type ExecRunner struct {
	// Command is the executable to invoke, e.g. "ansible-playbook".
	Command string
}

// NewExecRunner returns an ExecRunner invoking the given command.
func NewExecRunner(command string) *ExecRunner {
	if command == "" {
		command = "ansible-playbook"
	}
	return &ExecRunner{Command: command}
}

// execJob is the JobHandle behind ExecRunner: a running or finished
// os/exec.Cmd plus the bookkeeping the engine polls.
type execJob struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	alive  bool
	status FinalStatus
}

func (j *execJob) finish(status FinalStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.alive = false
	j.status = status
}

// Launch builds the command line for req and starts it, redirecting stdout
// and stderr to <artifact_dir>/<ident>/stdout.
func (r *ExecRunner) Launch(ctx context.Context, req LaunchRequest) (JobHandle, error) {
	dir := filepath.Join(req.ArtifactDir, req.Ident)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	stdoutFile, err := os.Create(filepath.Join(dir, "stdout"))
	if err != nil {
		return nil, fmt.Errorf("create stdout file: %w", err)
	}

	args := r.buildArgs(req)
	cmd := exec.Command(r.Command, args...)
	cmd.Stdout = stdoutFile
	cmd.Stderr = stdoutFile
	if req.ProjectPath != "" {
		cmd.Dir = req.ProjectPath
	}

	job := &execJob{cmd: cmd, alive: true}

	if err := cmd.Start(); err != nil {
		stdoutFile.Close()
		return nil, fmt.Errorf("start command: %w", err)
	}

	go func() {
		defer stdoutFile.Close()
		err := cmd.Wait()
		if err != nil {
			job.finish(FinalStatusFailed)
		} else {
			job.finish(FinalStatusOK)
		}
	}()

	return job, nil
}

// buildArgs translates a LaunchRequest into ansible-playbook-style flags.
func (r *ExecRunner) buildArgs(req LaunchRequest) []string {
	args := []string{req.Playbook}
	if req.Inventory != "" {
		args = append(args, "-i", req.Inventory)
	}
	if req.CheckMode {
		args = append(args, "--check")
	}
	if req.DiffMode {
		args = append(args, "--diff")
	}
	if req.Limit != "" {
		args = append(args, "--limit", req.Limit)
	}
	for _, id := range req.VaultIDs {
		args = append(args, "--vault-id", id)
	}
	if req.Verbosity > 0 {
		args = append(args, "-"+strings.Repeat("v", req.Verbosity))
	}
	for k, v := range req.ExtraVars {
		args = append(args, "-e", fmt.Sprintf("%s=%v", k, v))
	}
	return args
}

func (r *ExecRunner) IsAlive(handle JobHandle) bool {
	job, ok := handle.(*execJob)
	if !ok {
		return false
	}
	job.mu.Lock()
	defer job.mu.Unlock()
	return job.alive
}

func (r *ExecRunner) FinalStatus(handle JobHandle) FinalStatus {
	job, ok := handle.(*execJob)
	if !ok {
		return FinalStatusFailed
	}
	job.mu.Lock()
	defer job.mu.Unlock()
	return job.status
}

func (r *ExecRunner) StdoutFile(artifactDir, ident string) string {
	return filepath.Join(artifactDir, ident, "stdout")
}

// Kill implements the optional Killer capability by signaling the
// underlying process, a best-effort hard stop.
func (r *ExecRunner) Kill(handle JobHandle) error {
	job, ok := handle.(*execJob)
	if !ok {
		return nil
	}
	job.mu.Lock()
	proc := job.cmd.Process
	job.mu.Unlock()
	if proc == nil {
		return nil
	}
	return proc.Kill()
}
