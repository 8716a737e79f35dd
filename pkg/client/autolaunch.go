package client

import (
	"context"
	"os/exec"
	"time"
)

// AutoLaunchBudget is the time a client waits for a freshly forked daemon
// to come up before giving up.
const AutoLaunchBudget = 3 * time.Second

// EnsureServer returns a Client connected to baseURL, forking a detached
// workflowd process via daemonPath if the first healthz probe gets no
// answer. A second client connecting to an already-running daemon simply
// reuses it; the fork only happens when the health probe fails outright.
func EnsureServer(ctx context.Context, baseURL, token, daemonPath string) (*Client, error) {
	c := New(baseURL, token)
	if c.Healthy(ctx) {
		return c, nil
	}

	cmd := exec.Command(daemonPath)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	_ = cmd.Process.Release()

	deadline := time.Now().Add(AutoLaunchBudget)
	for time.Now().Before(deadline) {
		if c.Healthy(ctx) {
			return c, nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return c, nil
}
