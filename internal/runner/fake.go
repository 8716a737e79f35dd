package runner

import (
	"context"
	"sync"
	"time"
)

// FakeJob is the in-memory job state backing FakeRunner, letting tests
// script exactly when and how a job finishes.
type FakeJob struct {
	mu     sync.Mutex
	alive  bool
	status FinalStatus
	ident  string
}

// Finish marks the job complete with the given outcome. Safe to call from
// a test goroutine while the engine polls IsAlive concurrently.
func (j *FakeJob) Finish(status FinalStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.alive = false
	j.status = status
}

// FakeRunner is an in-process Runner used by engine tests. By default
// every launched job stays alive until the test calls Finish on its
// FakeJob; AutoFinish, if set, completes jobs after a fixed delay instead.
type FakeRunner struct {
	mu         sync.Mutex
	jobs       map[JobHandle]*FakeJob
	Launched   []LaunchRequest
	AutoFinish time.Duration
	AutoStatus FinalStatus
}

// NewFakeRunner returns a FakeRunner with no jobs launched yet.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{jobs: make(map[JobHandle]*FakeJob), AutoStatus: FinalStatusOK}
}

func (r *FakeRunner) Launch(ctx context.Context, req LaunchRequest) (JobHandle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job := &FakeJob{alive: true, ident: req.Ident}
	r.jobs[job] = job
	r.Launched = append(r.Launched, req)
	if r.AutoFinish > 0 {
		status := r.AutoStatus
		go func() {
			time.Sleep(r.AutoFinish)
			job.Finish(status)
		}()
	}
	return job, nil
}

func (r *FakeRunner) IsAlive(handle JobHandle) bool {
	job, ok := handle.(*FakeJob)
	if !ok {
		return false
	}
	job.mu.Lock()
	defer job.mu.Unlock()
	return job.alive
}

func (r *FakeRunner) FinalStatus(handle JobHandle) FinalStatus {
	job, ok := handle.(*FakeJob)
	if !ok {
		return FinalStatusFailed
	}
	job.mu.Lock()
	defer job.mu.Unlock()
	return job.status
}

func (r *FakeRunner) StdoutFile(artifactDir, ident string) string {
	return artifactDir + "/" + ident + "/stdout"
}

// Job looks up the FakeJob behind a handle, for tests that want to Finish it.
func (r *FakeRunner) Job(handle JobHandle) *FakeJob {
	job, _ := handle.(*FakeJob)
	return job
}

// Kill implements the optional Killer capability so hard-stop paths can be
// exercised in tests without a real process to terminate.
func (r *FakeRunner) Kill(handle JobHandle) error {
	job, ok := handle.(*FakeJob)
	if !ok {
		return nil
	}
	job.Finish(FinalStatusFailed)
	return nil
}
