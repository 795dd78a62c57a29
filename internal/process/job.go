// internal/process/job.go
package process

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ErrAborted is recorded on a job whose abort was requested before a pipeline step started.
var ErrAborted = errors.New("compilation aborted")

type SceneID string

type GameID string

// Snapshot is the copy of scene data code generation works from. It is captured
// on the editor goroutine so a running job never touches live scene state.
type Snapshot struct {
	GameID    GameID
	GameName  string
	SceneID   SceneID
	SceneName string
	Events    []byte
}

// JobStatus represents the lifecycle state of a compilation job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusAborted   JobStatus = "aborted"
	JobStatusDropped   JobStatus = "dropped"
)

// Job is one scheduled compilation of a single scene's events.
type Job struct {
	ID    string
	Scene SceneID
	Game  GameID

	abort     atomic.Bool
	completed atomic.Bool

	mu       sync.Mutex
	snapshot Snapshot
	status   JobStatus
	err      error
	artifact string
}

func NewJob(snap Snapshot) *Job {
	return &Job{
		ID:       uuid.NewString(),
		Scene:    snap.SceneID,
		Game:     snap.GameID,
		snapshot: snap,
		status:   JobStatusPending,
	}
}

func (j *Job) RequestAbort()        { j.abort.Store(true) }
func (j *Job) AbortRequested() bool { return j.abort.Load() }

// Completed reports whether the worker finished with this job, whatever the outcome.
func (j *Job) Completed() bool { return j.completed.Load() }

func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snapshot
}

// Refresh replaces the captured data of a job that has not started yet.
// It returns false once the job left the pending state.
func (j *Job) Refresh(snap Snapshot) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != JobStatusPending || snap.SceneID != j.Scene {
		return false
	}
	j.snapshot = snap
	return true
}

func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Job) Artifact() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.artifact
}

func MarkRunning(j *Job) {
	j.mu.Lock()
	j.status = JobStatusRunning
	j.mu.Unlock()
}

func MarkSucceeded(j *Job, artifact string) {
	j.mu.Lock()
	j.status = JobStatusSucceeded
	j.artifact = artifact
	j.mu.Unlock()
	j.completed.Store(true)
}

func MarkFailed(j *Job, err error) {
	j.mu.Lock()
	j.status = JobStatusFailed
	if err != nil {
		j.err = err
	}
	j.mu.Unlock()
	j.completed.Store(true)
}

func MarkAborted(j *Job) {
	j.mu.Lock()
	j.status = JobStatusAborted
	j.err = ErrAborted
	j.mu.Unlock()
	j.completed.Store(true)
}

// MarkDropped records that a pending job was discarded before it ever ran.
func MarkDropped(j *Job) {
	j.mu.Lock()
	j.status = JobStatusDropped
	j.mu.Unlock()
}
