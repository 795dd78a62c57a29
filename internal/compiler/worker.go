package compiler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/tendant/events-compiler/internal/process"
	"github.com/tendant/events-compiler/pkg/schema"
)

// Step names a stage of the worker pipeline.
type Step string

const (
	StepGenerate Step = "generate"
	StepCompile  Step = "compile"
)

// StepError is recorded on a job when a pipeline step fails.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("%s: %v", e.Step, e.Err) }
func (e *StepError) Unwrap() error { return e.Err }

// PanicError is recorded on a job when a collaborator panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

// ClassifyError maps a job error to the failure type published with it.
func ClassifyError(err error) schema.FailureType {
	if err == nil {
		return ""
	}

	if errors.Is(err, process.ErrAborted) {
		return schema.FailureTypeAborted
	}

	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		return schema.FailureTypeInternal
	}

	var stepErr *StepError
	if errors.As(err, &stepErr) && stepErr.Step == StepGenerate {
		return schema.FailureTypeGeneration
	}

	// Default to toolchain: anything else happened while building the artifact
	return schema.FailureTypeToolchain
}

// worker owns the one running job.
type worker struct {
	job     *process.Job
	started time.Time
	done    chan struct{}

	// detached is set once the job's scene was destroyed; the scheduler then no
	// longer reports the scene as being compiled. Guarded by Compiler.mu.
	detached bool
}

// launchLocked gives job the worker slot and starts its goroutine.
func (c *Compiler) launchLocked(job *process.Job) notices {
	w := &worker{job: job, started: time.Now(), done: make(chan struct{})}
	process.MarkRunning(job)
	c.running = w
	c.wg.Add(1)
	go c.run(w)

	depth := c.pending.len()
	c.logger.Info("compilation started", "job_id", job.ID, "scene_id", job.Scene, "game_id", job.Game, "queue_depth", depth)
	return notices{func(o Observer) { o.JobStarted(job, depth) }}
}

func (c *Compiler) run(w *worker) {
	defer c.wg.Done()
	defer close(w.done)

	// The worker context is never cancelled: abort is only observed between steps.
	artifact, err := c.execute(context.Background(), w.job)
	c.finish(w, artifact, err)
}

func (c *Compiler) execute(ctx context.Context, job *process.Job) (artifact string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	// Step 1: Generate the events source from the captured snapshot
	if job.AbortRequested() {
		return "", process.ErrAborted
	}
	source, err := c.renderer.Render(ctx, job.Snapshot())
	if err != nil {
		return "", &StepError{Step: StepGenerate, Err: err}
	}

	// Step 2: Compile it. Header directories are read at invocation time.
	if job.AbortRequested() {
		return "", process.ErrAborted
	}
	artifact, err = c.invoker.Compile(ctx, source, c.HeaderDirectories())
	if err != nil {
		return "", &StepError{Step: StepCompile, Err: err}
	}
	return artifact, nil
}

// finish records the outcome, frees the worker slot and promotes the next job.
func (c *Compiler) finish(w *worker, artifact string, err error) {
	job := w.job
	elapsed := time.Since(w.started)
	jobLogger := c.logger.With("job_id", job.ID, "scene_id", job.Scene)

	switch {
	case errors.Is(err, process.ErrAborted):
		process.MarkAborted(job)
		jobLogger.Info("compilation aborted", "duration_ms", elapsed.Milliseconds())
	case err != nil:
		process.MarkFailed(job, err)
		var panicErr *PanicError
		if errors.As(err, &panicErr) {
			jobLogger.Error("compilation panicked", "err", err, "stack", string(panicErr.Stack))
		} else {
			jobLogger.Warn("compilation failed", "err", err, "failure_type", ClassifyError(err), "duration_ms", elapsed.Milliseconds())
		}
	default:
		process.MarkSucceeded(job, artifact)
		jobLogger.Info("compilation completed", "artifact", artifact, "duration_ms", elapsed.Milliseconds())
	}

	c.mu.Lock()
	if c.running == w {
		c.running = nil
	}
	c.post(notices{func(o Observer) { o.JobFinished(job, elapsed) }})
	c.post(c.promoteLocked())
	c.mu.Unlock()
	c.flush()
}

// Wait blocks until no compilation is running or queued and observers have
// seen every event up to that point, or until ctx is done.
func (c *Compiler) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		w := c.running
		c.mu.Unlock()
		if w == nil {
			c.flush()
			return nil
		}
		select {
		case <-w.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
