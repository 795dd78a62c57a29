package main

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/tendant/events-compiler/internal/compiler"
	"github.com/tendant/events-compiler/internal/process"
	"github.com/tendant/events-compiler/internal/project"
)

func newCompileCommand(opts *rootOptions) *cobra.Command {
	var (
		all     bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "compile [scene-id...]",
		Short: "Compile scenes once and report the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return fmt.Errorf("name at least one scene or pass --all")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return compileScenes(ctx, opts, args, all, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "compile every scene of the project")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "give up waiting after this long")
	return cmd
}

func compileScenes(ctx context.Context, opts *rootOptions, ids []string, all bool, out io.Writer) error {
	cfg, logger := opts.cfg, opts.logger

	proj, err := project.Load(cfg.ProjectFile)
	if err != nil {
		return err
	}
	if all {
		ids = ids[:0]
		for _, scene := range proj.Scenes() {
			ids = append(ids, string(scene.ID()))
		}
	}

	results := newResultCollector()
	c, err := startCompiler(cfg, proj, logger, results)
	if err != nil {
		return err
	}
	defer compiler.DestroyInstance()

	for _, id := range ids {
		if err := requestScene(c, proj, process.SceneID(id)); err != nil {
			return err
		}
	}

	jobs, err := results.wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for compilations: %w", err)
	}

	failed := 0
	for _, job := range jobs {
		if job.Status() != process.JobStatusSucceeded {
			failed++
		}
		fmt.Fprintln(out, resultLine(job))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d scenes failed to compile", failed, len(jobs))
	}
	return nil
}

func resultLine(job *process.Job) string {
	switch err := job.Err(); {
	case job.Status() == process.JobStatusSucceeded:
		return fmt.Sprintf("ok      %s\t%s", job.Scene, job.Artifact())
	case err == nil:
		return fmt.Sprintf("FAIL    %s\t%s", job.Scene, job.Status())
	default:
		return fmt.Sprintf("FAIL    %s\t%s: %v", job.Scene, compiler.ClassifyError(err), err)
	}
}

// resultCollector waits until every accepted request has run.
type resultCollector struct {
	compiler.NopObserver

	mu       sync.Mutex
	accepted int
	jobs     []*process.Job
	changed  chan struct{}
}

func newResultCollector() *resultCollector {
	return &resultCollector{changed: make(chan struct{}, 1)}
}

func (r *resultCollector) RequestHandled(_ process.SceneID, outcome compiler.RequestOutcome) {
	if outcome != compiler.OutcomeStarted && outcome != compiler.OutcomeQueued {
		return
	}
	r.mu.Lock()
	r.accepted++
	r.mu.Unlock()
}

func (r *resultCollector) JobFinished(job *process.Job, _ time.Duration) {
	r.mu.Lock()
	r.jobs = append(r.jobs, job)
	r.mu.Unlock()
	r.notify()
}

func (r *resultCollector) JobDropped(job *process.Job, _ compiler.DropReason, _ int) {
	r.mu.Lock()
	r.jobs = append(r.jobs, job)
	r.mu.Unlock()
	r.notify()
}

func (r *resultCollector) notify() {
	select {
	case r.changed <- struct{}{}:
	default:
	}
}

func (r *resultCollector) wait(ctx context.Context) ([]*process.Job, error) {
	for {
		r.mu.Lock()
		if len(r.jobs) >= r.accepted {
			jobs := append([]*process.Job(nil), r.jobs...)
			r.mu.Unlock()
			return jobs, nil
		}
		r.mu.Unlock()

		select {
		case <-r.changed:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
