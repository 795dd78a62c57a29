// Package compiler schedules background compilation of scene events.
//
// A Compiler runs at most one compilation at a time. Requests arriving while a
// job runs wait in a FIFO queue holding at most one entry per scene; scenes can
// be disabled, re-enabled or destroyed at any moment. Every public method only
// takes a short-held lock over the scheduler state and never waits for a
// compilation, except Close and Wait.
//
// Abort is cooperative: it is checked before code generation and again before
// the toolchain is launched. A toolchain invocation is never interrupted, and
// there is no timeout; a hung compiler blocks its worker, and therefore Close,
// indefinitely.
package compiler

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/tendant/events-compiler/internal/codegen"
	"github.com/tendant/events-compiler/internal/outputlock"
	"github.com/tendant/events-compiler/internal/process"
	"github.com/tendant/events-compiler/internal/toolchain"
)

// Scene is an editor-owned scene. The compiler only calls its methods from the
// goroutine calling EventsCompilationNeeded and never keeps a reference to it.
type Scene interface {
	ID() process.SceneID
	Name() string
	// Events returns the serialized event graph to compile.
	Events() []byte
}

// Game is the editor-owned project a scene belongs to.
type Game interface {
	ID() process.GameID
	Name() string
}

type Config struct {
	// Renderer generates the events source file. Defaults to a TemplateRenderer
	// writing under the system temp directory.
	Renderer codegen.Renderer

	// Invoker compiles the generated file. Defaults to clang++ guarded by
	// outputlock.Default.
	Invoker toolchain.Invoker

	// HeaderDirs seeds the header search directories.
	HeaderDirs []string

	Logger    *slog.Logger
	Observers []Observer
}

// DefaultWorkDir is where the default renderer writes generated sources.
func DefaultWorkDir() string {
	return filepath.Join(os.TempDir(), "events-compiler")
}

// Compiler launches and manages events compilation jobs.
type Compiler struct {
	renderer  codegen.Renderer
	invoker   toolchain.Invoker
	logger    *slog.Logger
	observers []Observer

	mu         sync.Mutex
	running    *worker
	pending    pendingQueue
	disallowed map[process.SceneID]struct{}
	headerDirs []string
	closed     bool
	outbox     notices

	// dispatchMu serializes observer delivery so notices arrive in the
	// order the state changes happened.
	dispatchMu sync.Mutex

	wg sync.WaitGroup
}

func New(cfg Config) *Compiler {
	c := &Compiler{
		renderer:   cfg.Renderer,
		invoker:    cfg.Invoker,
		logger:     cfg.Logger,
		observers:  slices.Clone(cfg.Observers),
		disallowed: make(map[process.SceneID]struct{}),
	}
	if c.renderer == nil {
		c.renderer = codegen.NewTemplateRenderer(DefaultWorkDir())
	}
	if c.invoker == nil {
		c.invoker = toolchain.NewClangInvoker("clang++", outputlock.Default)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	for _, dir := range cfg.HeaderDirs {
		c.addHeaderDirLocked(dir)
	}
	return c
}

// EventsCompilationNeeded requests that scene's events be compiled. The request
// is ignored when the scene is disallowed, already running, or the compiler is
// closed. A request for a scene that is already queued keeps its queue position
// and replaces the data it will compile.
func (c *Compiler) EventsCompilationNeeded(game Game, scene Scene) {
	id := scene.ID()

	c.mu.Lock()
	outcome, ok := c.admitLocked(id)
	if !ok {
		c.ignoreLocked(id, outcome)
		c.mu.Unlock()
		c.flush()
		return
	}
	c.mu.Unlock()

	snap := capture(game, scene)

	var n notices
	c.mu.Lock()
	outcome, ok = c.admitLocked(id)
	if ok {
		switch queued := c.pending.find(id); {
		case queued != nil:
			queued.Refresh(snap)
			outcome = OutcomeCoalesced
		case c.running == nil:
			n = c.launchLocked(process.NewJob(snap))
			outcome = OutcomeStarted
		default:
			job := process.NewJob(snap)
			c.pending.push(job)
			depth := c.pending.len()
			n = append(n, func(o Observer) { o.JobQueued(job, depth) })
			outcome = OutcomeQueued
			c.logger.Info("compilation queued", "job_id", job.ID, "scene_id", id, "queue_depth", depth)
		}
	}
	if !ok || outcome == OutcomeCoalesced {
		c.ignoreLocked(id, outcome)
	} else {
		c.post(append(n, func(o Observer) { o.RequestHandled(id, outcome) }))
	}
	c.mu.Unlock()
	c.flush()
}

// admitLocked reports whether a request for id may create or refresh a job.
func (c *Compiler) admitLocked(id process.SceneID) (RequestOutcome, bool) {
	if c.closed {
		return OutcomeClosed, false
	}
	if _, ok := c.disallowed[id]; ok {
		return OutcomeDisallowed, false
	}
	if c.runningSceneLocked(id) {
		return OutcomeCoalesced, false
	}
	return "", true
}

func (c *Compiler) ignoreLocked(id process.SceneID, outcome RequestOutcome) {
	c.logger.Debug("compilation request ignored", "scene_id", id, "reason", outcome)
	c.post(notices{func(o Observer) { o.RequestHandled(id, outcome) }})
}

// EnableCompilation allows scene to be compiled again. It does not request a
// compilation by itself.
func (c *Compiler) EnableCompilation(scene process.SceneID) {
	c.mu.Lock()
	delete(c.disallowed, scene)
	n := c.promoteLocked()
	c.post(n)
	c.mu.Unlock()
	c.flush()
}

// DisableCompilation prevents scene from being compiled and drops its queued
// request. A compilation already running for scene is not stopped; callers
// wait for SceneEventsBeingCompiled to turn false.
func (c *Compiler) DisableCompilation(scene process.SceneID) {
	c.mu.Lock()
	c.disallowed[scene] = struct{}{}
	n := c.dropLocked(c.pending.remove(scene), DropDisabled)
	n = append(n, c.promoteLocked()...)
	c.post(n)
	c.mu.Unlock()
	c.flush()
}

// EventsBeingCompiled reports whether a compilation is running for any scene.
// While it is true no runtime scene may be started.
func (c *Compiler) EventsBeingCompiled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running != nil
}

// SceneEventsBeingCompiled reports whether scene is being compiled or is
// waiting to be.
func (c *Compiler) SceneEventsBeingCompiled(scene process.SceneID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runningSceneLocked(scene) || c.pending.find(scene) != nil
}

// NotifyASceneIsDestroyed forgets everything about scene: queued requests are
// dropped, a running job for it is asked to abort and detached, and the scene
// leaves the disallowed set. The detached job keeps the worker slot until it
// finishes.
func (c *Compiler) NotifyASceneIsDestroyed(scene process.SceneID) {
	c.mu.Lock()
	n := c.dropLocked(c.pending.remove(scene), DropDestroyed)
	if w := c.running; w != nil && !w.detached && w.job.Scene == scene {
		w.job.RequestAbort()
		w.detached = true
		c.logger.Info("running compilation detached from destroyed scene", "job_id", w.job.ID, "scene_id", scene)
	}
	delete(c.disallowed, scene)
	n = append(n, c.promoteLocked()...)
	c.post(n)
	c.mu.Unlock()
	c.flush()
}

// AddHeaderDirectory adds a directory where the toolchain looks for headers.
// Duplicates are ignored.
func (c *Compiler) AddHeaderDirectory(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addHeaderDirLocked(dir)
}

func (c *Compiler) addHeaderDirLocked(dir string) {
	if !slices.Contains(c.headerDirs, dir) {
		c.headerDirs = append(c.headerDirs, dir)
	}
}

// HeaderDirectories returns a copy of the header search directories.
func (c *Compiler) HeaderDirectories() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.headerDirs)
}

// PendingScenes returns the queued scenes in promotion order.
func (c *Compiler) PendingScenes() []process.SceneID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.scenes()
}

// RunningJob returns the job holding the worker slot, if any.
func (c *Compiler) RunningJob() *process.Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running == nil {
		return nil
	}
	return c.running.job
}

func (c *Compiler) runningSceneLocked(scene process.SceneID) bool {
	return c.running != nil && !c.running.detached && c.running.job.Scene == scene
}

// promoteLocked fills a free worker slot from the head of the queue, discarding
// entries whose scene was disallowed after they were queued.
func (c *Compiler) promoteLocked() notices {
	if c.closed {
		return nil
	}
	var n notices
	for c.running == nil && c.pending.len() > 0 {
		job := c.pending.pop()
		if _, ok := c.disallowed[job.Scene]; ok {
			n = append(n, c.dropLocked([]*process.Job{job}, DropDisallowed)...)
			continue
		}
		n = append(n, c.launchLocked(job)...)
	}
	return n
}

func (c *Compiler) dropLocked(jobs []*process.Job, reason DropReason) notices {
	var n notices
	depth := c.pending.len()
	for _, job := range jobs {
		process.MarkDropped(job)
		c.logger.Info("pending compilation dropped", "job_id", job.ID, "scene_id", job.Scene, "reason", reason)
		n = append(n, func(o Observer) { o.JobDropped(job, reason, depth) })
	}
	return n
}

// Close stops accepting requests, drops queued jobs, asks the running job to
// abort and waits for its worker to return. Calling Close again is a no-op.
func (c *Compiler) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.wg.Wait()
		return
	}
	c.closed = true
	n := c.dropLocked(c.pending.drain(), DropClosed)
	if c.running != nil {
		c.running.job.RequestAbort()
	}
	c.post(n)
	c.mu.Unlock()

	c.flush()
	c.wg.Wait()
	c.flush()
	c.logger.Info("events compiler closed")
}

func capture(game Game, scene Scene) process.Snapshot {
	snap := process.Snapshot{
		SceneID:   scene.ID(),
		SceneName: scene.Name(),
		Events:    bytes.Clone(scene.Events()),
	}
	if game != nil {
		snap.GameID = game.ID()
		snap.GameName = game.Name()
	}
	return snap
}
