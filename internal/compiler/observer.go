package compiler

import (
	"time"

	"github.com/tendant/events-compiler/internal/process"
)

// RequestOutcome is what EventsCompilationNeeded did with a request.
type RequestOutcome string

const (
	OutcomeStarted    RequestOutcome = "started"
	OutcomeQueued     RequestOutcome = "queued"
	OutcomeCoalesced  RequestOutcome = "coalesced"
	OutcomeDisallowed RequestOutcome = "disallowed"
	OutcomeClosed     RequestOutcome = "closed"
)

// DropReason is why a pending job was discarded without running.
type DropReason string

const (
	DropDisabled   DropReason = "disabled"
	DropDisallowed DropReason = "disallowed"
	DropDestroyed  DropReason = "destroyed"
	DropClosed     DropReason = "closed"
)

// Observer receives scheduler events in the order the scheduler state changed.
// Calls are made after the state lock is released, one at a time, from whichever
// goroutine is delivering. Implementations must not block and must not call
// back into the Compiler.
type Observer interface {
	RequestHandled(scene process.SceneID, outcome RequestOutcome)
	JobQueued(job *process.Job, depth int)
	JobStarted(job *process.Job, depth int)
	JobFinished(job *process.Job, elapsed time.Duration)
	JobDropped(job *process.Job, reason DropReason, depth int)
}

// NopObserver ignores every event. Embed it to implement a subset of Observer.
type NopObserver struct{}

func (NopObserver) RequestHandled(process.SceneID, RequestOutcome) {}
func (NopObserver) JobQueued(*process.Job, int)                    {}
func (NopObserver) JobStarted(*process.Job, int)                   {}
func (NopObserver) JobFinished(*process.Job, time.Duration)        {}
func (NopObserver) JobDropped(*process.Job, DropReason, int)       {}

// notices are observer calls collected under the lock and delivered after it.
type notices []func(Observer)

// post queues n for delivery. Callers hold c.mu.
func (c *Compiler) post(n notices) {
	c.outbox = append(c.outbox, n...)
}

// flush delivers every queued notice. When it returns, all notices posted
// before the call have been delivered, by this goroutine or an earlier one.
func (c *Compiler) flush() {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	c.mu.Lock()
	n := c.outbox
	c.outbox = nil
	c.mu.Unlock()

	for _, call := range n {
		for _, o := range c.observers {
			call(o)
		}
	}
}
