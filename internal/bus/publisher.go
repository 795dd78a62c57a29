package bus

import (
	"log/slog"
	"time"

	"github.com/tendant/events-compiler/internal/compiler"
	"github.com/tendant/events-compiler/internal/process"
	"github.com/tendant/events-compiler/pkg/schema"
)

// JSONPublisher is the part of Client the Publisher needs.
type JSONPublisher interface {
	PublishJSON(subject string, v any) error
}

// Publisher is a compiler.Observer that publishes job events. Final outcomes
// (completed, failed, aborted) go to Subject; queued, running and dropped go to
// Subject + ".lifecycle".
type Publisher struct {
	compiler.NopObserver

	pub     JSONPublisher
	subject string
	logger  *slog.Logger
	now     func() time.Time
}

var _ compiler.Observer = (*Publisher)(nil)

func NewPublisher(pub JSONPublisher, subject string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{pub: pub, subject: subject, logger: logger, now: time.Now}
}

func (p *Publisher) LifecycleSubject() string { return p.subject + ".lifecycle" }

func (p *Publisher) JobQueued(job *process.Job, depth int) {
	p.publish(p.LifecycleSubject(), p.event(job, schema.StageQueued, depth))
}

func (p *Publisher) JobStarted(job *process.Job, depth int) {
	p.publish(p.LifecycleSubject(), p.event(job, schema.StageRunning, depth))
}

func (p *Publisher) JobDropped(job *process.Job, reason compiler.DropReason, depth int) {
	evt := p.event(job, schema.StageDropped, depth)
	evt.Reason = string(reason)
	p.publish(p.LifecycleSubject(), evt)
}

func (p *Publisher) JobFinished(job *process.Job, elapsed time.Duration) {
	evt := p.event(job, schema.StageCompleted, 0)
	evt.DurationMs = elapsed.Milliseconds()
	switch job.Status() {
	case process.JobStatusSucceeded:
		evt.Artifact = job.Artifact()
	case process.JobStatusAborted:
		evt.Stage = schema.StageAborted
		evt.FailureType = schema.FailureTypeAborted
	default:
		evt.Stage = schema.StageFailed
		if err := job.Err(); err != nil {
			evt.Error = err.Error()
		}
		evt.FailureType = compiler.ClassifyError(job.Err())
	}
	p.publish(p.subject, evt)
}

func (p *Publisher) event(job *process.Job, stage schema.Stage, depth int) schema.CompilationEvent {
	return schema.CompilationEvent{
		JobID:      job.ID,
		SceneID:    string(job.Scene),
		GameID:     string(job.Game),
		Stage:      stage,
		QueueDepth: depth,
		HappenedAt: p.now().Unix(),
	}
}

func (p *Publisher) publish(subject string, evt schema.CompilationEvent) {
	if err := p.pub.PublishJSON(subject, evt); err != nil {
		p.logger.Error("failed to publish compilation event", "err", err, "subject", subject, "job_id", evt.JobID, "stage", evt.Stage)
	}
}
