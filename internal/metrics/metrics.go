// Package metrics exposes scheduler activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tendant/events-compiler/internal/compiler"
	"github.com/tendant/events-compiler/internal/process"
)

const namespace = "events_compiler"

// Collector is a compiler.Observer recording Prometheus metrics.
type Collector struct {
	Requests   *prometheus.CounterVec
	Jobs       *prometheus.CounterVec
	Dropped    *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	QueueDepth prometheus.Gauge
	Running    prometheus.Gauge
}

var _ compiler.Observer = (*Collector)(nil)

// New creates the collector and registers it with reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Compilation requests by outcome.",
		}, []string{"outcome"}),
		Jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_finished_total",
			Help:      "Finished compilation jobs by final status.",
		}, []string{"status"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_dropped_total",
			Help:      "Pending jobs discarded without running, by reason.",
		}, []string{"reason"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Time from job start to completion.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"status"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Jobs waiting for the worker.",
		}),
		Running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "running",
			Help:      "1 while a compilation holds the worker.",
		}),
	}
	reg.MustRegister(c.Requests, c.Jobs, c.Dropped, c.Duration, c.QueueDepth, c.Running)
	return c
}

func (c *Collector) RequestHandled(_ process.SceneID, outcome compiler.RequestOutcome) {
	c.Requests.WithLabelValues(string(outcome)).Inc()
}

func (c *Collector) JobQueued(_ *process.Job, depth int) {
	c.QueueDepth.Set(float64(depth))
}

func (c *Collector) JobStarted(_ *process.Job, depth int) {
	c.Running.Set(1)
	c.QueueDepth.Set(float64(depth))
}

func (c *Collector) JobFinished(job *process.Job, elapsed time.Duration) {
	status := string(job.Status())
	c.Jobs.WithLabelValues(status).Inc()
	c.Duration.WithLabelValues(status).Observe(elapsed.Seconds())
	c.Running.Set(0)
}

func (c *Collector) JobDropped(_ *process.Job, reason compiler.DropReason, depth int) {
	c.Dropped.WithLabelValues(string(reason)).Inc()
	c.QueueDepth.Set(float64(depth))
}
