// Package metrics exposes job lifecycle counters to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"redis-job-worker/internal/job"
)

const namespace = "redis_job_worker"

type Metrics struct {
	registry *prometheus.Registry

	jobs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	retries     *prometheus.CounterVec
	dead        *prometheus.CounterVec
	pushes      *prometheus.CounterVec
	subprocess  *prometheus.CounterVec
	queueLength *prometheus.GaugeVec
}

// New registers every collector on a fresh registry, so several instances
// can coexist in one process.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Handled jobs by outcome.",
		}, []string{"queue", "class", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Time spent in Handle, hooks and retry pause included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"queue", "class"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Jobs put back at the head of their queue.",
		}, []string{"queue", "class"}),
		dead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dead_total",
			Help:      "Jobs that failed with no retries left.",
		}, []string{"queue", "class"}),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_total",
			Help:      "Envelope pushes by mode and result.",
		}, []string{"queue", "mode", "result"}),
		subprocess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subprocess_total",
			Help:      "Child process runs by result.",
		}, []string{"queue", "result"}),
		queueLength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Pending envelopes, sampled on request.",
		}, []string{"queue"}),
	}

	m.registry.MustRegister(
		m.jobs, m.duration, m.retries, m.dead, m.pushes, m.subprocess, m.queueLength,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) JobHandled(_ context.Context, queue, class string, outcome job.State, elapsed time.Duration) {
	m.jobs.WithLabelValues(queue, class, outcome.String()).Inc()
	m.duration.WithLabelValues(queue, class).Observe(elapsed.Seconds())
}

func (m *Metrics) JobRetried(_ context.Context, queue, class string, _ int) {
	m.retries.WithLabelValues(queue, class).Inc()
}

func (m *Metrics) JobDead(_ context.Context, queue, class string) {
	m.dead.WithLabelValues(queue, class).Inc()
}

func (m *Metrics) JobPushed(_ context.Context, queue string, mode job.Mode, err error) {
	m.pushes.WithLabelValues(queue, mode.String(), result(err)).Inc()
}

// ChildExited counts one isolated run.
func (m *Metrics) ChildExited(queue string, err error) {
	m.subprocess.WithLabelValues(queue, result(err)).Inc()
}

func (m *Metrics) SetQueueLength(queue string, n int64) {
	m.queueLength.WithLabelValues(queue).Set(float64(n))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
