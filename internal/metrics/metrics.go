// Package metrics exposes pool activity as Prometheus metrics: gauges
// collected from the pool's counters at scrape time and counters fed from the
// event bus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/smazurov/procpool/internal/events"
	"github.com/smazurov/procpool/internal/pool"
)

// Metrics holds the counters fed from pool events.
type Metrics struct {
	submissions        *prometheus.CounterVec
	submissionDuration prometheus.Histogram
	processSpawns      prometheus.Counter
}

// New creates the event-fed metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "procpool_submissions_total",
			Help: "Submissions by terminal outcome.",
		}, []string{"outcome"}),
		submissionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "procpool_submission_duration_seconds",
			Help:    "Execution duration of submissions.",
			Buckets: prometheus.DefBuckets,
		}),
		processSpawns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "procpool_process_spawns_total",
			Help: "Child processes spawned, including replacements.",
		}),
	}
	reg.MustRegister(m.submissions, m.submissionDuration, m.processSpawns)
	return m
}

// ObserveSubmission records one completed submission.
func (m *Metrics) ObserveSubmission(outcome string, duration time.Duration) {
	m.submissions.WithLabelValues(outcome).Inc()
	m.submissionDuration.Observe(duration.Seconds())
}

// ObserveExecutorTransition records an executor state transition. Every entry
// into the starting state corresponds to one process spawn.
func (m *Metrics) ObserveExecutorTransition(to string) {
	if to == string(pool.StateStarting) {
		m.processSpawns.Inc()
	}
}

// Subscribe feeds the metrics from the event bus. Returns an unsubscribe
// function.
func (m *Metrics) Subscribe(bus *events.Bus) func() {
	unsubState := bus.Subscribe(func(e events.ExecutorStateChangedEvent) {
		m.ObserveExecutorTransition(e.To)
	})
	unsubSub := bus.Subscribe(func(e events.SubmissionCompletedEvent) {
		m.ObserveSubmission(e.Outcome, time.Duration(e.DurationMs)*time.Millisecond)
	})
	return func() {
		unsubState()
		unsubSub()
	}
}

// StatsFunc returns a snapshot of the pool counters.
type StatsFunc func() pool.Stats

// poolCollector exports the pool's counters as gauges, reading a fresh
// snapshot on every scrape.
type poolCollector struct {
	stats StatsFunc

	total      *prometheus.Desc
	idle       *prometheus.Desc
	active     *prometheus.Desc
	starting   *prometheus.Desc
	queueDepth *prometheus.Desc
	maxSize    *prometheus.Desc
}

// NewPoolCollector creates a Prometheus collector over the pool's counters.
func NewPoolCollector(stats StatsFunc) prometheus.Collector {
	return &poolCollector{
		stats:      stats,
		total:      prometheus.NewDesc("procpool_executors", "Executors currently in the pool.", nil, nil),
		idle:       prometheus.NewDesc("procpool_executors_idle", "Idle executors.", nil, nil),
		active:     prometheus.NewDesc("procpool_executors_active", "Executors running a submission.", nil, nil),
		starting:   prometheus.NewDesc("procpool_executors_starting", "Executors spawning their process.", nil, nil),
		queueDepth: prometheus.NewDesc("procpool_queue_depth", "Submissions waiting in the queue.", nil, nil),
		maxSize:    prometheus.NewDesc("procpool_max_size", "Configured maximum pool size.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.idle
	ch <- c.active
	ch <- c.starting
	ch <- c.queueDepth
	ch <- c.maxSize
}

// Collect implements prometheus.Collector.
func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.stats()
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(stats.Total))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(stats.Idle))
	ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(stats.Active))
	ch <- prometheus.MustNewConstMetric(c.starting, prometheus.GaugeValue, float64(stats.Starting))
	ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(stats.QueueDepth))
	ch <- prometheus.MustNewConstMetric(c.maxSize, prometheus.GaugeValue, float64(stats.MaxSize))
}
