package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsPrefix = "descentviz_"

// Metrics holds the server's Prometheus collectors.
type Metrics struct {
	runsStarted   prometheus.Counter
	runsCompleted prometheus.Counter
	runsFailed    *prometheus.CounterVec
	runDuration   prometheus.Histogram
	steps         *prometheus.CounterVec
	activeStreams prometheus.Gauge
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: metricsPrefix + "runs_started_total",
			Help: "Number of comparison runs started",
		}),
		runsCompleted: f.NewCounter(prometheus.CounterOpts{
			Name: metricsPrefix + "runs_completed_total",
			Help: "Number of comparison runs that finished successfully",
		}),
		runsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: metricsPrefix + "runs_failed_total",
			Help: "Number of comparison runs that failed or were cancelled",
		}, []string{"state"}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    metricsPrefix + "run_duration_seconds",
			Help:    "Wall time spent computing all trajectories of a run",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
		steps: f.NewCounterVec(prometheus.CounterOpts{
			Name: metricsPrefix + "optimizer_steps_total",
			Help: "Number of optimizer steps taken",
		}, []string{"optimizer"}),
		activeStreams: f.NewGauge(prometheus.GaugeOpts{
			Name: metricsPrefix + "active_streams",
			Help: "Number of open progress streams",
		}),
	}
}

func (m *Metrics) RecordStarted() {
	m.runsStarted.Inc()
}

func (m *Metrics) RecordCompleted(elapsed time.Duration) {
	m.runsCompleted.Inc()
	m.runDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) RecordFailed(state JobState) {
	m.runsFailed.WithLabelValues(string(state)).Inc()
}

func (m *Metrics) RecordSteps(optimizer string, n int) {
	m.steps.WithLabelValues(optimizer).Add(float64(n))
}

// StreamOpened increments the open stream gauge and returns the matching
// decrement.
func (m *Metrics) StreamOpened() func() {
	m.activeStreams.Inc()
	return m.activeStreams.Dec
}
