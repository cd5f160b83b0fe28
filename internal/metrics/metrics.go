// Package metrics exposes Prometheus instrumentation for solves and jobs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/copyleftdev/roots/internal/roots"
)

// Solve outcomes used as the status label.
const (
	StatusConverged = "converged"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// Metrics holds the collectors of the service.
type Metrics struct {
	Solves     *prometheus.CounterVec
	Iterations *prometheus.HistogramVec
	Duration   *prometheus.HistogramVec
	ActiveJobs prometheus.Gauge
	Interp     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roots_solves_total",
			Help: "Root-finding runs by method and outcome.",
		}, []string{"method", "status"}),
		Iterations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "roots_solve_iterations",
			Help:    "Iterations performed per solve.",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512},
		}, []string{"method"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "roots_solve_duration_seconds",
			Help:    "Wall time per solve.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"method"}),
		ActiveJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roots_jobs_active",
			Help: "Asynchronous solve jobs currently running.",
		}),
		Interp: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roots_interp_evaluations_total",
			Help: "Interpolation evaluations by kind and outcome.",
		}, []string{"kind", "status"}),
	}

	if reg != nil {
		reg.MustRegister(m.Solves, m.Iterations, m.Duration, m.ActiveJobs, m.Interp)
	}
	return m
}

// ObserveSolve records the outcome of one solve. result may be nil when
// the solver never started.
func (m *Metrics) ObserveSolve(method string, result *roots.Result, seconds float64, status string) {
	m.Solves.WithLabelValues(method, status).Inc()
	m.Duration.WithLabelValues(method).Observe(seconds)
	if result != nil {
		m.Iterations.WithLabelValues(method).Observe(float64(result.Iterations))
	}
}
