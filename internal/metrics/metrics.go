// Package metrics collects per-step timings and outcomes of a run.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "factoryctl"

type Metrics struct {
	registry     *prometheus.Registry
	stepDuration *prometheus.HistogramVec
	stepFailures *prometheus.CounterVec
	runSuccess   prometheus.Gauge
	runDuration  prometheus.Gauge
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of scenario steps.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"phase", "step"}),
		stepFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_failures_total",
			Help:      "Number of failed scenario steps.",
		}, []string{"phase", "step"}),
		runSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_success",
			Help:      "1 if the last run succeeded, 0 otherwise.",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of the last run.",
		}),
	}
	m.registry.MustRegister(m.stepDuration, m.stepFailures, m.runSuccess, m.runDuration)
	return m
}

// ObserveStep records one finished step.
func (m *Metrics) ObserveStep(phase, step string, d time.Duration, err error) {
	m.stepDuration.WithLabelValues(phase, step).Observe(d.Seconds())
	if err != nil {
		m.stepFailures.WithLabelValues(phase, step).Inc()
	}
}

// ObserveRun records the outcome of a run.
func (m *Metrics) ObserveRun(d time.Duration, err error) {
	m.runDuration.Set(d.Seconds())
	if err != nil {
		m.runSuccess.Set(0)
		return
	}
	m.runSuccess.Set(1)
}

// Registry exposes the collectors for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes the metrics in the node exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
