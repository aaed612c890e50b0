package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"reefcore/pkg/domain"
)

// PrometheusRecorder exports service and validation metrics through a
// Prometheus registerer.
type PrometheusRecorder struct {
	ops        *prometheus.CounterVec
	opSeconds  *prometheus.HistogramVec
	runs       *prometheus.CounterVec
	runSeconds *prometheus.HistogramVec
	outcomes   *prometheus.CounterVec
}

// NewPrometheusRecorder registers the reefcore collectors with reg. A nil reg
// uses prometheus.DefaultRegisterer.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &PrometheusRecorder{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reefcore",
			Name:      "operations_total",
			Help:      "Service operations by result.",
		}, []string{"operation", "result"}),
		opSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reefcore",
			Name:      "operation_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reefcore",
			Subsystem: "validation",
			Name:      "runs_total",
			Help:      "Completed validation runs by protocol and overall status.",
		}, []string{"protocol", "status"}),
		runSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reefcore",
			Subsystem: "validation",
			Name:      "run_seconds",
			Help:      "Validation run latency by protocol.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"protocol"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reefcore",
			Subsystem: "validation",
			Name:      "outcomes_total",
			Help:      "Validation outcomes by validator and status.",
		}, []string{"validator", "status"}),
	}
	for _, c := range []prometheus.Collector{r.ops, r.opSeconds, r.runs, r.runSeconds, r.outcomes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	result := "error"
	if success {
		result = "success"
	}
	r.ops.WithLabelValues(operation, result).Inc()
	r.opSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveRun implements ValidationRecorder.
func (r *PrometheusRecorder) ObserveRun(protocol domain.Protocol, status domain.Status, duration time.Duration) {
	r.runs.WithLabelValues(string(protocol), string(status)).Inc()
	r.runSeconds.WithLabelValues(string(protocol)).Observe(duration.Seconds())
}

// ObserveOutcome implements ValidationRecorder.
func (r *PrometheusRecorder) ObserveOutcome(validator string, status domain.Status) {
	r.outcomes.WithLabelValues(validator, string(status)).Inc()
}
