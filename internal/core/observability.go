package core

import (
	"context"
	"time"

	"reefcore/pkg/domain"
)

// Operation names reported to metrics recorders and tracers.
const (
	OpValidate      = "validate"
	OpValidateDraft = "validate_draft"
	OpIgnore        = "ignore"
	OpArchive       = "archive"
)

// MetricsRecorder observes the outcome and latency of service operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// ValidationRecorder is implemented by recorders that also track run and
// outcome statuses.
type ValidationRecorder interface {
	ObserveRun(protocol domain.Protocol, status domain.Status, duration time.Duration)
	ObserveOutcome(validator string, status domain.Status)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation error, if any.
type TraceSpan interface {
	End(err error)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}
