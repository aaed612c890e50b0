// Package core orchestrates validation runs: it loads drafts and their prior
// reports, selects the protocol pipeline, runs it, persists the new report
// atomically and archives it.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"reefcore/internal/blob"
	"reefcore/internal/validation"
	"reefcore/internal/validation/pipelines"
	"reefcore/pkg/domain"
)

// ErrUnknownProtocol is returned for drafts whose protocol has no pipeline.
var ErrUnknownProtocol = pipelines.ErrUnknownProtocol

// ErrRecordNotFound is returned when the requested draft does not exist.
type ErrRecordNotFound struct {
	ID string
}

func (e ErrRecordNotFound) Error() string {
	return fmt.Sprintf("record %s not found", e.ID)
}

// Unwrap lets errors.Is match domain.ErrNotFound.
func (e ErrRecordNotFound) Unwrap() error { return domain.ErrNotFound }

// Service validates drafts against the protocol pipelines.
type Service struct {
	records   domain.RecordStore
	refs      domain.ReferenceStore
	instance  domain.Instance
	pipelines map[domain.Protocol]*validation.Pipeline
	runner    *validation.Runner
	archive   *blob.Archive
	logger    *zap.Logger
	metrics   MetricsRecorder
	tracer    Tracer
	nowFn     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithInstance supplies the live persistence handle for dry-run validation.
// Without one the dry-run stage is skipped.
func WithInstance(inst domain.Instance) Option {
	return func(s *Service) { s.instance = inst }
}

// WithLogger sets the service and runner logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder. Recorders that also implement
// ValidationRecorder receive run and outcome statuses.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithArchive archives every persisted report.
func WithArchive(a *blob.Archive) Option {
	return func(s *Service) { s.archive = a }
}

// WithClock overrides the wall clock used for ValidatedAt and date rules.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.nowFn = fn
		}
	}
}

// NewService builds a service over records and refs. Pipeline defects panic
// here rather than during a submission.
func NewService(records domain.RecordStore, refs domain.ReferenceStore, opts ...Option) (*Service, error) {
	if records == nil {
		return nil, errors.New("core: record store is required")
	}
	if refs == nil {
		return nil, errors.New("core: reference store is required")
	}
	s := &Service{
		records: records,
		refs:    refs,
		logger:  zap.NewNop(),
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	s.pipelines = pipelines.MustBuild(pipelines.Deps{Refs: refs})

	runnerOpts := []validation.RunnerOption{
		validation.WithLogger(s.logger.Named("runner")),
		validation.WithClock(s.nowFn),
	}
	if vr, ok := s.metrics.(ValidationRecorder); ok {
		runnerOpts = append(runnerOpts, validation.WithOutcomeObserver(func(name validation.Name, status domain.Status) {
			vr.ObserveOutcome(string(name), status)
		}))
	}
	s.runner = validation.NewRunner(runnerOpts...)
	return s, nil
}

// Pipeline returns the pipeline for protocol.
func (s *Service) Pipeline(protocol domain.Protocol) (*validation.Pipeline, error) {
	p, ok := s.pipelines[protocol]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownProtocol, protocol)
	}
	return p, nil
}

// Validate runs the pipeline for draft against prior without persisting
// anything. prior may be nil.
func (s *Service) Validate(ctx context.Context, draft domain.DraftRecord, prior *domain.Report) (report *domain.Report, err error) {
	ctx = withRecord(ctx, draft.ID)
	ctx, span := s.tracer.Start(ctx, OpValidate)
	start := s.nowFn()
	defer func() {
		span.End(err)
		s.metrics.Observe(ctx, OpValidate, err == nil, s.nowFn().Sub(start))
	}()
	return s.run(ctx, draft, prior)
}

func (s *Service) run(ctx context.Context, draft domain.DraftRecord, prior *domain.Report) (*domain.Report, error) {
	pipeline, err := s.Pipeline(draft.Protocol)
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", draft.ID, err)
	}
	start := s.nowFn()
	report, err := s.runner.Run(ctx, pipeline, draft, prior, s.instance)
	if err != nil {
		return nil, err
	}
	if vr, ok := s.metrics.(ValidationRecorder); ok {
		vr.ObserveRun(draft.Protocol, report.OverallStatus, s.nowFn().Sub(start))
	}
	return report, nil
}

// ValidateDraft loads the stored draft id, validates it against its stored
// report and replaces that report with the result. Nothing is written if the
// run fails or ctx is cancelled.
func (s *Service) ValidateDraft(ctx context.Context, id string) (report *domain.Report, err error) {
	ctx = withRecord(ctx, id)
	ctx, span := s.tracer.Start(ctx, OpValidateDraft)
	start := s.nowFn()
	defer func() {
		span.End(err)
		s.metrics.Observe(ctx, OpValidateDraft, err == nil, s.nowFn().Sub(start))
	}()

	draft, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	report, err = s.run(ctx, draft, draft.Validations)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("validate %s: %w", id, err)
	}
	if err := s.records.SaveReport(ctx, id, *report); err != nil {
		return nil, fmt.Errorf("save report %s: %w", id, err)
	}
	s.logger.Info("report saved",
		zap.String("record", id),
		zap.String("protocol", string(draft.Protocol)),
		zap.String("status", string(report.OverallStatus)))
	s.archiveReport(ctx, id, report)
	return report, nil
}

// Ignore dismisses (ignored=true) or restores the outcome addressed by key,
// identity and rowID in the stored report of draft id, and saves the result.
func (s *Service) Ignore(ctx context.Context, id, key, identity, rowID string, ignored bool) (report *domain.Report, err error) {
	ctx = withRecord(ctx, id)
	ctx, span := s.tracer.Start(ctx, OpIgnore)
	start := s.nowFn()
	defer func() {
		span.End(err)
		s.metrics.Observe(ctx, OpIgnore, err == nil, s.nowFn().Sub(start))
	}()

	draft, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if draft.Validations == nil {
		return nil, fmt.Errorf("record %s has no report: %w", id, domain.ErrNotFound)
	}
	report = draft.Validations
	if err := report.SetIgnored(key, identity, rowID, ignored); err != nil {
		return nil, err
	}
	if err := s.records.SaveReport(ctx, id, *report); err != nil {
		return nil, fmt.Errorf("save report %s: %w", id, err)
	}
	s.logger.Info("outcome ignore toggled",
		zap.String("record", id),
		zap.String("key", key),
		zap.String("identity", identity),
		zap.String("row", rowID),
		zap.Bool("ignored", ignored),
		zap.String("status", string(report.OverallStatus)))
	return report, nil
}

func (s *Service) load(ctx context.Context, id string) (domain.DraftRecord, error) {
	draft, err := s.records.GetDraft(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.DraftRecord{}, ErrRecordNotFound{ID: id}
	}
	if err != nil {
		return domain.DraftRecord{}, fmt.Errorf("load draft %s: %w", id, err)
	}
	return draft, nil
}

// archiveReport stores a copy of report. The record store copy is
// authoritative, so failures are logged and counted only.
func (s *Service) archiveReport(ctx context.Context, id string, report *domain.Report) {
	if s.archive == nil {
		return
	}
	start := s.nowFn()
	info, err := s.archive.Save(ctx, id, report)
	s.metrics.Observe(ctx, OpArchive, err == nil, s.nowFn().Sub(start))
	if err != nil {
		s.logger.Warn("archive report failed", zap.String("record", id), zap.Error(err))
		return
	}
	s.logger.Debug("report archived", zap.String("record", id), zap.String("key", info.Key))
}
