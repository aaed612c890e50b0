package validation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"reefcore/pkg/domain"
)

// OutcomeObserver is notified of every stamped outcome, after ignore carryover.
type OutcomeObserver func(name Name, status domain.Status)

// Runner executes pipelines against drafts.
type Runner struct {
	logger   *zap.Logger
	nowFn    func() time.Time
	observer OutcomeObserver
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the clock used for ValidatedAt and wall-clock rules.
func WithClock(fn func() time.Time) RunnerOption {
	return func(r *Runner) {
		if fn != nil {
			r.nowFn = fn
		}
	}
}

// WithOutcomeObserver registers an observer for produced outcomes.
func WithOutcomeObserver(fn OutcomeObserver) RunnerOption {
	return func(r *Runner) { r.observer = fn }
}

// NewRunner constructs a runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		logger: zap.NewNop(),
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes pipeline against draft and returns a fresh report. prior is the
// draft's previously stored report, or nil on the first run; outcomes whose
// identity and row match a prior IGNORE with the same code stay ignored. inst
// is the live persistence handle for dry-run validations and may be nil.
//
// A validator error or a cancelled context aborts the run without a report.
func (r *Runner) Run(ctx context.Context, pipeline *Pipeline, draft domain.DraftRecord, prior *domain.Report, inst domain.Instance) (*domain.Report, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("validate %s: nil pipeline", draft.ID)
	}
	if draft.Protocol != pipeline.Protocol() {
		return nil, fmt.Errorf("validate %s: draft protocol %q does not match pipeline %q", draft.ID, draft.Protocol, pipeline.Protocol())
	}
	start := r.nowFn()
	report := domain.NewReport(start)
	carried := prior.Index()
	blocked := false

	for _, v := range pipeline.executionOrder() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("validate %s: %w", draft.ID, err)
		}
		if v.live {
			if inst == nil {
				r.logger.Debug("skipping live validation: no instance", zap.String("validator", string(v.name)))
				continue
			}
			if blocked {
				r.logger.Info("skipping live validation: earlier validation failed",
					zap.String("record", draft.ID),
					zap.String("validator", string(v.name)))
				continue
			}
		}

		raw, err := v.execute(ctx, draft, start, inst)
		if err != nil {
			return nil, fmt.Errorf("validate %s: %s: %w", draft.ID, v.name, err)
		}

		outcomes := make([]domain.Outcome, len(raw))
		for i, o := range raw {
			o.Identity = v.identity
			o.Name = string(v.name)
			if !o.Status.Valid() {
				o.Status = domain.StatusError
			}
			if prev, ok := carried[domain.OutcomeKey{Identity: v.identity, RowID: o.RowID}]; ok && carryIgnore(prev, o) {
				o = o.Ignore()
			}
			if o.Status == domain.StatusError {
				blocked = true
			}
			if r.observer != nil {
				r.observer(v.name, o.Status)
			}
			outcomes[i] = o
		}

		slot := domain.Slot{
			Name:  string(v.name),
			Level: v.level,
			Type:  v.typ,
			Paths: v.pathStrings(),
		}
		if v.typ == domain.TypeValue {
			if len(outcomes) > 0 {
				o := outcomes[0]
				slot.Outcome = &o
			}
		} else {
			slot.Rows = outcomes
		}
		report.Put(v.Key(), v.identity, slot)

		r.logger.Debug("validation evaluated",
			zap.String("validator", string(v.name)),
			zap.String("identity", v.identity),
			zap.Int("outcomes", len(outcomes)))
	}

	status := report.Recompute()
	r.logger.Info("validation run complete",
		zap.String("record", draft.ID),
		zap.String("protocol", string(draft.Protocol)),
		zap.String("status", string(status)),
		zap.Duration("duration", r.nowFn().Sub(start)))
	return report, nil
}

// carryIgnore reports whether a prior dismissal still applies to o: the rule
// still fails for the same reason.
func carryIgnore(prev, o domain.Outcome) bool {
	if prev.Status != domain.StatusIgnore || o.Status == domain.StatusOK {
		return false
	}
	return prev.Code == o.Code
}
