package validators

import (
	"context"
	"errors"
	"fmt"

	"reefcore/internal/validation"
	"reefcore/pkg/domain"
)

type drySubmit struct{}

// DrySubmit writes the draft through the live instance inside a transaction
// that is always discarded. Constraint and type failures raised by the store
// become an ERROR carrying the store's diagnostic fields. Bind it with Live.
func DrySubmit() validation.ValueValidator { return drySubmit{} }

func (drySubmit) Name() validation.Name { return validation.NameDrySubmit }

func (drySubmit) Check(ctx context.Context, in validation.Input) (domain.Outcome, error) {
	if in.Instance == nil {
		return validation.OK(), nil
	}
	err := in.Instance.DrySubmit(ctx, in.Record)
	if err == nil {
		return validation.OK(), nil
	}
	var storageErr *domain.StorageError
	if errors.As(err, &storageErr) {
		return validation.Err("dry_submit_failed", storageErr.Context()), nil
	}
	return domain.Outcome{}, fmt.Errorf("dry submit: %w", err)
}
