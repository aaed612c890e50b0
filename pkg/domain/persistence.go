package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested record or report slot does not exist.
var ErrNotFound = errors.New("not found")

// ErrNotIgnorable is returned when an operator tries to dismiss a passing outcome.
var ErrNotIgnorable = errors.New("outcome cannot be ignored")

// ReferenceStore resolves the reference data validators consult. Lookups are
// batched: callers pass every id they need and receive the subset that exists.
type ReferenceStore interface {
	Sites(ctx context.Context, ids []string) (map[string]Site, error)
	Managements(ctx context.Context, ids []string) (map[string]Management, error)
	Attributes(ctx context.Context, ids []string) (map[string]Attribute, error)
	// RegionsContaining returns the ids of every region whose geometry holds p.
	RegionsContaining(ctx context.Context, p Point) ([]string, error)
	// FindSampleUnits returns committed sample units of the same protocol with
	// identical identifying attributes that share at least one observer.
	FindSampleUnits(ctx context.Context, q SampleUnitQuery) ([]SampleUnitMatch, error)
}

// RecordStore persists draft records and their latest validation report.
type RecordStore interface {
	GetDraft(ctx context.Context, id string) (DraftRecord, error)
	// SaveReport replaces the stored report of the draft atomically.
	SaveReport(ctx context.Context, id string, report Report) error
}

// Instance executes the real persistence path for a draft inside a transaction
// that is always rolled back. A *StorageError describes data the storage layer
// rejected; any other error is an infrastructure failure.
type Instance interface {
	DrySubmit(ctx context.Context, draft DraftRecord) error
}

// StorageError is the structured form of a storage-layer rejection.
type StorageError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Constraint string `json:"constraint,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

func (e *StorageError) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("storage %s: %s (constraint %s)", e.Code, e.Message, e.Constraint)
	}
	return fmt.Sprintf("storage %s: %s", e.Code, e.Message)
}

// Context renders the error as an outcome context map.
func (e *StorageError) Context() map[string]any {
	ctx := map[string]any{"code": e.Code, "message": e.Message}
	if e.Table != "" {
		ctx["table"] = e.Table
	}
	if e.Column != "" {
		ctx["column"] = e.Column
	}
	if e.Constraint != "" {
		ctx["constraint"] = e.Constraint
	}
	if e.Detail != "" {
		ctx["detail"] = e.Detail
	}
	return ctx
}
