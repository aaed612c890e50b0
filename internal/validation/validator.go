// Package validation evaluates draft survey records against declarative,
// per-protocol pipelines and produces path-addressed reports.
//
// A Validator checks one rule. A Validation binds a validator to the paths it
// reads, its level and its result type, and derives a stable identity from
// those facts. A Pipeline is an ordered list of validations for one protocol,
// and the Runner executes it against a draft, carrying forward the operator
// dismissals recorded in the previous report.
//
// Validators report business-rule violations and malformed data as outcomes.
// They return a Go error only for infrastructure failures, which abort the run.
package validation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"reefcore/pkg/domain"
	"reefcore/pkg/recordpath"
)

// ValueValidator yields exactly one outcome.
type ValueValidator interface {
	Name() Name
	Check(ctx context.Context, in Input) (domain.Outcome, error)
}

// ListValidator yields one outcome per targeted list element, in element order,
// each tagged with the element's row id.
type ListValidator interface {
	Name() Name
	CheckList(ctx context.Context, in Input) ([]domain.Outcome, error)
}

// Input is the projection of a draft handed to a validator. Paths are resolved
// against Scope, which is the row element for row-level validations and the
// record data otherwise.
type Input struct {
	Record   domain.DraftRecord
	Scope    map[string]any
	Paths    []string
	Now      time.Time
	Instance domain.Instance
}

// Root returns the full record tree regardless of scope.
func (in Input) Root() map[string]any { return in.Record.Data }

// Path returns the i-th bound path, or "" when fewer paths are bound.
func (in Input) Path(i int) string {
	if i < 0 || i >= len(in.Paths) {
		return ""
	}
	return in.Paths[i]
}

// Value resolves the i-th bound path.
func (in Input) Value(i int) (any, bool) {
	if i < 0 || i >= len(in.Paths) {
		return nil, false
	}
	return recordpath.Get(in.Scope, in.Paths[i])
}

// String resolves the i-th bound path as a string.
func (in Input) String(i int) (string, bool) {
	v, ok := in.Value(i)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Float resolves the i-th bound path as a number.
func (in Input) Float(i int) (float64, bool) {
	v, ok := in.Value(i)
	if !ok {
		return 0, false
	}
	return recordpath.ToFloat(v)
}

// List resolves the i-th bound path as a list.
func (in Input) List(i int) ([]any, bool) {
	v, ok := in.Value(i)
	if !ok {
		return nil, false
	}
	l, ok := v.([]any)
	return l, ok
}

// OK returns a passing outcome.
func OK() domain.Outcome { return domain.Outcome{Status: domain.StatusOK} }

// Warn returns an advisory outcome.
func Warn(code string, ctx map[string]any) domain.Outcome {
	return domain.Outcome{Status: domain.StatusWarn, Code: code, Context: ctx}
}

// Err returns a blocking outcome.
func Err(code string, ctx map[string]any) domain.Outcome {
	return domain.Outcome{Status: domain.StatusError, Code: code, Context: ctx}
}

// With returns an outcome with status s, or OK when s is OK.
func With(s domain.Status, code string, ctx map[string]any) domain.Outcome {
	if s == domain.StatusOK {
		return OK()
	}
	return domain.Outcome{Status: s, Code: code, Context: ctx}
}

// RowID derives the identifier of a list element: its "id" field when present,
// otherwise its position.
func RowID(elem any, index int) string {
	if id, ok := elementID(elem); ok {
		return id
	}
	return strconv.Itoa(index)
}

// RowIDs derives one identifier per element of rows. Elements whose id is
// missing or shared with another element fall back to their position, so
// every returned identifier is unique within the list.
func RowIDs(rows []any) []string {
	ids := make([]string, len(rows))
	explicit := make([]bool, len(rows))
	seen := make(map[string]int, len(rows))
	for i, elem := range rows {
		if id, ok := elementID(elem); ok {
			ids[i], explicit[i] = id, true
			seen[id]++
		}
	}
	for i := range ids {
		if explicit[i] && seen[ids[i]] == 1 {
			continue
		}
		id := strconv.Itoa(i)
		for seen[id] > 0 {
			id = "#" + id
		}
		ids[i] = id
		seen[id]++
	}
	return ids
}

func elementID(elem any) (string, bool) {
	if m, ok := elem.(map[string]any); ok {
		if id, ok := m["id"]; ok && id != nil {
			switch v := id.(type) {
			case string:
				if v != "" {
					return v, true
				}
			case float64:
				return fmt.Sprintf("%g", v), true
			default:
				return fmt.Sprint(v), true
			}
		}
	}
	return "", false
}
