package validators

import (
	"context"
	"encoding/json"
	"math"
	"reflect"
	"strings"
	"time"

	"reefcore/internal/validation"
	"reefcore/pkg/domain"
	"reefcore/pkg/recordpath"
)

type required struct{}

// Required fails with "required" when the bound value is absent, empty, or
// false. Zero is a legitimate value and passes.
func Required() validation.ValueValidator { return required{} }

func (required) Name() validation.Name { return validation.NameRequired }

func (required) Check(_ context.Context, in validation.Input) (domain.Outcome, error) {
	v, ok := in.Value(0)
	if !ok || isEmpty(v) {
		return validation.Err("required", map[string]any{"path": in.Path(0)}), nil
	}
	return validation.OK(), nil
}

type rangeCheck struct {
	min, max float64
	status   domain.Status
}

// Range checks the bound number lies within [min, max] inclusive, reporting a
// crossed bound with status. Use math.Inf for an open side. A missing or
// non-numeric value is always an ERROR.
func Range(min, max float64, status domain.Status) validation.ValueValidator {
	return rangeCheck{min: min, max: max, status: status}
}

func (rangeCheck) Name() validation.Name { return validation.NameRange }

func (r rangeCheck) Check(_ context.Context, in validation.Input) (domain.Outcome, error) {
	v, ok := in.Value(0)
	if !ok || v == nil {
		return validation.Err("missing_value", map[string]any{"path": in.Path(0)}), nil
	}
	f, ok := recordpath.ToFloat(v)
	if !ok || math.IsNaN(f) {
		return validation.Err("invalid_value", map[string]any{"path": in.Path(0), "value": v}), nil
	}
	switch {
	case f < r.min:
		return validation.With(r.status, "below_min", map[string]any{"value": f, "min": r.min}), nil
	case f > r.max:
		return validation.With(r.status, "above_max", map[string]any{"value": f, "max": r.max}), nil
	}
	return validation.OK(), nil
}

type positive struct{}

// Positive requires the bound value to be a number greater than zero.
func Positive() validation.ValueValidator { return positive{} }

func (positive) Name() validation.Name { return validation.NamePositive }

func (positive) Check(_ context.Context, in validation.Input) (domain.Outcome, error) {
	v, ok := in.Value(0)
	if !ok || v == nil {
		return validation.Err("missing_value", map[string]any{"path": in.Path(0)}), nil
	}
	f, ok := recordpath.ToFloat(v)
	if !ok {
		return validation.Err("invalid_value", map[string]any{"path": in.Path(0), "value": v}), nil
	}
	if f <= 0 {
		return validation.Err("not_positive", map[string]any{"value": f}), nil
	}
	return validation.OK(), nil
}

type allEqual struct {
	ignore map[string]struct{}
}

// AllEqual warns when every element of the bound list is identical once the
// ignored keys are dropped, which usually means rows were copy-pasted.
func AllEqual(ignoreKeys ...string) validation.ValueValidator {
	ignore := make(map[string]struct{}, len(ignoreKeys))
	for _, k := range ignoreKeys {
		ignore[k] = struct{}{}
	}
	return allEqual{ignore: ignore}
}

func (allEqual) Name() validation.Name { return validation.NameAllEqual }

func (a allEqual) Check(_ context.Context, in validation.Input) (domain.Outcome, error) {
	rows, _ := in.List(0)
	if len(rows) < 2 {
		return validation.OK(), nil
	}
	first := a.strip(rows[0])
	for _, row := range rows[1:] {
		if !reflect.DeepEqual(first, a.strip(row)) {
			return validation.OK(), nil
		}
	}
	return validation.Warn("all_equal", map[string]any{"count": len(rows)}), nil
}

func (a allEqual) strip(row any) any {
	m, ok := row.(map[string]any)
	if !ok {
		return row
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if _, skip := a.ignore[k]; skip {
			continue
		}
		out[k] = v
	}
	return out
}

type duplicate struct{}

// Duplicate groups the elements of the list bound at index 0 by the element
// paths bound after it and fails when any group has more than one member.
// Elements missing every key are left to the required checks.
func Duplicate() validation.ValueValidator { return duplicate{} }

func (duplicate) Name() validation.Name { return validation.NameDuplicate }

func (duplicate) Check(_ context.Context, in validation.Input) (domain.Outcome, error) {
	rows, _ := in.List(0)
	keys := elementPaths(in, 1)
	if len(rows) < 2 || len(keys) == 0 {
		return validation.OK(), nil
	}
	groups := make(map[string][]string)
	var order []string
	ids := validation.RowIDs(rows)
	for i, row := range rows {
		tuple := make([]any, len(keys))
		present := false
		for k, key := range keys {
			if v, ok := recordpath.Get(row, key); ok && v != nil {
				tuple[k] = normaliseKey(v)
				present = true
			}
		}
		if !present {
			continue
		}
		encoded, err := json.Marshal(tuple)
		if err != nil {
			continue
		}
		key := string(encoded)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], ids[i])
	}
	var dups [][]string
	for _, key := range order {
		if ids := groups[key]; len(ids) > 1 {
			dups = append(dups, ids)
		}
	}
	if len(dups) == 0 {
		return validation.OK(), nil
	}
	return validation.Err("duplicate", map[string]any{"duplicates": dups, "keys": keys}), nil
}

func normaliseKey(v any) any {
	if s, ok := v.(string); ok {
		return strings.ToLower(strings.TrimSpace(s))
	}
	if f, ok := recordpath.ToFloat(v); ok {
		return f
	}
	return v
}

type notFuture struct{}

// NotFuture fails when the bound date lies after the run clock's date. Absent
// dates are left to Required.
func NotFuture() validation.ValueValidator { return notFuture{} }

func (notFuture) Name() validation.Name { return validation.NameNotFuture }

func (notFuture) Check(_ context.Context, in validation.Input) (domain.Outcome, error) {
	v, ok := in.Value(0)
	if !ok || isEmpty(v) {
		return validation.OK(), nil
	}
	s, _ := v.(string)
	date, ok := parseDate(s)
	if !ok {
		return validation.Err("invalid_date", map[string]any{"value": v}), nil
	}
	today := in.Now.UTC().Truncate(24 * time.Hour)
	if date.After(today) {
		return validation.Err("future_date", map[string]any{"sample_date": s}), nil
	}
	return validation.OK(), nil
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC().Truncate(24 * time.Hour), true
	}
	return time.Time{}, false
}

type percentSum struct {
	max float64
}

// PercentSum fails when the numbers bound to a row add up to more than max.
func PercentSum(max float64) validation.ValueValidator { return percentSum{max: max} }

func (percentSum) Name() validation.Name { return validation.NamePercentSum }

func (p percentSum) Check(_ context.Context, in validation.Input) (domain.Outcome, error) {
	total := 0.0
	for i := range in.Paths {
		v, ok := in.Value(i)
		if !ok || v == nil {
			continue
		}
		f, ok := recordpath.ToFloat(v)
		if !ok || f < 0 {
			return validation.Err("invalid_percent_value", map[string]any{"path": in.Path(i), "value": v}), nil
		}
		total += f
	}
	if total > p.max {
		return validation.Err("invalid_percent_value", map[string]any{"total": total, "max": p.max}), nil
	}
	return validation.OK(), nil
}
