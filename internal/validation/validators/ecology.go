package validators

import (
	"context"
	"fmt"
	"math"
	"sort"

	"reefcore/internal/validation"
	"reefcore/pkg/domain"
	"reefcore/pkg/recordpath"
)

type region struct {
	refs domain.ReferenceStore
}

// Region warns, per observation, when the observed attribute is not known to
// occur in any region containing the survey site. Bound paths: observation
// list, attribute element path, site id. An attribute without recorded
// regions, or a site without location or regions, passes.
func Region(refs domain.ReferenceStore) validation.ListValidator {
	return region{refs: refs}
}

func (region) Name() validation.Name { return validation.NameRegion }

func (r region) CheckList(ctx context.Context, in validation.Input) ([]domain.Outcome, error) {
	rows, _ := in.List(0)
	if len(rows) == 0 {
		return nil, nil
	}
	key := relative(in.Path(0), in.Path(1))
	siteRegions, err := r.siteRegions(ctx, in)
	if err != nil {
		return nil, err
	}
	var attrs map[string]domain.Attribute
	if len(siteRegions) > 0 {
		if attrs, err = r.refs.Attributes(ctx, collectIDs(rows, key)); err != nil {
			return nil, fmt.Errorf("lookup attributes: %w", err)
		}
	}
	out := make([]domain.Outcome, len(rows))
	ids := validation.RowIDs(rows)
	for i, row := range rows {
		o := validation.OK()
		if len(siteRegions) > 0 {
			o = regionOutcome(row, key, attrs, siteRegions)
		}
		o.RowID = ids[i]
		out[i] = o
	}
	return out, nil
}

func (r region) siteRegions(ctx context.Context, in validation.Input) ([]string, error) {
	raw, ok := in.Value(2)
	if !ok {
		return nil, nil
	}
	id, ok := parseID(raw)
	if !ok {
		return nil, nil
	}
	sites, err := r.refs.Sites(ctx, []string{id})
	if err != nil {
		return nil, fmt.Errorf("lookup site: %w", err)
	}
	site, found := sites[id]
	if !found || site.Location == nil {
		return nil, nil
	}
	regions, err := r.refs.RegionsContaining(ctx, *site.Location)
	if err != nil {
		return nil, fmt.Errorf("lookup regions: %w", err)
	}
	sort.Strings(regions)
	return regions, nil
}

func regionOutcome(row any, key string, attrs map[string]domain.Attribute, siteRegions []string) domain.Outcome {
	raw, ok := recordpath.Get(row, key)
	if !ok {
		return validation.OK()
	}
	id, ok := parseID(raw)
	if !ok {
		return validation.OK()
	}
	attr, found := attrs[id]
	if !found || len(attr.Regions) == 0 {
		return validation.OK()
	}
	in := make(map[string]struct{}, len(siteRegions))
	for _, s := range siteRegions {
		in[s] = struct{}{}
	}
	for _, a := range attr.Regions {
		if _, ok := in[a]; ok {
			return validation.OK()
		}
	}
	attrRegions := append([]string(nil), attr.Regions...)
	sort.Strings(attrRegions)
	return validation.Warn("invalid_region", map[string]any{
		"attribute":         id,
		"site_regions":      siteRegions,
		"attribute_regions": attrRegions,
	})
}

type biomass struct {
	refs     domain.ReferenceStore
	min, max float64
}

// Biomass warns when the fish biomass density of a belt transect, in kg/ha,
// falls outside [min, max]. Bound paths: observation list, fish attribute,
// size (cm), count, transect length (m), transect width (m). Observations
// lacking length-weight constants are skipped, and a transect where none of
// them contributed passes.
func Biomass(refs domain.ReferenceStore, min, max float64) validation.ValueValidator {
	return biomass{refs: refs, min: min, max: max}
}

func (biomass) Name() validation.Name { return validation.NameBiomass }

func (b biomass) Check(ctx context.Context, in validation.Input) (domain.Outcome, error) {
	rows, _ := in.List(0)
	length, okLen := in.Float(4)
	width, okWidth := in.Float(5)
	if len(rows) == 0 || !okLen || !okWidth || length <= 0 || width <= 0 {
		return validation.OK(), nil
	}
	rel := elementPaths(in, 1)
	attrs, err := b.refs.Attributes(ctx, collectIDs(rows, rel[0]))
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("lookup fish attributes: %w", err)
	}
	totalKg := 0.0
	contributed := 0
	for _, row := range rows {
		raw, _ := recordpath.Get(row, rel[0])
		id, ok := parseID(raw)
		if !ok {
			continue
		}
		attr, found := attrs[id]
		if !found || attr.BiomassA == nil || attr.BiomassB == nil {
			continue
		}
		size, okSize := recordpath.Float(row, rel[1])
		count, okCount := recordpath.Float(row, rel[2])
		if !okSize || !okCount || size <= 0 || count <= 0 {
			continue
		}
		totalKg += count * FishWeight(attr, size) / 1000
		contributed++
	}
	if contributed == 0 {
		return validation.OK(), nil
	}
	density := totalKg / (length * width) * 10000
	density = math.Round(density*100) / 100
	ctxMap := map[string]any{"biomass_kgha": density, "min": b.min, "max": b.max}
	switch {
	case density < b.min:
		return validation.Warn("low_density", ctxMap), nil
	case density > b.max:
		return validation.Warn("high_density", ctxMap), nil
	}
	return validation.OK(), nil
}

// FishWeight returns the weight in grams of one fish of the given total length
// in cm using W = a * (c * L)^b. A missing length ratio c is taken as 1.
func FishWeight(attr domain.Attribute, sizeCM float64) float64 {
	if attr.BiomassA == nil || attr.BiomassB == nil {
		return 0
	}
	ratio := 1.0
	if attr.BiomassC != nil {
		ratio = *attr.BiomassC
	}
	return *attr.BiomassA * math.Pow(ratio*sizeCM, *attr.BiomassB)
}

type fishSize struct {
	refs domain.ReferenceStore
}

// FishSize warns, per observation, when the recorded size exceeds the maximum
// length known for the fish attribute. Bound paths: observation list, fish
// attribute, size.
func FishSize(refs domain.ReferenceStore) validation.ListValidator {
	return fishSize{refs: refs}
}

func (fishSize) Name() validation.Name { return validation.NameFishSize }

func (f fishSize) CheckList(ctx context.Context, in validation.Input) ([]domain.Outcome, error) {
	rows, _ := in.List(0)
	if len(rows) == 0 {
		return nil, nil
	}
	rel := elementPaths(in, 1)
	attrs, err := f.refs.Attributes(ctx, collectIDs(rows, rel[0]))
	if err != nil {
		return nil, fmt.Errorf("lookup fish attributes: %w", err)
	}
	out := make([]domain.Outcome, len(rows))
	ids := validation.RowIDs(rows)
	for i, row := range rows {
		o := validation.OK()
		raw, _ := recordpath.Get(row, rel[0])
		if id, ok := parseID(raw); ok {
			attr, found := attrs[id]
			size, okSize := recordpath.Float(row, rel[1])
			if found && attr.MaxLength != nil && okSize && size > *attr.MaxLength {
				o = validation.Warn("max_fish_size", map[string]any{
					"attribute":  id,
					"size":       size,
					"max_length": *attr.MaxLength,
				})
			}
		}
		o.RowID = ids[i]
		out[i] = o
	}
	return out, nil
}

type colonyCount struct {
	max float64
}

// ColonyCount warns when the colony counts bound under the list at index 0,
// summed over every element, exceed max.
func ColonyCount(max float64) validation.ValueValidator { return colonyCount{max: max} }

func (colonyCount) Name() validation.Name { return validation.NameColonyCount }

func (c colonyCount) Check(_ context.Context, in validation.Input) (domain.Outcome, error) {
	rows, _ := in.List(0)
	fields := elementPaths(in, 1)
	total := 0.0
	for _, row := range rows {
		for _, field := range fields {
			if n, ok := recordpath.Float(row, field); ok && n > 0 {
				total += n
			}
		}
	}
	if total > c.max {
		return validation.Warn("exceed_total_colonies", map[string]any{"total": total, "max": c.max}), nil
	}
	return validation.OK(), nil
}

type observationCount struct {
	min, max float64
}

// ObservationCount warns when the number of observation rows in the list
// bound at index 0 falls outside [min, max].
func ObservationCount(min, max float64) validation.ValueValidator {
	return observationCount{min: min, max: max}
}

func (observationCount) Name() validation.Name { return validation.NameObservationCount }

func (o observationCount) Check(_ context.Context, in validation.Input) (domain.Outcome, error) {
	rows, _ := in.List(0)
	total := len(rows)
	ctxMap := map[string]any{"observation_count": total, "min": o.min, "max": o.max}
	switch {
	case float64(total) < o.min:
		return validation.Warn("too_few_observations", ctxMap), nil
	case float64(total) > o.max:
		return validation.Warn("too_many_observations", ctxMap), nil
	}
	return validation.OK(), nil
}

type intervalCount struct {
	tolerance int
}

// IntervalCount fails when the number of point observations differs from
// transect length / interval size by more than tolerance. Bound paths:
// observation list, transect length, interval size. Invalid inputs are left to
// the range checks.
func IntervalCount(tolerance int) validation.ValueValidator {
	return intervalCount{tolerance: tolerance}
}

func (intervalCount) Name() validation.Name { return validation.NameIntervalCount }

func (c intervalCount) Check(_ context.Context, in validation.Input) (domain.Outcome, error) {
	rows, _ := in.List(0)
	length, okLen := in.Float(1)
	interval, okInterval := in.Float(2)
	if !okLen || !okInterval || length <= 0 || interval <= 0 {
		return validation.OK(), nil
	}
	expected := int(math.Round(length / interval))
	diff := len(rows) - expected
	if diff < 0 {
		diff = -diff
	}
	if diff > c.tolerance {
		return validation.Err("incorrect_observation_count", map[string]any{
			"expected_count":    expected,
			"observation_count": len(rows),
		}), nil
	}
	return validation.OK(), nil
}

type litTotalLength struct {
	low, high float64
}

// LITTotalLength warns when the summed intercept lengths (cm) of a line
// intercept transect fall outside [low, high] times the transect length (m).
// Bound paths: observation list, length element path, transect length.
func LITTotalLength(low, high float64) validation.ValueValidator {
	return litTotalLength{low: low, high: high}
}

func (litTotalLength) Name() validation.Name { return validation.NameLITTotalLength }

func (l litTotalLength) Check(_ context.Context, in validation.Input) (domain.Outcome, error) {
	rows, _ := in.List(0)
	transect, ok := in.Float(2)
	if len(rows) == 0 || !ok || transect <= 0 {
		return validation.OK(), nil
	}
	field := relative(in.Path(0), in.Path(1))
	total := 0.0
	for _, row := range rows {
		if n, ok := recordpath.Float(row, field); ok && n > 0 {
			total += n
		}
	}
	expected := transect * 100
	ctxMap := map[string]any{"total_length": total, "transect_length": expected}
	switch {
	case total < expected*l.low:
		return validation.Warn("total_length_too_small", ctxMap), nil
	case total > expected*l.high:
		return validation.Warn("total_length_too_large", ctxMap), nil
	}
	return validation.OK(), nil
}
