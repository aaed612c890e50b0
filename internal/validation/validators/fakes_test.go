package validators

import (
	"context"
	"sort"

	"reefcore/internal/validation"
	"reefcore/pkg/domain"
)

const (
	siteID    = "7d1b9f0e-0b8a-4f57-9d3c-3f0b16a1c001"
	mgmtID    = "7d1b9f0e-0b8a-4f57-9d3c-3f0b16a1c002"
	attrID    = "7d1b9f0e-0b8a-4f57-9d3c-3f0b16a1c003"
	attrOther = "7d1b9f0e-0b8a-4f57-9d3c-3f0b16a1c004"
	observerA = "7d1b9f0e-0b8a-4f57-9d3c-3f0b16a1c005"
)

type fakeRefs struct {
	sites    map[string]domain.Site
	mgmts    map[string]domain.Management
	attrs    map[string]domain.Attribute
	regions  []string
	units    []domain.SampleUnitMatch
	lastQ    domain.SampleUnitQuery
	attrHits int
	err      error
}

func (f *fakeRefs) Sites(_ context.Context, ids []string) (map[string]domain.Site, error) {
	out := map[string]domain.Site{}
	for _, id := range ids {
		if s, ok := f.sites[id]; ok {
			out[id] = s
		}
	}
	return out, f.err
}

func (f *fakeRefs) Managements(_ context.Context, ids []string) (map[string]domain.Management, error) {
	out := map[string]domain.Management{}
	for _, id := range ids {
		if m, ok := f.mgmts[id]; ok {
			out[id] = m
		}
	}
	return out, f.err
}

func (f *fakeRefs) Attributes(_ context.Context, ids []string) (map[string]domain.Attribute, error) {
	f.attrHits++
	out := map[string]domain.Attribute{}
	for _, id := range ids {
		if a, ok := f.attrs[id]; ok {
			out[id] = a
		}
	}
	return out, f.err
}

func (f *fakeRefs) RegionsContaining(context.Context, domain.Point) ([]string, error) {
	out := append([]string(nil), f.regions...)
	sort.Strings(out)
	return out, f.err
}

func (f *fakeRefs) FindSampleUnits(_ context.Context, q domain.SampleUnitQuery) ([]domain.SampleUnitMatch, error) {
	f.lastQ = q
	return f.units, f.err
}

func ptr(f float64) *float64 { return &f }

func input(data map[string]any, paths ...string) validation.Input {
	return validation.Input{
		Record: domain.DraftRecord{ID: "draft-1", Data: data},
		Scope:  data,
		Paths:  paths,
	}
}
