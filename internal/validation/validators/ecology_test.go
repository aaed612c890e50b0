package validators

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"reefcore/pkg/domain"
)

func regionData(attr string) map[string]any {
	return map[string]any{
		"sample_event": map[string]any{"site": siteID},
		"obs":          []any{map[string]any{"id": "r1", "attribute": attr}},
	}
}

func TestRegion(t *testing.T) {
	located := map[string]domain.Site{siteID: {ID: siteID, Location: &domain.Point{Lon: 39.2, Lat: -6.1}}}
	cases := []struct {
		name    string
		sites   map[string]domain.Site
		regions []string
		attr    domain.Attribute
		want    domain.Status
	}{
		{"shared region", located, []string{"wio"}, domain.Attribute{ID: attrID, Regions: []string{"wio", "red-sea"}}, domain.StatusOK},
		{"disjoint regions", located, []string{"wio"}, domain.Attribute{ID: attrID, Regions: []string{"caribbean"}}, domain.StatusWarn},
		{"attribute without regions", located, []string{"wio"}, domain.Attribute{ID: attrID}, domain.StatusOK},
		{"site without location", map[string]domain.Site{siteID: {ID: siteID}}, []string{"wio"}, domain.Attribute{ID: attrID, Regions: []string{"caribbean"}}, domain.StatusOK},
		{"site outside every region", located, nil, domain.Attribute{ID: attrID, Regions: []string{"caribbean"}}, domain.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			refs := &fakeRefs{sites: tc.sites, regions: tc.regions, attrs: map[string]domain.Attribute{attrID: tc.attr}}
			out, err := Region(refs).CheckList(context.Background(), input(regionData(attrID), "obs", "obs.attribute", "sample_event.site"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(out) != 1 || out[0].Status != tc.want || out[0].RowID != "r1" {
				t.Fatalf("expected one %s outcome for r1, got %+v", tc.want, out)
			}
			if tc.want == domain.StatusWarn {
				if diff := cmp.Diff([]string{"caribbean"}, out[0].Context["attribute_regions"]); diff != "" {
					t.Fatalf("attribute regions mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func fishAttr() domain.Attribute {
	return domain.Attribute{ID: attrID, BiomassA: ptr(0.01), BiomassB: ptr(3), BiomassC: ptr(1), MaxLength: ptr(40)}
}

func TestFishWeight(t *testing.T) {
	if w := FishWeight(fishAttr(), 20); w != 80 {
		t.Fatalf("expected 80g, got %v", w)
	}
	if w := FishWeight(domain.Attribute{}, 20); w != 0 {
		t.Fatalf("expected zero without constants, got %v", w)
	}
}

func TestBiomassDensity(t *testing.T) {
	refs := &fakeRefs{attrs: map[string]domain.Attribute{attrID: fishAttr()}}
	paths := []string{"obs", "obs.fish_attribute", "obs.size", "obs.count", "transect.len_surveyed", "transect.width"}
	data := func(count float64) map[string]any {
		return map[string]any{
			"obs":      []any{map[string]any{"fish_attribute": attrID, "size": 20.0, "count": count}},
			"transect": map[string]any{"len_surveyed": 50.0, "width": 5.0},
		}
	}
	v := Biomass(refs, 50, 5000)

	o, err := v.Check(context.Background(), input(data(50), paths...))
	if err != nil || o.Status != domain.StatusOK {
		t.Fatalf("expected 160 kg/ha to pass, got %+v (%v)", o, err)
	}
	o, _ = v.Check(context.Background(), input(data(1), paths...))
	if o.Code != "low_density" || o.Context["biomass_kgha"] != 3.2 {
		t.Fatalf("expected low density of 3.2 kg/ha, got %+v", o)
	}
	o, _ = v.Check(context.Background(), input(data(2000), paths...))
	if o.Code != "high_density" {
		t.Fatalf("expected high density, got %+v", o)
	}
}

func TestBiomassWithoutLengthWeightConstantsPasses(t *testing.T) {
	refs := &fakeRefs{attrs: map[string]domain.Attribute{attrID: {ID: attrID, MaxLength: ptr(40)}}}
	paths := []string{"obs", "obs.fish_attribute", "obs.size", "obs.count", "transect.len_surveyed", "transect.width"}
	obs := make([]any, 10)
	for i := range obs {
		obs[i] = map[string]any{"fish_attribute": attrID, "size": 20.0, "count": 3.0}
	}
	data := map[string]any{"obs": obs, "transect": map[string]any{"len_surveyed": 50.0, "width": 5.0}}

	o, err := Biomass(refs, 50, 5000).Check(context.Background(), input(data, paths...))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Status != domain.StatusOK || o.Code != "" {
		t.Fatalf("expected a pass when no observation has constants, got %+v", o)
	}
}

func TestFishSize(t *testing.T) {
	refs := &fakeRefs{attrs: map[string]domain.Attribute{attrID: fishAttr()}}
	data := map[string]any{"obs": []any{
		map[string]any{"fish_attribute": attrID, "size": 35.0},
		map[string]any{"fish_attribute": attrID, "size": 52.5},
	}}
	out, err := FishSize(refs).CheckList(context.Background(), input(data, "obs", "obs.fish_attribute", "obs.size"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Status != domain.StatusOK || out[1].Code != "max_fish_size" || out[1].RowID != "1" {
		t.Fatalf("unexpected outcomes %+v", out)
	}
}

func TestColonyCount(t *testing.T) {
	row := func(n float64) any { return map[string]any{"count_normal": n, "count_pale": n} }
	paths := []string{"obs", "obs.count_normal", "obs.count_pale"}
	if o, _ := ColonyCount(600).Check(context.Background(), input(map[string]any{"obs": []any{row(100), row(200)}}, paths...)); o.Status != domain.StatusOK {
		t.Fatalf("expected 600 colonies to pass, got %s", o.Status)
	}
	o, _ := ColonyCount(600).Check(context.Background(), input(map[string]any{"obs": []any{row(100), row(201)}}, paths...))
	if o.Code != "exceed_total_colonies" || o.Context["total"] != 602.0 {
		t.Fatalf("expected exceeded total, got %+v", o)
	}
}

func TestObservationCount(t *testing.T) {
	rows := func(n int) map[string]any {
		obs := make([]any, n)
		for i := range obs {
			obs[i] = map[string]any{"count": 40.0}
		}
		return map[string]any{"obs": obs}
	}
	cases := []struct {
		name string
		rows int
		code string
	}{
		{"too few rows despite large counts", 3, "too_few_observations"},
		{"lower bound", 5, ""},
		{"upper bound", 200, ""},
		{"too many rows", 201, "too_many_observations"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			o, err := ObservationCount(5, 200).Check(context.Background(), input(rows(tc.rows), "obs"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if o.Code != tc.code {
				t.Fatalf("expected code %q, got %+v", tc.code, o)
			}
			if tc.code != "" && o.Context["observation_count"] != tc.rows {
				t.Fatalf("expected observation_count %d, got %v", tc.rows, o.Context["observation_count"])
			}
		})
	}
}

func points(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = map[string]any{"interval": float64(i+1) * 0.5}
	}
	return out
}

func TestIntervalCount(t *testing.T) {
	paths := []string{"obs", "transect.len_surveyed", "interval_size"}
	data := func(n int) map[string]any {
		return map[string]any{
			"obs":           points(n),
			"transect":      map[string]any{"len_surveyed": 20.0},
			"interval_size": 0.5,
		}
	}
	if o, _ := IntervalCount(1).Check(context.Background(), input(data(41), paths...)); o.Status != domain.StatusOK {
		t.Fatalf("expected 41 of 40 to pass, got %+v", o)
	}
	o, _ := IntervalCount(1).Check(context.Background(), input(data(55), paths...))
	if o.Status != domain.StatusError || o.Code != "incorrect_observation_count" || o.Context["expected_count"] != 40 {
		t.Fatalf("expected incorrect count with expected 40, got %+v", o)
	}
	bad := data(55)
	bad["interval_size"] = 0.0
	if o, _ := IntervalCount(1).Check(context.Background(), input(bad, paths...)); o.Status != domain.StatusOK {
		t.Fatalf("expected invalid interval to be skipped, got %+v", o)
	}
}

func TestLITTotalLength(t *testing.T) {
	paths := []string{"obs", "obs.length", "transect.len_surveyed"}
	data := func(lengths ...float64) map[string]any {
		rows := make([]any, len(lengths))
		for i, l := range lengths {
			rows[i] = map[string]any{"length": l}
		}
		return map[string]any{"obs": rows, "transect": map[string]any{"len_surveyed": 10.0}}
	}
	v := LITTotalLength(0.5, 1.5)
	for _, tc := range []struct {
		lengths []float64
		code    string
	}{
		{[]float64{200, 200}, "total_length_too_small"},
		{[]float64{600, 400}, ""},
		{[]float64{1000, 600}, "total_length_too_large"},
	} {
		o, _ := v.Check(context.Background(), input(data(tc.lengths...), paths...))
		if o.Code != tc.code {
			t.Fatalf("lengths %v: expected %q, got %+v", tc.lengths, tc.code, o)
		}
	}
}
