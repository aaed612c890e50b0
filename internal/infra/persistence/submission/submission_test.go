package submission

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"reefcore/pkg/domain"
)

const (
	site  = "5a0c6f0e-1b2a-4c59-8d1e-6b0f0b3e0a01"
	mgmt  = "5a0c6f0e-1b2a-4c59-8d1e-6b0f0b3e0a02"
	coral = "5a0c6f0e-1b2a-4c59-8d1e-6b0f0b3e0a03"
	diver = "5a0c6f0e-1b2a-4c59-8d1e-6b0f0b3e0a04"
)

func pitData() map[string]any {
	return map[string]any{
		"sample_event":     map[string]any{"site": site, "management": mgmt, "sample_date": "2024-05-30"},
		"observers":        []any{map[string]any{"profile": diver}},
		"benthic_transect": map[string]any{"number": 1.0, "label": "A", "len_surveyed": "20", "depth": 8.0},
		"interval_size":    0.5,
		"obs_benthic_pits": []any{
			map[string]any{"attribute": coral, "interval": 0.5},
			map[string]any{"attribute": coral, "interval": 1.0},
		},
	}
}

func TestDecodeBenthicPIT(t *testing.T) {
	sub, err := Decode(domain.DraftRecord{ID: "d1", Protocol: domain.ProtocolBenthicPIT, Data: pitData()})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	su := sub.SampleUnit
	if su.SiteID != site || su.SampleDate != "2024-05-30" || su.Depth == nil || *su.Depth != 8 {
		t.Fatalf("unexpected sample unit %+v", su)
	}
	want := map[string]any{"number": 1.0, "len_surveyed": 20.0, "interval_size": 0.5}
	if diff := cmp.Diff(want, su.Attributes); diff != "" {
		t.Fatalf("attributes mismatch (-want +got):\n%s", diff)
	}
	if len(sub.Observations) != 2 || sub.Observations[1].Values["interval"] != 1.0 || sub.Observations[0].AttributeID != coral {
		t.Fatalf("unexpected observations %+v", sub.Observations)
	}
}

func TestDecodeReportsStorageErrors(t *testing.T) {
	cases := map[string]struct {
		mutate func(map[string]any)
		code   string
		column string
	}{
		"missing site": {func(d map[string]any) { delete(d["sample_event"].(map[string]any), "site") }, "not_null_violation", "site_id"},
		"bad date":     {func(d map[string]any) { d["sample_event"].(map[string]any)["sample_date"] = "30/05/2024" }, "invalid_type", "sample_date"},
		"bad depth":    {func(d map[string]any) { d["benthic_transect"].(map[string]any)["depth"] = "deep" }, "invalid_type", "depth"},
		"bad attribute": {func(d map[string]any) {
			d["obs_benthic_pits"].([]any)[1].(map[string]any)["attribute"] = "coral"
		}, "invalid_type", "attribute_id"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			data := pitData()
			tc.mutate(data)
			_, err := Decode(domain.DraftRecord{Protocol: domain.ProtocolBenthicPIT, Data: data})
			var se *domain.StorageError
			if !errors.As(err, &se) {
				t.Fatalf("expected storage error, got %v", err)
			}
			if se.Code != tc.code || se.Column != tc.column {
				t.Fatalf("expected %s on %s, got %+v", tc.code, tc.column, se)
			}
		})
	}
}

func TestMatches(t *testing.T) {
	depth := 8.0
	su := domain.SampleUnit{
		Protocol: domain.ProtocolBenthicPIT, SiteID: site, ManagementID: mgmt, SampleDate: "2024-05-30",
		Label: " a ", Depth: &depth, Attributes: map[string]any{"number": 1.0, "interval_size": 0.5},
		ObserverIDs: []string{diver, "other"},
	}
	q := domain.SampleUnitQuery{
		Protocol: domain.ProtocolBenthicPIT, SiteID: site, ManagementID: mgmt, SampleDate: "2024-05-30",
		Label: "A", Depth: &depth, Attributes: map[string]any{"number": 1.0}, ObserverIDs: []string{diver},
	}
	shared, ok := Matches(q, su)
	if !ok || len(shared) != 1 || shared[0] != diver {
		t.Fatalf("expected match on shared observer, got %v %v", shared, ok)
	}
	q.ObserverIDs = []string{"someone-else"}
	if _, ok := Matches(q, su); ok {
		t.Fatalf("expected no match without shared observers")
	}
	q.ObserverIDs = []string{diver}
	q.Attributes = map[string]any{"number": 2.0}
	if _, ok := Matches(q, su); ok {
		t.Fatalf("expected attribute mismatch")
	}
}
