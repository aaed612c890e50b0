package pipelines

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"reefcore/internal/validation"
	"reefcore/pkg/domain"
)

const (
	siteID     = "3f5e2d1c-8a4b-4c2d-9e1f-0a1b2c3d4e01"
	mgmtID     = "3f5e2d1c-8a4b-4c2d-9e1f-0a1b2c3d4e02"
	coralID    = "3f5e2d1c-8a4b-4c2d-9e1f-0a1b2c3d4e03"
	sandID     = "3f5e2d1c-8a4b-4c2d-9e1f-0a1b2c3d4e04"
	observerID = "3f5e2d1c-8a4b-4c2d-9e1f-0a1b2c3d4e05"
)

type refs struct{}

func (refs) Sites(_ context.Context, ids []string) (map[string]domain.Site, error) {
	out := map[string]domain.Site{}
	for _, id := range ids {
		if id == siteID {
			out[id] = domain.Site{ID: id, Name: "Outer Reef"}
		}
	}
	return out, nil
}

func (refs) Managements(_ context.Context, ids []string) (map[string]domain.Management, error) {
	out := map[string]domain.Management{}
	for _, id := range ids {
		if id == mgmtID {
			out[id] = domain.Management{ID: id, Name: "Open access"}
		}
	}
	return out, nil
}

func (refs) Attributes(_ context.Context, ids []string) (map[string]domain.Attribute, error) {
	out := map[string]domain.Attribute{}
	for _, id := range ids {
		if id == coralID || id == sandID {
			out[id] = domain.Attribute{ID: id}
		}
	}
	return out, nil
}

func (refs) RegionsContaining(context.Context, domain.Point) ([]string, error) { return nil, nil }

func (refs) FindSampleUnits(context.Context, domain.SampleUnitQuery) ([]domain.SampleUnitMatch, error) {
	return nil, nil
}

type countingInstance struct{ calls int }

func (c *countingInstance) DrySubmit(context.Context, domain.DraftRecord) error {
	c.calls++
	return nil
}

func runner() *validation.Runner {
	return validation.NewRunner(validation.WithClock(func() time.Time {
		return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	}))
}

func TestEveryProtocolBuilds(t *testing.T) {
	built := MustBuild(Deps{Refs: refs{}})
	for _, p := range domain.Protocols() {
		pipeline, ok := built[p]
		if !ok {
			t.Fatalf("missing pipeline for %s", p)
		}
		vals := pipeline.Validations()
		if len(vals) == 0 {
			t.Fatalf("%s: empty pipeline", p)
		}
		last := vals[len(vals)-1]
		if !last.RequiresInstance() || last.Name() != validation.NameDrySubmit {
			t.Fatalf("%s: expected dry submit last, got %s", p, last.Name())
		}
		if vals[0].Name() != validation.NameRequired || vals[0].Paths()[0] != PathSite {
			t.Fatalf("%s: expected required site first, got %s %v", p, vals[0].Name(), vals[0].Paths())
		}
	}
}

func TestNewRejectsUnknownProtocol(t *testing.T) {
	if _, err := New("seagrass", Deps{Refs: refs{}}); !errors.Is(err, ErrUnknownProtocol) {
		t.Fatalf("expected ErrUnknownProtocol, got %v", err)
	}
	if _, err := New(domain.ProtocolFishBelt, Deps{}); err == nil {
		t.Fatalf("expected missing reference store to be rejected")
	}
}

func sampleEventData() map[string]any {
	return map[string]any{
		"sample_event": map[string]any{"site": siteID, "management": mgmtID, "sample_date": "2024-05-30"},
		"observers":    []any{map[string]any{"profile": observerID}},
	}
}

func TestFishBeltMissingSiteSkipsDrySubmit(t *testing.T) {
	data := sampleEventData()
	delete(data["sample_event"].(map[string]any), "site")
	data["fishbelt_transect"] = map[string]any{"number": 1.0, "len_surveyed": 50.0, "width": 5.0, "depth": 6.0}
	data["obs_belt_fishes"] = []any{map[string]any{"id": "f1", "fish_attribute": coralID, "size": 12.5, "count": 6.0}}

	pipeline, err := FishBelt(Deps{Refs: refs{}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	inst := &countingInstance{}
	draft := domain.DraftRecord{ID: "fb-1", Protocol: domain.ProtocolFishBelt, Data: data}
	report, err := runner().Run(context.Background(), pipeline, draft, nil, inst)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	id := validation.Identity(validation.NameRequired, []validation.Path{PathSite}, domain.LevelField, domain.TypeValue)
	slot, ok := report.Slot(string(PathSite), id)
	if !ok || slot.Outcome == nil {
		t.Fatalf("expected required slot at %s", PathSite)
	}
	if slot.Outcome.Status != domain.StatusError || slot.Outcome.Code != "required" {
		t.Fatalf("expected required error, got %+v", slot.Outcome)
	}
	if report.OverallStatus != domain.StatusError {
		t.Fatalf("expected overall error, got %s", report.OverallStatus)
	}
	if inst.calls != 0 {
		t.Fatalf("expected dry submit to be skipped, got %d calls", inst.calls)
	}
}

func pitDraft(points int) domain.DraftRecord {
	data := sampleEventData()
	data["benthic_transect"] = map[string]any{"number": 1.0, "label": "A", "len_surveyed": 20.0, "depth": 8.0}
	data["interval_size"] = 0.5
	obs := make([]any, points)
	for i := range obs {
		attr := coralID
		if i%2 == 1 {
			attr = sandID
		}
		obs[i] = map[string]any{"id": fmt.Sprintf("p%d", i+1), "attribute": attr, "interval": float64(i+1) * 0.5}
	}
	data["obs_benthic_pits"] = obs
	return domain.DraftRecord{ID: "pit-1", Protocol: domain.ProtocolBenthicPIT, Data: data}
}

func TestBenthicPITObservationCount(t *testing.T) {
	pipeline, err := BenthicPIT(Deps{Refs: refs{}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	id := validation.Identity(validation.NameIntervalCount,
		[]validation.Path{PathPITs, PathBenthicLength, PathInterval}, domain.LevelField, domain.TypeValue)

	inst := &countingInstance{}
	report, err := runner().Run(context.Background(), pipeline, pitDraft(41), nil, inst)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	slot, ok := report.Slot(string(PathPITs), id)
	if !ok || slot.Outcome.Status != domain.StatusOK {
		t.Fatalf("expected 41 points to pass, got %+v", slot)
	}
	if report.OverallStatus != domain.StatusOK {
		for _, o := range report.Outcomes() {
			if o.Status != domain.StatusOK {
				t.Logf("%s %s %s %v", o.Name, o.Status, o.Code, o.Context)
			}
		}
		t.Fatalf("expected clean draft to pass, got %s", report.OverallStatus)
	}
	if inst.calls != 1 {
		t.Fatalf("expected one dry submit, got %d", inst.calls)
	}

	report, err = runner().Run(context.Background(), pipeline, pitDraft(55), nil, inst)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	slot, _ = report.Slot(string(PathPITs), id)
	if slot.Outcome == nil || slot.Outcome.Status != domain.StatusError || slot.Outcome.Context["expected_count"] != 40 {
		t.Fatalf("expected incorrect count with expected 40, got %+v", slot.Outcome)
	}
	if inst.calls != 1 {
		t.Fatalf("expected dry submit to be skipped after an error, got %d calls", inst.calls)
	}
}

func fishBeltDraft(rows int) domain.DraftRecord {
	data := sampleEventData()
	data["fishbelt_transect"] = map[string]any{"number": 1.0, "label": "A", "len_surveyed": 50.0, "width": 5.0, "depth": 6.0}
	obs := make([]any, rows)
	for i := range obs {
		obs[i] = map[string]any{"id": fmt.Sprintf("f%d", i+1), "fish_attribute": coralID, "size": 12.5, "count": 10.0}
	}
	data["obs_belt_fishes"] = obs
	return domain.DraftRecord{ID: "fb-1", Protocol: domain.ProtocolFishBelt, Data: data}
}

func TestFishBeltCountsObservationRows(t *testing.T) {
	pipeline, err := FishBelt(Deps{Refs: refs{}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	id := validation.Identity(validation.NameObservationCount,
		[]validation.Path{PathBeltFishes}, domain.LevelField, domain.TypeValue)

	cases := []struct {
		rows int
		want domain.Status
		code string
	}{
		{3, domain.StatusWarn, "too_few_observations"},
		{5, domain.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d rows", tc.rows), func(t *testing.T) {
			report, err := runner().Run(context.Background(), pipeline, fishBeltDraft(tc.rows), nil, nil)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			slot, ok := report.Slot(string(PathBeltFishes), id)
			if !ok || slot.Outcome == nil {
				t.Fatalf("expected observation count slot at %s", PathBeltFishes)
			}
			if slot.Outcome.Status != tc.want || slot.Outcome.Code != tc.code {
				t.Fatalf("expected %s %q, got %+v", tc.want, tc.code, slot.Outcome)
			}
		})
	}
}
