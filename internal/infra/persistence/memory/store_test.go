package memory

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"reefcore/pkg/domain"
)

const (
	siteID  = "0e8f6c2a-3b4d-4e5f-8a9b-0c1d2e3f4a01"
	mgmtID  = "0e8f6c2a-3b4d-4e5f-8a9b-0c1d2e3f4a02"
	coralID = "0e8f6c2a-3b4d-4e5f-8a9b-0c1d2e3f4a03"
	diverID = "0e8f6c2a-3b4d-4e5f-8a9b-0c1d2e3f4a04"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	s.PutSite(domain.Site{ID: siteID, Name: "Outer Reef", Location: &domain.Point{Lon: 39.2, Lat: -6.1}})
	s.PutManagement(domain.Management{ID: mgmtID, Name: "Open access"})
	s.PutAttribute(domain.Attribute{ID: coralID, Name: "Acropora", Regions: []string{"wio"}})
	geom := json.RawMessage(`{"type":"Polygon","coordinates":[[[30,-30],[60,-30],[60,10],[30,10],[30,-30]]]}`)
	if err := s.PutRegion(domain.Region{ID: "wio", Name: "Western Indian Ocean", Geometry: geom}); err != nil {
		t.Fatalf("put region: %v", err)
	}
	return s
}

func litDraft(id string) domain.DraftRecord {
	return domain.DraftRecord{
		ID:       id,
		Protocol: domain.ProtocolBenthicLIT,
		Data: map[string]any{
			"sample_event":     map[string]any{"site": siteID, "management": mgmtID, "sample_date": "2024-05-30"},
			"observers":        []any{map[string]any{"profile": diverID}},
			"benthic_transect": map[string]any{"number": 1.0, "label": "A", "len_surveyed": 10.0, "depth": 5.0},
			"obs_benthic_lits": []any{map[string]any{"attribute": coralID, "length": 1000.0}},
		},
	}
}

func TestReferenceLookups(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	sites, _ := s.Sites(ctx, []string{siteID, "missing"})
	if len(sites) != 1 || sites[siteID].Name != "Outer Reef" {
		t.Fatalf("unexpected sites %v", sites)
	}
	sites[siteID].Location.Lat = 0
	again, _ := s.Sites(ctx, []string{siteID})
	if again[siteID].Location.Lat != -6.1 {
		t.Fatalf("expected lookups to return copies")
	}
	regions, _ := s.RegionsContaining(ctx, *again[siteID].Location)
	if len(regions) != 1 || regions[0] != "wio" {
		t.Fatalf("expected wio region, got %v", regions)
	}
	if err := s.PutRegion(domain.Region{ID: "bad", Geometry: json.RawMessage(`{"type":"Point","coordinates":[1,2]}`)}); err == nil {
		t.Fatalf("expected invalid geometry to be rejected")
	}
	if regions, _ := s.RegionsContaining(ctx, *again[siteID].Location); len(regions) != 1 {
		t.Fatalf("expected failed region insert to leave index untouched, got %v", regions)
	}
}

func TestDrySubmitDiscardsWrites(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	draft := litDraft("d1")
	s.PutDraft(draft)
	if err := s.DrySubmit(ctx, draft); err != nil {
		t.Fatalf("dry submit: %v", err)
	}
	if len(s.ExportState().SampleUnits) != 0 {
		t.Fatalf("expected dry submit to leave no sample units")
	}
	if _, err := s.GetDraft(ctx, "d1"); err != nil {
		t.Fatalf("expected draft to survive dry submit: %v", err)
	}

	id, err := s.Submit(ctx, draft)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := s.GetDraft(ctx, "d1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected promoted draft to be removed, got %v", err)
	}
	matches, _ := s.FindSampleUnits(ctx, domain.SampleUnitQuery{
		Protocol: domain.ProtocolBenthicLIT, SiteID: siteID, ManagementID: mgmtID, SampleDate: "2024-05-30",
		Label: "a", Attributes: map[string]any{"number": 1.0}, ObserverIDs: []string{diverID},
	})
	if len(matches) != 1 || matches[0].ID != id {
		t.Fatalf("expected committed unit %s, got %v", id, matches)
	}
}

func TestDrySubmitConstraintErrors(t *testing.T) {
	s := seeded(t)
	draft := litDraft("d1")
	draft.Data["obs_benthic_lits"] = []any{map[string]any{"attribute": "0e8f6c2a-3b4d-4e5f-8a9b-0c1d2e3f4aff", "length": 5.0}}
	err := s.DrySubmit(context.Background(), draft)
	var se *domain.StorageError
	if !errors.As(err, &se) || se.Code != "foreign_key_violation" || se.Constraint != "observations_attribute_id_fkey" {
		t.Fatalf("expected attribute foreign key violation, got %v", err)
	}

	draft = litDraft("d2")
	draft.Data["obs_benthic_lits"] = []any{map[string]any{"attribute": coralID, "length": -5.0}}
	if err := s.DrySubmit(context.Background(), draft); !errors.As(err, &se) || se.Code != "check_violation" {
		t.Fatalf("expected check violation, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.DrySubmit(ctx, litDraft("d3")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestSaveReportAndSnapshots(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	if err := s.SaveReport(ctx, "missing", domain.Report{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	s.PutDraft(litDraft("d1"))
	report := domain.NewReport(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	report.OverallStatus = domain.StatusWarn
	if err := s.SaveReport(ctx, "d1", *report); err != nil {
		t.Fatalf("save report: %v", err)
	}
	got, _ := s.GetDraft(ctx, "d1")
	if got.Validations == nil || got.Validations.OverallStatus != domain.StatusWarn {
		t.Fatalf("expected stored report, got %+v", got.Validations)
	}

	snapshot := s.ExportState()
	restored := NewStore()
	if err := restored.ImportState(snapshot); err != nil {
		t.Fatalf("import: %v", err)
	}
	if d, err := restored.GetDraft(ctx, "d1"); err != nil || d.Validations == nil {
		t.Fatalf("expected restored draft, got %+v (%v)", d, err)
	}
	if regions, _ := restored.RegionsContaining(ctx, domain.Point{Lon: 39.2, Lat: -6.1}); len(regions) != 1 {
		t.Fatalf("expected restored region index, got %v", regions)
	}
}
