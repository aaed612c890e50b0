package domain

import (
	"errors"
	"testing"
	"time"
)

func outcome(status Status, code string) *Outcome {
	return &Outcome{Status: status, Code: code}
}

func TestRecomputeStatusPrecedence(t *testing.T) {
	r := NewReport(time.Unix(0, 0))
	r.Put("a", "h1", Slot{Type: TypeValue, Outcome: outcome(StatusOK, "")})
	r.Put("b", "h2", Slot{Type: TypeValue, Outcome: outcome(StatusWarn, "low_density")})
	r.Put(RecordKey, "h3", Slot{Type: TypeValue, Outcome: &Outcome{Status: StatusIgnore, IgnoredStatus: StatusError, Code: "duplicate"}})
	if got := r.Recompute(); got != StatusWarn {
		t.Fatalf("overall = %s, want %s", got, StatusWarn)
	}
}

func TestPutAccumulatesByIdentity(t *testing.T) {
	r := NewReport(time.Unix(0, 0))
	r.Put("obs", "h1", Slot{Type: TypeList, Rows: []Outcome{{RowID: "1", Status: StatusOK}}})
	r.Put("obs", "h2", Slot{Type: TypeList, Rows: []Outcome{{RowID: "1", Status: StatusError}}})
	if len(r.Results["obs"]) != 2 {
		t.Fatalf("expected two slots at the same key, got %d", len(r.Results["obs"]))
	}
	idx := r.Index()
	if idx[OutcomeKey{Identity: "h2", RowID: "1"}].Status != StatusError {
		t.Fatalf("index lost row outcome")
	}
}

func TestSetIgnored(t *testing.T) {
	r := NewReport(time.Unix(0, 0))
	r.Put("sample_event.site", "h1", Slot{Type: TypeValue, Outcome: outcome(StatusWarn, "invalid_region")})
	r.Put("obs", "h2", Slot{Type: TypeList, Rows: []Outcome{
		{RowID: "r1", Status: StatusOK},
		{RowID: "r2", Status: StatusError, Code: "max_fish_size"},
	}})
	r.Recompute()
	if r.OverallStatus != StatusError {
		t.Fatalf("precondition: overall = %s", r.OverallStatus)
	}

	if err := r.SetIgnored("obs", "h2", "r2", true); err != nil {
		t.Fatalf("ignore row: %v", err)
	}
	if r.OverallStatus != StatusWarn {
		t.Fatalf("overall after row ignore = %s", r.OverallStatus)
	}
	if err := r.SetIgnored("sample_event.site", "h1", "", true); err != nil {
		t.Fatalf("ignore value: %v", err)
	}
	if r.OverallStatus != StatusOK {
		t.Fatalf("overall after ignoring all = %s", r.OverallStatus)
	}
	if err := r.SetIgnored("obs", "h2", "r1", true); !errors.Is(err, ErrNotIgnorable) {
		t.Fatalf("ignoring OK outcome: got %v", err)
	}
	if err := r.SetIgnored("obs", "h2", "missing", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ignoring unknown row: got %v", err)
	}
	if err := r.SetIgnored("nope", "h9", "", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ignoring unknown slot: got %v", err)
	}
	if err := r.SetIgnored("obs", "h2", "r2", false); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if r.OverallStatus != StatusError {
		t.Fatalf("overall after restore = %s", r.OverallStatus)
	}
}

func TestTreeNestsSlotsAlongPaths(t *testing.T) {
	r := NewReport(time.Unix(0, 0))
	r.Put("sample_event.site", "h1", Slot{Type: TypeValue, Outcome: outcome(StatusOK, "")})
	r.Put("sample_event", "h2", Slot{Type: TypeValue, Outcome: outcome(StatusOK, "")})
	r.Put(RecordKey, "h3", Slot{Type: TypeValue, Outcome: outcome(StatusOK, "")})

	tree := r.Tree()
	se, ok := tree["sample_event"].(map[string]any)
	if !ok {
		t.Fatalf("sample_event node missing: %v", tree)
	}
	if _, ok := se[TreeKey]; !ok {
		t.Fatalf("sample_event slots missing")
	}
	site, ok := se["site"].(map[string]any)
	if !ok {
		t.Fatalf("site node missing")
	}
	if slots, ok := site[TreeKey].(map[string]Slot); !ok || len(slots) != 1 {
		t.Fatalf("site slots = %v", site[TreeKey])
	}
	if _, ok := tree[RecordKey]; !ok {
		t.Fatalf("record-level slots missing")
	}
}

func TestOutcomesAreOrdered(t *testing.T) {
	r := NewReport(time.Unix(0, 0))
	r.Put("b", "z", Slot{Type: TypeValue, Outcome: &Outcome{Identity: "z"}})
	r.Put("a", "y", Slot{Type: TypeValue, Outcome: &Outcome{Identity: "y"}})
	r.Put("a", "x", Slot{Type: TypeValue, Outcome: &Outcome{Identity: "x"}})
	got := r.Outcomes()
	if len(got) != 3 || got[0].Identity != "x" || got[1].Identity != "y" || got[2].Identity != "z" {
		t.Fatalf("unexpected order %+v", got)
	}
}
