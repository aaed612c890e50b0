package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"reefcore/internal/infra/persistence/postgres/testutil"
	"reefcore/pkg/domain"
)

const (
	siteID  = "9b2f7c1e-6d5a-4b3c-8e2f-1a0b9c8d7e01"
	mgmtID  = "9b2f7c1e-6d5a-4b3c-8e2f-1a0b9c8d7e02"
	fishID  = "9b2f7c1e-6d5a-4b3c-8e2f-1a0b9c8d7e03"
	diverID = "9b2f7c1e-6d5a-4b3c-8e2f-1a0b9c8d7e04"
)

func newFakeStore(t *testing.T) (*Store, *testutil.FakeServer) {
	t.Helper()
	db, conn := testutil.NewFakeDB()
	restore := OverrideSQLOpen(func(driverName, dsn string) (*sql.DB, error) {
		if driverName != defaultDriver {
			t.Fatalf("unexpected driver %q", driverName)
		}
		return db, nil
	})
	t.Cleanup(restore)
	s, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, conn
}

func beltDraft(id string) domain.DraftRecord {
	return domain.DraftRecord{
		ID:       id,
		Protocol: domain.ProtocolFishBelt,
		Data: map[string]any{
			"sample_event":      map[string]any{"site": siteID, "management": mgmtID, "sample_date": "2024-05-30"},
			"observers":         []any{map[string]any{"profile": diverID}},
			"fishbelt_transect": map[string]any{"number": 1.0, "len_surveyed": 50.0, "width": 5.0},
			"obs_belt_fishes": []any{
				map[string]any{"fish_attribute": fishID, "size": 20.0, "count": 4.0},
			},
		},
	}
}

func TestNewStoreAppliesSchema(t *testing.T) {
	_, conn := newFakeStore(t)
	joined := strings.Join(conn.Execs, "\n")
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS sample_units",
		"CREATE TABLE IF NOT EXISTS observations",
		"JSONB",
		"DOUBLE PRECISION",
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("schema missing %q:\n%s", want, joined)
		}
	}
}

func TestNewStoreErrors(t *testing.T) {
	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("dial refused") })
	if _, err := NewStore(context.Background(), "postgres://nowhere"); err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open error, got %v", err)
	}
	restore()

	db, conn := testutil.NewFakeDB()
	conn.FailPing = true
	restore = OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	if _, err := NewStore(context.Background(), ""); err == nil || !strings.Contains(err.Error(), "ping postgres") {
		t.Fatalf("expected ping error, got %v", err)
	}
	restore()

	db, conn = testutil.NewFakeDB()
	conn.FailExec = true
	restore = OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	if _, err := NewStore(context.Background(), ""); err == nil {
		t.Fatalf("expected migrate error")
	}
}

func TestRebindUsesNumberedPlaceholders(t *testing.T) {
	got := Dialect.Rebind("SELECT id FROM sites WHERE id IN (?, ?)")
	if got != "SELECT id FROM sites WHERE id IN ($1, $2)" {
		t.Fatalf("unexpected rebind %q", got)
	}
}

func TestSitesReadBack(t *testing.T) {
	s, _ := newFakeStore(t)
	ctx := context.Background()
	if err := s.PutSite(ctx, domain.Site{ID: siteID, Name: "Channel", Location: &domain.Point{Lon: 39.2, Lat: -6.1}}); err != nil {
		t.Fatalf("put site: %v", err)
	}
	sites, err := s.Sites(ctx, []string{siteID})
	if err != nil {
		t.Fatalf("sites: %v", err)
	}
	got, ok := sites[siteID]
	if !ok || got.Location == nil || got.Location.Lon != 39.2 {
		t.Fatalf("unexpected sites %+v", sites)
	}
}

func TestDrySubmitMapsServerRejection(t *testing.T) {
	s, conn := newFakeStore(t)
	conn.FailTables = map[string]error{"observations": &pgconn.PgError{
		Code:           "23503",
		Message:        "insert or update on table \"observations\" violates foreign key constraint",
		TableName:      "observations",
		ConstraintName: "observations_attribute_id_fkey",
		Detail:         "Key (attribute_id) is not present in table \"attributes\".",
	}}
	err := s.DrySubmit(context.Background(), beltDraft("d1"))
	var se *domain.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if se.Code != "foreign_key_violation" || se.Constraint != "observations_attribute_id_fkey" || se.Table != "observations" {
		t.Fatalf("unexpected storage error %+v", se)
	}
	if conn.Commits != 0 || conn.Rollbacks != 1 {
		t.Fatalf("expected rollback only, commits=%d rollbacks=%d", conn.Commits, conn.Rollbacks)
	}
}

func TestDrySubmitInfrastructureFailure(t *testing.T) {
	s, conn := newFakeStore(t)
	conn.FailTables = map[string]error{"sample_units": errors.New("connection reset")}
	err := s.DrySubmit(context.Background(), beltDraft("d1"))
	var se *domain.StorageError
	if err == nil || errors.As(err, &se) {
		t.Fatalf("expected plain infrastructure error, got %v", err)
	}

	conn.FailTables = nil
	conn.FailBegin = true
	if err := s.DrySubmit(context.Background(), beltDraft("d1")); err == nil || !strings.Contains(err.Error(), "begin tx") {
		t.Fatalf("expected begin error, got %v", err)
	}
}

func TestSubmitCommits(t *testing.T) {
	s, conn := newFakeStore(t)
	id, err := s.Submit(context.Background(), beltDraft("d1"))
	if err != nil || id == "" {
		t.Fatalf("submit: %q %v", id, err)
	}
	if conn.Commits != 1 {
		t.Fatalf("expected one commit, got %d", conn.Commits)
	}
	if len(conn.Tables["observations"]) != 1 || len(conn.Tables["sample_unit_observers"]) != 1 {
		t.Fatalf("unexpected rows %+v", conn.Tables)
	}

	conn.FailCommit = true
	if _, err := s.Submit(context.Background(), beltDraft("d2")); err == nil {
		t.Fatalf("expected commit error")
	}
}

func TestMapError(t *testing.T) {
	cases := []struct {
		code string
		want string
		ok   bool
	}{
		{"23502", "not_null_violation", true},
		{"23503", "foreign_key_violation", true},
		{"23505", "unique_violation", true},
		{"23514", "check_violation", true},
		{"22P02", "invalid_type", true},
		{"23P01", "sqlstate_23P01", true},
		{"08006", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			mapped, ok := mapError(&pgconn.PgError{Code: tc.code, Message: "boom", ColumnName: "site_id"})
			if ok != tc.ok {
				t.Fatalf("ok=%v want %v", ok, tc.ok)
			}
			if ok && (mapped.Code != tc.want || mapped.Column != "site_id") {
				t.Fatalf("unexpected mapping %+v", mapped)
			}
		})
	}
	if _, ok := mapError(errors.New("plain")); ok {
		t.Fatalf("plain errors are not storage rejections")
	}
}
