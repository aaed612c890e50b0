package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"reefcore/internal/geo"
	"reefcore/internal/infra/persistence/submission"
	"reefcore/pkg/domain"
)

// Compile-time contract assertions.
var (
	_ domain.ReferenceStore = (*Store)(nil)
	_ domain.RecordStore    = (*Store)(nil)
	_ domain.Instance       = (*Store)(nil)
)

// Store implements the persistence contracts over a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
	nowFn   func() time.Time
}

// New wraps db. Call Migrate before first use.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect, nowFn: func() time.Time { return time.Now().UTC() }}
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the backend dialect.
func (s *Store) Dialect() Dialect { return s.dialect }

// Migrate creates any missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.Schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) exec(ctx context.Context, q queryer, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.dialect.Rebind(query), args...)
}

func (s *Store) query(ctx context.Context, q queryer, query string, args ...any) (*sql.Rows, error) {
	return q.QueryContext(ctx, s.dialect.Rebind(query), args...)
}

// PutSite inserts or replaces a site.
func (s *Store) PutSite(ctx context.Context, site domain.Site) error {
	var lon, lat sql.NullFloat64
	if site.Location != nil {
		lon = sql.NullFloat64{Float64: site.Location.Lon, Valid: true}
		lat = sql.NullFloat64{Float64: site.Location.Lat, Valid: true}
	}
	_, err := s.exec(ctx, s.db, `INSERT INTO sites (id, name, lon, lat) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, lon = excluded.lon, lat = excluded.lat`,
		site.ID, site.Name, lon, lat)
	if err != nil {
		return fmt.Errorf("upsert site %s: %w", site.ID, err)
	}
	return nil
}

// PutManagement inserts or replaces a management regime.
func (s *Store) PutManagement(ctx context.Context, m domain.Management) error {
	_, err := s.exec(ctx, s.db, `INSERT INTO managements (id, name) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name`, m.ID, m.Name)
	if err != nil {
		return fmt.Errorf("upsert management %s: %w", m.ID, err)
	}
	return nil
}

// PutAttribute inserts or replaces an attribute.
func (s *Store) PutAttribute(ctx context.Context, a domain.Attribute) error {
	regions := a.Regions
	if regions == nil {
		regions = []string{}
	}
	encoded, err := json.Marshal(regions)
	if err != nil {
		return fmt.Errorf("encode regions: %w", err)
	}
	_, err = s.exec(ctx, s.db, `INSERT INTO attributes (id, name, regions, biomass_a, biomass_b, biomass_c, max_length)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, regions = excluded.regions,
			biomass_a = excluded.biomass_a, biomass_b = excluded.biomass_b,
			biomass_c = excluded.biomass_c, max_length = excluded.max_length`,
		a.ID, a.Name, string(encoded), nullable(a.BiomassA), nullable(a.BiomassB), nullable(a.BiomassC), nullable(a.MaxLength))
	if err != nil {
		return fmt.Errorf("upsert attribute %s: %w", a.ID, err)
	}
	return nil
}

// PutRegion inserts or replaces a region after checking its geometry.
func (s *Store) PutRegion(ctx context.Context, r domain.Region) error {
	if _, err := geo.NewIndex([]domain.Region{r}); err != nil {
		return err
	}
	_, err := s.exec(ctx, s.db, `INSERT INTO regions (id, name, geometry) VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, geometry = excluded.geometry`,
		r.ID, r.Name, string(r.Geometry))
	if err != nil {
		return fmt.Errorf("upsert region %s: %w", r.ID, err)
	}
	return nil
}

// PutDraft inserts or replaces a draft record.
func (s *Store) PutDraft(ctx context.Context, d domain.DraftRecord) error {
	data, err := json.Marshal(d.Data)
	if err != nil {
		return fmt.Errorf("encode draft %s: %w", d.ID, err)
	}
	var validations sql.NullString
	if d.Validations != nil {
		encoded, err := json.Marshal(d.Validations)
		if err != nil {
			return fmt.Errorf("encode report %s: %w", d.ID, err)
		}
		validations = sql.NullString{String: string(encoded), Valid: true}
	}
	updated := d.UpdatedAt
	if updated.IsZero() {
		updated = s.nowFn()
	}
	_, err = s.exec(ctx, s.db, `INSERT INTO collect_records (id, protocol, project_id, data, validations, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET protocol = excluded.protocol, project_id = excluded.project_id,
			data = excluded.data, validations = excluded.validations, updated_at = excluded.updated_at`,
		d.ID, string(d.Protocol), d.ProjectID, string(data), validations, updated.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert draft %s: %w", d.ID, err)
	}
	return nil
}

// Sites returns the subset of ids that name known sites.
func (s *Store) Sites(ctx context.Context, ids []string) (map[string]domain.Site, error) {
	out := make(map[string]domain.Site, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.query(ctx, s.db, `SELECT id, name, lon, lat FROM sites WHERE id IN (`+placeholders(len(ids))+`)`, args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("select sites: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var site domain.Site
		var lon, lat sql.NullFloat64
		if err := rows.Scan(&site.ID, &site.Name, &lon, &lat); err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		if lon.Valid && lat.Valid {
			site.Location = &domain.Point{Lon: lon.Float64, Lat: lat.Float64}
		}
		out[site.ID] = site
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sites: %w", err)
	}
	return out, nil
}

// Managements returns the subset of ids that name known management regimes.
func (s *Store) Managements(ctx context.Context, ids []string) (map[string]domain.Management, error) {
	out := make(map[string]domain.Management, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.query(ctx, s.db, `SELECT id, name FROM managements WHERE id IN (`+placeholders(len(ids))+`)`, args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("select managements: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var m domain.Management
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, fmt.Errorf("scan management: %w", err)
		}
		out[m.ID] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate managements: %w", err)
	}
	return out, nil
}

// Attributes returns the subset of ids that name known attributes.
func (s *Store) Attributes(ctx context.Context, ids []string) (map[string]domain.Attribute, error) {
	out := make(map[string]domain.Attribute, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.query(ctx, s.db, `SELECT id, name, regions, biomass_a, biomass_b, biomass_c, max_length
		FROM attributes WHERE id IN (`+placeholders(len(ids))+`)`, args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("select attributes: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var a domain.Attribute
		var regions []byte
		var ba, bb, bc, ml sql.NullFloat64
		if err := rows.Scan(&a.ID, &a.Name, &regions, &ba, &bb, &bc, &ml); err != nil {
			return nil, fmt.Errorf("scan attribute: %w", err)
		}
		if err := json.Unmarshal(regions, &a.Regions); err != nil {
			return nil, fmt.Errorf("decode regions of %s: %w", a.ID, err)
		}
		if len(a.Regions) == 0 {
			a.Regions = nil
		}
		a.BiomassA, a.BiomassB, a.BiomassC, a.MaxLength = fromNull(ba), fromNull(bb), fromNull(bc), fromNull(ml)
		out[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attributes: %w", err)
	}
	return out, nil
}

// RegionsContaining returns the ids of regions whose geometry holds p.
func (s *Store) RegionsContaining(ctx context.Context, p domain.Point) ([]string, error) {
	rows, err := s.query(ctx, s.db, `SELECT id, name, geometry FROM regions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select regions: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var regions []domain.Region
	for rows.Next() {
		var r domain.Region
		var geometry []byte
		if err := rows.Scan(&r.ID, &r.Name, &geometry); err != nil {
			return nil, fmt.Errorf("scan region: %w", err)
		}
		r.Geometry = json.RawMessage(geometry)
		regions = append(regions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate regions: %w", err)
	}
	idx, err := geo.NewIndex(regions)
	if err != nil {
		return nil, err
	}
	return idx.Containing(p), nil
}

// FindSampleUnits returns committed sample units clashing with q.
func (s *Store) FindSampleUnits(ctx context.Context, q domain.SampleUnitQuery) ([]domain.SampleUnitMatch, error) {
	rows, err := s.query(ctx, s.db, `SELECT id, label, depth, attributes FROM sample_units
		WHERE protocol = ? AND site_id = ? AND management_id = ? AND sample_date = ?`,
		string(q.Protocol), q.SiteID, q.ManagementID, q.SampleDate)
	if err != nil {
		return nil, fmt.Errorf("select sample units: %w", err)
	}
	candidates := map[string]domain.SampleUnit{}
	for rows.Next() {
		su := domain.SampleUnit{Protocol: q.Protocol, SiteID: q.SiteID, ManagementID: q.ManagementID, SampleDate: q.SampleDate}
		var depth sql.NullFloat64
		var attrs []byte
		if err := rows.Scan(&su.ID, &su.Label, &depth, &attrs); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan sample unit: %w", err)
		}
		su.Depth = fromNull(depth)
		if err := json.Unmarshal(attrs, &su.Attributes); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("decode attributes of %s: %w", su.ID, err)
		}
		candidates[su.ID] = su
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate sample units: %w", err)
	}
	_ = rows.Close()
	if len(candidates) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	obsRows, err := s.query(ctx, s.db, `SELECT sample_unit_id, observer_id FROM sample_unit_observers
		WHERE sample_unit_id IN (`+placeholders(len(ids))+`) ORDER BY observer_id`, args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("select observers: %w", err)
	}
	defer func() { _ = obsRows.Close() }()
	for obsRows.Next() {
		var suID, observer string
		if err := obsRows.Scan(&suID, &observer); err != nil {
			return nil, fmt.Errorf("scan observer: %w", err)
		}
		su := candidates[suID]
		su.ObserverIDs = append(su.ObserverIDs, observer)
		candidates[suID] = su
	}
	if err := obsRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observers: %w", err)
	}

	var out []domain.SampleUnitMatch
	for _, id := range ids {
		if shared, ok := submission.Matches(q, candidates[id]); ok {
			out = append(out, domain.SampleUnitMatch{ID: id, SharedObservers: shared})
		}
	}
	return out, nil
}

// GetDraft returns the draft with id.
func (s *Store) GetDraft(ctx context.Context, id string) (domain.DraftRecord, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.Rebind(`SELECT protocol, project_id, data, validations, updated_at
		FROM collect_records WHERE id = ?`), id)
	d := domain.DraftRecord{ID: id}
	var protocol, updated string
	var data []byte
	var validations sql.NullString
	if err := row.Scan(&protocol, &d.ProjectID, &data, &validations, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.DraftRecord{}, fmt.Errorf("draft %s: %w", id, domain.ErrNotFound)
		}
		return domain.DraftRecord{}, fmt.Errorf("select draft %s: %w", id, err)
	}
	d.Protocol = domain.Protocol(protocol)
	if err := json.Unmarshal(data, &d.Data); err != nil {
		return domain.DraftRecord{}, fmt.Errorf("decode draft %s: %w", id, err)
	}
	if validations.Valid {
		var report domain.Report
		if err := json.Unmarshal([]byte(validations.String), &report); err != nil {
			return domain.DraftRecord{}, fmt.Errorf("decode report %s: %w", id, err)
		}
		d.Validations = &report
	}
	if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		d.UpdatedAt = t
	}
	return d, nil
}

// SaveReport replaces the stored report of the draft in a single statement.
func (s *Store) SaveReport(ctx context.Context, id string, report domain.Report) error {
	encoded, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", id, err)
	}
	res, err := s.exec(ctx, s.db, `UPDATE collect_records SET validations = ?, updated_at = ? WHERE id = ?`,
		string(encoded), s.nowFn().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("update report %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update report %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("draft %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// Submit promotes draft into a committed sample unit and returns its id.
func (s *Store) Submit(ctx context.Context, draft domain.DraftRecord) (string, error) {
	sub, err := submission.Decode(draft)
	if err != nil {
		return "", err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	id, err := s.write(ctx, tx, draft.ID, sub)
	if err != nil {
		return "", s.classify(err)
	}
	if err := tx.Commit(); err != nil {
		return "", s.classify(fmt.Errorf("commit: %w", err))
	}
	committed = true
	return id, nil
}

// DrySubmit runs the Submit write path inside a transaction that is rolled
// back on every exit path.
func (s *Store) DrySubmit(ctx context.Context, draft domain.DraftRecord) error {
	sub, err := submission.Decode(draft)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := s.write(ctx, tx, draft.ID, sub); err != nil {
		return s.classify(err)
	}
	return nil
}

func (s *Store) write(ctx context.Context, tx *sql.Tx, draftID string, sub submission.Submission) (string, error) {
	su := sub.SampleUnit
	su.ID = uuid.NewString()
	attrs := su.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return "", fmt.Errorf("encode attributes: %w", err)
	}
	var length sql.NullFloat64
	if n, ok := attrs["len_surveyed"].(float64); ok {
		length = sql.NullFloat64{Float64: n, Valid: true}
	}
	if _, err := s.exec(ctx, tx, `INSERT INTO sample_units
		(id, protocol, site_id, management_id, sample_date, label, depth, len_surveyed, attributes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		su.ID, string(su.Protocol), su.SiteID, su.ManagementID, su.SampleDate, su.Label,
		nullable(su.Depth), length, string(encoded)); err != nil {
		return "", fmt.Errorf("insert sample unit: %w", err)
	}
	for _, observer := range su.ObserverIDs {
		if _, err := s.exec(ctx, tx, `INSERT INTO sample_unit_observers (sample_unit_id, observer_id) VALUES (?, ?)`,
			su.ID, observer); err != nil {
			return "", fmt.Errorf("insert observer: %w", err)
		}
	}
	for _, o := range sub.Observations {
		vals, err := json.Marshal(o.Values)
		if err != nil {
			return "", fmt.Errorf("encode observation: %w", err)
		}
		var attr sql.NullString
		if o.AttributeID != "" {
			attr = sql.NullString{String: o.AttributeID, Valid: true}
		}
		if _, err := s.exec(ctx, tx, `INSERT INTO observations (sample_unit_id, list, seq, attribute_id, vals, min_value)
			VALUES (?, ?, ?, ?, ?, ?)`,
			su.ID, o.List, o.Position, attr, string(vals), minValue(o.Values)); err != nil {
			return "", fmt.Errorf("insert observation %s.%d: %w", o.List, o.Position, err)
		}
	}
	if _, err := s.exec(ctx, tx, `DELETE FROM collect_records WHERE id = ?`, draftID); err != nil {
		return "", fmt.Errorf("delete draft: %w", err)
	}
	return su.ID, nil
}

// classify turns driver rejections into StorageErrors and leaves
// infrastructure failures wrapped.
func (s *Store) classify(err error) error {
	var se *domain.StorageError
	if errors.As(err, &se) {
		return se
	}
	if s.dialect.MapError != nil {
		if mapped, ok := s.dialect.MapError(err); ok {
			return mapped
		}
	}
	return err
}

func minValue(values map[string]float64) sql.NullFloat64 {
	var out sql.NullFloat64
	for _, v := range values {
		if !out.Valid || v < out.Float64 {
			out = sql.NullFloat64{Float64: v, Valid: true}
		}
	}
	return out
}

func nullable(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func fromNull(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
