// Package sqlstore implements the reference, record and dry-run persistence
// contracts over database/sql. Backends supply a Dialect carrying their
// placeholder style, column types and error mapping.
package sqlstore

import (
	"strconv"
	"strings"

	"reefcore/pkg/domain"
)

// Dialect describes the differences between SQL backends.
type Dialect struct {
	Name string
	// Numbered placeholders ($1, $2) instead of ?.
	Numbered bool
	// JSONType is the column type used for JSON documents.
	JSONType string
	// RealType is the column type used for floating point values.
	RealType string
	// MapError converts a driver error describing rejected data into a
	// StorageError. It returns false for infrastructure failures.
	MapError func(error) (*domain.StorageError, bool)
}

// Rebind rewrites ? placeholders into the dialect's style.
func (d Dialect) Rebind(query string) string {
	if !d.Numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Schema returns the DDL statements creating every table.
func (d Dialect) Schema() []string {
	j, r := d.JSONType, d.RealType
	return []string{
		`CREATE TABLE IF NOT EXISTS sites (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			lon ` + r + `,
			lat ` + r + `
		)`,
		`CREATE TABLE IF NOT EXISTS managements (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS attributes (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			regions ` + j + ` NOT NULL,
			biomass_a ` + r + `,
			biomass_b ` + r + `,
			biomass_c ` + r + `,
			max_length ` + r + `
		)`,
		`CREATE TABLE IF NOT EXISTS regions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			geometry ` + j + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sample_units (
			id TEXT PRIMARY KEY,
			protocol TEXT NOT NULL,
			site_id TEXT NOT NULL,
			management_id TEXT NOT NULL,
			sample_date TEXT NOT NULL,
			label TEXT NOT NULL,
			depth ` + r + `,
			len_surveyed ` + r + `,
			attributes ` + j + ` NOT NULL,
			CONSTRAINT sample_units_site_id_fkey FOREIGN KEY (site_id) REFERENCES sites(id),
			CONSTRAINT sample_units_management_id_fkey FOREIGN KEY (management_id) REFERENCES managements(id),
			CONSTRAINT sample_units_len_surveyed_check CHECK (len_surveyed IS NULL OR len_surveyed > 0)
		)`,
		`CREATE INDEX IF NOT EXISTS sample_units_identity_idx ON sample_units (protocol, site_id, management_id, sample_date)`,
		`CREATE TABLE IF NOT EXISTS sample_unit_observers (
			sample_unit_id TEXT NOT NULL,
			observer_id TEXT NOT NULL,
			PRIMARY KEY (sample_unit_id, observer_id),
			CONSTRAINT sample_unit_observers_sample_unit_id_fkey FOREIGN KEY (sample_unit_id) REFERENCES sample_units(id)
		)`,
		`CREATE TABLE IF NOT EXISTS observations (
			sample_unit_id TEXT NOT NULL,
			list TEXT NOT NULL,
			seq INTEGER NOT NULL,
			attribute_id TEXT,
			vals ` + j + ` NOT NULL,
			min_value ` + r + `,
			PRIMARY KEY (sample_unit_id, list, seq),
			CONSTRAINT observations_sample_unit_id_fkey FOREIGN KEY (sample_unit_id) REFERENCES sample_units(id),
			CONSTRAINT observations_attribute_id_fkey FOREIGN KEY (attribute_id) REFERENCES attributes(id),
			CONSTRAINT observations_values_check CHECK (min_value IS NULL OR min_value >= 0)
		)`,
		`CREATE TABLE IF NOT EXISTS collect_records (
			id TEXT PRIMARY KEY,
			protocol TEXT NOT NULL,
			project_id TEXT NOT NULL,
			data ` + j + ` NOT NULL,
			validations ` + j + `,
			updated_at TEXT NOT NULL
		)`,
	}
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func args(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
