// Package geo resolves which biogeographic regions contain a site location.
package geo

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"reefcore/pkg/domain"
)

type indexedRegion struct {
	id    string
	bound orb.Bound
	geom  orb.Geometry
}

// Index answers point-in-region queries over a fixed set of regions.
type Index struct {
	regions []indexedRegion
}

// NewIndex parses the GeoJSON geometry of each region. Only Polygon and
// MultiPolygon geometries are accepted.
func NewIndex(regions []domain.Region) (*Index, error) {
	idx := &Index{regions: make([]indexedRegion, 0, len(regions))}
	for _, r := range regions {
		g, err := geojson.UnmarshalGeometry(r.Geometry)
		if err != nil {
			return nil, fmt.Errorf("region %s: decode geometry: %w", r.ID, err)
		}
		geom := g.Geometry()
		if geom == nil {
			return nil, fmt.Errorf("region %s: empty geometry", r.ID)
		}
		switch geom.(type) {
		case orb.Polygon, orb.MultiPolygon:
		default:
			return nil, fmt.Errorf("region %s: unsupported geometry %s", r.ID, geom.GeoJSONType())
		}
		idx.regions = append(idx.regions, indexedRegion{id: r.ID, bound: geom.Bound(), geom: geom})
	}
	return idx, nil
}

// Containing returns the sorted ids of every region holding p.
func (idx *Index) Containing(p domain.Point) []string {
	if idx == nil {
		return nil
	}
	pt := orb.Point{p.Lon, p.Lat}
	var out []string
	for _, r := range idx.regions {
		if !r.bound.Contains(pt) {
			continue
		}
		var inside bool
		switch g := r.geom.(type) {
		case orb.Polygon:
			inside = planar.PolygonContains(g, pt)
		case orb.MultiPolygon:
			inside = planar.MultiPolygonContains(g, pt)
		}
		if inside {
			out = append(out, r.id)
		}
	}
	sort.Strings(out)
	return out
}

// Len returns the number of indexed regions.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.regions)
}
