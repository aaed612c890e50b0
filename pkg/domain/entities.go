// Package domain defines the draft records, reference data, validation
// outcomes and reports shared by the reef survey validation core.
package domain

import (
	"encoding/json"
	"time"
)

// Protocol identifies the survey method a draft record follows.
type Protocol string

// Supported survey protocols.
const (
	ProtocolFishBelt          Protocol = "fishbelt"
	ProtocolBenthicLIT        Protocol = "benthiclit"
	ProtocolBenthicPIT        Protocol = "benthicpit"
	ProtocolHabitatComplexity Protocol = "habitatcomplexity"
	ProtocolBleachingQuadrat  Protocol = "bleachingqc"
)

// Protocols lists every supported protocol in a stable order.
func Protocols() []Protocol {
	return []Protocol{
		ProtocolFishBelt,
		ProtocolBenthicLIT,
		ProtocolBenthicPIT,
		ProtocolHabitatComplexity,
		ProtocolBleachingQuadrat,
	}
}

// Valid reports whether p is a supported protocol.
func (p Protocol) Valid() bool {
	for _, known := range Protocols() {
		if p == known {
			return true
		}
	}
	return false
}

// DraftRecord is a user-editable survey submission that has not yet been
// promoted into the committed record. Data is the nested field tree
// (sample_event, the sample unit, observers and observation lists).
type DraftRecord struct {
	ID          string         `json:"id"`
	Protocol    Protocol       `json:"protocol"`
	ProjectID   string         `json:"project_id,omitempty"`
	Data        map[string]any `json:"data"`
	Validations *Report        `json:"validations,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Point is a WGS84 location.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Site is a surveyed reef location.
type Site struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location *Point `json:"location,omitempty"`
}

// Management is the management regime in force at a site.
type Management struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Region is a named biogeographic area. Geometry is a GeoJSON Polygon or
// MultiPolygon in WGS84.
type Region struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Geometry json.RawMessage `json:"geometry"`
}

// Attribute is a benthic or fish taxon referenced by observations. Regions
// restricts where the taxon is expected; empty means unrestricted. Biomass
// constants follow W = A * (C * L)^B grams for length L in cm.
type Attribute struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Regions   []string `json:"regions,omitempty"`
	BiomassA  *float64 `json:"biomass_constant_a,omitempty"`
	BiomassB  *float64 `json:"biomass_constant_b,omitempty"`
	BiomassC  *float64 `json:"biomass_constant_c,omitempty"`
	MaxLength *float64 `json:"max_length,omitempty"`
}

// SampleUnitQuery describes the identifying attributes of a sample unit being
// checked for an existing committed clash. Attributes holds protocol-specific
// identifying fields (number, width, quadrat size) compared exactly.
type SampleUnitQuery struct {
	Protocol     Protocol       `json:"protocol"`
	SiteID       string         `json:"site_id"`
	ManagementID string         `json:"management_id"`
	SampleDate   string         `json:"sample_date"`
	Label        string         `json:"label"`
	Depth        *float64       `json:"depth,omitempty"`
	Attributes   map[string]any `json:"attributes,omitempty"`
	ObserverIDs  []string       `json:"observer_ids"`
}

// SampleUnit is a committed transect or quadrat collection.
type SampleUnit struct {
	ID           string         `json:"id"`
	Protocol     Protocol       `json:"protocol"`
	SiteID       string         `json:"site_id"`
	ManagementID string         `json:"management_id"`
	SampleDate   string         `json:"sample_date"`
	Label        string         `json:"label"`
	Depth        *float64       `json:"depth,omitempty"`
	Attributes   map[string]any `json:"attributes,omitempty"`
	ObserverIDs  []string       `json:"observer_ids"`
}

// SampleUnitMatch identifies a committed sample unit clashing with a query.
type SampleUnitMatch struct {
	ID              string   `json:"id"`
	SharedObservers []string `json:"shared_observers"`
}
