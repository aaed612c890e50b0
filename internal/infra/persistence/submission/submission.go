// Package submission decodes a draft record's field tree into the typed rows
// the stores write when a draft is promoted. Decoding failures are reported as
// *domain.StorageError so that dry runs surface them like any other storage
// rejection.
package submission

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"reefcore/pkg/domain"
	"reefcore/pkg/recordpath"
)

// Submission is a decoded draft ready to be written.
type Submission struct {
	SampleUnit   domain.SampleUnit
	Observations []Observation
}

// Observation is one decoded observation row.
type Observation struct {
	List        string             `json:"list"`
	Position    int                `json:"position"`
	AttributeID string             `json:"attribute_id,omitempty"`
	Values      map[string]float64 `json:"values"`
}

type layout struct {
	unit  string
	lists []listLayout
	// unit fields copied into SampleUnit.Attributes
	attrs []string
	// top-level fields copied into SampleUnit.Attributes
	root []string
}

type listLayout struct {
	path      string
	attribute string
	values    []string
}

var layouts = map[domain.Protocol]layout{
	domain.ProtocolFishBelt: {
		unit:  "fishbelt_transect",
		attrs: []string{"number", "len_surveyed", "width"},
		lists: []listLayout{{path: "obs_belt_fishes", attribute: "fish_attribute", values: []string{"size", "count"}}},
	},
	domain.ProtocolBenthicLIT: {
		unit:  "benthic_transect",
		attrs: []string{"number", "len_surveyed"},
		lists: []listLayout{{path: "obs_benthic_lits", attribute: "attribute", values: []string{"length"}}},
	},
	domain.ProtocolBenthicPIT: {
		unit:  "benthic_transect",
		attrs: []string{"number", "len_surveyed"},
		root:  []string{"interval_size"},
		lists: []listLayout{{path: "obs_benthic_pits", attribute: "attribute", values: []string{"interval"}}},
	},
	domain.ProtocolHabitatComplexity: {
		unit:  "benthic_transect",
		attrs: []string{"number", "len_surveyed"},
		root:  []string{"interval_size"},
		lists: []listLayout{{path: "obs_habitat_complexities", values: []string{"interval", "score"}}},
	},
	domain.ProtocolBleachingQuadrat: {
		unit:  "quadrat_collection",
		attrs: []string{"quadrat_size"},
		lists: []listLayout{
			{path: "obs_colonies_bleached", attribute: "attribute", values: []string{
				"count_normal", "count_pale", "count_20", "count_50", "count_80", "count_100", "count_dead",
			}},
			{path: "obs_quadrat_benthic_percent", values: []string{"quadrat_number", "percent_hard", "percent_soft", "percent_algae"}},
		},
	},
}

// Decode converts draft into a Submission. The sample unit id is left empty
// for the caller to assign.
func Decode(draft domain.DraftRecord) (Submission, error) {
	l, ok := layouts[draft.Protocol]
	if !ok {
		return Submission{}, &domain.StorageError{Code: "invalid_type", Message: fmt.Sprintf("unsupported protocol %q", draft.Protocol), Table: "sample_units", Column: "protocol"}
	}
	data := draft.Data
	su := domain.SampleUnit{Protocol: draft.Protocol}
	var err error
	if su.SiteID, err = requiredID(data, "sample_event.site", "sample_units", "site_id"); err != nil {
		return Submission{}, err
	}
	if su.ManagementID, err = requiredID(data, "sample_event.management", "sample_units", "management_id"); err != nil {
		return Submission{}, err
	}
	if su.SampleDate, err = requiredDate(data, "sample_event.sample_date"); err != nil {
		return Submission{}, err
	}
	if label, ok := recordpath.String(data, l.unit+".label"); ok {
		su.Label = label
	}
	if su.Depth, err = optionalNumber(data, l.unit+".depth", "sample_units", "depth", l.unit+".depth"); err != nil {
		return Submission{}, err
	}
	for _, field := range l.attrs {
		if err := copyNumber(&su, data, l.unit+"."+field, field); err != nil {
			return Submission{}, err
		}
	}
	for _, field := range l.root {
		if err := copyNumber(&su, data, field, field); err != nil {
			return Submission{}, err
		}
	}
	observers, _ := recordpath.List(data, "observers")
	for i, obs := range observers {
		raw, _ := recordpath.Get(obs, "profile")
		id, err := parseID(raw, "sample_unit_observers", "observer_id", fmt.Sprintf("observers.%d.profile", i))
		if err != nil {
			return Submission{}, err
		}
		su.ObserverIDs = append(su.ObserverIDs, id)
	}
	sort.Strings(su.ObserverIDs)

	sub := Submission{SampleUnit: su}
	for _, list := range l.lists {
		rows, _ := recordpath.List(data, list.path)
		for i, row := range rows {
			o := Observation{List: list.path, Position: i, Values: map[string]float64{}}
			where := fmt.Sprintf("%s.%d", list.path, i)
			if list.attribute != "" {
				raw, _ := recordpath.Get(row, list.attribute)
				if o.AttributeID, err = parseID(raw, "observations", "attribute_id", where+"."+list.attribute); err != nil {
					return Submission{}, err
				}
			}
			for _, field := range list.values {
				n, err := optionalNumber(row, field, "observations", field, where+"."+field)
				if err != nil {
					return Submission{}, err
				}
				if n != nil {
					o.Values[field] = *n
				}
			}
			sub.Observations = append(sub.Observations, o)
		}
	}
	return sub, nil
}

// LabelKey is the comparison form of a sample unit label.
func LabelKey(label string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(label)))
}

func requiredID(data map[string]any, path, table, column string) (string, error) {
	raw, ok := recordpath.Get(data, path)
	if !ok || raw == nil || raw == "" {
		return "", &domain.StorageError{Code: "not_null_violation", Message: fmt.Sprintf("%s is required", column), Table: table, Column: column}
	}
	return parseID(raw, table, column, path)
}

func parseID(raw any, table, column, where string) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", &domain.StorageError{Code: "not_null_violation", Message: fmt.Sprintf("%s is required", column), Table: table, Column: column, Detail: where}
	}
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", &domain.StorageError{Code: "invalid_type", Message: fmt.Sprintf("invalid uuid %q", s), Table: table, Column: column, Detail: where}
	}
	return id.String(), nil
}

func requiredDate(data map[string]any, path string) (string, error) {
	s, ok := recordpath.String(data, path)
	if !ok || strings.TrimSpace(s) == "" {
		return "", &domain.StorageError{Code: "not_null_violation", Message: "sample_date is required", Table: "sample_units", Column: "sample_date"}
	}
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return "", &domain.StorageError{Code: "invalid_type", Message: fmt.Sprintf("invalid date %q", s), Table: "sample_units", Column: "sample_date"}
	}
	return t.Format(time.DateOnly), nil
}

func optionalNumber(tree any, path, table, column, where string) (*float64, error) {
	raw, ok := recordpath.Get(tree, path)
	if !ok || raw == nil || raw == "" {
		return nil, nil
	}
	n, ok := recordpath.ToFloat(raw)
	if !ok {
		return nil, &domain.StorageError{Code: "invalid_type", Message: fmt.Sprintf("%v is not a number", raw), Table: table, Column: column, Detail: where}
	}
	return &n, nil
}

func copyNumber(su *domain.SampleUnit, data map[string]any, path, key string) error {
	n, err := optionalNumber(data, path, "sample_units", key, path)
	if err != nil {
		return err
	}
	if n == nil {
		return nil
	}
	if su.Attributes == nil {
		su.Attributes = make(map[string]any)
	}
	su.Attributes[key] = *n
	return nil
}
