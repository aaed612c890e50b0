package validation

import "fmt"

// Name identifies a validator in the identity hash. Names are an append-only
// vocabulary: renaming one resets every operator dismissal recorded against it.
type Name string

// Registered validator names.
const (
	NameRequired         Name = "required"
	NameRange            Name = "range"
	NamePositive         Name = "positive"
	NameAllEqual         Name = "all_equal"
	NameDuplicate        Name = "duplicate"
	NameNotFuture        Name = "not_future"
	NamePercentSum       Name = "percent_sum"
	NameSiteExists       Name = "site_exists"
	NameManagementExists Name = "management_exists"
	NameAttributeExists  Name = "attribute_exists"
	NameRegion           Name = "region"
	NameBiomass          Name = "biomass"
	NameFishSize         Name = "fish_size"
	NameColonyCount      Name = "colony_count"
	NameObservationCount Name = "observation_count"
	NameIntervalCount    Name = "interval_count"
	NameLITTotalLength   Name = "lit_total_length"
	NameUniqueTransect   Name = "unique_transect"
	NameDrySubmit        Name = "dry_submit"
)

var knownNames = map[Name]struct{}{
	NameRequired: {}, NameRange: {}, NamePositive: {}, NameAllEqual: {},
	NameDuplicate: {}, NameNotFuture: {}, NamePercentSum: {}, NameSiteExists: {},
	NameManagementExists: {}, NameAttributeExists: {}, NameRegion: {},
	NameBiomass: {}, NameFishSize: {}, NameColonyCount: {},
	NameObservationCount: {}, NameIntervalCount: {}, NameLITTotalLength: {},
	NameUniqueTransect: {}, NameDrySubmit: {},
}

// Known reports whether n is part of the registered vocabulary.
func (n Name) Known() bool {
	_, ok := knownNames[n]
	return ok
}

// Path is a dotted record path drawn from a protocol's path vocabulary.
type Path string

func (p Path) String() string { return string(p) }

// Vocabulary is the closed set of paths a pipeline may bind validators to.
type Vocabulary map[Path]struct{}

// NewVocabulary builds a vocabulary from paths.
func NewVocabulary(paths ...Path) Vocabulary {
	v := make(Vocabulary, len(paths))
	for _, p := range paths {
		v[p] = struct{}{}
	}
	return v
}

// Merge returns the union of v and others.
func (v Vocabulary) Merge(others ...Vocabulary) Vocabulary {
	out := make(Vocabulary, len(v))
	for p := range v {
		out[p] = struct{}{}
	}
	for _, o := range others {
		for p := range o {
			out[p] = struct{}{}
		}
	}
	return out
}

func (v Vocabulary) check(paths []Path) error {
	for _, p := range paths {
		if _, ok := v[p]; !ok {
			return fmt.Errorf("path %q is not in the pipeline vocabulary", p)
		}
	}
	return nil
}
