package pipelines

import (
	"reefcore/internal/validation"
	v "reefcore/internal/validation/validators"
	"reefcore/pkg/domain"
)

// Benthic transect paths shared by LIT, PIT and habitat complexity.
const (
	PathBenthicNumber validation.Path = "benthic_transect.number"
	PathBenthicLabel  validation.Path = "benthic_transect.label"
	PathBenthicLength validation.Path = "benthic_transect.len_surveyed"
	PathBenthicDepth  validation.Path = "benthic_transect.depth"

	PathLITs         validation.Path = "obs_benthic_lits"
	PathLITAttribute validation.Path = "obs_benthic_lits.attribute"
	PathLITLength    validation.Path = "obs_benthic_lits.length"

	PathPITs         validation.Path = "obs_benthic_pits"
	PathPITAttribute validation.Path = "obs_benthic_pits.attribute"
	PathPITInterval  validation.Path = "obs_benthic_pits.interval"

	PathHabitatComplexities validation.Path = "obs_habitat_complexities"
	PathHabitatScore        validation.Path = "obs_habitat_complexities.score"
)

var benthicVocab = commonVocab.Merge(validation.NewVocabulary(
	PathBenthicNumber, PathBenthicLabel, PathBenthicLength, PathBenthicDepth,
))

func benthicTransect() []validation.Validation {
	return concat(
		[]validation.Validation{
			validation.Field(v.Required(), PathBenthicNumber),
			validation.Field(v.Required(), PathBenthicLength),
			validation.Field(v.Positive(), PathBenthicLength),
		},
		depth(PathBenthicDepth),
	)
}

func intervals() []validation.Validation {
	return []validation.Validation{
		validation.Field(v.Required(), PathInterval),
		validation.Field(v.Range(0.1, 10, domain.StatusWarn), PathInterval),
	}
}

// BenthicLIT validates line intercept transects.
func BenthicLIT(deps Deps) (*validation.Pipeline, error) {
	vocab := benthicVocab.Merge(validation.NewVocabulary(PathLITs, PathLITAttribute, PathLITLength))
	return validation.NewPipeline(domain.ProtocolBenthicLIT, Version, vocab, concat(
		sampleEvent(deps),
		benthicTransect(),
		[]validation.Validation{
			validation.Field(v.Required(), PathLITs),
			validation.Rows(PathLITs, v.Required(), PathLITAttribute),
			validation.Rows(PathLITs, v.Positive(), PathLITLength),
			validation.RecordList(v.AttributeExists(deps.Refs), PathLITs, PathLITAttribute),
			validation.Field(v.LITTotalLength(0.5, 1.5), PathLITs, PathLITLength, PathBenthicLength),
			validation.Field(v.AllEqual("id"), PathLITs),
			validation.RecordList(v.Region(deps.Refs), PathLITs, PathLITAttribute, PathSite),
			unique(domain.ProtocolBenthicLIT, deps, PathBenthicLabel, PathBenthicDepth, PathBenthicNumber, PathBenthicLength),
			drySubmit(),
		},
	)...)
}

// BenthicPIT validates point intercept transects.
func BenthicPIT(deps Deps) (*validation.Pipeline, error) {
	vocab := benthicVocab.Merge(validation.NewVocabulary(PathInterval, PathPITs, PathPITAttribute, PathPITInterval))
	return validation.NewPipeline(domain.ProtocolBenthicPIT, Version, vocab, concat(
		sampleEvent(deps),
		benthicTransect(),
		intervals(),
		[]validation.Validation{
			validation.Field(v.Required(), PathPITs),
			validation.Rows(PathPITs, v.Required(), PathPITAttribute),
			validation.RecordList(v.AttributeExists(deps.Refs), PathPITs, PathPITAttribute),
			validation.Field(v.IntervalCount(1), PathPITs, PathBenthicLength, PathInterval),
			validation.Field(v.AllEqual("id", "interval"), PathPITs),
			validation.Field(v.Duplicate(), PathPITs, PathPITInterval),
			validation.RecordList(v.Region(deps.Refs), PathPITs, PathPITAttribute, PathSite),
			unique(domain.ProtocolBenthicPIT, deps, PathBenthicLabel, PathBenthicDepth, PathBenthicNumber, PathInterval),
			drySubmit(),
		},
	)...)
}

// HabitatComplexity validates habitat complexity transects.
func HabitatComplexity(deps Deps) (*validation.Pipeline, error) {
	vocab := benthicVocab.Merge(validation.NewVocabulary(PathInterval, PathHabitatComplexities, PathHabitatScore))
	return validation.NewPipeline(domain.ProtocolHabitatComplexity, Version, vocab, concat(
		sampleEvent(deps),
		benthicTransect(),
		intervals(),
		[]validation.Validation{
			validation.Field(v.Required(), PathHabitatComplexities),
			validation.Rows(PathHabitatComplexities, v.Range(0, 5, domain.StatusError), PathHabitatScore),
			validation.Field(v.IntervalCount(1), PathHabitatComplexities, PathBenthicLength, PathInterval),
			validation.Field(v.AllEqual("id", "interval"), PathHabitatComplexities),
			unique(domain.ProtocolHabitatComplexity, deps, PathBenthicLabel, PathBenthicDepth, PathBenthicNumber, PathInterval),
			drySubmit(),
		},
	)...)
}
