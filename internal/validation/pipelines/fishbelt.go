package pipelines

import (
	"reefcore/internal/validation"
	v "reefcore/internal/validation/validators"
	"reefcore/pkg/domain"
)

// Fish belt paths.
const (
	PathBeltNumber    validation.Path = "fishbelt_transect.number"
	PathBeltLabel     validation.Path = "fishbelt_transect.label"
	PathBeltLength    validation.Path = "fishbelt_transect.len_surveyed"
	PathBeltWidth     validation.Path = "fishbelt_transect.width"
	PathBeltDepth     validation.Path = "fishbelt_transect.depth"
	PathBeltFishes    validation.Path = "obs_belt_fishes"
	PathBeltFishAttr  validation.Path = "obs_belt_fishes.fish_attribute"
	PathBeltFishSize  validation.Path = "obs_belt_fishes.size"
	PathBeltFishCount validation.Path = "obs_belt_fishes.count"
)

// FishBelt validates belt transect fish surveys.
func FishBelt(deps Deps) (*validation.Pipeline, error) {
	vocab := commonVocab.Merge(validation.NewVocabulary(
		PathBeltNumber, PathBeltLabel, PathBeltLength, PathBeltWidth, PathBeltDepth,
		PathBeltFishes, PathBeltFishAttr, PathBeltFishSize, PathBeltFishCount,
	))
	return validation.NewPipeline(domain.ProtocolFishBelt, Version, vocab, concat(
		sampleEvent(deps),
		[]validation.Validation{
			validation.Field(v.Required(), PathBeltNumber),
			validation.Field(v.Required(), PathBeltLength),
			validation.Field(v.Range(10, 100, domain.StatusWarn), PathBeltLength),
			validation.Field(v.Required(), PathBeltWidth),
			validation.Field(v.Positive(), PathBeltWidth),
		},
		depth(PathBeltDepth),
		[]validation.Validation{
			validation.Field(v.Required(), PathBeltFishes),
			validation.Rows(PathBeltFishes, v.Required(), PathBeltFishAttr),
			validation.Rows(PathBeltFishes, v.Positive(), PathBeltFishSize),
			validation.Rows(PathBeltFishes, v.Positive(), PathBeltFishCount),
			validation.RecordList(v.AttributeExists(deps.Refs), PathBeltFishes, PathBeltFishAttr),
			validation.RecordList(v.FishSize(deps.Refs), PathBeltFishes, PathBeltFishAttr, PathBeltFishSize),
			validation.Field(v.ObservationCount(5, 200), PathBeltFishes),
			validation.Field(v.AllEqual("id"), PathBeltFishes),
			validation.Field(v.Duplicate(), PathBeltFishes, PathBeltFishAttr, PathBeltFishSize),
			validation.Record(v.Biomass(deps.Refs, 50, 5000),
				PathBeltFishes, PathBeltFishAttr, PathBeltFishSize, PathBeltFishCount, PathBeltLength, PathBeltWidth),
			validation.RecordList(v.Region(deps.Refs), PathBeltFishes, PathBeltFishAttr, PathSite),
			unique(domain.ProtocolFishBelt, deps, PathBeltLabel, PathBeltDepth, PathBeltNumber, PathBeltWidth),
			drySubmit(),
		},
	)...)
}
