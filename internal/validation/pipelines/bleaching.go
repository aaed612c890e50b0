package pipelines

import (
	"reefcore/internal/validation"
	v "reefcore/internal/validation/validators"
	"reefcore/pkg/domain"
)

// Bleaching quadrat collection paths.
const (
	PathQuadratLabel validation.Path = "quadrat_collection.label"
	PathQuadratDepth validation.Path = "quadrat_collection.depth"
	PathQuadratSize  validation.Path = "quadrat_collection.quadrat_size"

	PathColonies        validation.Path = "obs_colonies_bleached"
	PathColonyAttribute validation.Path = "obs_colonies_bleached.attribute"
	PathColonyNormal    validation.Path = "obs_colonies_bleached.count_normal"
	PathColonyPale      validation.Path = "obs_colonies_bleached.count_pale"
	PathColony20        validation.Path = "obs_colonies_bleached.count_20"
	PathColony50        validation.Path = "obs_colonies_bleached.count_50"
	PathColony80        validation.Path = "obs_colonies_bleached.count_80"
	PathColony100       validation.Path = "obs_colonies_bleached.count_100"
	PathColonyDead      validation.Path = "obs_colonies_bleached.count_dead"
	PathPercentCover    validation.Path = "obs_quadrat_benthic_percent"
	PathPercentQuadrat  validation.Path = "obs_quadrat_benthic_percent.quadrat_number"
	PathPercentHard     validation.Path = "obs_quadrat_benthic_percent.percent_hard"
	PathPercentSoft     validation.Path = "obs_quadrat_benthic_percent.percent_soft"
	PathPercentAlgae    validation.Path = "obs_quadrat_benthic_percent.percent_algae"
)

var colonyCounts = []validation.Path{
	PathColonyNormal, PathColonyPale, PathColony20, PathColony50, PathColony80, PathColony100, PathColonyDead,
}

// BleachingQuadrat validates bleaching quadrat collections: colony counts by
// bleaching category and per-quadrat benthic percent cover.
func BleachingQuadrat(deps Deps) (*validation.Pipeline, error) {
	vocab := commonVocab.Merge(validation.NewVocabulary(
		PathQuadratLabel, PathQuadratDepth, PathQuadratSize,
		PathColonies, PathColonyAttribute,
		PathPercentCover, PathPercentQuadrat, PathPercentHard, PathPercentSoft, PathPercentAlgae,
	), validation.NewVocabulary(colonyCounts...))
	return validation.NewPipeline(domain.ProtocolBleachingQuadrat, Version, vocab, concat(
		sampleEvent(deps),
		[]validation.Validation{
			validation.Field(v.Required(), PathQuadratLabel),
			validation.Field(v.Required(), PathQuadratSize),
			validation.Field(v.Range(0.25, 10, domain.StatusWarn), PathQuadratSize),
		},
		depth(PathQuadratDepth),
		[]validation.Validation{
			validation.Rows(PathColonies, v.Required(), PathColonyAttribute),
			validation.RecordList(v.AttributeExists(deps.Refs), PathColonies, PathColonyAttribute),
			validation.Field(v.ColonyCount(600), append([]validation.Path{PathColonies}, colonyCounts...)...),
			validation.Field(v.Duplicate(), PathColonies, PathColonyAttribute),
			validation.Field(v.AllEqual("id"), PathColonies),
			validation.RecordList(v.Region(deps.Refs), PathColonies, PathColonyAttribute, PathSite),
			validation.Rows(PathPercentCover, v.Required(), PathPercentQuadrat),
			validation.Rows(PathPercentCover, v.PercentSum(100), PathPercentHard, PathPercentSoft, PathPercentAlgae),
			validation.Field(v.Duplicate(), PathPercentCover, PathPercentQuadrat),
			unique(domain.ProtocolBleachingQuadrat, deps, PathQuadratLabel, PathQuadratDepth, PathQuadratSize),
			drySubmit(),
		},
	)...)
}
