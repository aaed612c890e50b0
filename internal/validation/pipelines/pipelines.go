// Package pipelines declares the validation pipeline of every survey protocol
// as a literal, ordered list of bindings.
package pipelines

import (
	"errors"
	"fmt"

	"reefcore/internal/validation"
	v "reefcore/internal/validation/validators"
	"reefcore/pkg/domain"
)

// Version is bumped whenever a pipeline's bindings change.
const Version = 1

// ErrUnknownProtocol is returned for a protocol without a pipeline.
var ErrUnknownProtocol = errors.New("no pipeline for protocol")

// Deps carries the collaborators the domain validators consult.
type Deps struct {
	Refs domain.ReferenceStore
}

// Sample event and observer paths shared by every protocol.
const (
	PathSite       validation.Path = "sample_event.site"
	PathManagement validation.Path = "sample_event.management"
	PathSampleDate validation.Path = "sample_event.sample_date"
	PathObservers  validation.Path = "observers"
	PathObserver   validation.Path = "observers.profile"
	PathInterval   validation.Path = "interval_size"
)

var commonVocab = validation.NewVocabulary(PathSite, PathManagement, PathSampleDate, PathObservers, PathObserver)

// New builds the pipeline for protocol.
func New(protocol domain.Protocol, deps Deps) (*validation.Pipeline, error) {
	if deps.Refs == nil {
		return nil, errors.New("pipelines: reference store is required")
	}
	switch protocol {
	case domain.ProtocolFishBelt:
		return FishBelt(deps)
	case domain.ProtocolBenthicLIT:
		return BenthicLIT(deps)
	case domain.ProtocolBenthicPIT:
		return BenthicPIT(deps)
	case domain.ProtocolHabitatComplexity:
		return HabitatComplexity(deps)
	case domain.ProtocolBleachingQuadrat:
		return BleachingQuadrat(deps)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownProtocol, protocol)
	}
}

// MustBuild builds every protocol pipeline and panics on a defect.
func MustBuild(deps Deps) map[domain.Protocol]*validation.Pipeline {
	out := make(map[domain.Protocol]*validation.Pipeline, len(domain.Protocols()))
	for _, p := range domain.Protocols() {
		pipeline, err := New(p, deps)
		if err != nil {
			panic(err)
		}
		out[p] = pipeline
	}
	return out
}

// sampleEvent binds the checks every protocol runs over its sample event and
// observers.
func sampleEvent(deps Deps) []validation.Validation {
	return []validation.Validation{
		validation.Field(v.Required(), PathSite),
		validation.Field(v.SiteExists(deps.Refs), PathSite),
		validation.Field(v.Required(), PathManagement),
		validation.Field(v.ManagementExists(deps.Refs), PathManagement),
		validation.Field(v.Required(), PathSampleDate),
		validation.Field(v.NotFuture(), PathSampleDate),
		validation.Field(v.Required(), PathObservers),
		validation.Rows(PathObservers, v.Required(), PathObserver),
	}
}

// depth binds the required and plausible-range checks of a sample unit depth.
func depth(path validation.Path) []validation.Validation {
	return []validation.Validation{
		validation.Field(v.Required(), path),
		validation.Field(v.Range(0, 30, domain.StatusWarn), path),
	}
}

// unique binds the committed sample unit clash check. extra holds the
// protocol-specific identifying fields.
func unique(protocol domain.Protocol, deps Deps, label, depthPath validation.Path, extra ...validation.Path) validation.Validation {
	paths := []validation.Path{PathSite, PathManagement, PathSampleDate, PathObservers, label, depthPath}
	paths = append(paths, extra...)
	return validation.Record(v.UniqueTransect(protocol, deps.Refs, domain.StatusError), paths...)
}

func drySubmit() validation.Validation {
	return validation.Record(v.DrySubmit()).Live()
}

func concat(groups ...[]validation.Validation) []validation.Validation {
	var out []validation.Validation
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
