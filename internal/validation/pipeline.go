package validation

import (
	"errors"
	"fmt"

	"reefcore/pkg/domain"
)

// Pipeline is the ordered, static list of validations for one protocol.
type Pipeline struct {
	protocol    domain.Protocol
	version     int
	validations []Validation
}

// NewPipeline assembles a pipeline, rejecting configuration defects: unknown
// validator names, paths outside vocab, malformed bindings and two
// validations sharing an identity.
func NewPipeline(protocol domain.Protocol, version int, vocab Vocabulary, validations ...Validation) (*Pipeline, error) {
	if !protocol.Valid() {
		return nil, fmt.Errorf("pipeline for unknown protocol %q", protocol)
	}
	var errs []error
	seen := make(map[string]Name, len(validations))
	for i, v := range validations {
		if v.defect != nil {
			errs = append(errs, fmt.Errorf("%s validation %d: %w", protocol, i, v.defect))
			continue
		}
		if err := vocab.check(v.paths); err != nil {
			errs = append(errs, fmt.Errorf("%s validation %d (%s): %w", protocol, i, v.name, err))
		}
		if prev, dup := seen[v.identity]; dup {
			errs = append(errs, fmt.Errorf("%s validation %d (%s) duplicates identity of %s", protocol, i, v.name, prev))
		}
		seen[v.identity] = v.name
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &Pipeline{
		protocol:    protocol,
		version:     version,
		validations: append([]Validation(nil), validations...),
	}, nil
}

// MustPipeline is NewPipeline for statically declared pipelines; a defect is
// a programming error and panics.
func MustPipeline(protocol domain.Protocol, version int, vocab Vocabulary, validations ...Validation) *Pipeline {
	p, err := NewPipeline(protocol, version, vocab, validations...)
	if err != nil {
		panic(err)
	}
	return p
}

// Protocol returns the protocol the pipeline validates.
func (p *Pipeline) Protocol() domain.Protocol { return p.protocol }

// Version returns the pipeline definition version.
func (p *Pipeline) Version() int { return p.version }

// Validations returns the validations in declared order.
func (p *Pipeline) Validations() []Validation {
	return append([]Validation(nil), p.validations...)
}

// executionOrder keeps declared order but moves live validations last.
func (p *Pipeline) executionOrder() []Validation {
	out := make([]Validation, 0, len(p.validations))
	var live []Validation
	for _, v := range p.validations {
		if v.live {
			live = append(live, v)
			continue
		}
		out = append(out, v)
	}
	return append(out, live...)
}
