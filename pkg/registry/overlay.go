package registry

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/scopeflow/scopeflow/pkg/domain"
)

// Overlay customizes the display text and required flag of catalog stages
// from a YAML descriptor. Stage IDs, catalog order, dependencies and
// validators stay compiled in: the overlay is applied before the registry
// is constructed and cannot change the workflow shape.
type Overlay struct {
	Stages map[string]OverlayStage `yaml:"stages"`
}

// OverlayStage holds the overridable fields of one stage. Nil pointers
// leave the compiled-in value untouched.
type OverlayStage struct {
	Title       *string `yaml:"title"`
	Description *string `yaml:"description"`
	Required    *bool   `yaml:"required"`
}

// LoadOverlay parses an overlay descriptor.
func LoadOverlay(r io.Reader) (Overlay, error) {
	var o Overlay
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&o); err != nil {
		return Overlay{}, fmt.Errorf("failed to parse catalog overlay: %w", err)
	}
	return o, nil
}

// Apply returns a copy of stages with the overlay applied. Overlay entries
// referencing unknown stage IDs are an error to catch typos early.
func (o Overlay) Apply(stages []domain.StageDefinition) ([]domain.StageDefinition, error) {
	known := make(map[string]bool, len(stages))
	for _, s := range stages {
		known[s.ID] = true
	}
	for id := range o.Stages {
		if !known[id] {
			return nil, fmt.Errorf("catalog overlay references unknown stage %q", id)
		}
	}

	out := make([]domain.StageDefinition, len(stages))
	copy(out, stages)
	for i := range out {
		ov, ok := o.Stages[out[i].ID]
		if !ok {
			continue
		}
		if ov.Title != nil {
			out[i].Title = *ov.Title
		}
		if ov.Description != nil {
			out[i].Description = *ov.Description
		}
		if ov.Required != nil {
			out[i].Required = *ov.Required
		}
	}
	return out, nil
}
