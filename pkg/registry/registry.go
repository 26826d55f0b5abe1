// Package registry holds the static stage catalog of the scoping
// workflow. Definitions are pure data; validation logic is registered
// separately as pure functions keyed by stage ID. The registry is fixed
// at construction and never mutated at runtime.
package registry

import (
	"fmt"

	"github.com/scopeflow/scopeflow/pkg/domain"
)

// Validator is a pure predicate over the accumulated session payload.
// It must not mutate the payload or perform I/O.
type Validator func(payload domain.Payload) domain.ValidationResult

// Registry is the ordered catalog of workflow stages.
type Registry struct {
	stages     []domain.StageDefinition
	index      map[string]int
	validators map[string]Validator
}

// New builds a registry from an ordered stage list and a validator table.
// It enforces the catalog invariants: unique IDs, dependencies referencing
// only strictly earlier stages (which also rules out cycles and
// self-references), and validators keyed by known stages.
func New(stages []domain.StageDefinition, validators map[string]Validator) (*Registry, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("registry requires at least one stage")
	}

	index := make(map[string]int, len(stages))
	for i, stage := range stages {
		if stage.ID == "" {
			return nil, fmt.Errorf("stage at position %d has empty ID", i)
		}
		if _, dup := index[stage.ID]; dup {
			return nil, fmt.Errorf("duplicate stage ID %q", stage.ID)
		}
		index[stage.ID] = i
	}

	for i, stage := range stages {
		for _, dep := range stage.Dependencies {
			pos, ok := index[dep]
			if !ok {
				return nil, fmt.Errorf("stage %q depends on unknown stage %q", stage.ID, dep)
			}
			if pos >= i {
				return nil, fmt.Errorf("stage %q depends on %q which is not earlier in catalog order", stage.ID, dep)
			}
		}
	}

	for id := range validators {
		if _, ok := index[id]; !ok {
			return nil, fmt.Errorf("validator registered for unknown stage %q", id)
		}
	}

	// Copy inputs so later caller mutations cannot reach the registry.
	stagesCopy := make([]domain.StageDefinition, len(stages))
	copy(stagesCopy, stages)
	validatorsCopy := make(map[string]Validator, len(validators))
	for id, v := range validators {
		validatorsCopy[id] = v
	}

	return &Registry{
		stages:     stagesCopy,
		index:      index,
		validators: validatorsCopy,
	}, nil
}

// Stages returns the catalog in order. The slice is a copy.
func (r *Registry) Stages() []domain.StageDefinition {
	out := make([]domain.StageDefinition, len(r.stages))
	copy(out, r.stages)
	return out
}

// Len returns the number of stages in the catalog.
func (r *Registry) Len() int { return len(r.stages) }

// Stage looks up a definition by ID.
func (r *Registry) Stage(id string) (domain.StageDefinition, bool) {
	pos, ok := r.index[id]
	if !ok {
		return domain.StageDefinition{}, false
	}
	return r.stages[pos], true
}

// Position returns the catalog position of a stage.
func (r *Registry) Position(id string) (int, bool) {
	pos, ok := r.index[id]
	return pos, ok
}

// First returns the first stage in catalog order. It is the initial
// current stage of a freshly created session.
func (r *Registry) First() domain.StageDefinition {
	return r.stages[0]
}

// Validator returns the validator registered for a stage. A stage without
// a validator is always valid.
func (r *Registry) Validator(id string) (Validator, bool) {
	v, ok := r.validators[id]
	return v, ok
}
