// Package runtime is the pure core of the workflow engine: validation
// evaluation, stage classification, navigation gating and progress. It
// operates only on in-memory payload state and performs no I/O, so its
// results are always consistent with the latest payload regardless of any
// persistence in flight.
package runtime

import (
	"log/slog"

	"github.com/scopeflow/scopeflow/internal/logging"
	"github.com/scopeflow/scopeflow/pkg/domain"
	"github.com/scopeflow/scopeflow/pkg/registry"
)

// Engine evaluates a session payload against the stage catalog.
type Engine struct {
	registry *registry.Registry
	logger   *slog.Logger
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets a structured logger for the engine.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates the runtime core for a stage catalog.
func NewEngine(reg *registry.Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: reg,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the catalog the engine evaluates against.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Evaluate applies every stage's validator to the payload and returns the
// full validity map. It is recomputed in whole on every call: validators
// are cheap and pure, and payload shape is not stable between edits, so
// nothing is cached.
func (e *Engine) Evaluate(payload domain.Payload) map[string]domain.ValidationResult {
	results := make(map[string]domain.ValidationResult, e.registry.Len())
	for _, stage := range e.registry.Stages() {
		validator, ok := e.registry.Validator(stage.ID)
		if !ok {
			// Absent validator means the stage is always valid.
			results[stage.ID] = domain.ValidResult
			continue
		}
		results[stage.ID] = validator(payload)
	}
	return results
}
