package runtime

import (
	"github.com/scopeflow/scopeflow/pkg/domain"
)

// Classify assigns exactly one StageState to every stage. Precedence per
// stage: current, then locked (any dependency invalid), then completed
// (earlier in catalog order than current and itself valid), then
// available. An empty currentStageID means the session is fresh and the
// first stage in catalog order is current.
func (e *Engine) Classify(results map[string]domain.ValidationResult, currentStageID string) map[string]domain.StageState {
	if currentStageID == "" {
		currentStageID = e.registry.First().ID
	}
	currentPos, ok := e.registry.Position(currentStageID)
	if !ok {
		// Unknown current stage: fall back to the catalog head rather
		// than classifying against a phantom position.
		currentStageID = e.registry.First().ID
		currentPos = 0
	}

	states := make(map[string]domain.StageState, e.registry.Len())
	for pos, stage := range e.registry.Stages() {
		switch {
		case stage.ID == currentStageID:
			states[stage.ID] = domain.StageCurrent
		case e.firstFailingDependency(stage, results) != nil:
			states[stage.ID] = domain.StageLocked
		case pos < currentPos && results[stage.ID].Valid:
			states[stage.ID] = domain.StageCompleted
		default:
			states[stage.ID] = domain.StageAvailable
		}
	}
	return states
}

// CheckNavigation decides whether a navigation request to target succeeds.
// It succeeds iff every declared dependency of the target is currently
// valid; otherwise it returns a NavigationRefusedError carrying the first
// failing dependency in declared order. A stage with no dependencies is
// always reachable.
func (e *Engine) CheckNavigation(results map[string]domain.ValidationResult, targetStageID string) error {
	stage, ok := e.registry.Stage(targetStageID)
	if !ok {
		return &domain.NavigationRefusedError{
			StageID: targetStageID,
			Message: "unknown stage",
		}
	}
	if failing := e.firstFailingDependency(stage, results); failing != nil {
		e.logger.Debug("navigation refused",
			"stage", targetStageID,
			"dependency", failing.StageID,
		)
		return &domain.NavigationRefusedError{
			StageID:      targetStageID,
			DependencyID: failing.StageID,
			Message:      failing.Message,
		}
	}
	return nil
}

func (e *Engine) firstFailingDependency(stage domain.StageDefinition, results map[string]domain.ValidationResult) *domain.StageFailure {
	for _, dep := range stage.Dependencies {
		if result, ok := results[dep]; !ok || !result.Valid {
			return &domain.StageFailure{StageID: dep, Message: result.Message}
		}
	}
	return nil
}
