package runtime

import "github.com/scopeflow/scopeflow/pkg/domain"

// Snapshot computes the full derived view for a payload and current stage.
func (e *Engine) Snapshot(payload domain.Payload, currentStageID string) domain.Snapshot {
	if currentStageID == "" {
		currentStageID = e.registry.First().ID
	}
	results := e.Evaluate(payload)
	return domain.Snapshot{
		CurrentStage:    currentStageID,
		Results:         results,
		States:          e.Classify(results, currentStageID),
		Progress:        e.Progress(results),
		CanComplete:     e.CanComplete(results),
		FailingRequired: e.FailingRequired(results),
	}
}
