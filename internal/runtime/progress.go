package runtime

import (
	"math"

	"github.com/scopeflow/scopeflow/pkg/domain"
)

// Progress derives the 0-100 completion figure from the validity map:
// round(100 * validCount / totalStages). Optional stages without a
// validator evaluate as valid, so they count as satisfied even when no
// data was entered; progress can therefore reach 100 while optional
// stages remain empty. CanComplete is the authoritative gate.
func (e *Engine) Progress(results map[string]domain.ValidationResult) int {
	total := e.registry.Len()
	if total == 0 {
		return 0
	}
	valid := 0
	for _, result := range results {
		if result.Valid {
			valid++
		}
	}
	return int(math.Round(100 * float64(valid) / float64(total)))
}

// CanComplete reports whether every required stage validates.
func (e *Engine) CanComplete(results map[string]domain.ValidationResult) bool {
	return len(e.FailingRequired(results)) == 0
}

// FailingRequired lists the required stages that do not validate, in
// catalog order, with their validation messages.
func (e *Engine) FailingRequired(results map[string]domain.ValidationResult) []domain.StageFailure {
	var failing []domain.StageFailure
	for _, stage := range e.registry.Stages() {
		if !stage.Required {
			continue
		}
		if result := results[stage.ID]; !result.Valid {
			failing = append(failing, domain.StageFailure{
				StageID: stage.ID,
				Message: result.Message,
			})
		}
	}
	return failing
}
