package domain

// Snapshot bundles everything the presentation layer needs after a payload
// change: per-stage validity, per-stage classification, progress and the
// completion gate. It is derived in full from the payload it was computed
// for and is never persisted, so it cannot go stale.
type Snapshot struct {
	CurrentStage    string                      `json:"current_stage"`
	Results         map[string]ValidationResult `json:"results"`
	States          map[string]StageState       `json:"states"`
	Progress        int                         `json:"progress"`
	CanComplete     bool                        `json:"can_complete"`
	FailingRequired []StageFailure              `json:"failing_required,omitempty"`
}
