package domain

// StageDefinition describes one step of the scoping workflow. Definitions
// are pure data: validation logic is resolved through the registry, not
// attached to the definition itself.
type StageDefinition struct {
	ID          string `json:"id" yaml:"id"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Required stages must all validate before a session may complete.
	Required bool `json:"required" yaml:"required"`

	// Dependencies lists stage IDs that must be valid before this stage
	// may be entered. They must reference stages earlier in catalog order.
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// ValidationResult is the outcome of running a stage validator against a
// payload.
type ValidationResult struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

// Valid is the result of a validator with nothing to report.
var ValidResult = ValidationResult{Valid: true}

// Invalid builds a failing result with a human-readable reason.
func Invalid(message string) ValidationResult {
	return ValidationResult{Valid: false, Message: message}
}

// StageState classifies a stage relative to the current session.
type StageState string

const (
	// StageCurrent is the stage the user is presently on.
	StageCurrent StageState = "current"
	// StageCompleted is earlier in catalog order than current and valid.
	StageCompleted StageState = "completed"
	// StageAvailable has all declared dependencies valid.
	StageAvailable StageState = "available"
	// StageLocked has at least one invalid dependency.
	StageLocked StageState = "locked"
)
