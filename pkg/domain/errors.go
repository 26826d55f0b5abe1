package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrAnalysisUnavailable signals that the analysis collaborator failed or
// timed out. It is logged and never blocks completion.
var ErrAnalysisUnavailable = errors.New("analysis unavailable")

// StageFailure identifies one failing stage and its validation message.
type StageFailure struct {
	StageID string `json:"stage_id"`
	Message string `json:"message,omitempty"`
}

// ValidationIncompleteError is returned by Complete when required stages
// are still invalid. It carries every failing required stage so the caller
// can surface them all at once.
type ValidationIncompleteError struct {
	Failing []StageFailure
}

func (e *ValidationIncompleteError) Error() string {
	ids := make([]string, len(e.Failing))
	for i, f := range e.Failing {
		ids[i] = f.StageID
	}
	return fmt.Sprintf("cannot complete session: required stages invalid: %s", strings.Join(ids, ", "))
}

// NavigationRefusedError is returned when a navigation request targets a
// locked stage. It carries the first unmet dependency and its message.
type NavigationRefusedError struct {
	StageID      string
	DependencyID string
	Message      string
}

func (e *NavigationRefusedError) Error() string {
	return fmt.Sprintf("stage %q is locked: dependency %q invalid: %s", e.StageID, e.DependencyID, e.Message)
}

// PersistenceError wraps a failed store operation. The in-memory session
// remains the source of truth; callers retry via autosave or a manual save.
type PersistenceError struct {
	Op        string
	SessionID string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s failed for session %s: %v", e.Op, e.SessionID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
