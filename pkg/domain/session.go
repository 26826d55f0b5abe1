package domain

import "time"

// Status defines the lifecycle state of a scoping session.
type Status string

const (
	StatusDraft     Status = "draft"     // Editable, in progress
	StatusCompleted Status = "completed" // All required stages validated, handed off
	StatusArchived  Status = "archived"  // Hidden from active work, kept for reference
)

// Session represents one scoping engagement: its metadata, lifecycle
// status and the payload accumulated across all stages.
type Session struct {
	// ID is assigned at creation and immutable thereafter.
	// Import allocates a fresh ID (see ExportDocument).
	ID string `json:"id"`

	Name             string `json:"name"`
	OrganizationName string `json:"organization_name"`
	Industry         string `json:"industry"`

	Status Status `json:"status"`

	// Payload is the nested document accumulating stage data.
	// Each stage owns the subtree keyed by its stage ID.
	Payload Payload `json:"payload"`

	// Version increases on every payload mutation. Persistence uses it
	// for last-writer-wins ordering; it never decreases.
	Version uint64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`

	// CompletedAt is stamped exactly once, on the draft -> completed
	// transition. Repeat completions leave it untouched.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// LinkedProjectID is a non-owning back-reference to a project
	// generated from this session, set on completion if provided.
	LinkedProjectID string `json:"linked_project_id,omitempty"`
}

// NewSession creates a draft session with an empty payload.
func NewSession(id string) *Session {
	return &Session{
		ID:        id,
		Status:    StatusDraft,
		Payload:   Payload{},
		CreatedAt: time.Now().UTC(),
	}
}

// Clone returns a deep copy. Stores and the lifecycle manager hand out
// clones so callers cannot mutate shared state through a pointer.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Payload = s.Payload.Clone()
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
