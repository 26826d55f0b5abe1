package domain

import "time"

// SessionInfo is the metadata half of an export document.
type SessionInfo struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	OrganizationName string     `json:"organizationName"`
	Industry         string     `json:"industry"`
	CreatedAt        time.Time  `json:"createdAt"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	Status           Status     `json:"status"`
}

// ExportDocument is the portable interchange format for a session. The
// payload round-trips without loss; identity and status are intentionally
// reset on import.
type ExportDocument struct {
	SessionInfo SessionInfo `json:"sessionInfo"`
	Payload     Payload     `json:"payload"`
}

// Export builds the portable document for a session.
func Export(s *Session) ExportDocument {
	doc := ExportDocument{
		SessionInfo: SessionInfo{
			ID:               s.ID,
			Name:             s.Name,
			OrganizationName: s.OrganizationName,
			Industry:         s.Industry,
			CreatedAt:        s.CreatedAt,
			Status:           s.Status,
		},
		Payload: s.Payload.Clone(),
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		doc.SessionInfo.CompletedAt = &t
	}
	return doc
}
