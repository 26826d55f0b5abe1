package ports

import (
	"context"

	"github.com/scopeflow/scopeflow/pkg/domain"
)

// SessionStore defines the interface for persisting scoping sessions.
// Any key-value or document store satisfying these four operations works;
// the engine never assumes a specific storage technology.
type SessionStore interface {
	// Put persists the session record keyed by its ID, replacing any
	// previous record.
	Put(ctx context.Context, session *domain.Session) error

	// Get retrieves a session by ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Get(ctx context.Context, sessionID string) (*domain.Session, error)

	// List returns all stored sessions, in no particular order.
	List(ctx context.Context) ([]*domain.Session, error)

	// Remove deletes the session record. Removing a missing session is
	// not an error.
	Remove(ctx context.Context, sessionID string) error
}
