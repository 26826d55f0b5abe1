package session

import (
	"context"
	"time"

	"github.com/scopeflow/scopeflow/pkg/domain"
)

// Lock discipline: the per-session lock (withLock) guards rec.session and
// rec.timer — every timer access, Close included, takes it. rec.persistMu
// guards savedVersion/lastSavedAt/lastSaveErr/deleted and serializes store
// Puts. When both are needed the session lock is taken first, so persist
// may be called with or without the session lock held.

// scheduleAutosave (re)starts the trailing-edge debounce timer for a
// record. A mutation arriving mid-window cancels the previous timer and
// restarts the window, so a burst of edits yields exactly one persistence
// call for the last payload. Callers must hold the per-session lock.
func (m *Manager) scheduleAutosave(rec *record) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return
	}

	if rec.timer != nil {
		rec.timer.Stop()
	}
	rec.timer = time.AfterFunc(m.autosaveWindow, func() {
		m.autosaveFire(rec)
	})
}

// cancelAutosave stops the pending timer, if any. Callers must hold the
// per-session lock.
func (m *Manager) cancelAutosave(rec *record) {
	if rec.timer != nil {
		rec.timer.Stop()
		rec.timer = nil
	}
}

// autosaveFire runs when the debounce window elapses without a newer
// mutation. It snapshots the latest session under the lock, then persists
// outside it so editing and validation are never blocked by a slow store.
func (m *Manager) autosaveFire(rec *record) {
	var snapshot *domain.Session

	_ = m.withLock(rec.session.ID, func() error {
		rec.timer = nil
		if !m.dirty(rec) {
			return nil
		}
		if !m.meaningful(rec.session) {
			m.logger.Debug("autosave skipped: no meaningful data", "session_id", rec.session.ID)
			return nil
		}
		snapshot = rec.session.Clone()
		return nil
	})

	if snapshot == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.saveTimeout)
	defer cancel()
	_ = m.persist(ctx, rec, snapshot)
}

// dirty reports whether the session has changes newer than the last
// successful save.
func (m *Manager) dirty(rec *record) bool {
	rec.persistMu.Lock()
	defer rec.persistMu.Unlock()
	return rec.session.Version > rec.savedVersion
}

// Save persists a session immediately, bypassing the debounce window and
// resetting it. It is the manual "save now" path.
func (m *Manager) Save(ctx context.Context, sessionID string) error {
	var (
		rec      *record
		snapshot *domain.Session
	)
	err := m.withLock(sessionID, func() error {
		var err error
		rec, err = m.lookup(ctx, sessionID)
		if err != nil {
			return err
		}
		m.cancelAutosave(rec)
		snapshot = rec.session.Clone()
		return nil
	})
	if err != nil {
		return err
	}
	return m.persist(ctx, rec, snapshot)
}

// persist writes a session snapshot through the store. Puts are serialized
// per session and a snapshot older than the last successful save is
// skipped, so the result of a stale payload version can never overwrite a
// newer one: last writer wins by logical version, not completion order.
func (m *Manager) persist(ctx context.Context, rec *record, snapshot *domain.Session) error {
	rec.persistMu.Lock()
	defer rec.persistMu.Unlock()

	if rec.deleted {
		m.logger.Debug("skipping save of deleted session", "session_id", snapshot.ID)
		return nil
	}
	if snapshot.Version < rec.savedVersion {
		m.logger.Debug("skipping stale save", "session_id", snapshot.ID, "version", snapshot.Version)
		return nil
	}

	if err := m.store.Put(ctx, snapshot); err != nil {
		rec.lastSaveErr = err
		m.logger.Warn("persistence failed, in-memory state retained",
			"session_id", snapshot.ID,
			"err", err,
		)
		return &domain.PersistenceError{Op: "put", SessionID: snapshot.ID, Err: err}
	}

	if snapshot.Version >= rec.savedVersion {
		rec.savedVersion = snapshot.Version
		rec.lastSavedAt = time.Now().UTC()
		rec.lastSaveErr = nil
	}
	return nil
}

// SaveStatus reports the asynchronous persistence state of a session:
// when it last saved successfully, the last failure if any, and whether
// unsaved changes are pending.
type SaveStatus struct {
	LastSavedAt   time.Time `json:"last_saved_at,omitzero"`
	LastSaveError string    `json:"last_save_error,omitempty"`
	Dirty         bool      `json:"dirty"`
}

// SaveStatus returns the save status for a session.
func (m *Manager) SaveStatus(ctx context.Context, sessionID string) (SaveStatus, error) {
	var status SaveStatus
	err := m.withLock(sessionID, func() error {
		rec, err := m.lookup(ctx, sessionID)
		if err != nil {
			return err
		}
		rec.persistMu.Lock()
		defer rec.persistMu.Unlock()
		status.LastSavedAt = rec.lastSavedAt
		status.Dirty = rec.session.Version > rec.savedVersion
		if rec.lastSaveErr != nil {
			status.LastSaveError = rec.lastSaveErr.Error()
		}
		return nil
	})
	return status, err
}
