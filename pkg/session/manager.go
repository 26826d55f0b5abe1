package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scopeflow/scopeflow/internal/logging"
	"github.com/scopeflow/scopeflow/internal/runtime"
	"github.com/scopeflow/scopeflow/pkg/domain"
	"github.com/scopeflow/scopeflow/pkg/ports"
	"github.com/scopeflow/scopeflow/pkg/registry"
)

// AnalysisResultKey is the payload key the analyzer response is merged
// under at completion time.
const AnalysisResultKey = "analysis_result"

// ImportedNameSuffix marks sessions reconstructed from an export document.
const ImportedNameSuffix = " (imported)"

// MeaningfulFunc decides whether a session carries enough identifying data
// for autosave to bother persisting it.
type MeaningfulFunc func(s *domain.Session) bool

// defaultMeaningful requires the designated identifying field: a non-empty
// organization name, either on the session metadata or in the organization
// stage subtree.
func defaultMeaningful(s *domain.Session) bool {
	if strings.TrimSpace(s.OrganizationName) != "" {
		return true
	}
	name, _ := s.Payload.Stage("organization")["name"].(string)
	return strings.TrimSpace(name) != ""
}

// record is the manager's in-memory bookkeeping for one session.
type record struct {
	session *domain.Session

	// persistMu serializes Put calls for this session so a save of a
	// stale payload version can never land after a newer one.
	persistMu sync.Mutex

	savedVersion uint64
	lastSavedAt  time.Time
	lastSaveErr  error

	// deleted tombstones the record once Delete has removed it from the
	// store, so a save that was already in flight cannot re-Put it.
	deleted bool

	timer *time.Timer
}

// lockEntry holds a per-session mutex and its reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates session lifecycle: create, stage updates,
// completion, archive, delete, import/export and autosave scheduling.
type Manager struct {
	store    ports.SessionStore
	engine   *runtime.Engine
	analyzer ports.Analyzer
	logger   *slog.Logger

	autosaveWindow  time.Duration
	saveTimeout     time.Duration
	analysisTimeout time.Duration
	meaningful      MeaningfulFunc

	mu      sync.Mutex
	locks   map[string]*lockEntry
	records map[string]*record
	closed  bool
}

// Option configures the Manager.
type Option func(*Manager)

// WithAnalyzer wires the analysis collaborator consumed at completion.
func WithAnalyzer(a ports.Analyzer) Option {
	return func(m *Manager) { m.analyzer = a }
}

// WithLogger configures a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithAutosaveWindow sets the trailing-edge debounce window.
func WithAutosaveWindow(window time.Duration) Option {
	return func(m *Manager) {
		if window > 0 {
			m.autosaveWindow = window
		}
	}
}

// WithSaveTimeout bounds each background persistence call.
func WithSaveTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		if timeout > 0 {
			m.saveTimeout = timeout
		}
	}
}

// WithAnalysisTimeout bounds the best-effort analysis call at completion.
func WithAnalysisTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		if timeout > 0 {
			m.analysisTimeout = timeout
		}
	}
}

// WithMeaningfulCheck replaces the autosave "meaningful data" predicate.
func WithMeaningfulCheck(fn MeaningfulFunc) Option {
	return func(m *Manager) {
		if fn != nil {
			m.meaningful = fn
		}
	}
}

// NewManager creates a lifecycle manager over a store and a stage
// catalog.
func NewManager(store ports.SessionStore, reg *registry.Registry, opts ...Option) *Manager {
	m := &Manager{
		store:           store,
		logger:          logging.NewNop(),
		autosaveWindow:  30 * time.Second,
		saveTimeout:     10 * time.Second,
		analysisTimeout: 30 * time.Second,
		meaningful:      defaultMeaningful,
		locks:           make(map[string]*lockEntry),
		records:         make(map[string]*record),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.engine = runtime.NewEngine(reg, runtime.WithLogger(m.logger))
	return m
}

// Registry returns the stage catalog the manager validates against.
func (m *Manager) Registry() *registry.Registry { return m.engine.Registry() }

// acquire gets or creates a lock entry and increments its reference count.
// The caller must Lock entry.mu and call release(sessionID) after
// unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and drops the entry at zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// withLock executes fn while holding the per-session lock.
func (m *Manager) withLock(sessionID string, fn func() error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()
	return fn()
}

// CreateRequest seeds a new session.
type CreateRequest struct {
	Name             string
	OrganizationName string
	Industry         string
	Payload          domain.Payload
}

// Create allocates a new draft session. Creation always succeeds: the
// initial persistence call is best-effort and any failure is recorded as
// save status, to be retried by the next autosave.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*domain.Session, error) {
	s := domain.NewSession(uuid.NewString())
	s.Name = req.Name
	s.OrganizationName = req.OrganizationName
	s.Industry = req.Industry
	if req.Payload != nil {
		s.Payload = req.Payload.Clone()
	}

	rec := &record{session: s}
	m.mu.Lock()
	m.records[s.ID] = rec
	m.mu.Unlock()

	m.persist(ctx, rec, s.Clone())

	m.logger.Info("session created", "session_id", s.ID, "name", s.Name)
	return s.Clone(), nil
}

// lookup returns the record for a session, loading it from the store on
// first access. Callers must hold the per-session lock.
func (m *Manager) lookup(ctx context.Context, sessionID string) (*record, error) {
	m.mu.Lock()
	rec, ok := m.records[sessionID]
	m.mu.Unlock()
	if ok {
		return rec, nil
	}

	stored, err := m.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, &domain.PersistenceError{Op: "get", SessionID: sessionID, Err: err}
	}

	rec = &record{session: stored, savedVersion: stored.Version}
	m.mu.Lock()
	// Another caller may have raced the load; keep the existing record.
	if existing, ok := m.records[sessionID]; ok {
		rec = existing
	} else {
		m.records[sessionID] = rec
	}
	m.mu.Unlock()
	return rec, nil
}

// Get returns a copy of the session.
func (m *Manager) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	var out *domain.Session
	err := m.withLock(sessionID, func() error {
		rec, err := m.lookup(ctx, sessionID)
		if err != nil {
			return err
		}
		out = rec.session.Clone()
		return nil
	})
	return out, err
}

// List returns all sessions, newest first. In-memory records overlay
// stored ones so unsaved edits are reflected.
func (m *Manager) List(ctx context.Context) ([]*domain.Session, error) {
	stored, err := m.store.List(ctx)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "list", SessionID: "", Err: err}
	}

	byID := make(map[string]*domain.Session, len(stored))
	for _, s := range stored {
		byID[s.ID] = s
	}

	m.mu.Lock()
	for id, rec := range m.records {
		byID[id] = rec.session.Clone()
	}
	m.mu.Unlock()

	out := make([]*domain.Session, 0, len(byID))
	for _, s := range byID {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateStage merges patch into the subtree owned by stageID, bumps the
// payload version, re-evaluates the workflow and schedules an autosave.
// The returned snapshot treats the edited stage as current.
func (m *Manager) UpdateStage(ctx context.Context, sessionID, stageID string, patch map[string]any) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := m.withLock(sessionID, func() error {
		if _, ok := m.engine.Registry().Stage(stageID); !ok {
			return fmt.Errorf("unknown stage %q", stageID)
		}
		rec, err := m.lookup(ctx, sessionID)
		if err != nil {
			return err
		}

		rec.session.Payload.MergeStage(stageID, patch)
		rec.session.Version++
		m.mirrorOrganization(rec.session, stageID)

		snap = m.engine.Snapshot(rec.session.Payload, stageID)
		m.scheduleAutosave(rec)
		return nil
	})
	return snap, err
}

// mirrorOrganization copies the identifying fields of the organization
// stage onto the session metadata, so listings and the autosave
// meaningful-data gate see them without digging into the payload.
func (m *Manager) mirrorOrganization(s *domain.Session, stageID string) {
	if stageID != "organization" {
		return
	}
	sub := s.Payload.Stage(stageID)
	if name, _ := sub["name"].(string); strings.TrimSpace(name) != "" {
		s.OrganizationName = name
	}
	if industry, _ := sub["industry"].(string); strings.TrimSpace(industry) != "" {
		s.Industry = industry
	}
}

// SetMetadata updates the descriptive metadata of a session.
func (m *Manager) SetMetadata(ctx context.Context, sessionID, name, organizationName, industry string) error {
	return m.withLock(sessionID, func() error {
		rec, err := m.lookup(ctx, sessionID)
		if err != nil {
			return err
		}
		if name != "" {
			rec.session.Name = name
		}
		if organizationName != "" {
			rec.session.OrganizationName = organizationName
		}
		if industry != "" {
			rec.session.Industry = industry
		}
		rec.session.Version++
		m.scheduleAutosave(rec)
		return nil
	})
}

// Navigate checks whether the session may enter the target stage. It is a
// pure gate over the latest in-memory payload; on refusal the error
// carries the first failing dependency.
func (m *Manager) Navigate(ctx context.Context, sessionID, targetStageID string) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := m.withLock(sessionID, func() error {
		rec, err := m.lookup(ctx, sessionID)
		if err != nil {
			return err
		}
		results := m.engine.Evaluate(rec.session.Payload)
		if err := m.engine.CheckNavigation(results, targetStageID); err != nil {
			return err
		}
		snap = m.engine.Snapshot(rec.session.Payload, targetStageID)
		return nil
	})
	return snap, err
}

// Snapshot computes the derived workflow view for a session.
func (m *Manager) Snapshot(ctx context.Context, sessionID, currentStageID string) (domain.Snapshot, error) {
	var snap domain.Snapshot
	err := m.withLock(sessionID, func() error {
		rec, err := m.lookup(ctx, sessionID)
		if err != nil {
			return err
		}
		snap = m.engine.Snapshot(rec.session.Payload, currentStageID)
		return nil
	})
	return snap, err
}

// Complete transitions a draft session to completed. It fails with
// ValidationIncompleteError while required stages are invalid. Analysis is
// best-effort: a failing analyzer logs and completion proceeds without
// enrichment. Repeat calls on a completed session are idempotent and do
// not restamp CompletedAt.
func (m *Manager) Complete(ctx context.Context, sessionID, linkedProjectID string) (*domain.Session, error) {
	var out *domain.Session
	err := m.withLock(sessionID, func() error {
		rec, err := m.lookup(ctx, sessionID)
		if err != nil {
			return err
		}

		if rec.session.Status == domain.StatusCompleted {
			out = rec.session.Clone()
			return nil
		}

		results := m.engine.Evaluate(rec.session.Payload)
		if failing := m.engine.FailingRequired(results); len(failing) > 0 {
			return &domain.ValidationIncompleteError{Failing: failing}
		}

		if m.analyzer != nil {
			m.enrich(ctx, rec)
		}

		now := time.Now().UTC()
		rec.session.Status = domain.StatusCompleted
		rec.session.CompletedAt = &now
		if linkedProjectID != "" {
			rec.session.LinkedProjectID = linkedProjectID
		}
		rec.session.Version++

		m.cancelAutosave(rec)
		m.persist(ctx, rec, rec.session.Clone())

		m.logger.Info("session completed", "session_id", sessionID, "linked_project_id", linkedProjectID)
		out = rec.session.Clone()
		return nil
	})
	return out, err
}

// enrich calls the analysis collaborator and merges its response into the
// payload. Failure is non-fatal.
func (m *Manager) enrich(ctx context.Context, rec *record) {
	actx, cancel := context.WithTimeout(ctx, m.analysisTimeout)
	defer cancel()

	result, err := m.analyzer.Analyze(actx, rec.session.Payload.Clone())
	if err != nil {
		m.logger.Warn("analysis unavailable, completing without enrichment",
			"session_id", rec.session.ID,
			"err", errors.Join(domain.ErrAnalysisUnavailable, err),
		)
		return
	}
	if len(result) > 0 {
		rec.session.Payload.MergeStage(AnalysisResultKey, result)
	}
}

// Archive sets the session status to archived, from any prior status. The
// transition is applied per-id: if the store rejects the write the
// in-memory status is restored and the id reports as not transitioned.
func (m *Manager) Archive(ctx context.Context, sessionID string) error {
	return m.withLock(sessionID, func() error {
		rec, err := m.lookup(ctx, sessionID)
		if err != nil {
			return err
		}
		prevStatus, prevVersion := rec.session.Status, rec.session.Version
		if prevStatus == domain.StatusArchived {
			return nil
		}
		rec.session.Status = domain.StatusArchived
		rec.session.Version++
		m.cancelAutosave(rec)

		if err := m.persist(ctx, rec, rec.session.Clone()); err != nil {
			rec.session.Status = prevStatus
			rec.session.Version = prevVersion
			return err
		}
		return nil
	})
}

// Delete removes the session record and its in-memory bookkeeping.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.withLock(sessionID, func() error {
		rec, err := m.lookup(ctx, sessionID)
		if err != nil {
			return err
		}
		m.cancelAutosave(rec)

		if err := m.store.Remove(ctx, sessionID); err != nil {
			return &domain.PersistenceError{Op: "remove", SessionID: sessionID, Err: err}
		}

		// Tombstone before dropping the record: a timer callback that
		// already fired and is waiting on the session lock still holds a
		// pointer to rec, and its save must not resurrect the session.
		rec.persistMu.Lock()
		rec.deleted = true
		rec.persistMu.Unlock()

		m.mu.Lock()
		delete(m.records, sessionID)
		m.mu.Unlock()

		m.logger.Info("session deleted", "session_id", sessionID)
		return nil
	})
}

// BulkFailure reports one failed id of a bulk operation.
type BulkFailure struct {
	ID  string
	Err error
}

// BulkResult reports exactly which ids succeeded and which failed. Bulk
// operations are not atomic: each id is fully transitioned or not at all.
type BulkResult struct {
	Succeeded []string
	Failed    []BulkFailure
}

// Err returns an aggregate error, or nil if every id succeeded.
func (r BulkResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", f.ID, f.Err))
	}
	return errors.Join(errs...)
}

// BulkArchive archives each id independently.
func (m *Manager) BulkArchive(ctx context.Context, sessionIDs []string) BulkResult {
	return m.bulk(sessionIDs, func(id string) error { return m.Archive(ctx, id) })
}

// BulkDelete deletes each id independently.
func (m *Manager) BulkDelete(ctx context.Context, sessionIDs []string) BulkResult {
	return m.bulk(sessionIDs, func(id string) error { return m.Delete(ctx, id) })
}

func (m *Manager) bulk(ids []string, op func(id string) error) BulkResult {
	var result BulkResult
	for _, id := range ids {
		if err := op(id); err != nil {
			result.Failed = append(result.Failed, BulkFailure{ID: id, Err: err})
			continue
		}
		result.Succeeded = append(result.Succeeded, id)
	}
	return result
}

// Export produces the portable document for a session.
func (m *Manager) Export(ctx context.Context, sessionID string) (domain.ExportDocument, error) {
	var doc domain.ExportDocument
	err := m.withLock(sessionID, func() error {
		rec, err := m.lookup(ctx, sessionID)
		if err != nil {
			return err
		}
		doc = domain.Export(rec.session)
		return nil
	})
	return doc, err
}

// Import reconstructs a session from an export document. The new session
// always gets a fresh identifier and draft status regardless of the
// source; the payload is copied verbatim and the name gains a provenance
// marker.
func (m *Manager) Import(ctx context.Context, doc domain.ExportDocument) (*domain.Session, error) {
	s := domain.NewSession(uuid.NewString())
	s.Name = doc.SessionInfo.Name + ImportedNameSuffix
	s.OrganizationName = doc.SessionInfo.OrganizationName
	s.Industry = doc.SessionInfo.Industry
	if doc.Payload != nil {
		s.Payload = doc.Payload.Clone()
	}

	rec := &record{session: s}
	m.mu.Lock()
	m.records[s.ID] = rec
	m.mu.Unlock()

	m.persist(ctx, rec, s.Clone())

	m.logger.Info("session imported", "session_id", s.ID, "source_id", doc.SessionInfo.ID)
	return s.Clone(), nil
}

// Close stops all pending autosave timers. In-flight persistence calls
// are not cancelled; they complete or fail on their own.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	recs := make(map[string]*record, len(m.records))
	for id, rec := range m.records {
		recs[id] = rec
	}
	m.mu.Unlock()

	// rec.timer is guarded by the per-session lock, so each stop takes
	// it. A scheduleAutosave that read closed=false before the flag was
	// set holds that same lock while arming its timer; this stop runs
	// after it releases, so no timer survives Close.
	for id, rec := range recs {
		_ = m.withLock(id, func() error {
			if rec.timer != nil {
				rec.timer.Stop()
				rec.timer = nil
			}
			return nil
		})
	}
}
