package scopeflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/scopeflow/scopeflow/internal/logging"
	"github.com/scopeflow/scopeflow/pkg/adapters/memory"
	"github.com/scopeflow/scopeflow/pkg/domain"
	"github.com/scopeflow/scopeflow/pkg/ports"
	"github.com/scopeflow/scopeflow/pkg/registry"
	"github.com/scopeflow/scopeflow/pkg/session"
)

// Engine is the high-level entry point for the scopeflow library. It wraps
// the session lifecycle manager and provides a simplified API for
// consumers.
type Engine struct {
	manager  *session.Manager
	registry *registry.Registry

	store           ports.SessionStore
	analyzer        ports.Analyzer
	logger          *slog.Logger
	autosaveWindow  time.Duration
	saveTimeout     time.Duration
	analysisTimeout time.Duration
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithStore injects the persistence collaborator. Defaults to an
// in-memory store. Store selection is always explicit: there is no hidden
// fallback between local and remote persistence.
func WithStore(store ports.SessionStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithRegistry replaces the default scoping catalog.
func WithRegistry(reg *registry.Registry) Option {
	return func(e *Engine) { e.registry = reg }
}

// WithAnalyzer wires the analysis collaborator consumed at completion.
func WithAnalyzer(a ports.Analyzer) Option {
	return func(e *Engine) { e.analyzer = a }
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithAutosaveWindow sets the autosave debounce window.
func WithAutosaveWindow(window time.Duration) Option {
	return func(e *Engine) { e.autosaveWindow = window }
}

// WithSaveTimeout bounds each background persistence call.
func WithSaveTimeout(timeout time.Duration) Option {
	return func(e *Engine) { e.saveTimeout = timeout }
}

// WithAnalysisTimeout bounds the best-effort analysis call at completion.
func WithAnalysisTimeout(timeout time.Duration) Option {
	return func(e *Engine) { e.analysisTimeout = timeout }
}

// New initializes a scopeflow Engine. Without options it runs the default
// scoping catalog over an in-memory store.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	if eng.store == nil {
		eng.store = memory.NewStore()
	}
	if eng.registry == nil {
		reg, err := registry.DefaultCatalog()
		if err != nil {
			return nil, err
		}
		eng.registry = reg
	}

	managerOpts := []session.Option{
		session.WithLogger(eng.logger),
	}
	if eng.analyzer != nil {
		managerOpts = append(managerOpts, session.WithAnalyzer(eng.analyzer))
	}
	if eng.autosaveWindow > 0 {
		managerOpts = append(managerOpts, session.WithAutosaveWindow(eng.autosaveWindow))
	}
	if eng.saveTimeout > 0 {
		managerOpts = append(managerOpts, session.WithSaveTimeout(eng.saveTimeout))
	}
	if eng.analysisTimeout > 0 {
		managerOpts = append(managerOpts, session.WithAnalysisTimeout(eng.analysisTimeout))
	}

	eng.manager = session.NewManager(eng.store, eng.registry, managerOpts...)
	return eng, nil
}

// Registry returns the stage catalog.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Manager returns the underlying session lifecycle manager, for adapters
// that need its full surface.
func (e *Engine) Manager() *session.Manager { return e.manager }

// CreateSession allocates a new draft session.
func (e *Engine) CreateSession(ctx context.Context, req session.CreateRequest) (*domain.Session, error) {
	return e.manager.Create(ctx, req)
}

// Session retrieves a session by ID.
func (e *Engine) Session(ctx context.Context, sessionID string) (*domain.Session, error) {
	return e.manager.Get(ctx, sessionID)
}

// Sessions lists all sessions, newest first.
func (e *Engine) Sessions(ctx context.Context) ([]*domain.Session, error) {
	return e.manager.List(ctx)
}

// UpdateStage merges patch into the stage's payload subtree and returns
// the recomputed workflow snapshot.
func (e *Engine) UpdateStage(ctx context.Context, sessionID, stageID string, patch map[string]any) (domain.Snapshot, error) {
	return e.manager.UpdateStage(ctx, sessionID, stageID, patch)
}

// SetMetadata updates a session's descriptive metadata. Empty fields are
// left unchanged.
func (e *Engine) SetMetadata(ctx context.Context, sessionID, name, organizationName, industry string) error {
	return e.manager.SetMetadata(ctx, sessionID, name, organizationName, industry)
}

// Navigate checks whether the session may enter the target stage.
func (e *Engine) Navigate(ctx context.Context, sessionID, targetStageID string) (domain.Snapshot, error) {
	return e.manager.Navigate(ctx, sessionID, targetStageID)
}

// Snapshot computes the derived workflow view for a session.
func (e *Engine) Snapshot(ctx context.Context, sessionID, currentStageID string) (domain.Snapshot, error) {
	return e.manager.Snapshot(ctx, sessionID, currentStageID)
}

// Complete transitions a session to completed, enriching the payload via
// the analysis collaborator when one is configured.
func (e *Engine) Complete(ctx context.Context, sessionID, linkedProjectID string) (*domain.Session, error) {
	return e.manager.Complete(ctx, sessionID, linkedProjectID)
}

// Archive sets a session's status to archived.
func (e *Engine) Archive(ctx context.Context, sessionID string) error {
	return e.manager.Archive(ctx, sessionID)
}

// Delete removes a session.
func (e *Engine) Delete(ctx context.Context, sessionID string) error {
	return e.manager.Delete(ctx, sessionID)
}

// BulkArchive archives each id independently and reports per-id outcomes.
func (e *Engine) BulkArchive(ctx context.Context, sessionIDs []string) session.BulkResult {
	return e.manager.BulkArchive(ctx, sessionIDs)
}

// BulkDelete deletes each id independently and reports per-id outcomes.
func (e *Engine) BulkDelete(ctx context.Context, sessionIDs []string) session.BulkResult {
	return e.manager.BulkDelete(ctx, sessionIDs)
}

// Export produces the portable interchange document for a session.
func (e *Engine) Export(ctx context.Context, sessionID string) (domain.ExportDocument, error) {
	return e.manager.Export(ctx, sessionID)
}

// Import reconstructs a session from an export document under a fresh
// identifier.
func (e *Engine) Import(ctx context.Context, doc domain.ExportDocument) (*domain.Session, error) {
	return e.manager.Import(ctx, doc)
}

// Save persists a session immediately, bypassing the autosave window.
func (e *Engine) Save(ctx context.Context, sessionID string) error {
	return e.manager.Save(ctx, sessionID)
}

// SaveStatus reports the asynchronous persistence state of a session.
func (e *Engine) SaveStatus(ctx context.Context, sessionID string) (session.SaveStatus, error) {
	return e.manager.SaveStatus(ctx, sessionID)
}

// Close stops scheduling autosave timers. In-flight persistence calls are
// left to finish.
func (e *Engine) Close() {
	e.manager.Close()
}
