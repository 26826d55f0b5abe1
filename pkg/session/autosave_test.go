package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopeflow/scopeflow/pkg/adapters/memory"
	"github.com/scopeflow/scopeflow/pkg/domain"
	"github.com/scopeflow/scopeflow/pkg/ports"
)

func TestAutosave_DebouncesBurstToOneSave(t *testing.T) {
	m, store := newTestManager(t, WithAutosaveWindow(50*time.Millisecond))
	ctx := context.Background()

	s, err := m.Create(ctx, CreateRequest{OrganizationName: "Acme"})
	require.NoError(t, err)
	base := store.puts() // creation save

	// Two edits inside one window: the second restarts the timer, so only
	// the final payload is persisted, once.
	_, err = m.UpdateStage(ctx, s.ID, "organization", map[string]any{"name": "Acme"})
	require.NoError(t, err)
	time.Sleep(25 * time.Millisecond)
	_, err = m.UpdateStage(ctx, s.ID, "details", map[string]any{"notes": "wired only"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return store.puts() == base+1
	}, time.Second, 10*time.Millisecond, "expected exactly one autosave for the burst")

	assert.Equal(t, uint64(2), store.lastVersion(), "autosave must persist the latest payload version")

	// Nothing else fires once the session is clean.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, base+1, store.puts())

	status, err := m.SaveStatus(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, status.Dirty)
	assert.False(t, status.LastSavedAt.IsZero())
}

func TestAutosave_SkipsWithoutMeaningfulData(t *testing.T) {
	m, store := newTestManager(t, WithAutosaveWindow(20*time.Millisecond))
	ctx := context.Background()

	// No organization name anywhere: the session is not worth saving yet.
	s, err := m.Create(ctx, CreateRequest{Name: "unnamed"})
	require.NoError(t, err)
	base := store.puts()

	_, err = m.UpdateStage(ctx, s.ID, "details", map[string]any{"notes": "early scribble"})
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, base, store.puts(), "autosave must not persist a session without identifying data")

	status, err := m.SaveStatus(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, status.Dirty, "skipped changes stay pending")

	// Once the organization gets a name, the next window persists.
	_, err = m.UpdateStage(ctx, s.ID, "organization", map[string]any{"name": "Acme"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return store.puts() == base+1
	}, time.Second, 10*time.Millisecond)
}

func TestSave_BypassesDebounceWindow(t *testing.T) {
	// An hour-long window: nothing would fire on its own.
	m, store := newTestManager(t, WithAutosaveWindow(time.Hour))
	ctx := context.Background()

	s, err := m.Create(ctx, CreateRequest{OrganizationName: "Acme"})
	require.NoError(t, err)
	base := store.puts()

	_, err = m.UpdateStage(ctx, s.ID, "organization", map[string]any{"name": "Acme"})
	require.NoError(t, err)

	require.NoError(t, m.Save(ctx, s.ID))
	assert.Equal(t, base+1, store.puts())

	status, err := m.SaveStatus(ctx, s.ID)
	require.NoError(t, err)
	assert.False(t, status.Dirty)
}

func TestPersist_SkipsStaleVersion(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()

	s, err := m.Create(ctx, CreateRequest{OrganizationName: "Acme"})
	require.NoError(t, err)

	m.mu.Lock()
	rec := m.records[s.ID]
	m.mu.Unlock()

	stale := rec.session.Clone() // version 0

	_, err = m.UpdateStage(ctx, s.ID, "organization", map[string]any{"name": "Acme"})
	require.NoError(t, err)
	require.NoError(t, m.Save(ctx, s.ID)) // version 1 saved

	// A save of the older snapshot finishing late must not clobber the
	// newer one: last writer wins by payload version, not wall clock.
	require.NoError(t, m.persist(ctx, rec, stale))

	stored, err := store.SessionStore.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stored.Version)
	assert.Equal(t, "Acme", stored.Payload.Stage("organization")["name"])
}

func TestClose_StopsPendingAutosaves(t *testing.T) {
	m, store := newTestManager(t, WithAutosaveWindow(30*time.Millisecond))
	ctx := context.Background()

	s, err := m.Create(ctx, CreateRequest{OrganizationName: "Acme"})
	require.NoError(t, err)
	base := store.puts()

	_, err = m.UpdateStage(ctx, s.ID, "organization", map[string]any{"name": "Acme"})
	require.NoError(t, err)

	m.Close()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, base, store.puts(), "no autosave may fire after Close")
}

func TestAutosave_CustomMeaningfulCheck(t *testing.T) {
	// A predicate that always passes makes autosave persist sessions the
	// default gate would skip.
	m, store := newTestManager(t,
		WithAutosaveWindow(20*time.Millisecond),
		WithMeaningfulCheck(func(*domain.Session) bool { return true }),
	)
	ctx := context.Background()

	s, err := m.Create(ctx, CreateRequest{Name: "anonymous"})
	require.NoError(t, err)
	base := store.puts()

	_, err = m.UpdateStage(ctx, s.ID, "details", map[string]any{"notes": "scribble"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return store.puts() == base+1
	}, time.Second, 10*time.Millisecond)
}

// stallingStore passes writes through until stalled, then blocks each Put
// until its context expires.
type stallingStore struct {
	ports.SessionStore

	mu      sync.Mutex
	stalled bool
}

func (s *stallingStore) Put(ctx context.Context, sess *domain.Session) error {
	s.mu.Lock()
	stalled := s.stalled
	s.mu.Unlock()
	if stalled {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.SessionStore.Put(ctx, sess)
}

func (s *stallingStore) stall() {
	s.mu.Lock()
	s.stalled = true
	s.mu.Unlock()
}

func TestAutosave_SaveTimeoutBoundsStalledStore(t *testing.T) {
	store := &stallingStore{SessionStore: memory.NewStore()}
	m := NewManager(store, testRegistry(t),
		WithAutosaveWindow(10*time.Millisecond),
		WithSaveTimeout(20*time.Millisecond),
	)
	t.Cleanup(m.Close)
	ctx := context.Background()

	s, err := m.Create(ctx, CreateRequest{OrganizationName: "Acme"})
	require.NoError(t, err)

	store.stall()
	_, err = m.UpdateStage(ctx, s.ID, "organization", map[string]any{"name": "Acme"})
	require.NoError(t, err)

	// The stalled Put is cut off by the save timeout and reported as the
	// last save error rather than hanging the scheduler.
	require.Eventually(t, func() bool {
		status, err := m.SaveStatus(ctx, s.ID)
		return err == nil && status.LastSaveError != ""
	}, time.Second, 10*time.Millisecond)

	status, err := m.SaveStatus(ctx, s.ID)
	require.NoError(t, err)
	assert.Contains(t, status.LastSaveError, "deadline")
	assert.True(t, status.Dirty)
}

func TestUpdateAfterClose_DoesNotSchedule(t *testing.T) {
	m, store := newTestManager(t, WithAutosaveWindow(20*time.Millisecond))
	ctx := context.Background()

	s, err := m.Create(ctx, CreateRequest{OrganizationName: "Acme"})
	require.NoError(t, err)
	base := store.puts()

	m.Close()

	_, err = m.UpdateStage(ctx, s.ID, "organization", map[string]any{"name": "Acme"})
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, base, store.puts(), "no autosave may be scheduled after Close")
}

func TestAutosave_RetriesAfterStoreRecovers(t *testing.T) {
	m, store := newTestManager(t, WithAutosaveWindow(20*time.Millisecond))
	ctx := context.Background()

	s, err := m.Create(ctx, CreateRequest{OrganizationName: "Acme"})
	require.NoError(t, err)
	base := store.puts()

	store.setFailPuts(true)
	_, err = m.UpdateStage(ctx, s.ID, "organization", map[string]any{"name": "Acme"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		status, err := m.SaveStatus(ctx, s.ID)
		return err == nil && status.LastSaveError != ""
	}, time.Second, 10*time.Millisecond, "failed autosave must surface in save status")

	// The store comes back; the next edit's autosave carries everything.
	store.setFailPuts(false)
	_, err = m.UpdateStage(ctx, s.ID, "details", map[string]any{"notes": "retry"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return store.puts() == base+1
	}, time.Second, 10*time.Millisecond)

	status, err := m.SaveStatus(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, status.LastSaveError)
	assert.False(t, status.Dirty)
}
