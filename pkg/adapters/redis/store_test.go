package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scopeflow/scopeflow/pkg/domain"
	"github.com/scopeflow/scopeflow/pkg/ports"
)

func newTestStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := NewFromClient(client, opts...)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestStore_Contract(t *testing.T) {
	store, _ := newTestStore(t)
	ports.RunSessionStoreContract(t, store)
}

func TestStore_KeyPrefix(t *testing.T) {
	store, mr := newTestStore(t, WithPrefix("custom:"))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, domain.NewSession("s-1")))

	assert.True(t, mr.Exists("custom:s-1"))
	assert.True(t, mr.Exists("custom:index"))
}

func TestStore_TTLExpiryPrunesIndex(t *testing.T) {
	store, mr := newTestStore(t, WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, domain.NewSession("expiring")))

	// Advance past the TTL so the record is gone but the index entry stays.
	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "expiring")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	sessions, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	// The stale index entry was removed lazily by List.
	members, err := mr.ZMembers("scopeflow:session:index")
	if err == nil {
		assert.NotContains(t, members, "expiring")
	}
}

func TestStore_ListOrderedByCreation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	older := domain.NewSession("older")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := domain.NewSession("newer")

	require.NoError(t, store.Put(ctx, newer))
	require.NoError(t, store.Put(ctx, older))

	sessions, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "older", sessions[0].ID)
	assert.Equal(t, "newer", sessions[1].ID)
}
