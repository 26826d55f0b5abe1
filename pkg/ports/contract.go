package ports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scopeflow/scopeflow/pkg/domain"
)

// RunSessionStoreContract is a reusable test suite that verifies an
// adapter complies with the SessionStore semantics. Every store adapter
// test should run it.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("Get_NotFound", func(t *testing.T) {
		_, err := store.Get(ctx, "contract-missing")
		if !errors.Is(err, domain.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound, got %v", err)
		}
	})

	t.Run("Put_Get_RoundTrip", func(t *testing.T) {
		session := domain.NewSession("contract-rt")
		session.Name = "Contract"
		session.OrganizationName = "Acme"
		session.Payload.MergeStage("organization", map[string]any{"size": "large"})
		session.Version = 3

		if err := store.Put(ctx, session); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		loaded, err := store.Get(ctx, "contract-rt")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if loaded.Name != "Contract" || loaded.OrganizationName != "Acme" {
			t.Errorf("metadata mismatch: %+v", loaded)
		}
		if loaded.Status != domain.StatusDraft {
			t.Errorf("expected draft status, got %s", loaded.Status)
		}
		if got := loaded.Payload.Stage("organization")["size"]; got != "large" {
			t.Errorf("payload mismatch: got %v", got)
		}
		if loaded.Version != 3 {
			t.Errorf("version mismatch: got %d", loaded.Version)
		}
	})

	t.Run("Put_Isolation", func(t *testing.T) {
		session := domain.NewSession("contract-iso")
		session.Payload.MergeStage("organization", map[string]any{"name": "before"})
		if err := store.Put(ctx, session); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		// Mutating the caller's copy after Put must not affect the store.
		session.Payload.MergeStage("organization", map[string]any{"name": "after"})

		loaded, err := store.Get(ctx, "contract-iso")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got := loaded.Payload.Stage("organization")["name"]; got != "before" {
			t.Errorf("store leaked caller mutation: got %v", got)
		}
	})

	t.Run("List_Contains", func(t *testing.T) {
		session := domain.NewSession("contract-list")
		session.CreatedAt = time.Now().UTC()
		if err := store.Put(ctx, session); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		all, err := store.List(ctx)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		found := false
		for _, s := range all {
			if s.ID == "contract-list" {
				found = true
			}
		}
		if !found {
			t.Error("List did not return stored session")
		}
	})

	t.Run("Remove", func(t *testing.T) {
		session := domain.NewSession("contract-rm")
		if err := store.Put(ctx, session); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if err := store.Remove(ctx, "contract-rm"); err != nil {
			t.Fatalf("Remove failed: %v", err)
		}
		if _, err := store.Get(ctx, "contract-rm"); !errors.Is(err, domain.ErrSessionNotFound) {
			t.Errorf("expected ErrSessionNotFound after Remove, got %v", err)
		}
		// Removing again is not an error.
		if err := store.Remove(ctx, "contract-rm"); err != nil {
			t.Errorf("second Remove failed: %v", err)
		}
	})
}
