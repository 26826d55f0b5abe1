package scopeflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	scopeflow "github.com/scopeflow/scopeflow"
	"github.com/scopeflow/scopeflow/pkg/adapters/file"
	"github.com/scopeflow/scopeflow/pkg/domain"
	"github.com/scopeflow/scopeflow/pkg/registry"
	"github.com/scopeflow/scopeflow/pkg/session"
)

func TestFacade_Integration(t *testing.T) {
	// File-backed store in a temp dir, default scoping catalog.
	engine, err := scopeflow.New(
		scopeflow.WithStore(file.New(t.TempDir())),
	)
	if err != nil {
		t.Fatalf("failed to initialize engine: %v", err)
	}
	defer engine.Close()

	ctx := context.Background()

	// 1. Create a draft session.
	created, err := engine.CreateSession(ctx, session.CreateRequest{
		Name:             "Acme NAC rollout",
		OrganizationName: "Acme",
	})
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if created.Status != domain.StatusDraft {
		t.Errorf("expected draft status, got %s", created.Status)
	}

	// 2. Completing too early fails with the full list of failing stages.
	_, err = engine.Complete(ctx, created.ID, "")
	var incomplete *domain.ValidationIncompleteError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected ValidationIncompleteError, got %v", err)
	}
	if len(incomplete.Failing) == 0 {
		t.Error("expected failing stages in the error")
	}

	// 3. Navigation into a dependent stage is refused until its
	// dependencies validate.
	_, err = engine.Navigate(ctx, created.ID, registry.StageInfrastructure)
	var refused *domain.NavigationRefusedError
	if !errors.As(err, &refused) {
		t.Fatalf("expected NavigationRefusedError, got %v", err)
	}
	if refused.DependencyID != registry.StageOrganization {
		t.Errorf("expected organization as blocking dependency, got %s", refused.DependencyID)
	}

	// 4. Fill every stage.
	updates := map[string]map[string]any{
		registry.StageOrganization:   {"name": "Acme", "industry": "healthcare"},
		registry.StageInfrastructure: {"site_count": 3},
		registry.StageVendors:        {"selected": []string{"vendor-a"}},
		registry.StageUseCases:       {"selected": []string{"wired-8021x"}},
		registry.StageReview:         {"confirmed": true},
	}
	var snap domain.Snapshot
	for _, stage := range engine.Registry().Stages() {
		patch, ok := updates[stage.ID]
		if !ok {
			continue
		}
		snap, err = engine.UpdateStage(ctx, created.ID, stage.ID, patch)
		if err != nil {
			t.Fatalf("UpdateStage %s failed: %v", stage.ID, err)
		}
	}
	if snap.Progress != 100 {
		t.Errorf("expected 100%% progress, got %d%%", snap.Progress)
	}
	if !snap.CanComplete {
		t.Error("expected session to be completable")
	}

	// 5. Complete, archive, export.
	completed, err := engine.Complete(ctx, created.ID, "proj-7")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if completed.CompletedAt == nil {
		t.Error("expected CompletedAt to be stamped")
	}

	doc, err := engine.Export(ctx, created.ID)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	// 6. Import yields a fresh draft.
	imported, err := engine.Import(ctx, doc)
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if imported.ID == created.ID {
		t.Error("import must allocate a fresh identifier")
	}
	if imported.Status != domain.StatusDraft {
		t.Errorf("expected imported session to be draft, got %s", imported.Status)
	}

	// 7. Both sessions are listed, newest first.
	sessions, err := engine.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
}

func TestFacade_ReopenFromDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := scopeflow.New(scopeflow.WithStore(file.New(dir)))
	if err != nil {
		t.Fatal(err)
	}
	created, err := first.CreateSession(ctx, session.CreateRequest{Name: "persisted", OrganizationName: "Acme"})
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Save(ctx, created.ID); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	first.Close()

	// A second engine over the same directory sees the session.
	second, err := scopeflow.New(scopeflow.WithStore(file.New(dir)))
	if err != nil {
		t.Fatal(err)
	}
	defer second.Close()

	got, err := second.Session(ctx, created.ID)
	if err != nil {
		t.Fatalf("Session failed after reopen: %v", err)
	}
	if got.Name != "persisted" {
		t.Errorf("expected persisted session, got %+v", got)
	}
}

func TestFacade_AutosaveWindowOption(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	engine, err := scopeflow.New(
		scopeflow.WithStore(store),
		scopeflow.WithAutosaveWindow(20*time.Millisecond),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer engine.Close()

	ctx := context.Background()
	created, err := engine.CreateSession(ctx, session.CreateRequest{OrganizationName: "Acme"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := engine.UpdateStage(ctx, created.ID, registry.StageOrganization, map[string]any{"name": "Acme"}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for {
		status, err := engine.SaveStatus(ctx, created.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !status.Dirty {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("autosave did not persist within the deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}

	stored, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("expected session on disk: %v", err)
	}
	if stored.Version == 0 {
		t.Error("expected the edited version on disk")
	}
}
