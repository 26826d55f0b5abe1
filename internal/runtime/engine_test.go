package runtime

import (
	"errors"
	"testing"

	"github.com/scopeflow/scopeflow/pkg/domain"
	"github.com/scopeflow/scopeflow/pkg/registry"
)

// twoStageEngine builds the minimal catalog used throughout: stage "a"
// requires a non-empty "value" field, stage "b" depends on "a".
func twoStageEngine(t *testing.T) *Engine {
	t.Helper()
	stages := []domain.StageDefinition{
		{ID: "a", Required: true},
		{ID: "b", Required: true, Dependencies: []string{"a"}},
	}
	validators := map[string]registry.Validator{
		"a": requireValue("a"),
		"b": requireValue("b"),
	}
	reg, err := registry.New(stages, validators)
	if err != nil {
		t.Fatalf("registry.New failed: %v", err)
	}
	return NewEngine(reg)
}

func requireValue(stageID string) registry.Validator {
	return func(payload domain.Payload) domain.ValidationResult {
		sub := payload.Stage(stageID)
		if sub == nil {
			return domain.Invalid(stageID + " has no data")
		}
		if v, _ := sub["value"].(string); v == "" {
			return domain.Invalid(stageID + " value is required")
		}
		return domain.ValidResult
	}
}

func TestEvaluate_EveryStageGetsResult(t *testing.T) {
	e := twoStageEngine(t)
	results := e.Evaluate(domain.Payload{})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for id, result := range results {
		if result.Valid {
			t.Errorf("stage %s should be invalid on empty payload", id)
		}
		if result.Message == "" {
			t.Errorf("stage %s invalid result has no message", id)
		}
	}
}

func TestEvaluate_NoValidatorMeansValid(t *testing.T) {
	reg, err := registry.New([]domain.StageDefinition{{ID: "free"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	results := NewEngine(reg).Evaluate(domain.Payload{})
	if !results["free"].Valid {
		t.Error("stage without validator must evaluate as valid")
	}
}

func TestClassify(t *testing.T) {
	e := twoStageEngine(t)

	tests := []struct {
		name    string
		payload domain.Payload
		current string
		want    map[string]domain.StageState
	}{
		{
			name:    "fresh session locks dependent stage",
			payload: domain.Payload{},
			current: "a",
			want: map[string]domain.StageState{
				"a": domain.StageCurrent,
				"b": domain.StageLocked,
			},
		},
		{
			name: "dependency satisfied unlocks b",
			payload: domain.Payload{
				"a": map[string]any{"value": "filled"},
			},
			current: "a",
			want: map[string]domain.StageState{
				"a": domain.StageCurrent,
				"b": domain.StageAvailable,
			},
		},
		{
			name: "earlier valid stage is completed",
			payload: domain.Payload{
				"a": map[string]any{"value": "filled"},
			},
			current: "b",
			want: map[string]domain.StageState{
				"a": domain.StageCompleted,
				"b": domain.StageCurrent,
			},
		},
		{
			name:    "empty current falls back to first stage",
			payload: domain.Payload{},
			current: "",
			want: map[string]domain.StageState{
				"a": domain.StageCurrent,
				"b": domain.StageLocked,
			},
		},
		{
			name:    "unknown current falls back to first stage",
			payload: domain.Payload{},
			current: "ghost",
			want: map[string]domain.StageState{
				"a": domain.StageCurrent,
				"b": domain.StageLocked,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := e.Evaluate(tt.payload)
			states := e.Classify(results, tt.current)
			for id, want := range tt.want {
				if states[id] != want {
					t.Errorf("stage %s: expected %s, got %s", id, want, states[id])
				}
			}
		})
	}
}

func TestCheckNavigation(t *testing.T) {
	e := twoStageEngine(t)

	t.Run("refused while dependency invalid", func(t *testing.T) {
		results := e.Evaluate(domain.Payload{})
		err := e.CheckNavigation(results, "b")
		var refused *domain.NavigationRefusedError
		if !errors.As(err, &refused) {
			t.Fatalf("expected NavigationRefusedError, got %v", err)
		}
		if refused.StageID != "b" || refused.DependencyID != "a" {
			t.Errorf("unexpected refusal detail: %+v", refused)
		}
		if refused.Message == "" {
			t.Error("refusal must carry the dependency's validation message")
		}
	})

	t.Run("allowed once dependency valid", func(t *testing.T) {
		results := e.Evaluate(domain.Payload{
			"a": map[string]any{"value": "filled"},
		})
		if err := e.CheckNavigation(results, "b"); err != nil {
			t.Fatalf("expected navigation allowed, got %v", err)
		}
	})

	t.Run("no dependencies always reachable", func(t *testing.T) {
		results := e.Evaluate(domain.Payload{})
		if err := e.CheckNavigation(results, "a"); err != nil {
			t.Fatalf("expected navigation allowed, got %v", err)
		}
	})

	t.Run("unknown stage refused", func(t *testing.T) {
		results := e.Evaluate(domain.Payload{})
		if err := e.CheckNavigation(results, "ghost"); err == nil {
			t.Fatal("expected refusal for unknown stage")
		}
	})

	t.Run("first failing dependency in declared order", func(t *testing.T) {
		stages := []domain.StageDefinition{
			{ID: "x"},
			{ID: "y"},
			{ID: "z", Dependencies: []string{"x", "y"}},
		}
		validators := map[string]registry.Validator{
			"x": requireValue("x"),
			"y": requireValue("y"),
		}
		reg, err := registry.New(stages, validators)
		if err != nil {
			t.Fatal(err)
		}
		multi := NewEngine(reg)

		results := multi.Evaluate(domain.Payload{})
		var refused *domain.NavigationRefusedError
		if !errors.As(multi.CheckNavigation(results, "z"), &refused) {
			t.Fatal("expected NavigationRefusedError")
		}
		if refused.DependencyID != "x" {
			t.Errorf("expected first declared dependency x, got %s", refused.DependencyID)
		}
	})
}

func TestProgress(t *testing.T) {
	e := twoStageEngine(t)

	tests := []struct {
		name    string
		payload domain.Payload
		want    int
	}{
		{"nothing valid", domain.Payload{}, 0},
		{"half valid", domain.Payload{
			"a": map[string]any{"value": "filled"},
		}, 50},
		{"all valid", domain.Payload{
			"a": map[string]any{"value": "filled"},
			"b": map[string]any{"value": "filled"},
		}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := e.Evaluate(tt.payload)
			if got := e.Progress(results); got != tt.want {
				t.Errorf("expected %d%%, got %d%%", tt.want, got)
			}
		})
	}
}

func TestProgress_Rounds(t *testing.T) {
	stages := []domain.StageDefinition{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	validators := map[string]registry.Validator{
		"b": requireValue("b"),
		"c": requireValue("c"),
	}
	reg, err := registry.New(stages, validators)
	if err != nil {
		t.Fatal(err)
	}
	e := NewEngine(reg)

	// 1 of 3 valid: 33.33 rounds to 33.
	if got := e.Progress(e.Evaluate(domain.Payload{})); got != 33 {
		t.Errorf("expected 33%%, got %d%%", got)
	}
	// 2 of 3 valid: 66.67 rounds to 67.
	payload := domain.Payload{"b": map[string]any{"value": "x"}}
	if got := e.Progress(e.Evaluate(payload)); got != 67 {
		t.Errorf("expected 67%%, got %d%%", got)
	}
}

func TestProgress_MonotonicUnderAddOnly(t *testing.T) {
	e := twoStageEngine(t)
	payload := domain.Payload{}
	prev := e.Progress(e.Evaluate(payload))

	// Each step only adds fields, never removes or invalidates, so
	// progress must never decrease.
	steps := []struct {
		stage string
		patch map[string]any
	}{
		{"a", map[string]any{"note": "partial data"}},
		{"a", map[string]any{"value": "filled"}},
		{"b", map[string]any{"extra": 1}},
		{"b", map[string]any{"value": "filled"}},
	}
	for _, step := range steps {
		payload.MergeStage(step.stage, step.patch)
		cur := e.Progress(e.Evaluate(payload))
		if cur < prev {
			t.Fatalf("progress decreased from %d%% to %d%% after add-only patch to %s", prev, cur, step.stage)
		}
		prev = cur
	}
	if prev != 100 {
		t.Errorf("expected 100%% after all stages filled, got %d%%", prev)
	}
}

func TestCanComplete_OptionalStageNeverBlocks(t *testing.T) {
	stages := []domain.StageDefinition{
		{ID: "req", Required: true},
		{ID: "opt", Required: false},
	}
	validators := map[string]registry.Validator{
		"req": requireValue("req"),
		"opt": requireValue("opt"),
	}
	reg, err := registry.New(stages, validators)
	if err != nil {
		t.Fatal(err)
	}
	e := NewEngine(reg)

	payload := domain.Payload{"req": map[string]any{"value": "x"}}
	results := e.Evaluate(payload)

	if !e.CanComplete(results) {
		t.Error("invalid optional stage must not block completion")
	}
	if failing := e.FailingRequired(results); len(failing) != 0 {
		t.Errorf("expected no failing required stages, got %v", failing)
	}
}

func TestFailingRequired_CatalogOrder(t *testing.T) {
	e := twoStageEngine(t)
	failing := e.FailingRequired(e.Evaluate(domain.Payload{}))

	if len(failing) != 2 {
		t.Fatalf("expected 2 failing stages, got %d", len(failing))
	}
	if failing[0].StageID != "a" || failing[1].StageID != "b" {
		t.Errorf("expected catalog order [a b], got %v", failing)
	}
}

func TestSnapshot(t *testing.T) {
	e := twoStageEngine(t)
	payload := domain.Payload{"a": map[string]any{"value": "filled"}}

	snap := e.Snapshot(payload, "a")

	if snap.CurrentStage != "a" {
		t.Errorf("expected current stage a, got %s", snap.CurrentStage)
	}
	if snap.Progress != 50 {
		t.Errorf("expected 50%% progress, got %d%%", snap.Progress)
	}
	if snap.CanComplete {
		t.Error("session with failing required stage must not be completable")
	}
	if snap.States["b"] != domain.StageAvailable {
		t.Errorf("expected b available, got %s", snap.States["b"])
	}
	if len(snap.FailingRequired) != 1 || snap.FailingRequired[0].StageID != "b" {
		t.Errorf("unexpected failing list: %v", snap.FailingRequired)
	}
}
