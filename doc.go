/*
Package scopeflow is the workflow engine behind scoping sessions for
network-access-control deployments: a multi-step intake wizard driven as a
state machine over an ordered stage catalog.

Each stage declares a dependency gate and a pure validator over the
session payload. The engine re-evaluates the full catalog on every payload
change, classifies every stage (current, completed, available, locked),
derives progress and the completion gate, and schedules debounced
autosaves against a pluggable persistence store. On completion the payload
is handed to an external analysis collaborator whose response is merged
back, best-effort.

# Usage

	eng, err := scopeflow.New()
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Close()

	ctx := context.Background()
	s, _ := eng.CreateSession(ctx, session.CreateRequest{Name: "Acme rollout"})

	snap, err := eng.UpdateStage(ctx, s.ID, "organization", map[string]any{
		"name":     "Acme Corp",
		"industry": "healthcare",
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(snap.Progress, snap.CanComplete)

Persistence, the stage catalog and the analysis collaborator are all
injected through options; see WithStore, WithRegistry and WithAnalyzer.
The default configuration runs on an in-memory store with the standard
scoping catalog.
*/
package scopeflow
