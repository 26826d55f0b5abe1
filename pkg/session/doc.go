// Package session implements the lifecycle manager of the scoping
// workflow engine. It owns the in-memory session records, mediates every
// payload mutation through the validation runtime, schedules debounced
// autosaves, and drives the draft/completed/archived state machine
// against a pluggable persistence store.
//
// The in-memory record is the source of truth: persistence failures never
// roll back an edit, they only delay the save.
package session
