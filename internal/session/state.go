// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

// State is the lifecycle state of the playback session.
type State string

const (
	StateIdle      State = "idle"
	StateResolving State = "resolving"
	StateAttaching State = "attaching"
	StateReady     State = "ready"
	StateFailed    State = "failed"
)

// AllStates lists every state, for one-hot metrics.
var AllStates = []State{StateIdle, StateResolving, StateAttaching, StateReady, StateFailed}

type eventKind string

const (
	evRequested      eventKind = "requested"
	evNoReference    eventKind = "no_reference"
	evResolved       eventKind = "resolved"
	evResolveFailed  eventKind = "resolve_failed"
	evManifestParsed eventKind = "manifest_parsed"
	evEngineFatal    eventKind = "engine_fatal"
)

// transition is a single allowed edge in the session state machine.
type transition struct {
	From  State
	To    State
	Event eventKind
}

var transitionsTable = []transition{
	// Start or quality change after gate approval. A newer request supersedes
	// one still resolving or attaching.
	{From: StateIdle, To: StateResolving, Event: evRequested},
	{From: StateReady, To: StateResolving, Event: evRequested},
	{From: StateFailed, To: StateResolving, Event: evRequested},
	{From: StateResolving, To: StateResolving, Event: evRequested},
	{From: StateAttaching, To: StateResolving, Event: evRequested},

	{From: StateResolving, To: StateAttaching, Event: evResolved},
	{From: StateAttaching, To: StateReady, Event: evManifestParsed},

	// Failures
	{From: StateResolving, To: StateFailed, Event: evResolveFailed},
	{From: StateAttaching, To: StateFailed, Event: evEngineFatal},
	{From: StateReady, To: StateFailed, Event: evEngineFatal},

	{From: StateIdle, To: StateFailed, Event: evNoReference},
	{From: StateReady, To: StateFailed, Event: evNoReference},
	{From: StateFailed, To: StateFailed, Event: evNoReference},
	{From: StateResolving, To: StateFailed, Event: evNoReference},
	{From: StateAttaching, To: StateFailed, Event: evNoReference},
}

// transitionFor returns the allowed transition for a given state+event.
func transitionFor(from State, ev eventKind) (transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return transition{}, false
}
