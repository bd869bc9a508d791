// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package playback owns the per-surface session lifecycle: mount, media
// readiness, the autoplay ladder, progress sampling, bounded reloads and
// ordered teardown.
package playback

// State is the lifecycle state of one playback session.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
	StateEnded   State = "ended"
	StateErrored State = "errored"
)

// EventKind names the stimulus driving a transition.
type EventKind string

const (
	EvAttach          EventKind = "attach"
	EvMediaReady      EventKind = "media_ready"
	EvPlay            EventKind = "play"
	EvPause           EventKind = "pause"
	EvEnded           EventKind = "ended"
	EvMediaFailed     EventKind = "media_failed"
	EvAutoplayBlocked EventKind = "autoplay_blocked"
	EvReload          EventKind = "reload"
)

// Reason codes carried on error-class transitions.
const (
	ReasonAutoplayBlocked = "autoplay-blocked"
	ReasonMediaFailure    = "media-failure"
	ReasonLoopRestart     = "loop-restart"
)

// Transition is a single allowed edge in the session state machine.
type Transition struct {
	From   State
	To     State
	Event  EventKind
	Reason string
}

var transitionsTable = []Transition{
	// Mount path
	{From: StateIdle, To: StateLoading, Event: EvAttach},
	{From: StateLoading, To: StateReady, Event: EvMediaReady},

	// Play / pause
	{From: StateReady, To: StatePlaying, Event: EvPlay},
	{From: StatePaused, To: StatePlaying, Event: EvPlay},
	{From: StateEnded, To: StatePlaying, Event: EvPlay, Reason: ReasonLoopRestart},
	{From: StatePlaying, To: StatePaused, Event: EvPause},

	// Natural completion
	{From: StatePlaying, To: StateEnded, Event: EvEnded},

	// Media failures
	{From: StateLoading, To: StateErrored, Event: EvMediaFailed, Reason: ReasonMediaFailure},
	{From: StateReady, To: StateErrored, Event: EvMediaFailed, Reason: ReasonMediaFailure},
	{From: StatePlaying, To: StateErrored, Event: EvMediaFailed, Reason: ReasonMediaFailure},

	// Autoplay rejection after the muted fallback also failed
	{From: StateReady, To: StateErrored, Event: EvAutoplayBlocked, Reason: ReasonAutoplayBlocked},

	// Bounded automatic reload or manual user retry
	{From: StateErrored, To: StateLoading, Event: EvReload},
}

// TransitionFor returns the allowed transition for a given state+event.
func TransitionFor(from State, ev EventKind) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}
