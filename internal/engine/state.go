// ABOUTME: Playback state and event definitions for the engine
// ABOUTME: Defines State, EventKind and the Session generation counter
package engine

import "fmt"

// State is the engine's playback state
type State int

const (
	StateIdle State = iota
	StatePreparing
	StatePrepared
	StateStarted
	StatePaused
	StateStopped
	StateCompleted
	StateError
)

var stateNames = [...]string{
	StateIdle:      "Idle",
	StatePreparing: "Preparing",
	StatePrepared:  "Prepared",
	StateStarted:   "Started",
	StatePaused:    "Paused",
	StateStopped:   "Stopped",
	StateCompleted: "Completed",
	StateError:     "Error",
}

// String returns the state name
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Playable reports whether a prepared stream is loaded and not finished
func (s State) Playable() bool {
	switch s {
	case StatePrepared, StateStarted, StatePaused, StateStopped:
		return true
	}
	return false
}

// EventKind identifies an engine event
type EventKind int

const (
	// EventStateChange carries (previous, current) states as arg1, arg2
	EventStateChange EventKind = iota + 1
)

func (k EventKind) String() string {
	switch k {
	case EventStateChange:
		return "StateChange"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Session is the generation of the engine's current datasource binding.
// Reset increments it, so any callback carrying an older value is stale.
type Session uint64
