package model

import "fmt"

// State is the conference status derived every tick.
type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateCompleted State = "completed"
	// StateManual is reported while an operator navigates by hand and no
	// entry is selected.
	StateManual State = "manual"
)

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	switch s {
	case StateWaiting, StateActive, StateCompleted, StateManual:
		return true
	}
	return false
}

// ParseState converts a wire string to a State.
func ParseState(s string) (State, error) {
	st := State(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown conference status %q", s)
	}
	return st, nil
}

// NoEntry is the ActiveIndex used when nothing is active.
const NoEntry = -1

// ScheduleStatus is the resolver output.
type ScheduleStatus struct {
	ActiveIndex int
	State       State
	Message     string
}

// Idle returns the status used after a reset.
func Idle() ScheduleStatus {
	return ScheduleStatus{ActiveIndex: NoEntry, State: StateWaiting}
}
