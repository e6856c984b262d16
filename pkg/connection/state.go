package connection

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidTransition is returned for a state change the session
// lifecycle does not allow.
var ErrInvalidTransition = errors.New("invalid state transition")

// State represents the session's connection state.
type State uint8

const (
	// StateClosed indicates no connection and no attempt in progress.
	StateClosed State = iota

	// StateConnecting indicates a connection attempt is in progress.
	StateConnecting

	// StateOpen indicates an open link with nothing in flight.
	StateOpen

	// StateAwaitingReply indicates an open link with a command in flight.
	StateAwaitingReply

	// StateReconnecting indicates the link was lost and a reopen is scheduled.
	StateReconnecting
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateAwaitingReply:
		return "AWAITING_REPLY"
	case StateReconnecting:
		return "RECONNECTING"
	default:
		return "UNKNOWN"
	}
}

// IsOpen reports whether s has a usable link.
func (s State) IsOpen() bool {
	return s == StateOpen || s == StateAwaitingReply
}

// transitions lists the allowed successors of each state.
var transitions = map[State][]State{
	StateClosed:        {StateConnecting},
	StateConnecting:    {StateOpen, StateReconnecting, StateClosed},
	StateOpen:          {StateAwaitingReply, StateReconnecting, StateClosed},
	StateAwaitingReply: {StateOpen, StateReconnecting, StateClosed},
	StateReconnecting:  {StateConnecting, StateClosed},
}

// CanTransition reports whether from may change to to.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Tracker holds a State and enforces the allowed transitions. Readers
// on other goroutines may call State at any time.
type Tracker struct {
	mu       sync.RWMutex
	state    State
	changes  int
	onChange func(old, new State, reason string)
}

// NewTracker creates a tracker in StateClosed. onChange, if not nil, is
// called after every applied transition.
func NewTracker(onChange func(old, new State, reason string)) *Tracker {
	return &Tracker{state: StateClosed, onChange: onChange}
}

// State returns the current state.
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Changes returns the number of transitions applied.
func (t *Tracker) Changes() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.changes
}

// Set moves to next. Setting the current state is a no-op.
func (t *Tracker) Set(next State, reason string) error {
	t.mu.Lock()
	old := t.state
	if old == next {
		t.mu.Unlock()
		return nil
	}
	if !CanTransition(old, next) {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, old, next)
	}
	t.state = next
	t.changes++
	t.mu.Unlock()

	if t.onChange != nil {
		t.onChange(old, next, reason)
	}
	return nil
}
