package call

import "sync"

// State is the position of one call in its conversation lifecycle.
type State int

const (
	StateInit State = iota
	StateGreeted
	StateListening
	StateResponding
	StateEscalating
	StateClarifying
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateGreeted:
		return "greeted"
	case StateListening:
		return "listening"
	case StateResponding:
		return "responding"
	case StateEscalating:
		return "escalating"
	case StateClarifying:
		return "clarifying"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// stateMachine tracks one call's lifecycle with transition validation.
type stateMachine struct {
	mu           sync.RWMutex
	currentState State
}

func newStateMachine() *stateMachine {
	return &stateMachine{currentState: StateInit}
}

// State returns the current state.
func (m *stateMachine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentState
}

// transitionValid checks if a state transition is valid (must be called with lock held).
func (m *stateMachine) transitionValid(from, to State) bool {
	validTransitions := map[State][]State{
		StateInit:       {StateGreeted, StateTerminated},
		StateGreeted:    {StateListening, StateTerminated},
		StateListening:  {StateResponding, StateEscalating, StateClarifying, StateTerminated},
		StateResponding: {StateListening, StateTerminated},
		StateEscalating: {StateListening, StateTerminated},
		StateClarifying: {StateListening, StateTerminated},
		StateTerminated: {},
	}

	allowedStates, exists := validTransitions[from]
	if !exists {
		return false
	}
	for _, allowed := range allowedStates {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition moves to a new state with validation.
func (m *stateMachine) Transition(state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.transitionValid(m.currentState, state) {
		return &InvalidTransitionError{From: m.currentState, To: state}
	}
	m.currentState = state
	return nil
}

// InvalidTransitionError represents an invalid state transition attempt.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return "invalid state transition from " + e.From.String() + " to " + e.To.String()
}
