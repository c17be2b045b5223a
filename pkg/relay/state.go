package relay

// State is the lifecycle state of a Session.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateActive
	StateFinishing
	StateClosed
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateActive:
		return "active"
	case StateFinishing:
		return "finishing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the session has reached a final state.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateFailed
}

// canTransition reports whether the transition from s to next is legal.
// Failed is reachable from any non-terminal state; Finishing may begin
// from any non-terminal state since teardown can race session startup.
func (s State) canTransition(next State) bool {
	if s.Terminal() {
		return false
	}
	switch next {
	case StateFailed:
		return true
	case StateFinishing:
		return true
	case StateStarting:
		return s == StateIdle
	case StateActive:
		return s == StateStarting
	case StateClosed:
		return s == StateFinishing
	default:
		return false
	}
}
