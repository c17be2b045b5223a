package relay

import "testing"

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "idle"},
		{StateStarting, "starting"},
		{StateActive, "active"},
		{StateFinishing, "finishing"},
		{StateClosed, "closed"},
		{StateFailed, "failed"},
		{State(99), "unknown"},
	}

	for _, tc := range tests {
		if tc.state.String() != tc.want {
			t.Errorf("State(%d).String() = %q; want %q", tc.state, tc.state.String(), tc.want)
		}
	}
}

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
		ok   bool
	}{
		{StateIdle, StateStarting, true},
		{StateStarting, StateActive, true},
		{StateActive, StateFinishing, true},
		{StateFinishing, StateClosed, true},

		// Failed is reachable from any non-terminal state.
		{StateIdle, StateFailed, true},
		{StateStarting, StateFailed, true},
		{StateActive, StateFailed, true},
		{StateFinishing, StateFailed, true},

		// Teardown can begin before the session ever became active.
		{StateIdle, StateFinishing, true},
		{StateStarting, StateFinishing, true},

		{StateIdle, StateActive, false},
		{StateIdle, StateClosed, false},
		{StateStarting, StateClosed, false},
		{StateActive, StateStarting, false},

		// Terminal states allow nothing.
		{StateClosed, StateFailed, false},
		{StateClosed, StateStarting, false},
		{StateFailed, StateClosed, false},
		{StateFailed, StateFailed, false},
	}

	for _, tc := range tests {
		if got := tc.from.canTransition(tc.to); got != tc.ok {
			t.Errorf("canTransition(%v, %v) = %v; want %v", tc.from, tc.to, got, tc.ok)
		}
	}
}

func TestSessionSetState(t *testing.T) {
	s := newSession("s1", Config{})

	if err := s.SetState(StateStarting); err != nil {
		t.Fatalf("Idle→Starting: %v", err)
	}
	if err := s.SetState(StateClosed); err != ErrBadTransition {
		t.Errorf("Starting→Closed = %v; want ErrBadTransition", err)
	}
	if err := s.SetState(StateActive); err != nil {
		t.Fatalf("Starting→Active: %v", err)
	}
	if got := s.State(); got != StateActive {
		t.Errorf("State() = %v; want %v", got, StateActive)
	}
}
