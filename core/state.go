package core

import "fmt"

// State is the position of an authentication cycle
type State string

const (
	StateUnchallenged  State = "unchallenged"
	StateChallenged    State = "challenged"
	StateVerified      State = "verified"
	StateSessionActive State = "session_active"
	StateExpired       State = "expired"
	StateRevoked       State = "revoked"
)

// Event drives a state transition
type Event string

const (
	EventIssueChallenge Event = "issue_challenge"
	EventVerifySuccess  Event = "verify_success"
	EventVerifyFailure  Event = "verify_failure"
	EventCreateSession  Event = "create_session"
	EventTTLElapsed     Event = "ttl_elapsed"
	EventRevoke         Event = "revoke"
)

var transitions = map[State]map[Event]State{
	StateUnchallenged: {
		EventIssueChallenge: StateChallenged,
	},
	StateChallenged: {
		EventVerifySuccess: StateVerified,
		EventVerifyFailure: StateUnchallenged,
	},
	StateVerified: {
		EventCreateSession: StateSessionActive,
	},
	StateSessionActive: {
		EventTTLElapsed: StateExpired,
		EventRevoke:     StateRevoked,
	},
}

// Transition returns the state reached from s on e. Expired and Revoked are
// terminal, and nothing leads from an active session back to Challenged.
func Transition(s State, e Event) (State, error) {
	next, ok := transitions[s][e]
	if !ok {
		return s, fmt.Errorf("%w: %s on %s", ErrIllegalTransition, e, s)
	}
	return next, nil
}
