package session

// State is the driver's position in a session's lifecycle.
type State int32

const (
	// StateIdle is the state before the world has been created.
	StateIdle State = iota

	// StateRunning means the world is being stepped and nobody is required to act.
	StateRunning

	// StateAwaitingDecision means a step left a participant required to act and
	// the decision has not been injected yet.
	StateAwaitingDecision

	// StateEnded means the world reported that the game concluded. Terminal.
	StateEnded

	// StateAborted means the session stopped on a fault or was canceled. It is
	// not a form of StateEnded: no terminal message is relayed. Terminal.
	StateAborted
)

// String returns the state name used in logs and errors.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	case StateAwaitingDecision:
		return "AWAITING_DECISION"
	case StateEnded:
		return "ENDED"
	case StateAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	return s == StateEnded || s == StateAborted
}

// CanTransitionTo reports whether next is reachable from s in one move.
func (s State) CanTransitionTo(next State) bool {
	switch s {
	case StateIdle:
		return next == StateRunning || next == StateAborted
	case StateRunning:
		return next == StateRunning || next == StateAwaitingDecision ||
			next == StateEnded || next == StateAborted
	case StateAwaitingDecision:
		return next == StateRunning || next == StateEnded || next == StateAborted
	default:
		return false
	}
}
