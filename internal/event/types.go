package event

import "time"

// Event is implemented by every event carried on the Bus.
type Event interface {
	// EventType returns "category.action", e.g. "session.ended".
	EventType() string
	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeSessionStarted    = "session.started"
	TypeStepCompleted     = "session.step"
	TypeNarration         = "session.narration"
	TypeSessionEnded      = "session.ended"
	TypeSessionAborted    = "session.aborted"
	TypeDecisionRequested = "decision.requested"
	TypeDecisionResolved  = "decision.resolved"
)

type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{eventType: eventType, timestamp: time.Now()}
}

// -----------------------------------------------------------------------------
// Session Lifecycle Events
// -----------------------------------------------------------------------------

// SessionStartedEvent is emitted once the world exists and the acknowledgement was relayed.
type SessionStartedEvent struct {
	baseEvent
	SessionID string
	Initiator string // identity of whoever triggered the session
	HumanSeat int    // participant id the initiator controls
}

// NewSessionStartedEvent creates a SessionStartedEvent.
func NewSessionStartedEvent(sessionID, initiator string, humanSeat int) SessionStartedEvent {
	return SessionStartedEvent{
		baseEvent: newBaseEvent(TypeSessionStarted),
		SessionID: sessionID,
		Initiator: initiator,
		HumanSeat: humanSeat,
	}
}

// StepCompletedEvent is emitted after every successful step.
type StepCompletedEvent struct {
	baseEvent
	SessionID string
	Step      uint64
	Narrated  int // lines drained after the step
}

// NewStepCompletedEvent creates a StepCompletedEvent.
func NewStepCompletedEvent(sessionID string, step uint64, narrated int) StepCompletedEvent {
	return StepCompletedEvent{
		baseEvent: newBaseEvent(TypeStepCompleted),
		SessionID: sessionID,
		Step:      step,
		Narrated:  narrated,
	}
}

// NarrationEvent carries one relayed batch, in order.
type NarrationEvent struct {
	baseEvent
	SessionID string
	Lines     []string
}

// NewNarrationEvent creates a NarrationEvent. lines is copied.
func NewNarrationEvent(sessionID string, lines []string) NarrationEvent {
	return NarrationEvent{
		baseEvent: newBaseEvent(TypeNarration),
		SessionID: sessionID,
		Lines:     append([]string(nil), lines...),
	}
}

// SessionEndedEvent is emitted when the world reported that the game concluded.
type SessionEndedEvent struct {
	baseEvent
	SessionID string
	Initiator string
	Steps     uint64
	Fallbacks int
	StartedAt time.Time
}

// NewSessionEndedEvent creates a SessionEndedEvent.
func NewSessionEndedEvent(sessionID, initiator string, steps uint64, fallbacks int, startedAt time.Time) SessionEndedEvent {
	return SessionEndedEvent{
		baseEvent: newBaseEvent(TypeSessionEnded),
		SessionID: sessionID,
		Initiator: initiator,
		Steps:     steps,
		Fallbacks: fallbacks,
		StartedAt: startedAt,
	}
}

// SessionAbortedEvent is emitted when a session stops on a fault or a cancellation.
type SessionAbortedEvent struct {
	baseEvent
	SessionID string
	Initiator string
	Steps     uint64
	Fallbacks int
	StartedAt time.Time
	Canceled  bool
	Err       error
}

// NewSessionAbortedEvent creates a SessionAbortedEvent.
func NewSessionAbortedEvent(sessionID, initiator string, steps uint64, fallbacks int, startedAt time.Time, canceled bool, err error) SessionAbortedEvent {
	return SessionAbortedEvent{
		baseEvent: newBaseEvent(TypeSessionAborted),
		SessionID: sessionID,
		Initiator: initiator,
		Steps:     steps,
		Fallbacks: fallbacks,
		StartedAt: startedAt,
		Canceled:  canceled,
		Err:       err,
	}
}

// -----------------------------------------------------------------------------
// Decision Events
// -----------------------------------------------------------------------------

// DecisionRequestedEvent is emitted when a step leaves a participant required to act.
type DecisionRequestedEvent struct {
	baseEvent
	SessionID   string
	Participant int
	Name        string
	Deadline    time.Duration
}

// NewDecisionRequestedEvent creates a DecisionRequestedEvent.
func NewDecisionRequestedEvent(sessionID string, participant int, name string, deadline time.Duration) DecisionRequestedEvent {
	return DecisionRequestedEvent{
		baseEvent:   newBaseEvent(TypeDecisionRequested),
		SessionID:   sessionID,
		Participant: participant,
		Name:        name,
		Deadline:    deadline,
	}
}

// DecisionResolvedEvent is emitted after a decision has been injected.
type DecisionResolvedEvent struct {
	baseEvent
	SessionID   string
	Participant int
	Action      int
	Target      int
	Fallback    bool
}

// NewDecisionResolvedEvent creates a DecisionResolvedEvent.
func NewDecisionResolvedEvent(sessionID string, participant, action, target int, fallback bool) DecisionResolvedEvent {
	return DecisionResolvedEvent{
		baseEvent:   newBaseEvent(TypeDecisionResolved),
		SessionID:   sessionID,
		Participant: participant,
		Action:      action,
		Target:      target,
		Fallback:    fallback,
	}
}
