// Package session drives one game between a participant and a world
// simulation. A Session creates its World through a WorldAdapter, steps it,
// relays the narration each step produced, resolves pending decisions through
// a DeadlinePolicy and stops when the world reports that the game concluded.
package session

import (
	"context"
	"time"
)

// -----------------------------------------------------------------------------
// World Boundary
// -----------------------------------------------------------------------------

// Decision is an action chosen for a participant. Target is 0 when the action
// takes none; participant, target and weapon identifiers are 1-based.
type Decision struct {
	Participant int `json:"participant"`
	Action      int `json:"action"`
	Target      int `json:"target,omitempty"`
}

// PendingDecision identifies the participant the world is waiting on.
type PendingDecision struct {
	Participant int
	Name        string
}

// Participant describes one seat in the world, for fallback strategies and displays.
type Participant struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	HP     int    `json:"hp"`
	MaxHP  int    `json:"max_hp"`
	Weapon string `json:"weapon"`
	Alive  bool   `json:"alive"`
}

// World is the handle to one simulation instance. A Session owns its World
// exclusively and never calls it from more than one goroutine.
type World interface {
	// Step advances the simulation by one unit of logical time. It returns an
	// error matching errors.ErrGameOver once the game has concluded; any other
	// error is a fault.
	Step() error

	// PendingDecision reports the participant currently required to act.
	PendingDecision() (PendingDecision, bool)

	// Inject records the decision for the pending participant. It fails when
	// nothing is pending or the action is not valid for the participant.
	Inject(d Decision) error

	// DrainMessages removes and returns buffered narration in production order.
	DrainMessages() []string

	// Release frees the simulation. The handle must not be used afterwards.
	Release()
}

// WorldAdapter creates worlds.
type WorldAdapter interface {
	Create(ctx context.Context) (World, error)
}

// ParticipantLister is implemented by worlds that expose their roster.
type ParticipantLister interface {
	Participants() []Participant
}

// DecisionValidator is implemented by worlds that can check a decision
// without injecting it. It lets real submissions be refused up front instead
// of failing the session at Inject.
type DecisionValidator interface {
	ValidateDecision(d Decision) error
}

// -----------------------------------------------------------------------------
// Participant Channel
// -----------------------------------------------------------------------------

// Relay delivers text to the participant. Deliveries keep the caller's order;
// each Flush is a single delivery of its lines joined by newlines.
type Relay interface {
	Send(ctx context.Context, text string) error
	Flush(ctx context.Context, lines []string) error
}

// -----------------------------------------------------------------------------
// Decision Resolution
// -----------------------------------------------------------------------------

// DecisionRequest is what a DeadlinePolicy needs to resolve one pending decision.
type DecisionRequest struct {
	SessionID string
	Pending   PendingDecision
	Deadline  time.Duration

	// Roster is the world's participant list, or nil if it does not expose one.
	Roster []Participant

	// Validate checks a real submission before it is accepted. May be nil.
	Validate func(Decision) error

	// Relay receives the fallback notice.
	Relay Relay
}

// Resolution is the decision to inject and whether it was synthesized.
type Resolution struct {
	Decision Decision
	Fallback bool
}

// DeadlinePolicy turns a pending decision into exactly one Decision, waiting
// at most the request's deadline for a real submission. It is the only
// operation in a session that may block. It returns an error only when ctx
// ends first.
type DeadlinePolicy interface {
	Resolve(ctx context.Context, req DecisionRequest) (Resolution, error)
}
