// Package decision resolves pending decisions for a session: it accepts real
// submissions from the participant through a Gate, and synthesizes a
// fallback when none arrives before the deadline.
package decision

import (
	"fmt"
	"sync"

	apperrors "github.com/Iron-Ham/gladoid/internal/errors"
	"github.com/Iron-Ham/gladoid/internal/session"
)

// Gate is the intake for real decisions of one session. The policy opens it
// while a decision is pending and closes it once the decision is resolved;
// at most one submission is accepted per opening.
//
// Submit is called from the transport while the session goroutine waits on
// the channel returned by Open. The validator Open receives reads the world
// on that transport goroutine; this is safe only because the session
// goroutine is parked in the policy until Close returns, and Close cannot
// return while a Submit holds mu. Every path that stops waiting must call
// Close before touching the world again.
type Gate struct {
	mu          sync.Mutex
	open        bool
	participant int
	name        string
	validate    func(session.Decision) error
	accepted    chan session.Decision
}

// NewGate creates a closed gate.
func NewGate() *Gate {
	return &Gate{}
}

// Open starts accepting a decision for pending. The returned channel receives
// the accepted submission, if any; it is never closed.
func (g *Gate) Open(pending session.PendingDecision, validate func(session.Decision) error) <-chan session.Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.open = true
	g.participant = pending.Participant
	g.name = pending.Name
	g.validate = validate
	g.accepted = make(chan session.Decision, 1)
	return g.accepted
}

// Close stops accepting submissions and waits for a Submit in progress,
// including its validator, to finish. A submission accepted before Close is
// still waiting on the channel Open returned.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.open = false
	g.validate = nil
}

// Awaiting returns the decision the gate is open for.
func (g *Gate) Awaiting() (session.PendingDecision, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.open {
		return session.PendingDecision{}, false
	}
	return session.PendingDecision{Participant: g.participant, Name: g.name}, true
}

// Submit offers a decision. A zero Participant means the participant the gate
// is open for. It fails with ErrNotAwaitingDecision when nothing is pending or
// a decision was already accepted, with ErrWrongParticipant when addressed to
// someone else, and with the validator's error when the world refuses the
// action. A refused submission leaves the gate open.
func (g *Gate) Submit(d session.Decision) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.open {
		return apperrors.ErrNotAwaitingDecision
	}
	if d.Participant == 0 {
		d.Participant = g.participant
	}
	if d.Participant != g.participant {
		return fmt.Errorf("%w: waiting on %s", apperrors.ErrWrongParticipant, g.name)
	}
	if g.validate != nil {
		if err := g.validate(d); err != nil {
			return err
		}
	}

	g.accepted <- d
	g.open = false
	g.validate = nil
	return nil
}
