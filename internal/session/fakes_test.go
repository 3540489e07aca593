package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	apperrors "github.com/Iron-Ham/gladoid/internal/errors"
)

// scriptedStep is one scripted result of World.Step.
type scriptedStep struct {
	lines   []string // narration buffered by the step
	pending int      // participant left required to act, 0 for none
	err     error    // returned by Step after buffering lines
}

// fakeWorld replays a script. Once the script is exhausted Step reports game over.
type fakeWorld struct {
	mu sync.Mutex

	script  []scriptedStep
	next    int
	pending *PendingDecision
	buf     []string

	injected  []Decision
	injectErr error
	drains    int
	steps     int
	released  bool

	onStep func(n int) // called at the start of every Step with its 1-based index
}

func (w *fakeWorld) Step() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.steps++
	if w.onStep != nil {
		w.onStep(w.steps)
	}
	if w.released {
		return apperrors.NewWorldError("step", apperrors.ErrWorldReleased)
	}
	if w.pending != nil {
		return apperrors.NewWorldError("step", apperrors.ErrDecisionOutstanding)
	}
	if w.next >= len(w.script) {
		return apperrors.NewWorldError("step", apperrors.ErrGameOver)
	}

	st := w.script[w.next]
	w.next++
	w.buf = append(w.buf, st.lines...)
	if st.pending != 0 {
		w.pending = &PendingDecision{Participant: st.pending, Name: nameOf(st.pending)}
	}
	return st.err
}

func (w *fakeWorld) PendingDecision() (PendingDecision, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		return PendingDecision{}, false
	}
	return *w.pending, true
}

func (w *fakeWorld) Inject(d Decision) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.injectErr != nil {
		return w.injectErr
	}
	if w.pending == nil {
		return apperrors.NewDecisionError("nothing to decide", apperrors.ErrNoPendingDecision).
			WithParticipant(d.Participant).WithAction(d.Action)
	}
	w.injected = append(w.injected, d)
	w.pending = nil
	return nil
}

func (w *fakeWorld) DrainMessages() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.drains++
	out := w.buf
	w.buf = nil
	return out
}

func (w *fakeWorld) Release() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.released = true
}

// rosterWorld adds the optional roster and validation interfaces.
type rosterWorld struct {
	*fakeWorld
	roster []Participant
}

func (w *rosterWorld) Participants() []Participant { return w.roster }

func (w *rosterWorld) ValidateDecision(d Decision) error {
	if d.Action < 1 || d.Action > 4 {
		return apperrors.ErrInvalidAction
	}
	return nil
}

func nameOf(id int) string {
	switch id {
	case 1:
		return "Sergen"
	case 2:
		return "Quanntum"
	default:
		return fmt.Sprintf("P%d", id)
	}
}

type fakeAdapter struct {
	world     World
	err       error
	creations int
}

func (a *fakeAdapter) Create(context.Context) (World, error) {
	a.creations++
	if a.err != nil {
		return nil, a.err
	}
	return a.world, nil
}

// fakeRelay records every delivery; a Flush is recorded as one newline-joined entry.
type fakeRelay struct {
	mu         sync.Mutex
	deliveries []string
	err        error
	onDeliver  func(text string)
}

func (r *fakeRelay) Send(_ context.Context, text string) error {
	return r.deliver(text)
}

func (r *fakeRelay) Flush(_ context.Context, lines []string) error {
	return r.deliver(strings.Join(lines, "\n"))
}

func (r *fakeRelay) deliver(text string) error {
	r.mu.Lock()
	r.deliveries = append(r.deliveries, text)
	hook := r.onDeliver
	r.mu.Unlock()
	if hook != nil {
		hook(text)
	}
	return r.err
}

func (r *fakeRelay) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.deliveries...)
}

func fallbackNotice(name string) string {
	return "Need action from " + name + "... Too slow. Applying the default action."
}

// fallbackPolicy synthesizes attack(1) immediately, like the reference behavior.
type fallbackPolicy struct {
	mu       sync.Mutex
	requests []DecisionRequest
	override func(req DecisionRequest) Resolution
}

func (p *fallbackPolicy) Resolve(ctx context.Context, req DecisionRequest) (Resolution, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if p.override != nil {
		return p.override(req), nil
	}
	_ = req.Relay.Send(ctx, fallbackNotice(req.Pending.Name))
	return Resolution{
		Decision: Decision{Participant: req.Pending.Participant, Action: 1, Target: 1},
		Fallback: true,
	}, nil
}

// blockingPolicy waits for ctx to end, standing in for a participant who never answers.
type blockingPolicy struct {
	entered chan struct{}
}

func (p *blockingPolicy) Resolve(ctx context.Context, _ DecisionRequest) (Resolution, error) {
	close(p.entered)
	<-ctx.Done()
	return Resolution{}, ctx.Err()
}

type failingPolicy struct{ err error }

func (p failingPolicy) Resolve(context.Context, DecisionRequest) (Resolution, error) {
	return Resolution{}, p.err
}
