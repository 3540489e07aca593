package decision

import (
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/Iron-Ham/gladoid/internal/errors"
	"github.com/Iron-Ham/gladoid/internal/session"
)

var sergen = session.PendingDecision{Participant: 1, Name: "Sergen"}

func TestGate_SubmitWhenClosed(t *testing.T) {
	g := NewGate()
	if err := g.Submit(session.Decision{Participant: 1, Action: 1, Target: 2}); !errors.Is(err, apperrors.ErrNotAwaitingDecision) {
		t.Errorf("Submit() error = %v, want ErrNotAwaitingDecision", err)
	}
	if _, ok := g.Awaiting(); ok {
		t.Error("Awaiting() = true on a new gate")
	}
}

func TestGate_AcceptsOnce(t *testing.T) {
	g := NewGate()
	accepted := g.Open(sergen, nil)

	if p, ok := g.Awaiting(); !ok || p != sergen {
		t.Errorf("Awaiting() = %+v, %v; want Sergen, true", p, ok)
	}

	want := session.Decision{Participant: 1, Action: 1, Target: 2}
	if err := g.Submit(want); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if err := g.Submit(want); !errors.Is(err, apperrors.ErrNotAwaitingDecision) {
		t.Errorf("second Submit() error = %v, want ErrNotAwaitingDecision", err)
	}

	select {
	case got := <-accepted:
		if got != want {
			t.Errorf("accepted = %+v, want %+v", got, want)
		}
	default:
		t.Fatal("nothing on the accepted channel")
	}
}

func TestGate_ZeroParticipantMeansPending(t *testing.T) {
	g := NewGate()
	accepted := g.Open(sergen, nil)

	if err := g.Submit(session.Decision{Action: 4}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if got := <-accepted; got.Participant != 1 {
		t.Errorf("Participant = %d, want 1", got.Participant)
	}
}

func TestGate_Rejections(t *testing.T) {
	refuse := errors.New("refused")
	g := NewGate()
	accepted := g.Open(sergen, func(d session.Decision) error {
		if d.Action == 9 {
			return refuse
		}
		return nil
	})

	if err := g.Submit(session.Decision{Participant: 2, Action: 1, Target: 1}); !errors.Is(err, apperrors.ErrWrongParticipant) {
		t.Errorf("Submit(wrong participant) error = %v, want ErrWrongParticipant", err)
	}
	if err := g.Submit(session.Decision{Participant: 1, Action: 9}); !errors.Is(err, refuse) {
		t.Errorf("Submit(invalid) error = %v, want validator error", err)
	}

	// Refusals keep the gate open.
	if err := g.Submit(session.Decision{Participant: 1, Action: 4}); err != nil {
		t.Fatalf("Submit(valid) error = %v", err)
	}
	if got := <-accepted; got.Action != 4 {
		t.Errorf("accepted action = %d, want 4", got.Action)
	}
}

func TestGate_Close(t *testing.T) {
	g := NewGate()
	g.Open(sergen, nil)
	g.Close()

	if err := g.Submit(session.Decision{Participant: 1, Action: 4}); !errors.Is(err, apperrors.ErrNotAwaitingDecision) {
		t.Errorf("Submit() after Close error = %v, want ErrNotAwaitingDecision", err)
	}
}

func TestGate_ConcurrentSubmitAcceptsOne(t *testing.T) {
	g := NewGate()
	accepted := g.Open(sergen, nil)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Submit(session.Decision{Participant: 1, Action: 4}) == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if ok != 1 {
		t.Errorf("accepted submissions = %d, want 1", ok)
	}
	if len(accepted) != 1 {
		t.Errorf("len(accepted) = %d, want 1", len(accepted))
	}
}

// TestGate_CloseWaitsForValidator checks that the world validator running on
// the submitting goroutine has finished before Close returns to the session.
func TestGate_CloseWaitsForValidator(t *testing.T) {
	g := NewGate()
	entered := make(chan struct{})
	release := make(chan struct{})
	g.Open(sergen, func(session.Decision) error {
		close(entered)
		<-release
		return nil
	})

	submitted := make(chan error, 1)
	go func() { submitted <- g.Submit(session.Decision{Action: 4}) }()
	<-entered

	closed := make(chan struct{})
	go func() {
		g.Close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("Close returned while the validator was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return after the validator finished")
	}
	if err := <-submitted; err != nil {
		t.Errorf("Submit() error = %v", err)
	}
}
