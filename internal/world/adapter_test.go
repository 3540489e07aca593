package world

import (
	"context"
	"slices"
	"testing"

	apperrors "github.com/Iron-Ham/gladoid/internal/errors"
	"github.com/Iron-Ham/gladoid/internal/session"
)

func TestNewAdapter_RejectsInvalidRoster(t *testing.T) {
	if _, err := NewAdapter(Roster{}, 1); err == nil {
		t.Error("NewAdapter(empty) error = nil, want error")
	}
}

func TestAdapter_Create(t *testing.T) {
	ad, err := NewAdapter(DefaultRoster(), 7)
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}

	w, err := ad.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	defer w.Release()

	lister, ok := w.(session.ParticipantLister)
	if !ok {
		t.Fatal("world does not list participants")
	}
	got := lister.Participants()
	want := []session.Participant{
		{ID: 1, Name: "Sergen", HP: 10, MaxHP: 10, Weapon: "Kılıç", Alive: true},
		{ID: 2, Name: "Quanntum", HP: 10, MaxHP: 10, Weapon: "Kılıç", Alive: true},
	}
	if !slices.Equal(got, want) {
		t.Errorf("Participants() = %+v, want %+v", got, want)
	}
}

func TestAdapter_CreateCanceled(t *testing.T) {
	ad, _ := NewAdapter(DefaultRoster(), 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := ad.Create(ctx); err == nil {
		t.Error("Create() error = nil, want context error")
	}
}

func TestAdapter_SeededWorldsAreReproducible(t *testing.T) {
	play := func() []string {
		ad, _ := NewAdapter(DefaultRoster(), 42)
		w, err := ad.Create(context.Background())
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		defer w.Release()

		var lines []string
		for i := 0; i < 100; i++ {
			if p, ok := w.PendingDecision(); ok {
				if err := w.Inject(session.Decision{Participant: p.Participant, Action: ActionAttack, Target: 3 - p.Participant}); err != nil {
					t.Fatalf("Inject() error = %v", err)
				}
			}
			err := w.Step()
			lines = append(lines, w.DrainMessages()...)
			if err != nil {
				break
			}
		}
		return lines
	}

	if a, b := play(), play(); !slices.Equal(a, b) {
		t.Errorf("same seed produced different duels:\n%q\n%q", a, b)
	}
}

func TestHandle_DecisionContract(t *testing.T) {
	ad, _ := NewAdapter(DefaultRoster(), 3)
	w, _ := ad.Create(context.Background())
	defer w.Release()

	// No pending decision yet: injection is an InvalidDecision.
	err := w.Inject(session.Decision{Participant: 1, Action: ActionPass})
	if !apperrors.IsInvalidDecision(err) {
		t.Fatalf("Inject() with nothing pending error = %v, want InvalidDecision", err)
	}

	for i := 0; i < 2; i++ {
		if err := w.Step(); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
	}
	p, ok := w.PendingDecision()
	if !ok {
		t.Fatal("PendingDecision() = false after two steps")
	}

	v := w.(session.DecisionValidator)
	if err := v.ValidateDecision(session.Decision{Participant: p.Participant, Action: 9}); !apperrors.Is(err, apperrors.ErrInvalidAction) {
		t.Errorf("ValidateDecision() error = %v, want ErrInvalidAction", err)
	}
	if err := v.ValidateDecision(session.Decision{Participant: p.Participant, Action: ActionHeal}); err != nil {
		t.Errorf("ValidateDecision() error = %v, want nil", err)
	}
	if _, ok := w.PendingDecision(); !ok {
		t.Error("ValidateDecision consumed the pending decision")
	}
}
