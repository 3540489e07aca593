package world

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/Iron-Ham/gladoid/internal/session"
)

// Adapter creates arenas for sessions.
type Adapter struct {
	roster Roster
	seed   int64
	count  atomic.Uint64
}

// NewAdapter returns an Adapter spawning roster. A zero seed seeds every
// arena from the clock; otherwise arena n uses seed+n so that runs are
// reproducible.
func NewAdapter(roster Roster, seed int64) (*Adapter, error) {
	if err := roster.Validate(); err != nil {
		return nil, err
	}
	return &Adapter{roster: roster, seed: seed}, nil
}

// Create implements session.WorldAdapter.
func (ad *Adapter) Create(ctx context.Context) (session.World, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n := ad.count.Add(1) - 1
	seed := uint64(ad.seed) + n
	if ad.seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	arena, err := NewArena(ad.roster, rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
	if err != nil {
		return nil, err
	}
	return &handle{arena: arena}, nil
}

// handle exposes an Arena as a session.World.
type handle struct {
	arena *Arena
}

var (
	_ session.World             = (*handle)(nil)
	_ session.ParticipantLister = (*handle)(nil)
	_ session.DecisionValidator = (*handle)(nil)
)

func (h *handle) Step() error { return h.arena.Step() }

func (h *handle) PendingDecision() (session.PendingDecision, bool) {
	f, ok := h.arena.Pending()
	if !ok {
		return session.PendingDecision{}, false
	}
	return session.PendingDecision{Participant: f.ID, Name: f.Name}, true
}

func (h *handle) Inject(d session.Decision) error {
	return h.arena.Inject(d.Participant, d.Action, d.Target)
}

func (h *handle) ValidateDecision(d session.Decision) error {
	return h.arena.Validate(d.Participant, d.Action, d.Target)
}

func (h *handle) DrainMessages() []string { return h.arena.Drain() }

func (h *handle) Release() { h.arena.Release() }

func (h *handle) Participants() []session.Participant {
	fighters := h.arena.Fighters()
	out := make([]session.Participant, len(fighters))
	for i, f := range fighters {
		out[i] = session.Participant{
			ID:     f.ID,
			Name:   f.Name,
			HP:     f.HP,
			MaxHP:  f.MaxHP,
			Weapon: f.Weapon.Name,
			Alive:  f.Alive,
		}
	}
	return out
}
