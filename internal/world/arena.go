// Package world implements the arena duel simulation and the session.World
// adapter over it.
//
// Each step resolves the decision injected for the fighter holding the turn,
// checks for deaths, and then races the living fighters for the next turn.
// Narration produced along the way is buffered until drained.
package world

import (
	"fmt"
	"math/rand/v2"

	apperrors "github.com/Iron-Ham/gladoid/internal/errors"
)

// Action identifiers accepted by Inject.
const (
	ActionAttack       = 1
	ActionChooseWeapon = 2
	ActionHeal         = 3
	ActionPass         = 4
)

const (
	// turnThreshold is the progress a fighter needs to contend for the turn.
	turnThreshold = 100
	// healAmount is restored by ActionHeal, capped at max hp.
	healAmount = 3
)

// Fighter is one combatant.
type Fighter struct {
	ID       int
	Name     string
	HP       int
	MaxHP    int
	Weapon   Weapon
	Speed    int
	Progress int
	Alive    bool
}

type action struct {
	id     int
	target int
}

// Arena is the simulation state. It is not safe for concurrent use.
type Arena struct {
	fighters []*Fighter
	armory   []Weapon
	rng      *rand.Rand

	turn      *Fighter // fighter required to act, nil when nobody is
	decided   *action  // action injected for turn, resolved by the next Step
	narration []string
	concluded bool
	released  bool
}

// NewArena spawns the roster's fighters. rng drives tie-breaks in the turn race.
func NewArena(r Roster, rng *rand.Rand) (*Arena, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	a := &Arena{
		armory: append([]Weapon(nil), r.Armory...),
		rng:    rng,
	}
	for i, spec := range r.Fighters {
		a.fighters = append(a.fighters, &Fighter{
			ID:     i + 1,
			Name:   spec.Name,
			HP:     spec.HP,
			MaxHP:  spec.HP,
			Weapon: r.weapon(spec.Weapon),
			Speed:  spec.Speed,
			Alive:  true,
		})
	}
	return a, nil
}

// Step advances the arena by one tick.
//
// It returns an error wrapping errors.ErrGameOver on the tick that decides
// the duel (after buffering the closing narration) and on every call after.
// Stepping while the turn holder has not been given an action is a fault.
func (a *Arena) Step() error {
	switch {
	case a.released:
		return apperrors.NewWorldError("step", apperrors.ErrWorldReleased)
	case a.concluded:
		return apperrors.NewWorldError("step", apperrors.ErrGameOver)
	case a.turn != nil && a.decided == nil:
		return apperrors.NewWorldError("step", apperrors.ErrDecisionOutstanding)
	}

	if a.turn != nil {
		a.resolve(a.turn, *a.decided)
		a.narrate("Removing turn from %s...", a.turn.Name)
		a.turn, a.decided = nil, nil
	}

	if a.updateAlive() {
		a.concluded = true
		return apperrors.NewWorldError("step", apperrors.ErrGameOver)
	}

	a.raceForTurn()
	return nil
}

func (a *Arena) resolve(actor *Fighter, act action) {
	switch act.id {
	case ActionAttack:
		target := a.fighter(act.target)
		if target == nil || target == actor || !target.Alive {
			a.narrate("%s attacked someone that does not exist... Somehow.", actor.Name)
			return
		}
		target.HP -= actor.Weapon.Damage
		a.narrate("%s hit %s in the head with a %s.", actor.Name, target.Name, actor.Weapon.Name)
		a.narrate("%s took %d damage. %s has %d hp left", target.Name, actor.Weapon.Damage, target.Name, target.HP)
	case ActionChooseWeapon:
		actor.Weapon = a.armory[act.target-1]
		a.narrate("%s picked up a %s.", actor.Name, actor.Weapon.Name)
	case ActionHeal:
		healed := min(healAmount, actor.MaxHP-actor.HP)
		actor.HP += healed
		a.narrate("%s healed %d hp. %s has %d hp left", actor.Name, healed, actor.Name, actor.HP)
	case ActionPass:
		a.narrate("%s waited.", actor.Name)
	}
}

// updateAlive marks fallen fighters and reports whether the duel is decided.
func (a *Arena) updateAlive() bool {
	var fallen []*Fighter
	for _, f := range a.fighters {
		if f.Alive && f.HP <= 0 {
			f.Alive = false
			fallen = append(fallen, f)
		}
	}
	if len(fallen) == 0 {
		return false
	}

	alive := a.living()
	if len(alive) == 1 {
		for _, f := range fallen {
			a.narrate("%s died. %s won.", f.Name, alive[0].Name)
		}
		return true
	}
	for _, f := range fallen {
		a.narrate("%s died.", f.Name)
	}
	return len(alive) == 0
}

// raceForTurn adds every living fighter's speed to its progress. Among those
// at or above the threshold one is picked with probability proportional to
// progress; its progress resets and it becomes the turn holder. The others
// keep their progress for the next race.
func (a *Arena) raceForTurn() {
	var (
		contenders []*Fighter
		total      int
	)
	for _, f := range a.living() {
		f.Progress += f.Speed
		if f.Progress >= turnThreshold {
			contenders = append(contenders, f)
			total += f.Progress
		}
	}

	var chosen *Fighter
	switch len(contenders) {
	case 0:
		return
	case 1:
		chosen = contenders[0]
	default:
		pick := a.rng.IntN(total)
		for _, f := range contenders {
			if pick < f.Progress {
				chosen = f
				break
			}
			pick -= f.Progress
		}
	}

	chosen.Progress = 0
	a.turn = chosen
}

// Pending returns the fighter required to act, if any.
func (a *Arena) Pending() (*Fighter, bool) {
	if a.released || a.turn == nil || a.decided != nil {
		return nil, false
	}
	return a.turn, true
}

// Validate checks an action for participant without recording it.
func (a *Arena) Validate(participant, actionID, target int) error {
	if a.released {
		return apperrors.NewWorldError("inject", apperrors.ErrWorldReleased)
	}
	if a.turn == nil || a.decided != nil {
		return apperrors.NewDecisionError("no fighter is waiting for an action", apperrors.ErrNoPendingDecision).
			WithParticipant(participant).WithAction(actionID)
	}
	if participant != a.turn.ID {
		return apperrors.NewDecisionError(fmt.Sprintf("%s holds the turn", a.turn.Name), apperrors.ErrWrongParticipant).
			WithParticipant(participant).WithAction(actionID)
	}

	invalid := func(msg string) error {
		return apperrors.NewDecisionError(msg, apperrors.ErrInvalidAction).
			WithParticipant(participant).WithAction(actionID)
	}
	switch actionID {
	case ActionAttack:
		if target == 0 {
			return invalid("attack needs a target")
		}
	case ActionChooseWeapon:
		if target < 1 || target > len(a.armory) {
			return invalid(fmt.Sprintf("armory has %d weapons", len(a.armory)))
		}
	case ActionHeal, ActionPass:
	default:
		return invalid("unknown action")
	}
	return nil
}

// Inject records the turn holder's action; it takes effect on the next Step.
func (a *Arena) Inject(participant, actionID, target int) error {
	if err := a.Validate(participant, actionID, target); err != nil {
		return err
	}
	a.decided = &action{id: actionID, target: target}
	return nil
}

// Drain removes and returns buffered narration in production order.
func (a *Arena) Drain() []string {
	out := a.narration
	a.narration = nil
	return out
}

// Fighters returns a snapshot of every fighter.
func (a *Arena) Fighters() []Fighter {
	out := make([]Fighter, len(a.fighters))
	for i, f := range a.fighters {
		out[i] = *f
	}
	return out
}

// Armory returns the weapons selectable with ActionChooseWeapon, 1-based.
func (a *Arena) Armory() []Weapon {
	return append([]Weapon(nil), a.armory...)
}

// Concluded reports whether the duel has been decided.
func (a *Arena) Concluded() bool { return a.concluded }

// Release drops all state. Further calls fail with errors.ErrWorldReleased.
func (a *Arena) Release() {
	a.released = true
	a.narration = nil
	a.turn, a.decided = nil, nil
}

func (a *Arena) fighter(id int) *Fighter {
	if id < 1 || id > len(a.fighters) {
		return nil
	}
	return a.fighters[id-1]
}

func (a *Arena) living() []*Fighter {
	var out []*Fighter
	for _, f := range a.fighters {
		if f.Alive {
			out = append(out, f)
		}
	}
	return out
}

func (a *Arena) narrate(format string, args ...any) {
	a.narration = append(a.narration, fmt.Sprintf(format, args...))
}
