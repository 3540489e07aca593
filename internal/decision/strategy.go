package decision

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/Shopify/go-lua"

	apperrors "github.com/Iron-Ham/gladoid/internal/errors"
	"github.com/Iron-Ham/gladoid/internal/logging"
	"github.com/Iron-Ham/gladoid/internal/session"
)

// Strategy names accepted by NewStrategy.
const (
	StrategyFixed  = "fixed"
	StrategyRandom = "random"
	StrategyLua    = "lua"
)

// TargetStrategy picks the target of a fallback decision.
type TargetStrategy interface {
	Target(ctx context.Context, pending session.PendingDecision, roster []session.Participant) int
}

// NewStrategy builds the named strategy. fixed is the target used by the
// fixed strategy and whenever another strategy cannot pick one.
func NewStrategy(name string, fixed int, script string, logger *logging.Logger) (TargetStrategy, error) {
	switch name {
	case "", StrategyFixed:
		return FixedTarget(fixed), nil
	case StrategyRandom:
		return NewRandomOpponent(fixed, nil), nil
	case StrategyLua:
		return NewLuaStrategy(script, fixed, logger)
	default:
		return nil, apperrors.NewValidationError("unknown target strategy").
			WithField("decision.fallback_target").WithValue(name)
	}
}

// FixedTarget always returns the same target, regardless of who is pending.
type FixedTarget int

// Target implements TargetStrategy.
func (f FixedTarget) Target(context.Context, session.PendingDecision, []session.Participant) int {
	return int(f)
}

// RandomOpponent picks a living participant other than the pending one.
type RandomOpponent struct {
	mu       sync.Mutex
	rng      *rand.Rand
	fallback int
}

// NewRandomOpponent returns a RandomOpponent. fallback is used when the
// roster is unknown or nobody else is alive. A nil rng uses a clock seed.
func NewRandomOpponent(fallback int, rng *rand.Rand) *RandomOpponent {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &RandomOpponent{rng: rng, fallback: fallback}
}

// Target implements TargetStrategy.
func (r *RandomOpponent) Target(_ context.Context, pending session.PendingDecision, roster []session.Participant) int {
	opponents := livingOpponents(pending, roster)
	if len(opponents) == 0 {
		return r.fallback
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return opponents[r.rng.IntN(len(opponents))].ID
}

func livingOpponents(pending session.PendingDecision, roster []session.Participant) []session.Participant {
	var out []session.Participant
	for _, p := range roster {
		if p.Alive && p.ID != pending.Participant {
			out = append(out, p)
		}
	}
	return out
}

// LuaStrategy delegates target selection to a Lua script defining
//
//	function choose_target(participant, opponents) ... end
//
// where participant and each opponent are tables with id, name, hp, max_hp,
// weapon and alive fields. The function returns a participant id. Script
// errors and non-positive results fall back to the fixed target.
type LuaStrategy struct {
	mu       sync.Mutex
	state    *lua.State
	path     string
	fallback int
	logger   *logging.Logger
}

const luaEntryPoint = "choose_target"

// NewLuaStrategy loads and runs the script at path.
func NewLuaStrategy(path string, fallback int, logger *logging.Logger) (*LuaStrategy, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}

	state := lua.NewState()
	lua.OpenLibraries(state)

	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	if err := state.ProtectedCall(0, 0, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}

	state.Global(luaEntryPoint)
	isFunc := state.IsFunction(-1)
	state.Pop(1)
	if !isFunc {
		return nil, apperrors.NewValidationError("script must define " + luaEntryPoint).
			WithField("decision.script").WithValue(path)
	}

	return &LuaStrategy{
		state:    state,
		path:     path,
		fallback: fallback,
		logger:   logger.WithComponent("lua"),
	}, nil
}

// Target implements TargetStrategy.
func (s *LuaStrategy) Target(_ context.Context, pending session.PendingDecision, roster []session.Participant) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	self := session.Participant{ID: pending.Participant, Name: pending.Name, Alive: true}
	for _, p := range roster {
		if p.ID == pending.Participant {
			self = p
		}
	}

	l := s.state
	l.Global(luaEntryPoint)
	pushParticipant(l, self)
	l.NewTable()
	for i, p := range livingOpponents(pending, roster) {
		pushParticipant(l, p)
		l.RawSetInt(-2, i+1)
	}

	if err := l.ProtectedCall(2, 1, 0); err != nil {
		l.SetTop(0)
		s.logger.Warn("lua target selection failed", "script", s.path, "error", err.Error())
		return s.fallback
	}
	target, ok := l.ToInteger(-1)
	l.Pop(1)
	if !ok || target <= 0 {
		s.logger.Warn("lua target selection returned no target", "script", s.path)
		return s.fallback
	}
	return target
}

func pushParticipant(l *lua.State, p session.Participant) {
	l.NewTable()
	l.PushInteger(p.ID)
	l.SetField(-2, "id")
	l.PushString(p.Name)
	l.SetField(-2, "name")
	l.PushInteger(p.HP)
	l.SetField(-2, "hp")
	l.PushInteger(p.MaxHP)
	l.SetField(-2, "max_hp")
	l.PushString(p.Weapon)
	l.SetField(-2, "weapon")
	l.PushBoolean(p.Alive)
	l.SetField(-2, "alive")
}
