// Package host assembles sessions for the front ends: it wires a world
// adapter, a decision gate and policy, and a relay chain into a runnable
// session.Session.
package host

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Iron-Ham/gladoid/internal/decision"
	"github.com/Iron-Ham/gladoid/internal/event"
	"github.com/Iron-Ham/gladoid/internal/logging"
	"github.com/Iron-Ham/gladoid/internal/relay"
	"github.com/Iron-Ham/gladoid/internal/session"
	"github.com/Iron-Ham/gladoid/internal/telemetry"
)

// Settings are the per-session knobs read when a game is launched. They can
// change between launches without affecting running games.
type Settings struct {
	Options        session.Options
	FallbackAction int
	Strategy       decision.TargetStrategy
	// MessagesPerSecond and Burst pace deliveries. 0 disables pacing.
	MessagesPerSecond float64
	Burst             int
}

// Game is a launched session and the gate its participant submits through.
type Game struct {
	Session *session.Session
	Gate    *decision.Gate
}

// LaunchOptions are what the front end supplies for one game.
type LaunchOptions struct {
	Initiator string
	// Deliver receives everything relayed to the participant.
	Deliver relay.Func
	// OnAwait is told when the participant's decision is open.
	OnAwait func(pending session.PendingDecision, deadline time.Duration)
	// Middlewares wrap Deliver inside the launcher's own pacing and publishing.
	Middlewares []relay.Middleware
}

// Launcher builds games. It is safe for concurrent use.
type Launcher struct {
	adapter session.WorldAdapter
	bus     *event.Bus
	logger  *logging.Logger
	tel     *telemetry.Telemetry

	mu       sync.RWMutex
	settings Settings
}

// NewLauncher creates a Launcher.
func NewLauncher(adapter session.WorldAdapter, bus *event.Bus, logger *logging.Logger, tel *telemetry.Telemetry, settings Settings) *Launcher {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if bus == nil {
		bus = event.NewBus(logger)
	}
	return &Launcher{
		adapter:  adapter,
		bus:      bus,
		logger:   logger,
		tel:      tel,
		settings: settings,
	}
}

// Settings returns the settings new games are launched with.
func (l *Launcher) Settings() Settings {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.settings
}

// UpdateSettings replaces the settings for games launched from now on.
func (l *Launcher) UpdateSettings(s Settings) {
	l.mu.Lock()
	l.settings = s
	l.mu.Unlock()
	l.logger.Info("session settings updated",
		"deadline", s.Options.Deadline.String(),
		"fallback_action", s.FallbackAction,
		"human_seat", s.Options.HumanSeat)
}

// Launch creates an idle game. The caller runs game.Session.Run.
func (l *Launcher) Launch(opts LaunchOptions) (*Game, error) {
	settings := l.Settings()
	id := uuid.NewString()
	gate := decision.NewGate()

	policy := decision.NewPolicy(decision.PolicyConfig{
		Action:   settings.FallbackAction,
		Strategy: settings.Strategy,
		Gate:     gate,
		OnAwait:  opts.OnAwait,
		Logger:   l.logger.WithSession(id),
	})

	mws := append([]relay.Middleware{
		relay.Paced(settings.MessagesPerSecond, settings.Burst),
		relay.Published(l.bus, id),
	}, opts.Middlewares...)
	out := relay.Chain(opts.Deliver, mws...)

	s, err := session.New(session.Config{
		ID:        id,
		Initiator: opts.Initiator,
		Adapter:   l.adapter,
		Policy:    policy,
		Relay:     out,
		Bus:       l.bus,
		Logger:    l.logger,
		Telemetry: l.tel,
		Options:   settings.Options,
	})
	if err != nil {
		return nil, err
	}
	return &Game{Session: s, Gate: gate}, nil
}
