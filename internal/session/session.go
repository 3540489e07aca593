package session

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Iron-Ham/gladoid/internal/errors"
	"github.com/Iron-Ham/gladoid/internal/event"
	"github.com/Iron-Ham/gladoid/internal/logging"
	"github.com/Iron-Ham/gladoid/internal/telemetry"
)

// Messages relayed by the driver itself.
const (
	AckMessage      = "Game world successfully created... Beginning the game."
	TerminalMessage = "Game has ended, someone won."

	// HostFaultNotice is what hosts show a participant when Run returns a fault.
	HostFaultNotice = "The game could not continue."
)

// Options tune the driver loop.
type Options struct {
	// Deadline is how long the policy may wait for the human seat's decision.
	Deadline time.Duration

	// HumanSeat is the participant the initiator controls. Other seats get a
	// zero deadline. 0 gives every seat the full deadline.
	HumanSeat int

	// StepInterval pauses between iterations. 0 only yields the processor.
	StepInterval time.Duration
}

// Config holds a Session's collaborators. Adapter, Policy and Relay are required.
type Config struct {
	// ID identifies the session. Empty generates a UUID.
	ID string
	// Initiator is the identity of whoever triggered the session.
	Initiator string

	Adapter WorldAdapter
	Policy  DeadlinePolicy
	Relay   Relay

	Bus       *event.Bus
	Logger    *logging.Logger
	Telemetry *telemetry.Telemetry

	Options Options
}

// Session is one game and the control loop driving it. Accessors are safe to
// call from other goroutines while Run is in progress.
type Session struct {
	id        string
	initiator string

	adapter WorldAdapter
	policy  DeadlinePolicy
	relay   Relay
	bus     *event.Bus
	logger  *logging.Logger
	tel     *telemetry.Telemetry
	opts    Options

	state     atomic.Int32
	steps     atomic.Uint64
	fallbacks atomic.Int64
	started   atomic.Bool
	startedAt time.Time
}

// New validates cfg and returns an idle Session.
func New(cfg Config) (*Session, error) {
	switch {
	case cfg.Adapter == nil:
		return nil, apperrors.NewValidationError("world adapter is required").WithField("adapter")
	case cfg.Policy == nil:
		return nil, apperrors.NewValidationError("deadline policy is required").WithField("policy")
	case cfg.Relay == nil:
		return nil, apperrors.NewValidationError("relay is required").WithField("relay")
	case cfg.Options.Deadline < 0:
		return nil, apperrors.NewValidationError("must be non-negative").
			WithField("deadline").WithValue(cfg.Options.Deadline)
	}

	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	bus := cfg.Bus
	if bus == nil {
		bus = event.NewBus(logger)
	}

	return &Session{
		id:        id,
		initiator: cfg.Initiator,
		adapter:   cfg.Adapter,
		policy:    cfg.Policy,
		relay:     cfg.Relay,
		bus:       bus,
		logger:    logger.WithSession(id).WithComponent("driver"),
		tel:       cfg.Telemetry,
		opts:      cfg.Options,
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Initiator returns the identity that triggered the session.
func (s *Session) Initiator() string { return s.initiator }

// State returns the current state.
func (s *Session) State() State { return State(s.state.Load()) }

// Steps returns the number of world steps taken so far.
func (s *Session) Steps() uint64 { return s.steps.Load() }

// Fallbacks returns how many decisions were synthesized by the policy.
func (s *Session) Fallbacks() int { return int(s.fallbacks.Load()) }

// transition moves to next, refusing moves the state machine does not allow.
func (s *Session) transition(next State) error {
	for {
		cur := State(s.state.Load())
		if !cur.CanTransitionTo(next) {
			return fmt.Errorf("illegal transition %s -> %s", cur, next)
		}
		if s.state.CompareAndSwap(int32(cur), int32(next)) {
			return nil
		}
	}
}

// deadlineFor returns how long the policy may wait on participant.
func (s *Session) deadlineFor(participant int) time.Duration {
	if s.opts.HumanSeat != 0 && participant != s.opts.HumanSeat {
		return 0
	}
	return s.opts.Deadline
}
