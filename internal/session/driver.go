package session

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/Iron-Ham/gladoid/internal/errors"
	"github.com/Iron-Ham/gladoid/internal/event"
	"github.com/Iron-Ham/gladoid/internal/telemetry"
)

// ErrAlreadyStarted is returned by Run on a Session that has run before.
var ErrAlreadyStarted = apperrors.New("session already started")

// Run creates the world and drives it until the game concludes, a fault
// occurs or ctx is canceled.
//
// It returns nil when the world reported that the game concluded; the
// terminal message has then been relayed last. Any other return is a
// *errors.SessionError: a fault (step, inject or policy failure) or a
// cancellation (errors.IsCanceled). In both cases nothing further was relayed
// and the world has been released.
func (s *Session) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, span := s.tel.StartSession(ctx, s.id, s.initiator)
	s.startedAt = time.Now()

	world, err := s.adapter.Create(ctx)
	if err != nil {
		return s.abort(ctx, span, "failed to create world", err)
	}
	defer world.Release()

	if err := s.transition(StateRunning); err != nil {
		return s.abort(ctx, span, "failed to start", err)
	}
	s.logger.Info("session started", "initiator", s.initiator, "deadline", s.opts.Deadline.String())
	s.send(ctx, AckMessage)
	s.bus.Publish(event.NewSessionStartedEvent(s.id, s.initiator, s.opts.HumanSeat))

	for {
		if err := ctx.Err(); err != nil {
			return s.cancel(ctx, span, err)
		}

		stepErr := world.Step()
		if err := ctx.Err(); err != nil {
			return s.cancel(ctx, span, err)
		}
		outcome := ClassifyStep(stepErr)
		if outcome == StepFault {
			return s.abort(ctx, span, "step failed", stepErr)
		}

		step := s.steps.Add(1)
		s.tel.Step(ctx)
		narrated := s.relayNarration(ctx, world)
		s.logger.Debug("step", "step", step, "state", s.State().String(), "narrated", narrated)

		if outcome == StepTerminated {
			return s.end(ctx, span)
		}
		s.bus.Publish(event.NewStepCompletedEvent(s.id, step, narrated))

		// Narration delivery may outlast the host.
		if err := ctx.Err(); err != nil {
			return s.cancel(ctx, span, err)
		}
		if pending, ok := world.PendingDecision(); ok {
			if err := s.decide(ctx, world, pending); err != nil {
				if ctx.Err() != nil {
					return s.cancel(ctx, span, ctx.Err())
				}
				return s.abort(ctx, span, "decision failed", err)
			}
		}

		s.yield(ctx)
	}
}

// decide resolves one pending decision through the policy and injects it.
func (s *Session) decide(ctx context.Context, world World, pending PendingDecision) error {
	if err := s.transition(StateAwaitingDecision); err != nil {
		return err
	}

	deadline := s.deadlineFor(pending.Participant)
	log := s.logger.WithParticipant(pending.Participant)
	log.Info("decision requested", "name", pending.Name, "deadline", deadline.String())
	s.bus.Publish(event.NewDecisionRequestedEvent(s.id, pending.Participant, pending.Name, deadline))

	req := DecisionRequest{
		SessionID: s.id,
		Pending:   pending,
		Deadline:  deadline,
		Relay:     s.relay,
	}
	if lister, ok := world.(ParticipantLister); ok {
		req.Roster = lister.Participants()
	}
	if v, ok := world.(DecisionValidator); ok {
		req.Validate = v.ValidateDecision
	}

	began := time.Now()
	res, err := s.policy.Resolve(ctx, req)
	if err != nil {
		return err
	}
	s.tel.Decision(ctx, pending.Participant, res.Fallback, time.Since(began))

	if res.Decision.Participant != pending.Participant {
		return apperrors.NewDecisionError("policy resolved a decision for another participant",
			apperrors.ErrWrongParticipant).
			WithParticipant(res.Decision.Participant).
			WithAction(res.Decision.Action)
	}

	if err := world.Inject(res.Decision); err != nil {
		return err
	}
	if res.Fallback {
		s.fallbacks.Add(1)
	}

	log.Info("decision resolved",
		"action", res.Decision.Action,
		"target", res.Decision.Target,
		"fallback", res.Fallback)
	s.bus.Publish(event.NewDecisionResolvedEvent(s.id, pending.Participant,
		res.Decision.Action, res.Decision.Target, res.Fallback))

	return s.transition(StateRunning)
}

// relayNarration drains the world and forwards the batch, returning its size.
func (s *Session) relayNarration(ctx context.Context, world World) int {
	lines := world.DrainMessages()
	if len(lines) == 0 {
		return 0
	}
	if err := s.relay.Flush(ctx, lines); err != nil {
		s.logger.Warn("failed to relay narration", "lines", len(lines), "error", err.Error())
	}
	return len(lines)
}

// send delivers one message. Delivery failures are logged, not fatal.
func (s *Session) send(ctx context.Context, text string) {
	if err := s.relay.Send(ctx, text); err != nil {
		s.logger.Warn("failed to relay message", "error", err.Error())
	}
}

// yield hands the processor back between iterations. Cancellation during the
// pause is picked up by the check at the top of the loop.
func (s *Session) yield(ctx context.Context) {
	if s.opts.StepInterval <= 0 {
		runtime.Gosched()
		return
	}
	t := time.NewTimer(s.opts.StepInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (s *Session) end(ctx context.Context, span trace.Span) error {
	s.send(ctx, TerminalMessage)
	if err := s.transition(StateEnded); err != nil {
		return s.abort(ctx, span, "failed to end", err)
	}

	s.logger.Info("session ended", "steps", s.Steps(), "fallbacks", s.Fallbacks())
	s.bus.Publish(event.NewSessionEndedEvent(s.id, s.initiator, s.Steps(), s.Fallbacks(), s.startedAt))
	s.tel.Finish(ctx, span, telemetry.OutcomeEnded, s.Steps(), nil)
	return nil
}

func (s *Session) abort(ctx context.Context, span trace.Span, msg string, cause error) error {
	prev := s.State()
	s.state.Store(int32(StateAborted))

	err := apperrors.NewSessionError(msg, cause).
		WithSessionID(s.id).
		WithStep(s.Steps()).
		WithState(prev.String())
	if apperrors.IsInvalidDecision(cause) {
		err = err.WithSeverity(apperrors.SeverityCritical)
	}

	s.logger.Error("session aborted", "state", prev.String(), "steps", s.Steps(), "error", cause.Error())
	s.bus.Publish(event.NewSessionAbortedEvent(s.id, s.initiator, s.Steps(), s.Fallbacks(), s.startedAt, false, err))
	s.tel.Finish(ctx, span, telemetry.OutcomeAborted, s.Steps(), err)
	return err
}

func (s *Session) cancel(ctx context.Context, span trace.Span, cause error) error {
	prev := s.State()
	s.state.Store(int32(StateAborted))

	err := apperrors.NewSessionError("session canceled", apperrors.Join(apperrors.ErrSessionCanceled, cause)).
		WithSessionID(s.id).
		WithStep(s.Steps()).
		WithState(prev.String()).
		WithSeverity(apperrors.SeverityInfo)

	s.logger.Info("session canceled", "state", prev.String(), "steps", s.Steps())
	s.bus.Publish(event.NewSessionAbortedEvent(s.id, s.initiator, s.Steps(), s.Fallbacks(), s.startedAt, true, err))
	s.tel.Finish(ctx, span, telemetry.OutcomeCanceled, s.Steps(), nil)
	return err
}
