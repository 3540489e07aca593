package decision

import (
	"context"
	"time"

	"github.com/Iron-Ham/gladoid/internal/logging"
	"github.com/Iron-Ham/gladoid/internal/session"
)

// FallbackNotice is relayed when a decision is synthesized for name.
func FallbackNotice(name string) string {
	return "Need action from " + name + "... Too slow. Applying the default action."
}

// PolicyConfig configures a Policy.
type PolicyConfig struct {
	// Action is the action identifier of fallback decisions.
	Action int
	// Strategy picks the fallback target. Nil targets nobody.
	Strategy TargetStrategy
	// Gate receives real submissions. Nil resolves every decision by fallback.
	Gate *Gate
	// OnAwait is called once the gate is open for a submission, with the
	// time left to submit. It must not block.
	OnAwait func(pending session.PendingDecision, deadline time.Duration)
	Logger  *logging.Logger
}

// Policy implements session.DeadlinePolicy. It waits up to the request's
// deadline for a submission through its Gate and otherwise injects a
// fallback decision, telling the participant so.
type Policy struct {
	action   int
	strategy TargetStrategy
	gate     *Gate
	onAwait  func(session.PendingDecision, time.Duration)
	logger   *logging.Logger
}

var _ session.DeadlinePolicy = (*Policy)(nil)

// NewPolicy creates a Policy.
func NewPolicy(cfg PolicyConfig) *Policy {
	if cfg.Strategy == nil {
		cfg.Strategy = FixedTarget(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NopLogger()
	}
	return &Policy{
		action:   cfg.Action,
		strategy: cfg.Strategy,
		gate:     cfg.Gate,
		onAwait:  cfg.OnAwait,
		logger:   cfg.Logger.WithComponent("decision"),
	}
}

// Resolve implements session.DeadlinePolicy.
func (p *Policy) Resolve(ctx context.Context, req session.DecisionRequest) (session.Resolution, error) {
	if err := ctx.Err(); err != nil {
		return session.Resolution{}, err
	}
	if req.Deadline > 0 && p.gate != nil {
		d, ok, err := p.await(ctx, req)
		if err != nil {
			return session.Resolution{}, err
		}
		if ok {
			return session.Resolution{Decision: d}, nil
		}
	}
	return p.fallback(ctx, req), nil
}

// await waits for a real submission. It reports false when the deadline
// passed without one.
func (p *Policy) await(ctx context.Context, req session.DecisionRequest) (session.Decision, bool, error) {
	accepted := p.gate.Open(req.Pending, req.Validate)
	defer p.gate.Close()
	if p.onAwait != nil {
		p.onAwait(req.Pending, req.Deadline)
	}

	timer := time.NewTimer(req.Deadline)
	defer timer.Stop()

	select {
	case d := <-accepted:
		return d, true, nil
	case <-ctx.Done():
		return session.Decision{}, false, ctx.Err()
	case <-timer.C:
	}

	// A submission accepted between the timer firing and Close wins.
	p.gate.Close()
	select {
	case d := <-accepted:
		return d, true, nil
	default:
		return session.Decision{}, false, nil
	}
}

func (p *Policy) fallback(ctx context.Context, req session.DecisionRequest) session.Resolution {
	d := session.Decision{
		Participant: req.Pending.Participant,
		Action:      p.action,
		Target:      p.strategy.Target(ctx, req.Pending, req.Roster),
	}

	if req.Relay != nil {
		if err := req.Relay.Send(ctx, FallbackNotice(req.Pending.Name)); err != nil {
			p.logger.Warn("failed to relay fallback notice",
				"participant", req.Pending.Participant, "error", err.Error())
		}
	}
	return session.Resolution{Decision: d, Fallback: true}
}
