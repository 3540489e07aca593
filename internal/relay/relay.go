// Package relay provides session.Relay implementations and middlewares that
// wrap them: writing to an io.Writer, calling a function, pacing deliveries,
// copying them to a second relay and publishing them on the event bus.
package relay

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/Iron-Ham/gladoid/internal/event"
	"github.com/Iron-Ham/gladoid/internal/session"
)

// Middleware wraps a relay with additional behavior.
type Middleware func(next session.Relay) session.Relay

// Chain wraps base with mws. The first middleware is the outermost.
func Chain(base session.Relay, mws ...Middleware) session.Relay {
	r := base
	for i := len(mws) - 1; i >= 0; i-- {
		r = mws[i](r)
	}
	return r
}

// Func adapts a delivery function to session.Relay. Flush delivers the
// newline-joined batch in one call.
type Func func(ctx context.Context, text string) error

// Send implements session.Relay.
func (f Func) Send(ctx context.Context, text string) error { return f(ctx, text) }

// Flush implements session.Relay.
func (f Func) Flush(ctx context.Context, lines []string) error {
	return f(ctx, strings.Join(lines, "\n"))
}

// Writer writes each delivery to an io.Writer followed by a newline.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter returns a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Send implements session.Relay.
func (w *Writer) Send(_ context.Context, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprintln(w.w, text); err != nil {
		return fmt.Errorf("write delivery: %w", err)
	}
	return nil
}

// Flush implements session.Relay.
func (w *Writer) Flush(ctx context.Context, lines []string) error {
	return w.Send(ctx, strings.Join(lines, "\n"))
}

// Paced limits deliveries to perSecond with the given burst. Each delivery
// waits for a token and fails if ctx ends first. A non-positive perSecond
// returns next unchanged.
func Paced(perSecond float64, burst int) Middleware {
	return func(next session.Relay) session.Relay {
		if perSecond <= 0 {
			return next
		}
		if burst < 1 {
			burst = 1
		}
		return &paced{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
	}
}

type paced struct {
	next    session.Relay
	limiter *rate.Limiter
}

func (p *paced) Send(ctx context.Context, text string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pace delivery: %w", err)
	}
	return p.next.Send(ctx, text)
}

func (p *paced) Flush(ctx context.Context, lines []string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("pace delivery: %w", err)
	}
	return p.next.Flush(ctx, lines)
}

// Published publishes every delivery that next accepted as an
// event.NarrationEvent for sessionID.
func Published(bus *event.Bus, sessionID string) Middleware {
	return func(next session.Relay) session.Relay {
		return &published{next: next, bus: bus, sessionID: sessionID}
	}
}

type published struct {
	next      session.Relay
	bus       *event.Bus
	sessionID string
}

func (p *published) Send(ctx context.Context, text string) error {
	if err := p.next.Send(ctx, text); err != nil {
		return err
	}
	p.bus.Publish(event.NewNarrationEvent(p.sessionID, []string{text}))
	return nil
}

func (p *published) Flush(ctx context.Context, lines []string) error {
	if err := p.next.Flush(ctx, lines); err != nil {
		return err
	}
	p.bus.Publish(event.NewNarrationEvent(p.sessionID, lines))
	return nil
}

// Tee copies every delivery next accepted to also. A failure of either is
// returned; a failure of next skips the copy.
func Tee(also session.Relay) Middleware {
	return func(next session.Relay) session.Relay {
		return &tee{next: next, also: also}
	}
}

type tee struct {
	next session.Relay
	also session.Relay
}

func (t *tee) Send(ctx context.Context, text string) error {
	if err := t.next.Send(ctx, text); err != nil {
		return err
	}
	if err := t.also.Send(ctx, text); err != nil {
		return fmt.Errorf("copy delivery: %w", err)
	}
	return nil
}

func (t *tee) Flush(ctx context.Context, lines []string) error {
	if err := t.next.Flush(ctx, lines); err != nil {
		return err
	}
	if err := t.also.Flush(ctx, lines); err != nil {
		return fmt.Errorf("copy delivery: %w", err)
	}
	return nil
}
