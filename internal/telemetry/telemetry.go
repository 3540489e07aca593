// Package telemetry wraps OpenTelemetry tracing and metrics for sessions.
//
// Instruments are taken from the global providers, so nothing is exported
// until the process installs real ones with otel.SetTracerProvider and
// otel.SetMeterProvider. Until then every call is a cheap no-op.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Scope is the instrumentation scope name.
const Scope = "github.com/Iron-Ham/gladoid/session"

// Session outcomes recorded on the sessions counter.
const (
	OutcomeEnded    = "ended"
	OutcomeAborted  = "aborted"
	OutcomeCanceled = "canceled"
)

// Telemetry records spans and counters for session drivers.
// A nil *Telemetry is valid and records nothing.
type Telemetry struct {
	tracer       trace.Tracer
	sessions     metric.Int64Counter
	steps        metric.Int64Counter
	fallbacks    metric.Int64Counter
	decisionWait metric.Float64Histogram
}

// New builds a Telemetry from the global providers. Instrument creation
// errors leave that instrument unset; the others still record.
func New() *Telemetry {
	meter := otel.Meter(Scope)
	t := &Telemetry{tracer: otel.Tracer(Scope)}

	t.sessions, _ = meter.Int64Counter("gladoid.sessions",
		metric.WithDescription("Sessions finished, by outcome"))
	t.steps, _ = meter.Int64Counter("gladoid.steps",
		metric.WithDescription("World steps taken"))
	t.fallbacks, _ = meter.Int64Counter("gladoid.fallbacks",
		metric.WithDescription("Decisions synthesized after the deadline"))
	t.decisionWait, _ = meter.Float64Histogram("gladoid.decision.wait",
		metric.WithDescription("Time spent resolving a pending decision"),
		metric.WithUnit("s"))

	return t
}

// StartSession opens the span covering one session's lifetime.
func (t *Telemetry) StartSession(ctx context.Context, sessionID, initiator string) (context.Context, trace.Span) {
	if t == nil || t.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return t.tracer.Start(ctx, "session.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("gladoid.session_id", sessionID),
			attribute.String("gladoid.initiator", initiator),
		))
}

// Step counts one successful world step.
func (t *Telemetry) Step(ctx context.Context) {
	if t == nil || t.steps == nil {
		return
	}
	t.steps.Add(ctx, 1)
}

// Decision records how a pending decision was resolved and how long it took.
func (t *Telemetry) Decision(ctx context.Context, participant int, fallback bool, waited time.Duration) {
	if t == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.Int("gladoid.participant", participant),
		attribute.Bool("gladoid.fallback", fallback),
	)
	if t.decisionWait != nil {
		t.decisionWait.Record(ctx, waited.Seconds(), attrs)
	}
	if fallback && t.fallbacks != nil {
		t.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.Int("gladoid.participant", participant)))
	}
	trace.SpanFromContext(ctx).AddEvent("decision.resolved", trace.WithAttributes(
		attribute.Int("gladoid.participant", participant),
		attribute.Bool("gladoid.fallback", fallback),
	))
}

// Finish closes the session span and counts the outcome. err is recorded on
// the span for aborted sessions.
func (t *Telemetry) Finish(ctx context.Context, span trace.Span, outcome string, steps uint64, err error) {
	if t == nil {
		return
	}
	if t.sessions != nil {
		t.sessions.Add(ctx, 1, metric.WithAttributes(attribute.String("gladoid.outcome", outcome)))
	}
	if span == nil {
		return
	}
	span.SetAttributes(
		attribute.String("gladoid.outcome", outcome),
		attribute.Int64("gladoid.steps", int64(steps)),
	)
	if err != nil && outcome == OutcomeAborted {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
