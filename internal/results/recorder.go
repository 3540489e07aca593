package results

import (
	"context"
	"time"

	"github.com/Iron-Ham/gladoid/internal/event"
	"github.com/Iron-Ham/gladoid/internal/logging"
)

// saveTimeout bounds a single write triggered by an event.
const saveTimeout = 5 * time.Second

// Recorder saves a Record for every session that ends or aborts on a bus.
type Recorder struct {
	store  *Store
	logger *logging.Logger
	subs   []string
	bus    *event.Bus
}

// NewRecorder creates a Recorder writing to store.
func NewRecorder(store *Store, logger *logging.Logger) *Recorder {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Recorder{store: store, logger: logger.WithComponent("results")}
}

// Attach subscribes the recorder to bus. Call Detach to stop recording.
func (r *Recorder) Attach(bus *event.Bus) {
	r.bus = bus
	r.subs = append(r.subs,
		bus.Subscribe(event.TypeSessionEnded, r.onEvent),
		bus.Subscribe(event.TypeSessionAborted, r.onEvent),
	)
}

// Detach removes the recorder's subscriptions.
func (r *Recorder) Detach() {
	if r.bus == nil {
		return
	}
	for _, id := range r.subs {
		r.bus.Unsubscribe(id)
	}
	r.subs = nil
}

func (r *Recorder) onEvent(e event.Event) {
	rec, ok := recordFromEvent(e)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := r.store.Save(ctx, rec); err != nil {
		r.logger.Warn("failed to record session", "session_id", rec.ID, "error", err.Error())
		return
	}
	r.logger.Debug("session recorded", "session_id", rec.ID, "outcome", rec.Outcome)
}

func recordFromEvent(e event.Event) (Record, bool) {
	switch ev := e.(type) {
	case event.SessionEndedEvent:
		return Record{
			ID:        ev.SessionID,
			Initiator: ev.Initiator,
			Outcome:   OutcomeEnded,
			Steps:     ev.Steps,
			Fallbacks: ev.Fallbacks,
			StartedAt: ev.StartedAt,
			EndedAt:   ev.Timestamp(),
		}, true
	case event.SessionAbortedEvent:
		rec := Record{
			ID:        ev.SessionID,
			Initiator: ev.Initiator,
			Outcome:   OutcomeAborted,
			Steps:     ev.Steps,
			Fallbacks: ev.Fallbacks,
			StartedAt: ev.StartedAt,
			EndedAt:   ev.Timestamp(),
		}
		if ev.Canceled {
			rec.Outcome = OutcomeCanceled
		}
		if ev.Err != nil {
			rec.Error = ev.Err.Error()
		}
		return rec, true
	default:
		return Record{}, false
	}
}
