// Package event provides the pub-sub bus that carries session lifecycle
// notifications in Gladoid.
//
// The session driver publishes events as it moves through its states; the
// results recorder, the terminal UI and the websocket host subscribe to the
// ones they care about. Publishers never know who is listening.
//
// # Main Types
//
//   - [Event]: implemented by every event, providing EventType and Timestamp
//   - [Bus]: synchronous dispatcher, safe for concurrent use
//   - [Handler]: func(Event)
//
// # Event Types
//
// Session lifecycle:
//   - [SessionStartedEvent] "session.started"
//   - [StepCompletedEvent] "session.step"
//   - [NarrationEvent] "session.narration"
//   - [SessionEndedEvent] "session.ended"
//   - [SessionAbortedEvent] "session.aborted"
//
// Decisions:
//   - [DecisionRequestedEvent] "decision.requested"
//   - [DecisionResolvedEvent] "decision.resolved"
//
// Handlers run on the publisher's goroutine, in subscription order, specific
// subscribers before wildcard ones. A panicking handler is logged and skipped.
//
//	bus := event.NewBus(logger)
//	id := bus.Subscribe(event.TypeSessionEnded, func(e event.Event) {
//	    ended := e.(event.SessionEndedEvent)
//	    ...
//	})
//	defer bus.Unsubscribe(id)
package event
