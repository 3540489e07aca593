package decision

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Iron-Ham/gladoid/internal/session"
)

type recordingRelay struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (r *recordingRelay) Send(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return r.err
}

func (r *recordingRelay) Flush(ctx context.Context, lines []string) error {
	return r.Send(ctx, strings.Join(lines, "\n"))
}

func (r *recordingRelay) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

func TestFallbackNotice(t *testing.T) {
	want := "Need action from Quanntum... Too slow. Applying the default action."
	if got := FallbackNotice("Quanntum"); got != want {
		t.Errorf("FallbackNotice() = %q, want %q", got, want)
	}
}

func TestPolicy_ZeroDeadlineFallsBackImmediately(t *testing.T) {
	gate := NewGate()
	relay := &recordingRelay{}
	p := NewPolicy(PolicyConfig{Action: 1, Strategy: FixedTarget(1), Gate: gate})

	res, err := p.Resolve(context.Background(), session.DecisionRequest{
		Pending: sergen,
		Relay:   relay,
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	want := session.Decision{Participant: 1, Action: 1, Target: 1}
	if !res.Fallback || res.Decision != want {
		t.Errorf("Resolve() = %+v, want fallback %+v", res, want)
	}
	if got := relay.all(); len(got) != 1 || got[0] != FallbackNotice("Sergen") {
		t.Errorf("relayed %q, want the fallback notice", got)
	}
	if _, ok := gate.Awaiting(); ok {
		t.Error("gate opened for a zero deadline")
	}
}

func TestPolicy_RealDecisionBeforeDeadline(t *testing.T) {
	gate := NewGate()
	relay := &recordingRelay{}
	p := NewPolicy(PolicyConfig{Action: 1, Strategy: FixedTarget(1), Gate: gate})

	go func() {
		for {
			if _, ok := gate.Awaiting(); ok {
				_ = gate.Submit(session.Decision{Participant: 1, Action: 3})
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	res, err := p.Resolve(context.Background(), session.DecisionRequest{
		Pending:  sergen,
		Deadline: 5 * time.Second,
		Relay:    relay,
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Fallback || res.Decision.Action != 3 {
		t.Errorf("Resolve() = %+v, want real heal", res)
	}
	if got := relay.all(); len(got) != 0 {
		t.Errorf("relayed %q, want nothing", got)
	}
	if _, ok := gate.Awaiting(); ok {
		t.Error("gate still open after resolution")
	}
}

func TestPolicy_DeadlineExpires(t *testing.T) {
	gate := NewGate()
	relay := &recordingRelay{}
	p := NewPolicy(PolicyConfig{Action: 4, Gate: gate})

	res, err := p.Resolve(context.Background(), session.DecisionRequest{
		Pending:  sergen,
		Deadline: 10 * time.Millisecond,
		Relay:    relay,
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !res.Fallback || res.Decision.Action != 4 {
		t.Errorf("Resolve() = %+v, want fallback pass", res)
	}
	if err := gate.Submit(session.Decision{Participant: 1, Action: 1, Target: 2}); err == nil {
		t.Error("late Submit() accepted after fallback")
	}
}

func TestPolicy_ContextCanceledWhileWaiting(t *testing.T) {
	gate := NewGate()
	relay := &recordingRelay{}
	p := NewPolicy(PolicyConfig{Action: 1, Gate: gate})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for {
			if _, ok := gate.Awaiting(); ok {
				cancel()
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	_, err := p.Resolve(ctx, session.DecisionRequest{
		Pending:  sergen,
		Deadline: time.Minute,
		Relay:    relay,
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Resolve() error = %v, want context.Canceled", err)
	}
	if got := relay.all(); len(got) != 0 {
		t.Errorf("relayed %q on cancellation, want nothing", got)
	}
}

func TestPolicy_CanceledContextSkipsFallback(t *testing.T) {
	gate := NewGate()
	relay := &recordingRelay{}
	p := NewPolicy(PolicyConfig{Action: 1, Strategy: FixedTarget(1), Gate: gate})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, deadline := range []time.Duration{0, time.Minute} {
		_, err := p.Resolve(ctx, session.DecisionRequest{
			Pending:  sergen,
			Deadline: deadline,
			Relay:    relay,
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("deadline %v: Resolve() error = %v, want context.Canceled", deadline, err)
		}
	}
	if got := relay.all(); len(got) != 0 {
		t.Errorf("relayed %q after cancellation, want nothing", got)
	}
	if _, ok := gate.Awaiting(); ok {
		t.Error("gate opened after cancellation")
	}
}

func TestPolicy_NoGateAlwaysFallsBack(t *testing.T) {
	p := NewPolicy(PolicyConfig{Action: 1, Strategy: FixedTarget(2)})

	res, err := p.Resolve(context.Background(), session.DecisionRequest{
		Pending:  sergen,
		Deadline: time.Hour,
		Relay:    &recordingRelay{},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !res.Fallback || res.Decision.Target != 2 {
		t.Errorf("Resolve() = %+v, want fallback at target 2", res)
	}
}

func TestPolicy_RelayFailureIsNotFatal(t *testing.T) {
	p := NewPolicy(PolicyConfig{Action: 1})
	res, err := p.Resolve(context.Background(), session.DecisionRequest{
		Pending: sergen,
		Relay:   &recordingRelay{err: errors.New("channel closed")},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !res.Fallback {
		t.Error("Fallback = false, want true")
	}
}

// TestPolicyExactlyOneDecisionProperty races a submission against the
// deadline and checks that exactly one decision comes out: the submission
// when the gate accepted it, the fallback otherwise, never both.
func TestPolicyExactlyOneDecisionProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("submission and fallback are exclusive", prop.ForAll(
		func(deadlineMs, delayMs int) bool {
			gate := NewGate()
			relay := &recordingRelay{}
			p := NewPolicy(PolicyConfig{Action: 1, Strategy: FixedTarget(2), Gate: gate})

			submitted := make(chan error, 1)
			go func() {
				deadline := time.Now().Add(time.Second)
				for time.Now().Before(deadline) {
					if _, ok := gate.Awaiting(); ok {
						break
					}
					time.Sleep(100 * time.Microsecond)
				}
				time.Sleep(time.Duration(delayMs) * time.Millisecond)
				submitted <- gate.Submit(session.Decision{Participant: 1, Action: 4})
			}()

			res, err := p.Resolve(context.Background(), session.DecisionRequest{
				Pending:  sergen,
				Deadline: time.Duration(deadlineMs) * time.Millisecond,
				Relay:    relay,
			})
			if err != nil {
				return false
			}
			accepted := <-submitted == nil
			notices := len(relay.all())

			if accepted {
				return !res.Fallback && res.Decision.Action == 4 && notices == 0
			}
			return res.Fallback && res.Decision.Action == 1 && notices == 1
		},
		gen.IntRange(1, 5),
		gen.IntRange(0, 6),
	))

	properties.TestingRun(t)
}

func TestPolicy_OnAwaitRunsWithGateOpen(t *testing.T) {
	gate := NewGate()
	var prompted time.Duration
	p := NewPolicy(PolicyConfig{
		Action: 1,
		Gate:   gate,
		OnAwait: func(pending session.PendingDecision, deadline time.Duration) {
			prompted = deadline
			if err := gate.Submit(session.Decision{Action: 4}); err != nil {
				t.Errorf("Submit() from OnAwait error = %v", err)
			}
		},
	})

	res, err := p.Resolve(context.Background(), session.DecisionRequest{
		Pending:  sergen,
		Deadline: time.Second,
		Relay:    &recordingRelay{},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if prompted != time.Second {
		t.Errorf("OnAwait deadline = %v, want 1s", prompted)
	}
	if res.Fallback || res.Decision != (session.Decision{Participant: 1, Action: 4}) {
		t.Errorf("Resolve() = %+v, want the submitted pass", res)
	}
}
