package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/Iron-Ham/gladoid/internal/decision"
	"github.com/Iron-Ham/gladoid/internal/host"
	"github.com/Iron-Ham/gladoid/internal/session"
	"github.com/Iron-Ham/gladoid/internal/world"
)

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
	dec  *json.Decoder
}

func fallbackSettings() host.Settings {
	return host.Settings{
		FallbackAction: world.ActionAttack,
		Strategy:       decision.NewRandomOpponent(1, nil),
	}
}

func humanSettings() host.Settings {
	s := fallbackSettings()
	s.Options = session.Options{Deadline: 5 * time.Second, HumanSeat: 1}
	return s
}

func newTestServer(t *testing.T, settings host.Settings, maxSessions int) (*Server, *httptest.Server) {
	t.Helper()
	adapter, err := world.NewAdapter(world.DefaultRoster(), 5)
	require.NoError(t, err)

	srv := NewServer(Config{
		Launcher:    host.NewLauncher(adapter, nil, nil, nil, settings),
		MaxSessions: maxSessions,
	})
	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		httpSrv.Close()
		srv.Shutdown()
	})
	return srv, httpSrv
}

func dial(t *testing.T, httpSrv *httptest.Server) *testClient {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(httpSrv.URL, "http") + "/ws"
	conn, err := websocket.Dial(wsURL, "", httpSrv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn, dec: json.NewDecoder(conn)}
}

func (c *testClient) send(frameType string, payload any) {
	c.t.Helper()
	frame := map[string]any{"type": frameType, "request_id": "r-" + frameType}
	if payload != nil {
		frame["payload"] = payload
	}
	require.NoError(c.t, json.NewEncoder(c.conn).Encode(frame))
}

func (c *testClient) read() wsFrame {
	c.t.Helper()
	_ = c.conn.SetDeadline(time.Now().Add(5 * time.Second))
	var f wsFrame
	require.NoError(c.t, c.dec.Decode(&f))
	return f
}

// readUntil reads frames until one of type frameType, returning the texts of
// the game.message frames seen on the way and the matching frame.
func (c *testClient) readUntil(frameType string, onFrame func(wsFrame)) ([]string, wsFrame) {
	c.t.Helper()
	var texts []string
	for {
		f := c.read()
		if onFrame != nil {
			onFrame(f)
		}
		if f.Type == FrameMessage {
			var m messagePayload
			require.NoError(c.t, json.Unmarshal(f.Payload, &m))
			texts = append(texts, m.Text)
		}
		if f.Type == frameType {
			return texts, f
		}
	}
}

func errorCode(t *testing.T, f wsFrame) string {
	t.Helper()
	require.Equal(t, FrameError, f.Type)
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(f.Payload, &env))
	return env.Error.Code
}

func TestHealthAndMethod(t *testing.T) {
	_, httpSrv := newTestServer(t, fallbackSettings(), 1)

	resp, err := http.Get(httpSrv.URL + "/up")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(httpSrv.URL+"/ws", "application/json", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestPlay_FallbackGame(t *testing.T) {
	srv, httpSrv := newTestServer(t, fallbackSettings(), 2)
	c := dial(t, httpSrv)

	c.send(FramePlay, map[string]string{"initiator": "alice"})
	texts, over := c.readUntil(FrameOver, nil)

	require.NotEmpty(t, texts)
	assert.Equal(t, session.AckMessage, texts[0])
	assert.Equal(t, session.TerminalMessage, texts[len(texts)-1])

	var payload overPayload
	require.NoError(t, json.Unmarshal(over.Payload, &payload))
	assert.Equal(t, OutcomeEnded, payload.Outcome)
	assert.Positive(t, payload.Fallbacks)
	assert.Eventually(t, func() bool { return srv.ActiveSessions() == 0 }, time.Second, 10*time.Millisecond)
}

func TestPlay_HumanDecides(t *testing.T) {
	_, httpSrv := newTestServer(t, humanSettings(), 2)
	c := dial(t, httpSrv)

	c.send(FramePlay, nil)
	accepted := 0
	texts, over := c.readUntil(FrameOver, func(f wsFrame) {
		switch f.Type {
		case FramePrompt:
			var p promptPayload
			require.NoError(t, json.Unmarshal(f.Payload, &p))
			assert.Equal(t, 1, p.Participant)
			assert.Equal(t, "Sergen", p.Name)
			assert.Equal(t, int64(5000), p.DeadlineMS)
			c.send(FrameDecide, map[string]int{"action": world.ActionAttack, "target": 2})
		case FrameAccepted:
			accepted++
		}
	})

	assert.Positive(t, accepted)
	assert.NotContains(t, texts, decision.FallbackNotice("Sergen"))
	assert.Contains(t, texts, decision.FallbackNotice("Quanntum"))

	var payload overPayload
	require.NoError(t, json.Unmarshal(over.Payload, &payload))
	assert.Equal(t, OutcomeEnded, payload.Outcome)
}

func TestDecide_Rejections(t *testing.T) {
	_, httpSrv := newTestServer(t, humanSettings(), 2)
	c := dial(t, httpSrv)

	c.send(FrameDecide, map[string]int{"action": 4})
	assert.Equal(t, CodeFailedPrecondition, errorCode(t, c.read()))

	c.send(FramePlay, nil)
	c.readUntil(FramePrompt, nil)

	c.send(FrameDecide, map[string]int{"participant": 2, "action": 4})
	assert.Equal(t, CodeInvalidArgument, errorCode(t, c.read()))

	c.send(FrameDecide, map[string]int{"action": 9})
	assert.Equal(t, CodeInvalidArgument, errorCode(t, c.read()))

	c.send(FramePlay, nil)
	assert.Equal(t, CodeFailedPrecondition, errorCode(t, c.read()))

	c.send(FrameDecide, map[string]int{"action": world.ActionPass})
	_, accepted := c.readUntil(FrameAccepted, nil)
	assert.Equal(t, "r-"+FrameDecide, accepted.RequestID)
}

func TestQuit(t *testing.T) {
	srv, httpSrv := newTestServer(t, humanSettings(), 2)
	c := dial(t, httpSrv)

	c.send(FrameQuit, nil)
	assert.Equal(t, CodeFailedPrecondition, errorCode(t, c.read()))

	c.send(FramePlay, nil)
	c.readUntil(FramePrompt, nil)
	c.send(FrameQuit, nil)

	texts, over := c.readUntil(FrameOver, nil)
	assert.NotContains(t, texts, session.TerminalMessage)

	var payload overPayload
	require.NoError(t, json.Unmarshal(over.Payload, &payload))
	assert.Equal(t, OutcomeCanceled, payload.Outcome)
	assert.Eventually(t, func() bool { return srv.ActiveSessions() == 0 }, time.Second, 10*time.Millisecond)
}

func TestSessionLimit(t *testing.T) {
	_, httpSrv := newTestServer(t, humanSettings(), 1)

	first := dial(t, httpSrv)
	first.send(FramePlay, nil)
	first.readUntil(FramePrompt, nil)

	second := dial(t, httpSrv)
	second.send(FramePlay, nil)
	f := second.read()
	assert.Equal(t, CodeResourceExhausted, errorCode(t, f))
}

func TestUnsupportedAndMalformedFrames(t *testing.T) {
	_, httpSrv := newTestServer(t, fallbackSettings(), 1)
	c := dial(t, httpSrv)

	c.send("game.teleport", nil)
	assert.Equal(t, CodeInvalidArgument, errorCode(t, c.read()))

	c.send(FramePlay, "not an object")
	assert.Equal(t, CodeInvalidArgument, errorCode(t, c.read()))
}

func TestFrameRateLimit(t *testing.T) {
	adapter, err := world.NewAdapter(world.DefaultRoster(), 5)
	require.NoError(t, err)
	srv := NewServer(Config{
		Launcher:        host.NewLauncher(adapter, nil, nil, nil, humanSettings()),
		MaxSessions:     1,
		FramesPerSecond: 1,
	})
	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		httpSrv.Close()
		srv.Shutdown()
	})
	c := dial(t, httpSrv)

	c.send("game.teleport", nil)
	assert.Equal(t, CodeInvalidArgument, errorCode(t, c.read()))
	c.send("game.teleport", nil)
	assert.Equal(t, CodeResourceExhausted, errorCode(t, c.read()))
}
