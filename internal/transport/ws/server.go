// Package ws serves games over a websocket. A connection starts a game with
// a game.play frame, answers decisions with game.decide frames and receives
// everything the session relays as game.message frames.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"golang.org/x/net/websocket"
	"golang.org/x/time/rate"

	apperrors "github.com/Iron-Ham/gladoid/internal/errors"
	"github.com/Iron-Ham/gladoid/internal/host"
	"github.com/Iron-Ham/gladoid/internal/logging"
	"github.com/Iron-Ham/gladoid/internal/session"
)

const (
	maxFramePayloadBytes   = 4096
	maxDecodeErrorsPerConn = 3
	defaultInitiator       = "participant"
)

// Outcomes reported in game.over frames.
const (
	OutcomeEnded    = "ended"
	OutcomeAborted  = "aborted"
	OutcomeCanceled = "canceled"
)

// Config configures a Server.
type Config struct {
	Launcher *host.Launcher
	Logger   *logging.Logger
	// MaxSessions bounds games running at once across all connections.
	MaxSessions int
	// FramesPerSecond limits inbound frames per connection. 0 disables.
	FramesPerSecond float64
}

// Server hosts games for websocket connections.
type Server struct {
	launcher        *host.Launcher
	logger          *logging.Logger
	maxSessions     int
	framesPerSecond float64

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewServer creates a Server.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logging.NopLogger()
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		launcher:        cfg.Launcher,
		logger:          cfg.Logger.WithComponent("ws"),
		maxSessions:     cfg.MaxSessions,
		framesPerSecond: cfg.FramesPerSecond,
		ctx:             ctx,
		cancel:          cancel,
		active:          make(map[string]context.CancelFunc),
	}
}

// Handler returns the HTTP routes: /up for health checks and /ws for games.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	wsHandler := websocket.Handler(s.handleConn)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		wsHandler.ServeHTTP(w, r)
	})
	return mux
}

// ActiveSessions returns the number of games running.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Shutdown cancels every running game and waits for them to stop.
func (s *Server) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

// connState is the game a connection is playing, if any.
type connState struct {
	ctx  context.Context
	peer *peer

	mu         sync.Mutex
	game       *host.Game
	cancelGame context.CancelFunc
}

func (c *connState) current() (*host.Game, context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.game, c.cancelGame
}

func (c *connState) clear(game *host.Game) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.game == game {
		c.game, c.cancelGame = nil, nil
	}
}

func (s *Server) handleConn(conn *websocket.Conn) {
	defer func() {
		_ = conn.Close()
	}()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	state := &connState{ctx: ctx, peer: newPeer(json.NewEncoder(conn))}
	decoder := json.NewDecoder(conn)

	var limiter *rate.Limiter
	if s.framesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.framesPerSecond), int(math.Ceil(s.framesPerSecond)))
	}
	decodeErrors := 0

	for {
		var frame wsFrame
		if err := decoder.Decode(&frame); err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return
			}
			decodeErrors++
			_ = state.peer.writeError("", CodeInvalidArgument, "invalid frame payload", false)
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			// The decoder cannot resynchronize after a syntax error.
			decoder = json.NewDecoder(conn)
			continue
		}
		decodeErrors = 0

		if len(frame.Payload) > maxFramePayloadBytes {
			_ = state.peer.writeError(frame.RequestID, CodeInvalidArgument, "payload too large", false)
			continue
		}
		if limiter != nil && !limiter.Allow() {
			_ = state.peer.writeError(frame.RequestID, CodeResourceExhausted, "rate limit exceeded", false)
			return
		}

		switch frame.Type {
		case FramePlay:
			s.handlePlay(state, frame)
		case FrameDecide:
			s.handleDecide(state, frame)
		case FrameQuit:
			s.handleQuit(state, frame)
		default:
			_ = state.peer.writeError(frame.RequestID, CodeInvalidArgument, "unsupported frame type", false)
		}
	}
}

func (s *Server) handlePlay(state *connState, frame wsFrame) {
	if game, _ := state.current(); game != nil {
		_ = state.peer.writeError(frame.RequestID, CodeFailedPrecondition, "a game is already running", false)
		return
	}

	var payload playPayload
	if len(frame.Payload) > 0 {
		if err := json.Unmarshal(frame.Payload, &payload); err != nil {
			_ = state.peer.writeError(frame.RequestID, CodeInvalidArgument, "invalid play payload", false)
			return
		}
	}
	initiator := strings.TrimSpace(payload.Initiator)
	if initiator == "" {
		initiator = defaultInitiator
	}

	if err := s.start(state, initiator); err != nil {
		if errors.Is(err, apperrors.ErrSessionLimit) {
			_ = state.peer.writeError(frame.RequestID, CodeResourceExhausted, "too many games running, try again later", true)
			return
		}
		s.logger.Error("failed to launch game", "error", err.Error())
		_ = state.peer.writeError(frame.RequestID, CodeUnavailable, session.HostFaultNotice, true)
	}
}

// start launches a game for the connection and runs it in the background.
func (s *Server) start(state *connState, initiator string) error {
	var sessionID string
	game, err := s.launcher.Launch(host.LaunchOptions{
		Initiator: initiator,
		Deliver: func(_ context.Context, text string) error {
			return state.peer.write(FrameMessage, "", messagePayload{SessionID: sessionID, Text: text})
		},
		OnAwait: func(pending session.PendingDecision, deadline time.Duration) {
			_ = state.peer.write(FramePrompt, "", promptPayload{
				SessionID:   sessionID,
				Participant: pending.Participant,
				Name:        pending.Name,
				DeadlineMS:  deadline.Milliseconds(),
			})
		},
	})
	if err != nil {
		return err
	}
	sessionID = game.Session.ID()

	s.mu.Lock()
	if len(s.active) >= s.maxSessions {
		s.mu.Unlock()
		return apperrors.ErrSessionLimit
	}
	ctx, cancel := context.WithCancel(state.ctx)
	s.active[sessionID] = cancel
	s.mu.Unlock()

	state.mu.Lock()
	state.game, state.cancelGame = game, cancel
	state.mu.Unlock()

	log := s.logger.WithSession(sessionID)
	s.wg.Go(func() {
		err := game.Session.Run(ctx)
		cancel()
		s.release(sessionID)
		state.clear(game)

		outcome := OutcomeEnded
		switch {
		case err == nil:
		case apperrors.IsCanceled(err):
			outcome = OutcomeCanceled
			log.Info("game canceled")
		default:
			outcome = OutcomeAborted
			log.Error("game aborted", "error", err.Error())
			_ = state.peer.write(FrameMessage, "", messagePayload{SessionID: sessionID, Text: session.HostFaultNotice})
		}

		_ = state.peer.write(FrameOver, "", overPayload{
			SessionID: sessionID,
			Outcome:   outcome,
			Steps:     game.Session.Steps(),
			Fallbacks: game.Session.Fallbacks(),
		})
	})
	return nil
}

func (s *Server) release(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, sessionID)
}

func (s *Server) handleDecide(state *connState, frame wsFrame) {
	game, _ := state.current()
	if game == nil {
		_ = state.peer.writeError(frame.RequestID, CodeFailedPrecondition, "no game is running", false)
		return
	}

	var payload decidePayload
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		_ = state.peer.writeError(frame.RequestID, CodeInvalidArgument, "invalid decide payload", false)
		return
	}

	err := game.Gate.Submit(session.Decision{
		Participant: payload.Participant,
		Action:      payload.Action,
		Target:      payload.Target,
	})
	switch {
	case err == nil:
		_ = state.peer.write(FrameAccepted, frame.RequestID, payload)
	case errors.Is(err, apperrors.ErrNotAwaitingDecision):
		_ = state.peer.writeError(frame.RequestID, CodeFailedPrecondition, "no decision is pending", true)
	case errors.Is(err, apperrors.ErrWrongParticipant):
		_ = state.peer.writeError(frame.RequestID, CodeInvalidArgument, "not your turn", false)
	default:
		_ = state.peer.writeError(frame.RequestID, CodeInvalidArgument, "action not allowed", false)
	}
}

func (s *Server) handleQuit(state *connState, frame wsFrame) {
	_, cancel := state.current()
	if cancel == nil {
		_ = state.peer.writeError(frame.RequestID, CodeFailedPrecondition, "no game is running", false)
		return
	}
	cancel()
}
