package ws

import (
	"encoding/json"
	"sync"
)

// Frame types.
const (
	FramePlay     = "game.play"
	FrameDecide   = "game.decide"
	FrameQuit     = "game.quit"
	FrameMessage  = "game.message"
	FramePrompt   = "game.prompt"
	FrameAccepted = "game.accepted"
	FrameOver     = "game.over"
	FrameError    = "game.error"
)

// Error codes carried by FrameError.
const (
	CodeInvalidArgument    = "INVALID_ARGUMENT"
	CodeFailedPrecondition = "FAILED_PRECONDITION"
	CodeResourceExhausted  = "RESOURCE_EXHAUSTED"
	CodeUnavailable        = "UNAVAILABLE"
)

type wsFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type playPayload struct {
	Initiator string `json:"initiator"`
}

type decidePayload struct {
	Participant int `json:"participant"`
	Action      int `json:"action"`
	Target      int `json:"target"`
}

type messagePayload struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type promptPayload struct {
	SessionID   string `json:"session_id"`
	Participant int    `json:"participant"`
	Name        string `json:"name"`
	DeadlineMS  int64  `json:"deadline_ms"`
}

type overPayload struct {
	SessionID string `json:"session_id"`
	Outcome   string `json:"outcome"`
	Steps     uint64 `json:"steps"`
	Fallbacks int    `json:"fallbacks"`
}

type errorEnvelope struct {
	Error wsError `json:"error"`
}

type wsError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// peer serializes writes to one connection.
type peer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func newPeer(encoder *json.Encoder) *peer {
	return &peer{encoder: encoder}
}

func (p *peer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(frame)
}

func (p *peer) write(frameType, requestID string, payload any) error {
	return p.writeFrame(wsFrame{Type: frameType, RequestID: requestID, Payload: mustJSON(payload)})
}

func (p *peer) writeError(requestID, code, message string, retryable bool) error {
	return p.write(FrameError, requestID, errorEnvelope{
		Error: wsError{Code: code, Message: message, Retryable: retryable},
	})
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return data
}
