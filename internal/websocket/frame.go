package websocket

import (
	"encoding/json"
	"strings"

	"datachat-be/pkg/agent"
	"datachat-be/pkg/agent/viz"
)

// Inbound frame kinds
const (
	FrameMessage = "message"
	FramePing    = "ping"
)

// Outbound frame kinds
const (
	FrameConnection = "connection"
	FrameTyping     = "typing"
	FrameError      = "error"
	FramePong       = "pong"
)

// InboundFrame is a client-to-server frame.
type InboundFrame struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// ConnectionFrame greets a client and tells it its session id.
type ConnectionFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Greeting  string `json:"greeting"`
}

// MessageFrame carries one agent reply.
type MessageFrame struct {
	Type        string                   `json:"type"`
	Sender      string                   `json:"sender"`
	Content     string                   `json:"content"`
	ChartConfig *viz.ChartConfig         `json:"chart_config,omitempty"`
	Data        []map[string]interface{} `json:"data,omitempty"`
	Intent      string                   `json:"intent,omitempty"`
	Insights    []string                 `json:"insights,omitempty"`
}

// TypingFrame signals pipeline activity to the client.
type TypingFrame struct {
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

// ErrorFrame carries a classified failure; retryable tells the client
// whether resending can help.
type ErrorFrame struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type PongFrame struct {
	Type string `json:"type"`
}

// ParseInbound validates a raw frame for size and required fields.
// Oversized or malformed frames fail before any pipeline work starts.
func ParseInbound(data []byte, maxFrameBytes, maxMessageChars int) (*InboundFrame, *agent.PipelineError) {
	if maxFrameBytes > 0 && len(data) > maxFrameBytes {
		return nil, agent.NewValidationError("frame exceeds maximum size")
	}

	var frame InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, agent.NewValidationError("frame is not valid JSON")
	}

	switch frame.Type {
	case FramePing:
		return &frame, nil
	case FrameMessage:
		text := strings.TrimSpace(frame.Text)
		if text == "" {
			return nil, agent.NewValidationError("message frame requires non-empty text")
		}
		if maxMessageChars > 0 && len([]rune(text)) > maxMessageChars {
			return nil, agent.NewValidationError("message text is too long")
		}
		frame.Text = text
		return &frame, nil
	default:
		return nil, agent.NewValidationError("unknown frame type")
	}
}

func marshalFrame(v interface{}) []byte {
	data, _ := json.Marshal(v)
	return data
}

func NewErrorFrame(err *agent.PipelineError) []byte {
	return marshalFrame(ErrorFrame{
		Type:      FrameError,
		Message:   err.UserMessage(),
		Retryable: err.Retryable(),
	})
}

func NewTypingFrame(active bool) []byte {
	return marshalFrame(TypingFrame{Type: FrameTyping, Active: active})
}

func NewPongFrame() []byte {
	return marshalFrame(PongFrame{Type: FramePong})
}

func NewConnectionFrame(sessionID string) []byte {
	return marshalFrame(ConnectionFrame{
		Type:      FrameConnection,
		SessionID: sessionID,
		Greeting:  "Connected. Ask me anything about your data.",
	})
}
