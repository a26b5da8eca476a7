package websocket

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datachat-be/pkg/agent"
)

func TestParseInboundMessage(t *testing.T) {
	frame, perr := ParseInbound([]byte(`{"type":"message","text":"  top products  "}`), 1024, 100)
	require.Nil(t, perr)
	assert.Equal(t, FrameMessage, frame.Type)
	assert.Equal(t, "top products", frame.Text, "text should be trimmed")
}

func TestParseInboundPing(t *testing.T) {
	frame, perr := ParseInbound([]byte(`{"type":"ping"}`), 1024, 100)
	require.Nil(t, perr)
	assert.Equal(t, FramePing, frame.Type)
}

func TestParseInboundOversizedFrame(t *testing.T) {
	payload := `{"type":"message","text":"` + strings.Repeat("a", 2048) + `"}`

	frame, perr := ParseInbound([]byte(payload), 1024, 100)
	assert.Nil(t, frame)
	require.NotNil(t, perr)
	assert.Equal(t, agent.CodeValidation, perr.Code)
	assert.False(t, perr.Retryable())
}

func TestParseInboundRejectsMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", `{"type":`},
		{"unknown type", `{"type":"subscribe"}`},
		{"empty text", `{"type":"message","text":"   "}`},
		{"text over char limit", `{"type":"message","text":"` + strings.Repeat("x", 101) + `"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			frame, perr := ParseInbound([]byte(tc.raw), 4096, 100)
			assert.Nil(t, frame)
			require.NotNil(t, perr)
			assert.Equal(t, agent.CodeValidation, perr.Code)
		})
	}
}

func TestErrorFrameCarriesRetryableFlag(t *testing.T) {
	raw := NewErrorFrame(agent.NewValidationError("bad frame"))

	var frame ErrorFrame
	require.NoError(t, json.Unmarshal(raw, &frame))
	assert.Equal(t, FrameError, frame.Type)
	assert.False(t, frame.Retryable)
	assert.NotEmpty(t, frame.Message)
}

func TestConnectionFrameIncludesSessionID(t *testing.T) {
	raw := NewConnectionFrame("abc-123")

	var frame ConnectionFrame
	require.NoError(t, json.Unmarshal(raw, &frame))
	assert.Equal(t, FrameConnection, frame.Type)
	assert.Equal(t, "abc-123", frame.SessionID)
	assert.NotEmpty(t, frame.Greeting)
}
