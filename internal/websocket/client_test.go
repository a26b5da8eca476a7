package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datachat-be/internal/pkg/logger"
	"datachat-be/pkg/agent"
	"datachat-be/pkg/agent/respond"
	"datachat-be/pkg/store"
)

// fakeTurnService answers every turn with "answer:<text>" after an
// optional gate, recording the order turns were handled in.
type fakeTurnService struct {
	mu      sync.Mutex
	handled []string
	gate    chan struct{} // when set, each turn blocks until released
	err     *agent.PipelineError
}

func (f *fakeTurnService) HandleTurn(ctx context.Context, session *store.Session, text string, onState func(agent.State)) (*respond.Response, *agent.PipelineError) {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	f.handled = append(f.handled, text)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &respond.Response{Message: "answer:" + text}, nil
}

func newTestHub() *Hub {
	h := NewHub(nil, logger.NewNopLogger())
	go h.Run()
	return h
}

func newTestClient(hub *Hub, svc TurnService, policy string, queueDepth int) (*Client, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		Hub:        hub,
		SessionID:  "session-1",
		Session:    store.NewSession("session-1", ""),
		Send:       make(chan []byte, 64),
		turns:      make(chan string, queueDepth),
		service:    svc,
		busyPolicy: policy,
		cancel:     cancel,
	}
	go c.turnLoop(ctx)
	return c, cancel
}

// collectFrames drains Send until n frames of the given type arrived or
// the deadline passed.
func collectFrames(t *testing.T, c *Client, frameType string, n int) []map[string]interface{} {
	t.Helper()
	deadline := time.After(2 * time.Second)
	var out []map[string]interface{}
	for len(out) < n {
		select {
		case data, ok := <-c.Send:
			if !ok {
				t.Fatal("send channel closed while collecting frames")
			}
			var frame map[string]interface{}
			require.NoError(t, json.Unmarshal(data, &frame))
			if frame["type"] == frameType {
				out = append(out, frame)
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %d %q frames, got %d", n, frameType, len(out))
		}
	}
	return out
}

func agentMessages(frames []map[string]interface{}) []string {
	var out []string
	for _, f := range frames {
		if f["sender"] == "agent" {
			out = append(out, f["content"].(string))
		}
	}
	return out
}

func TestQueuePolicyPreservesResponseOrdering(t *testing.T) {
	svc := &fakeTurnService{}
	c, cancel := newTestClient(newTestHub(), svc, PolicyQueue, 8)
	defer cancel()

	c.acceptTurn("first")
	c.acceptTurn("second")
	c.acceptTurn("third")

	// 6 message frames: a user echo and an agent answer per turn
	frames := collectFrames(t, c, FrameMessage, 6)
	assert.Equal(t, []string{"answer:first", "answer:second", "answer:third"}, agentMessages(frames))

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Equal(t, []string{"first", "second", "third"}, svc.handled)
}

func TestUserEchoPrecedesAgentAnswer(t *testing.T) {
	svc := &fakeTurnService{}
	c, cancel := newTestClient(newTestHub(), svc, PolicyQueue, 8)
	defer cancel()

	c.acceptTurn("show revenue")

	frames := collectFrames(t, c, FrameMessage, 2)
	assert.Equal(t, "user", frames[0]["sender"])
	assert.Equal(t, "show revenue", frames[0]["content"])
	assert.Equal(t, "agent", frames[1]["sender"])
}

func TestRejectPolicyAnswersBusyWhileInFlight(t *testing.T) {
	svc := &fakeTurnService{gate: make(chan struct{})}
	c, cancel := newTestClient(newTestHub(), svc, PolicyReject, 8)
	defer cancel()

	c.acceptTurn("first")
	require.Eventually(t, func() bool { return c.inFlight.Load() }, time.Second, 5*time.Millisecond)

	c.acceptTurn("second")

	frames := collectFrames(t, c, FrameError, 1)
	assert.Contains(t, frames[0]["message"], "already being processed")
	assert.Equal(t, false, frames[0]["retryable"])

	// The in-flight turn still completes normally
	close(svc.gate)
	collectFrames(t, c, FrameMessage, 2)
	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Equal(t, []string{"first"}, svc.handled)
}

func TestQueueOverflowAnswersErrorAndKeepsProcessing(t *testing.T) {
	svc := &fakeTurnService{gate: make(chan struct{}, 16)}
	c, cancel := newTestClient(newTestHub(), svc, PolicyQueue, 1)
	defer cancel()

	// First turn is picked up by the loop and blocks; second fills the
	// queue; third overflows
	c.acceptTurn("first")
	require.Eventually(t, func() bool { return len(c.turns) == 0 }, time.Second, time.Millisecond)
	c.acceptTurn("second")
	c.acceptTurn("third")

	frames := collectFrames(t, c, FrameError, 1)
	assert.Contains(t, frames[0]["message"], "too many pending messages")

	svc.gate <- struct{}{}
	svc.gate <- struct{}{}
	collectFrames(t, c, FrameMessage, 4)
	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Equal(t, []string{"first", "second"}, svc.handled)
}

func TestReconnectReplacementDoesNotPanicInFlightDeliveries(t *testing.T) {
	hub := newTestHub()
	svc := &fakeTurnService{gate: make(chan struct{})}

	old, cancelOld := newTestClient(hub, svc, PolicyQueue, 8)
	defer cancelOld()
	hub.register <- old

	// A turn is mid-flight on the old connection when the session
	// reconnects through a new one
	old.acceptTurn("slow question")
	require.Eventually(t, func() bool { return old.inFlight.Load() }, time.Second, 5*time.Millisecond)

	replacement, cancelNew := newTestClient(hub, svc, PolicyQueue, 8)
	defer cancelNew()
	hub.register <- replacement
	require.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return hub.clients["session-1"] == replacement
	}, time.Second, 5*time.Millisecond)

	// Finishing the turn delivers typing and message frames onto the
	// replaced client; these must be swallowed, not panic
	assert.NotPanics(t, func() {
		close(svc.gate)
		old.deliver([]byte(`{"type":"typing","active":false}`))
		time.Sleep(50 * time.Millisecond)
	})

	// The replacement still receives session frames
	hub.SendToSession("session-1", NewTypingFrame(true))
	select {
	case <-replacement.Send:
	case <-time.After(time.Second):
		t.Fatal("replacement client did not receive the frame")
	}
}

func TestUnregisterClosesSendExactlyOnce(t *testing.T) {
	hub := newTestHub()
	c, cancel := newTestClient(hub, &fakeTurnService{}, PolicyQueue, 8)
	defer cancel()

	hub.register <- c
	hub.unregister <- c
	hub.unregister <- c // duplicate unregister is a no-op

	require.Eventually(t, func() bool {
		c.closeMu.Lock()
		defer c.closeMu.Unlock()
		return c.closed
	}, time.Second, 5*time.Millisecond)
	assert.NotPanics(t, func() { c.deliver([]byte(`{}`)) })
}
