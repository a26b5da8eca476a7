package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/websocket/v2"

	"datachat-be/pkg/agent"
	"datachat-be/pkg/agent/respond"
	"datachat-be/pkg/store"
)

const writeWait = 10 * time.Second

// Busy policies for a message arriving while a pipeline is in flight.
const (
	PolicyQueue  = "queue"
	PolicyReject = "reject"
)

// Client owns one websocket connection and its session. Turns are
// processed by a single loop, so responses leave in the order inbound
// messages were accepted.
type Client struct {
	Hub       *Hub
	Conn      *websocket.Conn
	SessionID string
	Session   *store.Session

	// Buffered channel of outbound frames
	Send chan []byte

	// Accepted message texts awaiting pipeline runs
	turns chan string

	service    TurnService
	inFlight   atomic.Bool
	busyPolicy string

	maxFrameBytes   int
	maxMessageChars int
	pingPeriod      time.Duration
	pongWait        time.Duration

	// closeMu guards closed and the final close of Send. A replaced
	// client may still have a turn in flight; its deliveries must land
	// on a closed flag, never on a closed channel.
	closeMu sync.Mutex
	closed  bool

	cancel context.CancelFunc
}

// TurnService is implemented by the chat service.
type TurnService interface {
	HandleTurn(ctx context.Context, session *store.Session, text string, onState func(agent.State)) (*respond.Response, *agent.PipelineError)
}

// readPump reads inbound frames, validates them, and dispatches.
// Validation failures answer with an error frame and never start a
// pipeline; the connection stays open.
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		c.cancel()
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(int64(c.maxFrameBytes) + 1024)
	c.Conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.Hub.logger.Warn("websocket", "unexpected close", map[string]interface{}{
					"session": c.SessionID,
					"error":   err.Error(),
				})
			}
			break
		}

		frame, valErr := ParseInbound(data, c.maxFrameBytes, c.maxMessageChars)
		if valErr != nil {
			c.deliver(NewErrorFrame(valErr))
			continue
		}

		switch frame.Type {
		case FramePing:
			// Application-level liveness; any frame also resets the read deadline
			c.Conn.SetReadDeadline(time.Now().Add(c.pongWait))
			c.deliver(NewPongFrame())
		case FrameMessage:
			c.acceptTurn(frame.Text)
		}
	}
}

// acceptTurn applies the busy policy for messages arriving while a
// pipeline is in flight.
func (c *Client) acceptTurn(text string) {
	if c.busyPolicy == PolicyReject && c.inFlight.Load() {
		c.deliver(NewErrorFrame(agent.NewValidationError("a message is already being processed, try again in a moment")))
		return
	}

	select {
	case c.turns <- text:
	default:
		c.deliver(NewErrorFrame(agent.NewValidationError("too many pending messages, try again in a moment")))
	}
}

// turnLoop runs accepted turns one at a time.
func (c *Client) turnLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case text, ok := <-c.turns:
			if !ok {
				return
			}
			c.runTurn(ctx, text)
		}
	}
}

func (c *Client) runTurn(ctx context.Context, text string) {
	c.inFlight.Store(true)
	defer c.inFlight.Store(false)

	c.deliver(NewTypingFrame(true))
	defer c.deliver(NewTypingFrame(false))

	// Echo the accepted message so the client renders it in order
	c.deliver(marshalFrame(MessageFrame{
		Type:    FrameMessage,
		Sender:  "user",
		Content: text,
	}))

	response, pipeErr := c.service.HandleTurn(ctx, c.Session, text, nil)
	if pipeErr != nil {
		c.deliver(NewErrorFrame(pipeErr))
		return
	}

	frame := MessageFrame{
		Type:        FrameMessage,
		Sender:      "agent",
		Content:     response.Message,
		ChartConfig: response.ChartConfig,
		Data:        response.Data,
		Insights:    response.Insights,
	}
	if response.Intent != nil {
		frame.Intent = string(response.Intent.Pattern)
	}
	c.deliver(marshalFrame(frame))
}

// deliver queues an outbound frame, dropping the client on backpressure.
// Delivering to a shut-down client is a no-op.
func (c *Client) deliver(data []byte) {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return
	}
	select {
	case c.Send <- data:
		c.closeMu.Unlock()
		return
	default:
	}
	c.closeMu.Unlock()

	c.Hub.logger.Warn("websocket", "send buffer full, dropping client", map[string]interface{}{
		"session": c.SessionID,
	})
	c.Hub.unregister <- c
}

// shutdown closes the outbound channel exactly once and stops the turn
// loop. Safe to call repeatedly and concurrently with deliver.
func (c *Client) shutdown() {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.Send)
	if c.cancel != nil {
		c.cancel()
	}
}

// writePump pumps outbound frames and drives the protocol-level
// heartbeat ping.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
