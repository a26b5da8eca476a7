package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu          sync.Mutex
	inbound     chan []byte
	closed      chan struct{}
	closeOnce   sync.Once
	deadline    time.Time
	pongHandler func(string) error
	writes      [][]byte
	pings       int
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 8),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	for {
		c.mu.Lock()
		deadline := c.deadline
		c.mu.Unlock()

		var timeout <-chan time.Time
		if !deadline.IsZero() {
			timer := time.NewTimer(time.Until(deadline))
			defer timer.Stop()
			timeout = timer.C
		}

		select {
		case data := <-c.inbound:
			return 1, data, nil
		case <-c.closed:
			return 0, nil, errors.New("use of closed connection")
		case <-timeout:
			// A pong may have pushed the deadline while we were blocked
			c.mu.Lock()
			extended := c.deadline.After(deadline)
			c.mu.Unlock()
			if extended {
				continue
			}
			return 0, nil, errors.New("read deadline exceeded")
		}
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		return errors.New("use of closed connection")
	default:
	}
	if messageType == 9 { // ping
		c.pings++
	} else {
		c.writes = append(c.writes, data)
	}
	return nil
}

func (c *fakeConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.deadline = t
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) SetPongHandler(h func(string) error) {
	c.mu.Lock()
	c.pongHandler = h
	c.mu.Unlock()
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) pong() {
	c.mu.Lock()
	h := c.pongHandler
	c.mu.Unlock()
	if h != nil {
		h("")
	}
}

// fakeDialer serves a script of outcomes, one per dial.
type fakeDialer struct {
	mu     sync.Mutex
	script []func() (Conn, error)
	calls  int
	dialed chan Conn
}

func newFakeDialer(script ...func() (Conn, error)) *fakeDialer {
	return &fakeDialer{script: script, dialed: make(chan Conn, 16)}
}

func dialOK(conn *fakeConn) func() (Conn, error) {
	return func() (Conn, error) { return conn, nil }
}

func dialFail() func() (Conn, error) {
	return func() (Conn, error) { return nil, errors.New("connection refused") }
}

func (d *fakeDialer) Dial(_ context.Context, _ string, _ http.Header) (Conn, error) {
	d.mu.Lock()
	idx := d.calls
	d.calls++
	d.mu.Unlock()

	if idx >= len(d.script) {
		return nil, errors.New("connection refused")
	}
	conn, err := d.script[idx]()
	if conn != nil {
		d.dialed <- conn
	}
	return conn, err
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type stateRecorder struct {
	mu     sync.Mutex
	states []State
	seen   chan State
}

func newStateRecorder() *stateRecorder {
	return &stateRecorder{seen: make(chan State, 32)}
}

func (r *stateRecorder) record(_, to State) {
	r.mu.Lock()
	r.states = append(r.states, to)
	r.mu.Unlock()
	r.seen <- to
}

func (r *stateRecorder) waitFor(t *testing.T, want State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-r.seen:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %s", want)
		}
	}
}

func (r *stateRecorder) all() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.states))
	copy(out, r.states)
	return out
}

func testManager(dialer Dialer, rec *stateRecorder, onMsg func([]byte)) *Manager {
	m := NewManager(Options{
		URL:                  "ws://localhost/ws",
		HeartbeatInterval:    50 * time.Millisecond,
		PingGrace:            25 * time.Millisecond,
		ReconnectInitial:     5 * time.Millisecond,
		ReconnectMax:         20 * time.Millisecond,
		MaxReconnectAttempts: 5,
		Dialer:               dialer,
		OnState:              rec.record,
		OnMessage:            onMsg,
	})
	m.bo.RandomizationFactor = 0
	return m
}

func TestConnectDeliversInboundMessages(t *testing.T) {
	conn := newFakeConn()
	dialer := newFakeDialer(dialOK(conn))
	rec := newStateRecorder()

	received := make(chan []byte, 1)
	m := testManager(dialer, rec, func(data []byte) { received <- data })

	require.NoError(t, m.Connect(context.Background()))
	rec.waitFor(t, StateConnected)

	conn.inbound <- []byte(`{"type":"message"}`)
	select {
	case data := <-received:
		assert.JSONEq(t, `{"type":"message"}`, string(data))
	case <-time.After(time.Second):
		t.Fatal("inbound message not delivered")
	}

	m.Disconnect()
	assert.Equal(t, StateDisconnected, m.State())
}

func TestBackoffDelaysDoubleAndCap(t *testing.T) {
	m := testManager(newFakeDialer(), newStateRecorder(), nil)

	var delays []time.Duration
	for i := 0; i < 5; i++ {
		delays = append(delays, m.nextDly())
	}

	for i := 1; i < len(delays); i++ {
		assert.GreaterOrEqual(t, delays[i], delays[i-1],
			"delay must be non-decreasing within an episode")
		assert.LessOrEqual(t, delays[i], 20*time.Millisecond)
	}
	assert.Equal(t, 5*time.Millisecond, delays[0])
	assert.Equal(t, 10*time.Millisecond, delays[1])
	assert.Equal(t, 20*time.Millisecond, delays[2])

	// A successful connection resets the schedule to the initial delay.
	m.bo.Reset()
	assert.Equal(t, 5*time.Millisecond, m.nextDly())
}

func TestReconnectAfterFailuresResetsAttempts(t *testing.T) {
	conn := newFakeConn()
	dialer := newFakeDialer(dialFail(), dialFail(), dialOK(conn))
	rec := newStateRecorder()
	m := testManager(dialer, rec, nil)

	require.NoError(t, m.Connect(context.Background()))
	rec.waitFor(t, StateConnected)

	assert.Equal(t, 3, dialer.dialCount())
	assert.Equal(t, 0, m.Attempts())

	m.Disconnect()
}

func TestHeartbeatMissTriggersReconnect(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	dialer := newFakeDialer(dialOK(first), dialOK(second))
	rec := newStateRecorder()
	m := testManager(dialer, rec, nil)

	require.NoError(t, m.Connect(context.Background()))
	rec.waitFor(t, StateConnected)

	// Never answer pings on the first connection: the read deadline
	// expires after interval+grace and a reconnect must be scheduled.
	rec.waitFor(t, StateReconnecting)
	rec.waitFor(t, StateConnected)
	assert.Equal(t, 2, dialer.dialCount())

	// Keep the second connection alive by acknowledging heartbeats.
	go func() {
		for i := 0; i < 3; i++ {
			time.Sleep(40 * time.Millisecond)
			second.pong()
		}
	}()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateConnected, m.State())

	m.Disconnect()
}

func TestManualDisconnectBypassesReconnection(t *testing.T) {
	conn := newFakeConn()
	dialer := newFakeDialer(dialOK(conn), dialOK(newFakeConn()))
	rec := newStateRecorder()
	m := testManager(dialer, rec, nil)

	require.NoError(t, m.Connect(context.Background()))
	rec.waitFor(t, StateConnected)

	m.Disconnect()
	assert.Equal(t, StateDisconnected, m.State())

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, dialer.dialCount(), "manual disconnect must not redial")
	assert.NotContains(t, rec.all(), StateReconnecting)
}

func TestExhaustedAttemptsEndInDisconnected(t *testing.T) {
	dialer := newFakeDialer() // every dial refused
	rec := newStateRecorder()
	m := testManager(dialer, rec, nil)
	m.opts.MaxReconnectAttempts = 2

	require.NoError(t, m.Connect(context.Background()))
	rec.waitFor(t, StateDisconnected)

	// Initial dial plus two retries.
	assert.Equal(t, 3, dialer.dialCount())
	assert.Equal(t, StateDisconnected, m.State())
}

func TestSendRequiresConnection(t *testing.T) {
	m := testManager(newFakeDialer(), newStateRecorder(), nil)
	err := m.Send([]byte("hello"))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSendWritesTextFrame(t *testing.T) {
	conn := newFakeConn()
	dialer := newFakeDialer(dialOK(conn))
	rec := newStateRecorder()
	m := testManager(dialer, rec, nil)

	require.NoError(t, m.Connect(context.Background()))
	rec.waitFor(t, StateConnected)

	require.NoError(t, m.Send([]byte(`{"type":"ping"}`)))

	assert.Eventually(t, func() bool {
		conn.mu.Lock()
		defer conn.mu.Unlock()
		return len(conn.writes) == 1
	}, time.Second, 5*time.Millisecond)

	m.Disconnect()
}
