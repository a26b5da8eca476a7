package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"datachat-be/internal/pkg/logger"
)

var (
	// ErrNotConnected is returned by Send when no connection is established.
	ErrNotConnected = errors.New("transport: not connected")
	// ErrAlreadyRunning is returned by Connect when the manager is active.
	ErrAlreadyRunning = errors.New("transport: manager already running")
)

// Options configures a connection Manager.
type Options struct {
	URL               string
	Header            http.Header
	HeartbeatInterval time.Duration
	PingGrace         time.Duration
	ReconnectInitial  time.Duration
	ReconnectMax      time.Duration
	// MaxReconnectAttempts bounds one reconnect episode. Zero means
	// a single attempt with no retries.
	MaxReconnectAttempts int
	Dialer               Dialer
	Logger               logger.ILogger
	// OnState is invoked on every transition, in order.
	OnState func(from, to State)
	// OnMessage receives each inbound data frame.
	OnMessage func(data []byte)
}

// Manager owns one client session's connection lifecycle: it dials,
// heartbeats, and reconnects with capped exponential backoff until a
// manual disconnect or the attempt budget runs out.
type Manager struct {
	opts Options

	mu       sync.Mutex
	state    State
	conn     Conn
	attempts int
	running  bool

	bo      *backoff.ExponentialBackOff
	nextDly func() time.Duration

	manual atomic.Bool
	cancel context.CancelFunc
	done   chan struct{}
	sendCh chan []byte
}

func NewManager(opts Options) *Manager {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 30 * time.Second
	}
	if opts.PingGrace <= 0 {
		opts.PingGrace = 10 * time.Second
	}
	if opts.ReconnectInitial <= 0 {
		opts.ReconnectInitial = time.Second
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = 30 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = NewDialer(10 * time.Second)
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = opts.ReconnectInitial
	bo.MaxInterval = opts.ReconnectMax
	bo.Multiplier = 2
	bo.RandomizationFactor = 0.2
	bo.MaxElapsedTime = 0
	bo.Reset()

	m := &Manager{
		opts:   opts,
		state:  StateDisconnected,
		bo:     bo,
		sendCh: make(chan []byte, 16),
	}
	m.nextDly = bo.NextBackOff
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempts returns the retry count of the current reconnect episode.
// It is zero while connected.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Connect starts the connection loop. It returns immediately; progress
// is observable through OnState.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.running = true
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.mu.Unlock()

	m.manual.Store(false)

	go m.run(runCtx)
	return nil
}

// Disconnect tears the session down without entering the reconnection
// path. It blocks until the loop has exited.
func (m *Manager) Disconnect() {
	m.manual.Store(true)
	m.mu.Lock()
	cancel := m.cancel
	conn := m.conn
	done := m.done
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	if done != nil {
		<-done
	}
}

// Send queues a text frame for delivery on the active connection.
func (m *Manager) Send(data []byte) error {
	if m.State() != StateConnected {
		return ErrNotConnected
	}
	select {
	case m.sendCh <- data:
		return nil
	default:
		return errors.New("transport: send buffer full")
	}
}

func (m *Manager) run(ctx context.Context) {
	defer func() {
		m.mu.Lock()
		m.running = false
		m.conn = nil
		m.mu.Unlock()
		m.setState(StateDisconnected)
		close(m.done)
	}()

	for {
		m.setState(StateConnecting)
		conn, err := m.opts.Dialer.Dial(ctx, m.opts.URL, m.opts.Header)
		if err != nil {
			if m.stopped(ctx) {
				return
			}
			m.opts.Logger.Warn("transport", "dial failed", map[string]interface{}{
				"error": err.Error(),
			})
			m.setState(StateReconnecting)
			if !m.waitRetry(ctx) {
				return
			}
			continue
		}

		m.mu.Lock()
		m.conn = conn
		m.attempts = 0
		m.mu.Unlock()
		m.bo.Reset()
		m.setState(StateConnected)

		err = m.serve(ctx, conn)
		conn.Close()
		m.mu.Lock()
		m.conn = nil
		m.mu.Unlock()

		if m.stopped(ctx) {
			return
		}
		m.opts.Logger.Warn("transport", "connection lost", map[string]interface{}{
			"error": errString(err),
		})
		m.setState(StateReconnecting)
		if !m.waitRetry(ctx) {
			return
		}
	}
}

// serve pumps the connection until it breaks. The read deadline is the
// heartbeat interval plus the grace period; a pong extends it, so a
// missed acknowledgment surfaces as a read timeout.
func (m *Manager) serve(ctx context.Context, conn Conn) error {
	deadline := m.opts.HeartbeatInterval + m.opts.PingGrace
	conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	})

	readErr := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			if m.opts.OnMessage != nil {
				m.opts.OnMessage(data)
			}
		}
	}()

	ticker := time.NewTicker(m.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case data := <-m.sendCh:
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

// waitRetry sleeps for the next backoff delay. It reports false when the
// attempt budget is exhausted or the manager was cancelled.
func (m *Manager) waitRetry(ctx context.Context) bool {
	m.mu.Lock()
	m.attempts++
	attempts := m.attempts
	m.mu.Unlock()

	if attempts > m.opts.MaxReconnectAttempts {
		m.opts.Logger.Error("transport", "reconnect attempts exhausted", map[string]interface{}{
			"attempts": attempts - 1,
		})
		return false
	}

	delay := m.nextDly()
	m.opts.Logger.Info("transport", "scheduling reconnect", map[string]interface{}{
		"attempt": attempts,
		"delay":   delay.String(),
	})

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (m *Manager) stopped(ctx context.Context) bool {
	return m.manual.Load() || ctx.Err() != nil
}

func (m *Manager) setState(to State) {
	m.mu.Lock()
	from := m.state
	if from == to {
		m.mu.Unlock()
		return
	}
	m.state = to
	m.mu.Unlock()

	if m.opts.OnState != nil {
		m.opts.OnState(from, to)
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
