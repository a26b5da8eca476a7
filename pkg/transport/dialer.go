package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the subset of a websocket connection the manager drives.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Dialer opens a duplex channel to the server. Abstracted so the
// connection state machine can be tested without real sockets.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

type gorillaDialer struct {
	dialer *websocket.Dialer
}

// NewDialer returns a Dialer backed by gorilla/websocket.
func NewDialer(handshakeTimeout time.Duration) Dialer {
	return &gorillaDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

func (g *gorillaDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	conn, resp, err := g.dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	return conn, nil
}
