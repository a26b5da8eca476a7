package websocket

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"datachat-be/internal/config"
	"datachat-be/internal/pkg/logger"
	"datachat-be/pkg/store"
)

// Handler upgrades HTTP requests into chat websocket sessions.
type Handler struct {
	hub     *Hub
	service TurnService
	resolve ResolveSessionFunc
	cfg     *config.Config
	logger  logger.ILogger
}

// ResolveSessionFunc looks up or creates the session for a connection.
type ResolveSessionFunc func(ctx context.Context, sessionID string) (*store.Session, bool, error)

func NewHandler(hub *Hub, service TurnService, resolve ResolveSessionFunc, cfg *config.Config, log logger.ILogger) *Handler {
	return &Handler{
		hub:     hub,
		service: service,
		resolve: resolve,
		cfg:     cfg,
		logger:  log,
	}
}

// UpgradeGuard rejects plain HTTP requests on the websocket route.
func (h *Handler) UpgradeGuard() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// Serve handles one websocket connection for its whole lifetime.
// A session_id query parameter resumes an existing session; otherwise a
// new session is created and announced in the connection frame.
func (h *Handler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		requested := conn.Query("session_id")

		session, created, err := h.resolve(context.Background(), requested)
		if err != nil {
			h.logger.Error("websocket", "session resolution failed", map[string]interface{}{
				"error": err.Error(),
			})
			conn.Close()
			return
		}

		ctx, cancel := context.WithCancel(context.Background())

		client := &Client{
			Hub:             h.hub,
			Conn:            conn,
			SessionID:       session.ID,
			Session:         session,
			Send:            make(chan []byte, 64),
			turns:           make(chan string, h.cfg.Pipeline.QueueDepth),
			service:         h.service,
			busyPolicy:      h.cfg.Pipeline.BusyPolicy,
			maxFrameBytes:   int(h.cfg.Transport.MaxFrameSize),
			maxMessageChars: h.cfg.Transport.MaxMessageChars,
			pingPeriod:      h.cfg.Transport.HeartbeatInterval,
			pongWait:        h.cfg.Transport.HeartbeatInterval + h.cfg.Transport.PingGrace,
			cancel:          cancel,
		}

		h.hub.register <- client

		h.logger.Info("websocket", "session connected", map[string]interface{}{
			"session": session.ID,
			"new":     created,
		})
		client.deliver(NewConnectionFrame(session.ID))

		go client.writePump()
		go client.turnLoop(ctx)
		client.readPump()
	})
}
