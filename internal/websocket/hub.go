package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"

	"datachat-be/internal/pkg/logger"
)

// clusterChannel carries frames between instances when Redis is
// configured, so a session reconnecting through another instance still
// receives its frames.
const clusterChannel = "datachat_frames"

// Hub tracks the one active client per session.
type Hub struct {
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	rdb    *redis.Client // optional
	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    map[string]*Client{},
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if existing, ok := h.clients[client.SessionID]; ok && existing != client {
				// A reconnect replaces the previous connection. The old
				// client may still be finishing a turn, so it is shut
				// down through its own flag rather than a bare close
				existing.shutdown()
			}
			h.clients[client.SessionID] = client
			h.mu.Unlock()
			h.logger.Info("hub", "client registered", map[string]interface{}{
				"session": client.SessionID,
			})

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.SessionID]; ok && current == client {
				delete(h.clients, client.SessionID)
				client.shutdown()
				h.logger.Info("hub", "client unregistered", map[string]interface{}{
					"session": client.SessionID,
				})
			}
			h.mu.Unlock()
		}
	}
}

// SendToSession delivers a frame to the session's connection, falling
// back to the cluster channel when it is attached elsewhere.
func (h *Hub) SendToSession(sessionID string, data []byte) {
	h.mu.RLock()
	client, ok := h.clients[sessionID]
	h.mu.RUnlock()

	if ok {
		client.deliver(data)
		return
	}

	if h.rdb != nil {
		payload, _ := json.Marshal(map[string]interface{}{
			"session_id": sessionID,
			"frame":      json.RawMessage(data),
		})
		h.rdb.Publish(context.Background(), clusterChannel, payload)
	}
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload struct {
			SessionID string          `json:"session_id"`
			Frame     json.RawMessage `json:"frame"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("hub", "cluster frame parse error", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}

		h.mu.RLock()
		client, ok := h.clients[payload.SessionID]
		h.mu.RUnlock()
		if ok {
			client.deliver(payload.Frame)
		}
	}
}
