package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"campus-market-be/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// clusterChannel carries cross-instance frames: a client may hold its
// socket against any instance, while the send that targets it lands on
// another.
const clusterChannel = "cluster_events"

type Hub struct {
	// UserID -> open connections (multi-device).
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Redis bridge for other instances; nil in single-instance setups.
	rdb *redis.Client

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string][]*Client),
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
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"user_id": client.UserID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.UserID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.UserID] = append(clients[:i], clients[i+1:]...)
						break
					}
				}
				if len(h.clients[client.UserID]) == 0 {
					delete(h.clients, client.UserID)
					h.logger.Info("Hub", "Client completely unregistered", map[string]interface{}{"user_id": client.UserID})
				}
			}
			h.mu.Unlock()
			// The unregister path owns the close; a client may be queued
			// here more than once (slow reader plus dropped socket).
			client.closeSend()
		}
	}
}

// Send delivers a pre-serialized frame to every live connection of the
// user, locally and (via Redis) on other instances.
func (h *Hub) Send(userId string, data []byte) {
	for _, client := range h.snapshot(userId) {
		if !client.trySend(data) {
			h.logger.Warn("Hub", "Client send buffer full, dropping connection", map[string]interface{}{"user_id": userId})
			h.unregister <- client
		}
	}

	// Always publish: the same user may be connected elsewhere too.
	if h.rdb != nil {
		payload, _ := json.Marshal(map[string]interface{}{
			"target_user_id": userId,
			"message":        json.RawMessage(data),
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
			TargetUserID string          `json:"target_user_id"`
			Message      json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn("Hub", "Cluster frame parse error", map[string]interface{}{"error": err.Error()})
			continue
		}

		for _, client := range h.snapshot(payload.TargetUserID) {
			if !client.trySend(payload.Message) {
				h.unregister <- client
			}
		}
	}
}

// snapshot copies the user's connection list under the read lock; Run
// mutates the live slice in place, so callers must never range over it
// directly.
func (h *Hub) snapshot(userId string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]*Client(nil), h.clients[userId]...)
}
