package handler

import (
	"context"
	"time"

	"campus-market-be/internal/pkg/logger"
	"campus-market-be/internal/pkg/serverutils"
	"campus-market-be/internal/service"
	internalWS "campus-market-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const streamWriteWait = 10 * time.Second

// StreamHandler owns the two websocket surfaces: the hub socket for direct
// push frames and the snapshot streams mirroring the store subscriptions.
type StreamHandler struct {
	chat          service.IChatService
	conversations service.IConversationService
	hub           *internalWS.Hub
	logger        logger.ILogger
}

func NewStreamHandler(
	chat service.IChatService,
	conversations service.IConversationService,
	hub *internalWS.Hub,
	log logger.ILogger,
) *StreamHandler {
	return &StreamHandler{
		chat:          chat,
		conversations: conversations,
		hub:           hub,
		logger:        log,
	}
}

// RegisterRoutes mounts the websocket endpoints. Auth happens inside the
// handshake (query token), not via the REST middleware: browsers cannot
// set headers on websocket upgrades.
func (h *StreamHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/chat/ws", h.ServeWs)
	r.Get("/chat/ws/stream", h.ServeStream)
}

// ServeWs attaches the peer to the hub for direct push frames.
func (h *StreamHandler) ServeWs(c *fiber.Ctx) error {
	userID, _, err := serverutils.ParseWsToken(c)
	if err != nil {
		return err
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("StreamHandler", "Hub socket opened", map[string]interface{}{"user_id": userID})
		internalWS.ServeWs(h.hub, conn, userID)
		h.logger.Info("StreamHandler", "Hub socket closed", map[string]interface{}{"user_id": userID})
	})(c)
}

// ServeStream streams live snapshots. With ?session_id= it mirrors one
// conversation (ordered messages plus presence/summary state); without it,
// the viewer's conversation list. Every delivery is the full state, never
// a delta, so a dropped frame costs nothing once the next one lands.
func (h *StreamHandler) ServeStream(c *fiber.Ctx) error {
	userID, _, err := serverutils.ParseWsToken(c)
	if err != nil {
		return err
	}
	sessionId := c.Query("session_id")

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return websocket.New(func(conn *websocket.Conn) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Reader only exists to notice the disconnect.
		go func() {
			defer cancel()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		if sessionId != "" {
			h.streamSession(ctx, conn, sessionId, userID)
		} else {
			h.streamConversations(ctx, conn, userID)
		}
	})(c)
}

func (h *StreamHandler) streamSession(ctx context.Context, conn *websocket.Conn, sessionId, userID string) {
	messages, cancelMessages, err := h.chat.WatchMessages(ctx, sessionId, userID)
	if err != nil {
		h.writeError(conn, err)
		return
	}
	defer cancelMessages()

	states, cancelStates, err := h.chat.WatchSession(ctx, sessionId, userID)
	if err != nil {
		h.writeError(conn, err)
		return
	}
	defer cancelStates()

	for {
		select {
		case snapshot, ok := <-messages:
			if !ok {
				return
			}
			if err := h.writeFrame(conn, "messages.snapshot", snapshot); err != nil {
				return
			}
		case state, ok := <-states:
			if !ok {
				return
			}
			if err := h.writeFrame(conn, "session.snapshot", state); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *StreamHandler) streamConversations(ctx context.Context, conn *websocket.Conn, userID string) {
	snapshots, cancel, err := h.conversations.Watch(ctx, userID)
	if err != nil {
		h.writeError(conn, err)
		return
	}
	defer cancel()

	for {
		select {
		case snapshot, ok := <-snapshots:
			if !ok {
				return
			}
			if err := h.writeFrame(conn, "conversations.snapshot", snapshot); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *StreamHandler) writeFrame(conn *websocket.Conn, frameType string, data interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(map[string]interface{}{
		"type": frameType,
		"data": data,
	})
}

func (h *StreamHandler) writeError(conn *websocket.Conn, err error) {
	h.logger.Warn("StreamHandler", "Stream rejected", map[string]interface{}{"error": err.Error()})
	conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	_ = conn.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": err.Error(),
	})
}
