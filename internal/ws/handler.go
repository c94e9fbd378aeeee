package ws

import (
	"net/http"
	"time"

	"marketchat/backend/internal/broadcast"
	"marketchat/backend/internal/service"
	apperrors "marketchat/backend/pkg/errors"
	"marketchat/backend/pkg/logger"
	"marketchat/backend/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	HandshakeTimeout: 10 * time.Second,
	ReadBufferSize:   1024,
	WriteBufferSize:  1024,
}

// Handler upgrades connections and attaches them to a room topic
type Handler struct {
	hub    *broadcast.Hub
	chat   *service.ChatService
	logger *logger.Logger
}

func NewHandler(hub *broadcast.Hub, chat *service.ChatService, log *logger.Logger) *Handler {
	return &Handler{hub: hub, chat: chat, logger: log}
}

// Serve handles GET /ws?roomId=... The room must exist before the upgrade;
// after it, the client receives every message published to the room topic
// and may submit chat.send / chat.join / chat.leave envelopes.
func (h *Handler) Serve(c *gin.Context) {
	roomID := c.Query("roomId")
	if roomID == "" {
		c.Error(apperrors.NewValidationError("roomId query parameter is required"))
		return
	}

	if _, err := h.chat.RoomByPublicID(c.Request.Context(), roomID); err != nil {
		c.Error(err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.LogError(err, "websocket upgrade failed", "room_id", roomID)
		return
	}

	client := &Client{
		conn:   conn,
		sub:    h.hub.Subscribe(broadcast.TopicForRoom(roomID)),
		chat:   h.chat,
		logger: h.logger.WithRoomID(roomID),
		roomID: roomID,
	}
	metrics.WSConnections.Inc()
	h.logger.Info("websocket client connected", "room_id", roomID)

	go client.writePump()
	go client.readPump()
}
