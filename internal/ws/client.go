package ws

import (
	"context"
	"encoding/json"
	"time"

	"marketchat/backend/internal/broadcast"
	"marketchat/backend/internal/models"
	"marketchat/backend/internal/service"
	"marketchat/backend/pkg/logger"
	"marketchat/backend/pkg/metrics"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024 // 64KB
)

// Streaming control operations
const (
	OpSend  = "chat.send"
	OpJoin  = "chat.join"
	OpLeave = "chat.leave"
)

// Envelope is the payload carried over the streaming surface. The display
// name stored with the message is always resolved from the user directory,
// never taken from the peer.
type Envelope struct {
	Op       string `json:"op"`
	RoomID   string `json:"room_id"`
	SenderID uint   `json:"sender_id"`
	Content  string `json:"content,omitempty"`
	Type     string `json:"type,omitempty"`
}

// Client is one connected websocket peer subscribed to a room topic
type Client struct {
	conn   *websocket.Conn
	sub    *broadcast.Subscription
	chat   *service.ChatService
	logger *logger.Logger
	roomID string
}

// readPump consumes envelopes from the peer until the connection drops.
// The caller receives no direct acknowledgment; the persisted message comes
// back through the room topic like everyone else's.
func (c *Client) readPump() {
	defer func() {
		c.sub.Close()
		c.conn.Close()
		metrics.WSConnections.Dec()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.LogError(err, "websocket read failed", "room_id", c.roomID)
			}
			return
		}

		var envelope Envelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			c.logger.LogError(err, "malformed envelope", "room_id", c.roomID)
			continue
		}

		c.handleEnvelope(envelope)
	}
}

// handleEnvelope routes one control operation into the shared append path
func (c *Client) handleEnvelope(envelope Envelope) {
	ctx := context.Background()

	var err error
	switch envelope.Op {
	case OpSend:
		msgType, ok := models.NormalizeMessageType(envelope.Type)
		if !ok {
			c.logger.Warn("envelope with unknown message type", "type", envelope.Type, "room_id", envelope.RoomID)
			return
		}
		_, err = c.chat.SendMessage(ctx, envelope.RoomID, envelope.SenderID, envelope.Content, "", msgType)
	case OpJoin:
		_, err = c.chat.Join(ctx, envelope.RoomID, envelope.SenderID)
	case OpLeave:
		_, err = c.chat.Leave(ctx, envelope.RoomID, envelope.SenderID)
	default:
		c.logger.Warn("unknown envelope op", "op", envelope.Op, "room_id", envelope.RoomID)
		return
	}

	if err != nil {
		c.logger.LogError(err, "envelope handling failed", "op", envelope.Op, "room_id", envelope.RoomID)
	}
}

// writePump forwards topic payloads to the peer and keeps the connection
// alive with pings. It exits when the subscription channel closes, which
// happens on unsubscribe or when the hub drops a slow client.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.sub.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
