package api

import (
	"net/http"
	"strconv"

	"marketchat/backend/internal/models"
	"marketchat/backend/internal/service"
	apperrors "marketchat/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

// ChatHandler exposes the room registry and message store over REST
type ChatHandler struct {
	chat *service.ChatService
}

func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

// CreateRoom handles POST /chat/rooms. Idempotent per (post, author,
// requester) triple: repeat calls return the existing room.
func (h *ChatHandler) CreateRoom(c *gin.Context) {
	var req models.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError("post_id and requester_id are required"))
		return
	}

	view, err := h.chat.CreateOrGetRoom(c.Request.Context(), req.PostID, req.RequesterID)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// ListRooms handles GET /chat/rooms?user={id}
func (h *ChatHandler) ListRooms(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Query("user"), 10, 32)
	if err != nil {
		c.Error(apperrors.NewValidationError("user query parameter must be a numeric id"))
		return
	}

	views, err := h.chat.RoomsByUser(c.Request.Context(), uint(userID))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// GetRoom handles GET /chat/rooms/:roomId
func (h *ChatHandler) GetRoom(c *gin.Context) {
	view, err := h.chat.RoomByPublicID(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetMessages handles GET /chat/messages/:roomId
func (h *ChatHandler) GetMessages(c *gin.Context) {
	messages, err := h.chat.Messages(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// SendMessage handles POST /chat/messages, the REST fallback for clients
// without a websocket. A missing type means CHAT.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError("room_id, sender_id and content are required"))
		return
	}

	msgType, ok := models.NormalizeMessageType(req.Type)
	if !ok {
		c.Error(apperrors.NewValidationError("type must be one of CHAT, JOIN, LEAVE, IMAGE"))
		return
	}

	message, err := h.chat.SendMessage(c.Request.Context(), req.RoomID, req.SenderID, req.Content, "", msgType)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, message)
}

// SendImageMessage handles POST /chat/messages/image (multipart)
func (h *ChatHandler) SendImageMessage(c *gin.Context) {
	roomID := c.PostForm("roomId")
	if roomID == "" {
		c.Error(apperrors.NewValidationError("roomId form field is required"))
		return
	}
	senderID, err := strconv.ParseUint(c.PostForm("senderId"), 10, 32)
	if err != nil {
		c.Error(apperrors.NewValidationError("senderId form field must be a numeric id"))
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.Error(apperrors.NewValidationError("image file is required"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.Error(apperrors.NewUpstreamIOError("failed to read uploaded image", err))
		return
	}
	defer file.Close()

	message, err := h.chat.SendImageMessage(
		c.Request.Context(),
		roomID,
		uint(senderID),
		fileHeader.Filename,
		file,
		fileHeader.Size,
		fileHeader.Header.Get("Content-Type"),
	)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, models.ImageUploadResponse{
		ImageURL: message.ImageURL,
		Message:  "image uploaded successfully",
	})
}
