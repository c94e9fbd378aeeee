package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"marketchat/backend/internal/broadcast"
	"marketchat/backend/internal/models"
	"marketchat/backend/internal/repository"
	"marketchat/backend/internal/storage"
	apperrors "marketchat/backend/pkg/errors"
	"marketchat/backend/pkg/logger"
	"marketchat/backend/pkg/metrics"

	"github.com/google/uuid"
)

// imageContent is the placeholder body stored with image messages
const imageContent = "[image]"

func joinContent(name string) string  { return fmt.Sprintf("%s joined the room", name) }
func leaveContent(name string) string { return fmt.Sprintf("%s left the room", name) }

// ChatService implements the room registry and the message store on top of
// the repositories, publishing every persisted message to its room topic.
// Both the REST and the websocket surface resolve to the same append path
// here, so ordering semantics do not depend on the transport.
type ChatService struct {
	rooms       repository.RoomRepository
	messages    repository.MessageRepository
	users       repository.UserRepository
	posts       repository.PostRepository
	storage     storage.Storage
	broadcaster broadcast.Broadcaster
	logger      *logger.Logger
}

func NewChatService(
	rooms repository.RoomRepository,
	messages repository.MessageRepository,
	users repository.UserRepository,
	posts repository.PostRepository,
	store storage.Storage,
	broadcaster broadcast.Broadcaster,
	log *logger.Logger,
) *ChatService {
	return &ChatService{
		rooms:       rooms,
		messages:    messages,
		users:       users,
		posts:       posts,
		storage:     store,
		broadcaster: broadcaster,
		logger:      log,
	}
}

// CreateOrGetRoom returns the room for (post, post author, requester),
// creating it if absent. Creation emits a JOIN message for the requester;
// repeat calls return the existing room unchanged and emit nothing. Two
// concurrent calls for the same triple are serialized by the unique index:
// the loser re-reads the winner's row.
func (s *ChatService) CreateOrGetRoom(ctx context.Context, postID, requesterID uint) (*models.RoomView, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		if err == repository.ErrPostNotFound {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("post not found: id %d", postID))
		}
		return nil, err
	}

	author, err := s.users.GetByUsername(ctx, post.Author)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("post author not found: %s", post.Author))
		}
		return nil, err
	}

	requester, err := s.users.GetByID(ctx, requesterID)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("requester not found: id %d", requesterID))
		}
		return nil, err
	}

	// Dedup on the exact ordered triple. A request with the roles swapped is
	// a different triple and resolves to a different room.
	if existing, err := s.rooms.GetByTriple(ctx, post.ID, author.ID, requester.ID); err == nil {
		return s.buildView(ctx, existing)
	} else if err != repository.ErrRoomNotFound {
		return nil, err
	}

	room := &models.ChatRoom{
		RoomID:  uuid.New().String(),
		PostID:  post.ID,
		User1ID: author.ID,
		User2ID: requester.ID,
	}

	if err := s.rooms.Create(ctx, room); err != nil {
		if err == repository.ErrDuplicateRoom {
			existing, err := s.rooms.GetByTriple(ctx, post.ID, author.ID, requester.ID)
			if err != nil {
				return nil, err
			}
			return s.buildView(ctx, existing)
		}
		return nil, err
	}
	metrics.RoomsCreated.Inc()
	s.logger.Info("chat room created",
		"room_id", room.RoomID,
		"post_id", post.ID,
		"author_id", author.ID,
		"requester_id", requester.ID,
	)

	// The requester's JOIN is part of room initialization. If it cannot be
	// appended, the room row is rolled back too, so no caller ever observes
	// a room whose log is missing its opening JOIN.
	if _, err := s.SendMessage(ctx, room.RoomID, requester.ID, joinContent(requester.Username), "", models.MessageTypeJoin); err != nil {
		if delErr := s.rooms.Delete(ctx, room.ID); delErr != nil {
			s.logger.LogError(delErr, "room rollback failed after join append error", "room_id", room.RoomID)
		}
		return nil, err
	}

	return s.buildView(ctx, room)
}

// RoomsByUser returns the views of every room the user participates in,
// in storage order.
func (s *ChatService) RoomsByUser(ctx context.Context, userID uint) ([]models.RoomView, error) {
	rooms, err := s.rooms.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]models.RoomView, 0, len(rooms))
	for i := range rooms {
		view, err := s.buildView(ctx, &rooms[i])
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

// RoomByPublicID resolves a room by its public token
func (s *ChatService) RoomByPublicID(ctx context.Context, roomID string) (*models.RoomView, error) {
	room, err := s.rooms.GetByRoomID(ctx, roomID)
	if err != nil {
		if err == repository.ErrRoomNotFound {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("room not found: %s", roomID))
		}
		return nil, err
	}
	return s.buildView(ctx, room)
}

// SendMessage is the single choke point every message type passes through:
// chat, image, and presence all share its persistence and fanout semantics.
// The append is the success boundary; a failed publish is logged and counted
// but never rolls back or fails the call.
func (s *ChatService) SendMessage(ctx context.Context, roomID string, senderID uint, content, imageURL string, msgType models.MessageType) (*models.ChatMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.NewValidationError("content must not be blank")
	}
	if !msgType.Valid() {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown message type: %q", msgType))
	}

	room, err := s.rooms.GetByRoomID(ctx, roomID)
	if err != nil {
		if err == repository.ErrRoomNotFound {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("room not found: %s", roomID))
		}
		return nil, err
	}

	// The sender is resolved for its display name only; membership in the
	// room is not enforced.
	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("sender not found: id %d", senderID))
		}
		return nil, err
	}

	message := &models.ChatMessage{
		RoomID:     room.RoomID,
		SenderID:   sender.ID,
		SenderName: sender.Username,
		Content:    content,
		ImageURL:   imageURL,
		Type:       msgType,
	}

	if err := s.messages.Create(ctx, message); err != nil {
		return nil, err
	}
	metrics.MessagesAppended.WithLabelValues(string(msgType)).Inc()

	if err := s.broadcaster.Publish(ctx, broadcast.TopicForRoom(room.RoomID), message); err != nil {
		metrics.BroadcastFailures.Inc()
		s.logger.LogError(err, "broadcast failed after append", "room_id", room.RoomID, "message_id", message.ID)
	}

	return message, nil
}

// SendImageMessage uploads the image to the blob store and appends an IMAGE
// message carrying its public URL
func (s *ChatService) SendImageMessage(ctx context.Context, roomID string, senderID uint, filename string, r io.Reader, size int64, contentType string) (*models.ChatMessage, error) {
	imageURL, err := s.storage.Upload(ctx, filename, r, size, contentType)
	if err != nil {
		return nil, apperrors.NewUpstreamIOError("image upload failed", err)
	}

	return s.SendMessage(ctx, roomID, senderID, imageContent, imageURL, models.MessageTypeImage)
}

// Messages returns the room's full log in (created_at, id) ascending order
func (s *ChatService) Messages(ctx context.Context, roomID string) ([]models.ChatMessage, error) {
	if _, err := s.rooms.GetByRoomID(ctx, roomID); err != nil {
		if err == repository.ErrRoomNotFound {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("room not found: %s", roomID))
		}
		return nil, err
	}
	return s.messages.ListByRoom(ctx, roomID)
}

// MessageCount returns the number of messages in a room
func (s *ChatService) MessageCount(ctx context.Context, roomID string) (int64, error) {
	return s.messages.CountByRoom(ctx, roomID)
}

// Join appends a JOIN presence message for the user. A second JOIN for the
// same user is allowed; presence is just rows in the log.
func (s *ChatService) Join(ctx context.Context, roomID string, userID uint) (*models.ChatMessage, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("user not found: id %d", userID))
		}
		return nil, err
	}
	return s.SendMessage(ctx, roomID, user.ID, joinContent(user.Username), "", models.MessageTypeJoin)
}

// Leave appends a LEAVE presence message for the user
func (s *ChatService) Leave(ctx context.Context, roomID string, userID uint) (*models.ChatMessage, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("user not found: id %d", userID))
		}
		return nil, err
	}
	return s.SendMessage(ctx, roomID, user.ID, leaveContent(user.Username), "", models.MessageTypeLeave)
}

// buildView denormalizes a room row into its client representation. The last
// message snapshot is a separate read and can trail concurrent sends.
func (s *ChatService) buildView(ctx context.Context, room *models.ChatRoom) (*models.RoomView, error) {
	post, err := s.posts.GetByID(ctx, room.PostID)
	if err != nil {
		return nil, err
	}
	user1, err := s.users.GetByID(ctx, room.User1ID)
	if err != nil {
		return nil, err
	}
	user2, err := s.users.GetByID(ctx, room.User2ID)
	if err != nil {
		return nil, err
	}

	view := &models.RoomView{
		ID:        room.ID,
		RoomID:    room.RoomID,
		PostID:    post.ID,
		PostTitle: post.Title,
		User1ID:   user1.ID,
		User1Name: user1.Username,
		User2ID:   user2.ID,
		User2Name: user2.Username,
		CreatedAt: room.CreatedAt,
	}

	latest, err := s.messages.Latest(ctx, room.RoomID)
	if err == nil {
		view.LastMessage = latest.Content
		t := latest.CreatedAt
		view.LastMessageTime = &t
	} else if err != repository.ErrMessageNotFound {
		return nil, err
	}

	return view, nil
}
