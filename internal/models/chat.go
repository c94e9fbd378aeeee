package models

import (
	"time"
)

// MessageType is the closed set of chat message kinds
type MessageType string

const (
	MessageTypeChat  MessageType = "CHAT"
	MessageTypeJoin  MessageType = "JOIN"
	MessageTypeLeave MessageType = "LEAVE"
	MessageTypeImage MessageType = "IMAGE"
)

// Valid reports whether t is one of the known message types
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeChat, MessageTypeJoin, MessageTypeLeave, MessageTypeImage:
		return true
	}
	return false
}

// NormalizeMessageType maps a request-supplied type string onto the closed
// set, defaulting to CHAT when empty. The second return is false for strings
// outside the set.
func NormalizeMessageType(s string) (MessageType, bool) {
	if s == "" {
		return MessageTypeChat, true
	}
	t := MessageType(s)
	return t, t.Valid()
}

// ChatRoom is a private two-party conversation scoped to one post.
// The composite unique index on (post_id, user1_id, user2_id) is what makes
// concurrent room creation for the same triple collapse to a single row.
type ChatRoom struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	RoomID    string    `gorm:"size:64;not null;uniqueIndex" json:"room_id"` // public token
	PostID    uint      `gorm:"not null;uniqueIndex:idx_room_triple,priority:1" json:"post_id"`
	User1ID   uint      `gorm:"not null;uniqueIndex:idx_room_triple,priority:2" json:"user1_id"` // post author
	User2ID   uint      `gorm:"not null;uniqueIndex:idx_room_triple,priority:3" json:"user2_id"` // requester
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is one entry in a room's append-only ordered log
type ChatMessage struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	RoomID     string      `gorm:"size:64;not null;index" json:"room_id"` // public room token
	SenderID   uint        `gorm:"not null" json:"sender_id"`
	SenderName string      `gorm:"size:255" json:"sender_name"` // denormalized at write time
	Content    string      `gorm:"type:text;not null" json:"content"`
	ImageURL   string      `gorm:"size:1024" json:"image_url,omitempty"`
	Type       MessageType `gorm:"size:8;not null" json:"type"`
	CreatedAt  time.Time   `json:"created_at"`
}

// CreateRoomRequest is the request structure for opening a chat about a post
type CreateRoomRequest struct {
	PostID      uint `json:"post_id" binding:"required"`
	RequesterID uint `json:"requester_id" binding:"required"`
}

// SendMessageRequest is the request structure for the REST send path.
// Type is optional and defaults to CHAT.
type SendMessageRequest struct {
	RoomID   string `json:"room_id" binding:"required"`
	SenderID uint   `json:"sender_id" binding:"required"`
	Content  string `json:"content" binding:"required"`
	Type     string `json:"type,omitempty"`
}

// RoomView is the denormalized room representation handed to clients.
// LastMessage/LastMessageTime come from a separate read against the message
// log and can be stale relative to concurrent sends.
type RoomView struct {
	ID              uint       `json:"id"`
	RoomID          string     `json:"room_id"`
	PostID          uint       `json:"post_id"`
	PostTitle       string     `json:"post_title"`
	User1ID         uint       `json:"user1_id"`
	User1Name       string     `json:"user1_name"`
	User2ID         uint       `json:"user2_id"`
	User2Name       string     `json:"user2_name"`
	CreatedAt       time.Time  `json:"created_at"`
	LastMessage     string     `json:"last_message,omitempty"`
	LastMessageTime *time.Time `json:"last_message_time,omitempty"`
}

// ImageUploadResponse is returned by the image message and file upload endpoints
type ImageUploadResponse struct {
	ImageURL string `json:"image_url,omitempty"`
	Message  string `json:"message"`
}
