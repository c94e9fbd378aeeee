// Package repository provides storage access for the chat domain. Each
// aggregate has an interface, a GORM implementation used in production, and an
// in-memory implementation used by tests and DB-less setups.
package repository

import "errors"

// Sentinel errors surfaced by repositories. Services translate these into the
// application error taxonomy.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrPostNotFound    = errors.New("post not found")
	ErrRoomNotFound    = errors.New("room not found")
	ErrMessageNotFound = errors.New("message not found")

	// ErrDuplicateRoom is returned when a room insert loses the race on the
	// (post_id, user1_id, user2_id) unique index.
	ErrDuplicateRoom = errors.New("room already exists for this triple")

	ErrDuplicateUser = errors.New("username or email already taken")
)
