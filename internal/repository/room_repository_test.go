package repository

import (
	"context"
	"testing"

	"marketchat/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomCreate_DuplicateTripleRejected(t *testing.T) {
	repo := NewGormRoomRepository(openTestDB(t))
	ctx := context.Background()

	first := &models.ChatRoom{RoomID: "room-a", PostID: 1, User1ID: 10, User2ID: 20}
	require.NoError(t, repo.Create(ctx, first))

	// Same triple, different public token: the composite index rejects it
	dup := &models.ChatRoom{RoomID: "room-b", PostID: 1, User1ID: 10, User2ID: 20}
	err := repo.Create(ctx, dup)
	assert.ErrorIs(t, err, ErrDuplicateRoom)

	got, err := repo.GetByTriple(ctx, 1, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, "room-a", got.RoomID)
}

func TestRoomCreate_MirroredTripleIsDistinct(t *testing.T) {
	repo := NewGormRoomRepository(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.ChatRoom{RoomID: "room-a", PostID: 1, User1ID: 10, User2ID: 20}))
	require.NoError(t, repo.Create(ctx, &models.ChatRoom{RoomID: "room-b", PostID: 1, User1ID: 20, User2ID: 10}))

	a, err := repo.GetByTriple(ctx, 1, 10, 20)
	require.NoError(t, err)
	b, err := repo.GetByTriple(ctx, 1, 20, 10)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestRoomLookups(t *testing.T) {
	repo := NewGormRoomRepository(openTestDB(t))
	ctx := context.Background()

	room := &models.ChatRoom{RoomID: "room-a", PostID: 1, User1ID: 10, User2ID: 20}
	require.NoError(t, repo.Create(ctx, room))

	byToken, err := repo.GetByRoomID(ctx, "room-a")
	require.NoError(t, err)
	assert.Equal(t, room.ID, byToken.ID)

	_, err = repo.GetByRoomID(ctx, "missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = repo.GetByTriple(ctx, 1, 10, 99)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomListByUser(t *testing.T) {
	repo := NewGormRoomRepository(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.ChatRoom{RoomID: "room-a", PostID: 1, User1ID: 10, User2ID: 20}))
	require.NoError(t, repo.Create(ctx, &models.ChatRoom{RoomID: "room-b", PostID: 2, User1ID: 20, User2ID: 30}))
	require.NoError(t, repo.Create(ctx, &models.ChatRoom{RoomID: "room-c", PostID: 3, User1ID: 30, User2ID: 10}))

	// Rooms match on either side of the pair, ordered by insertion
	rooms, err := repo.ListByUser(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "room-a", rooms[0].RoomID)
	assert.Equal(t, "room-c", rooms[1].RoomID)

	none, err := repo.ListByUser(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRoomExistsByPost(t *testing.T) {
	repo := NewGormRoomRepository(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.ChatRoom{RoomID: "room-a", PostID: 1, User1ID: 10, User2ID: 20}))

	exists, err := repo.ExistsByPost(ctx, 1)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByPost(ctx, 2)
	require.NoError(t, err)
	assert.False(t, exists)
}
