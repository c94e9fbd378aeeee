package service

import (
	"context"
	"fmt"
	"testing"

	"marketchat/backend/internal/models"
	"marketchat/backend/internal/repository"
	apperrors "marketchat/backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPostFixture() (*PostService, *repository.MemoryRoomRepository) {
	rooms := repository.NewMemoryRoomRepository()
	return NewPostService(repository.NewMemoryPostRepository(), rooms), rooms
}

func TestPostCRUD(t *testing.T) {
	svc, _ := newPostFixture()
	ctx := context.Background()

	created, err := svc.Create(ctx, models.PostRequest{Title: "old bike", Content: "barely used", Author: "alice"})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.False(t, created.HasChat)

	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "old bike", got.Title)

	updated, err := svc.Update(ctx, created.ID, models.PostRequest{Title: "old bike, reduced", Content: "really", Author: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "old bike, reduced", updated.Title)
	assert.Equal(t, "alice", updated.Author)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.GetByID(ctx, created.ID)
	assert.True(t, apperrors.IsNotFound(err))
	err = svc.Delete(ctx, created.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestPostList_PaginationAndHasChat(t *testing.T) {
	svc, rooms := newPostFixture()
	ctx := context.Background()

	var firstID uint
	for i := 0; i < 15; i++ {
		post, err := svc.Create(ctx, models.PostRequest{
			Title:   fmt.Sprintf("listing %d", i),
			Content: "for sale",
			Author:  "alice",
		})
		require.NoError(t, err)
		if i == 0 {
			firstID = post.ID
		}
	}

	require.NoError(t, rooms.Create(ctx, &models.ChatRoom{
		RoomID:  "room-1",
		PostID:  firstID,
		User1ID: 1,
		User2ID: 2,
	}))

	page1, err := svc.List(ctx, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 15, page1.Total)
	require.Len(t, page1.Posts, 10)
	assert.True(t, page1.Posts[0].HasChat)
	assert.False(t, page1.Posts[1].HasChat)

	page2, err := svc.List(ctx, 2, 10)
	require.NoError(t, err)
	assert.Len(t, page2.Posts, 5)

	empty, err := svc.List(ctx, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, empty.Posts)
}

func TestPostSearch(t *testing.T) {
	svc, _ := newPostFixture()
	ctx := context.Background()

	_, err := svc.Create(ctx, models.PostRequest{Title: "old bike", Content: "red frame", Author: "alice"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, models.PostRequest{Title: "desk lamp", Content: "warm light", Author: "bob"})
	require.NoError(t, err)

	byKeyword, err := svc.Search(ctx, "bike")
	require.NoError(t, err)
	require.Len(t, byKeyword, 1)
	assert.Equal(t, "old bike", byKeyword[0].Title)

	byAuthor, err := svc.ByAuthor(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, byAuthor, 1)
	assert.Equal(t, "desk lamp", byAuthor[0].Title)

	none, err := svc.Search(ctx, "boat")
	require.NoError(t, err)
	assert.Empty(t, none)
}
