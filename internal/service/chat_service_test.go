package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"marketchat/backend/internal/models"
	"marketchat/backend/internal/repository"
	apperrors "marketchat/backend/pkg/errors"
	"marketchat/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Output: io.Discard})
}

// recordingBroadcaster captures every publish for assertions
type recordingBroadcaster struct {
	mu        sync.Mutex
	topics    []string
	messages  []any
	publishes int
}

func (b *recordingBroadcaster) Publish(ctx context.Context, topic string, message any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = append(b.topics, topic)
	b.messages = append(b.messages, message)
	b.publishes++
	return nil
}

// failingBroadcaster rejects every publish
type failingBroadcaster struct{}

func (failingBroadcaster) Publish(ctx context.Context, topic string, message any) error {
	return errors.New("broker unavailable")
}

// fakeStorage returns a canned URL or error without touching any backend
type fakeStorage struct {
	url     string
	err     error
	uploads int
}

func (s *fakeStorage) Upload(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.uploads++
	return s.url, nil
}

func (s *fakeStorage) Delete(ctx context.Context, publicURL string) error {
	return s.err
}

type chatFixture struct {
	users    *repository.MemoryUserRepository
	posts    *repository.MemoryPostRepository
	rooms    *repository.MemoryRoomRepository
	messages *repository.MemoryMessageRepository
	store    *fakeStorage
	bus      *recordingBroadcaster
	svc      *ChatService
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	f := &chatFixture{
		users:    repository.NewMemoryUserRepository(),
		posts:    repository.NewMemoryPostRepository(),
		rooms:    repository.NewMemoryRoomRepository(),
		messages: repository.NewMemoryMessageRepository(),
		store:    &fakeStorage{url: "https://cdn.test/images/pic.png"},
		bus:      &recordingBroadcaster{},
	}
	f.svc = NewChatService(f.rooms, f.messages, f.users, f.posts, f.store, f.bus, testLogger())
	return f
}

func (f *chatFixture) addUser(t *testing.T, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "hunter2hunter2",
	}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func (f *chatFixture) addPost(t *testing.T, author, title string) *models.Post {
	t.Helper()
	post := &models.Post{Title: title, Content: "for sale", Author: author}
	require.NoError(t, f.posts.Create(context.Background(), post))
	return post
}

func TestCreateOrGetRoom_CreatesRoomWithJoinMessage(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	post := f.addPost(t, "alice", "old bike")

	view, err := f.svc.CreateOrGetRoom(ctx, post.ID, bob.ID)
	require.NoError(t, err)

	assert.NotEmpty(t, view.RoomID)
	assert.Equal(t, post.ID, view.PostID)
	assert.Equal(t, "old bike", view.PostTitle)
	assert.Equal(t, alice.ID, view.User1ID)
	assert.Equal(t, "alice", view.User1Name)
	assert.Equal(t, bob.ID, view.User2ID)
	assert.Equal(t, "bob", view.User2Name)

	messages, err := f.svc.Messages(ctx, view.RoomID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, models.MessageTypeJoin, messages[0].Type)
	assert.Equal(t, "bob joined the room", messages[0].Content)
	assert.Equal(t, bob.ID, messages[0].SenderID)

	assert.Equal(t, "bob joined the room", view.LastMessage)
	require.NotNil(t, view.LastMessageTime)
}

func TestCreateOrGetRoom_IsIdempotent(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	post := f.addPost(t, "alice", "old bike")

	first, err := f.svc.CreateOrGetRoom(ctx, post.ID, bob.ID)
	require.NoError(t, err)
	second, err := f.svc.CreateOrGetRoom(ctx, post.ID, bob.ID)
	require.NoError(t, err)

	assert.Equal(t, first.RoomID, second.RoomID)
	assert.Equal(t, first.ID, second.ID)

	// The repeat call must not append a second JOIN
	count, err := f.svc.MessageCount(ctx, first.RoomID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestCreateOrGetRoom_MirroredPartiesCreateDistinctRoom(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	post := f.addPost(t, "alice", "old bike")

	// Seed a room whose parties are swapped relative to the (author,
	// requester) ordering. The ordered triple lookup must not match it.
	mirrored := &models.ChatRoom{
		RoomID:  "mirrored-room",
		PostID:  post.ID,
		User1ID: bob.ID,
		User2ID: alice.ID,
	}
	require.NoError(t, f.rooms.Create(ctx, mirrored))

	view, err := f.svc.CreateOrGetRoom(ctx, post.ID, bob.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "mirrored-room", view.RoomID)
	assert.Equal(t, alice.ID, view.User1ID)
	assert.Equal(t, bob.ID, view.User2ID)
}

func TestCreateOrGetRoom_MissingReferences(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	post := f.addPost(t, "alice", "old bike")

	_, err := f.svc.CreateOrGetRoom(ctx, 999, bob.ID)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = f.svc.CreateOrGetRoom(ctx, post.ID, 999)
	assert.True(t, apperrors.IsNotFound(err))

	// A post whose author has no account is a dangling reference
	orphan := f.addPost(t, "ghost", "haunted lamp")
	_, err = f.svc.CreateOrGetRoom(ctx, orphan.ID, bob.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

// flakyMessageRepo fails a fixed number of appends before recovering
type flakyMessageRepo struct {
	repository.MessageRepository
	failures int
}

func (r *flakyMessageRepo) Create(ctx context.Context, message *models.ChatMessage) error {
	if r.failures > 0 {
		r.failures--
		return errors.New("append failed")
	}
	return r.MessageRepository.Create(ctx, message)
}

func TestCreateOrGetRoom_JoinAppendFailureRollsBackRoom(t *testing.T) {
	f := newChatFixture(t)
	flaky := &flakyMessageRepo{MessageRepository: f.messages, failures: 1}
	f.svc = NewChatService(f.rooms, flaky, f.users, f.posts, f.store, f.bus, testLogger())
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	post := f.addPost(t, "alice", "old bike")

	_, err := f.svc.CreateOrGetRoom(ctx, post.ID, bob.ID)
	require.Error(t, err)

	// The failed attempt must not leave a room behind for the triple
	_, err = f.rooms.GetByTriple(ctx, post.ID, alice.ID, bob.ID)
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)

	// With the store healthy again, the retry gets a fully initialized room
	view, err := f.svc.CreateOrGetRoom(ctx, post.ID, bob.ID)
	require.NoError(t, err)

	messages, err := f.svc.Messages(ctx, view.RoomID)
	require.NoError(t, err)
	require.NotEmpty(t, messages)
	assert.Equal(t, models.MessageTypeJoin, messages[0].Type)
	assert.Equal(t, "bob joined the room", messages[0].Content)
}

func TestCreateOrGetRoom_ConcurrentCallsShareOneRoom(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	post := f.addPost(t, "alice", "old bike")

	const callers = 16
	roomIDs := make([]string, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			view, err := f.svc.CreateOrGetRoom(ctx, post.ID, bob.ID)
			if err != nil {
				errs[i] = err
				return
			}
			roomIDs[i] = view.RoomID
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, roomIDs[0], roomIDs[i])
	}

	// All callers converged on one room with exactly one JOIN entry
	count, err := f.svc.MessageCount(ctx, roomIDs[0])
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestSendMessage_RoundTripAndOrdering(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	post := f.addPost(t, "alice", "old bike")

	view, err := f.svc.CreateOrGetRoom(ctx, post.ID, bob.ID)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		sender := bob.ID
		if i%2 == 1 {
			sender = alice.ID
		}
		_, err := f.svc.SendMessage(ctx, view.RoomID, sender, fmt.Sprintf("message %d", i), "", models.MessageTypeChat)
		require.NoError(t, err)
	}

	messages, err := f.svc.Messages(ctx, view.RoomID)
	require.NoError(t, err)
	require.Len(t, messages, 6) // JOIN plus five chat messages

	assert.Equal(t, models.MessageTypeJoin, messages[0].Type)
	for i := 1; i < len(messages); i++ {
		assert.Equal(t, fmt.Sprintf("message %d", i-1), messages[i].Content)
		assert.False(t, messages[i].CreatedAt.Before(messages[i-1].CreatedAt))
		assert.Greater(t, messages[i].ID, messages[i-1].ID)
	}

	// Sender display names come from the user directory
	assert.Equal(t, "bob", messages[1].SenderName)
	assert.Equal(t, "alice", messages[2].SenderName)
}

func TestSendMessage_Validation(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	post := f.addPost(t, "alice", "old bike")

	view, err := f.svc.CreateOrGetRoom(ctx, post.ID, bob.ID)
	require.NoError(t, err)

	_, err = f.svc.SendMessage(ctx, view.RoomID, bob.ID, "   ", "", models.MessageTypeChat)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	_, err = f.svc.SendMessage(ctx, view.RoomID, bob.ID, "hello", "", models.MessageType("SHOUT"))
	assert.True(t, apperrors.IsCode(err, apperrors.CodeValidation))

	// Neither rejected call reached the log
	count, err := f.svc.MessageCount(ctx, view.RoomID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestSendMessage_UnknownRoomAndSender(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	post := f.addPost(t, "alice", "old bike")

	_, err := f.svc.SendMessage(ctx, "no-such-room", bob.ID, "hello", "", models.MessageTypeChat)
	assert.True(t, apperrors.IsNotFound(err))

	view, err := f.svc.CreateOrGetRoom(ctx, post.ID, bob.ID)
	require.NoError(t, err)

	_, err = f.svc.SendMessage(ctx, view.RoomID, 999, "hello", "", models.MessageTypeChat)
	assert.True(t, apperrors.IsNotFound(err))

	count, err := f.svc.MessageCount(ctx, view.RoomID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestSendMessage_NonParticipantSenderAccepted(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	carol := f.addUser(t, "carol")
	post := f.addPost(t, "alice", "old bike")

	view, err := f.svc.CreateOrGetRoom(ctx, post.ID, bob.ID)
	require.NoError(t, err)

	// Senders are resolved for their display name only; room membership
	// is not enforced on the append path.
	msg, err := f.svc.SendMessage(ctx, view.RoomID, carol.ID, "is it still there?", "", models.MessageTypeChat)
	require.NoError(t, err)
	assert.Equal(t, "carol", msg.SenderName)
}

func TestSendMessage_PublishesToRoomTopic(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	post := f.addPost(t, "alice", "old bike")

	view, err := f.svc.CreateOrGetRoom(ctx, post.ID, bob.ID)
	require.NoError(t, err)

	msg, err := f.svc.SendMessage(ctx, view.RoomID, bob.ID, "hello", "", models.MessageTypeChat)
	require.NoError(t, err)

	f.bus.mu.Lock()
	defer f.bus.mu.Unlock()
	require.Equal(t, 2, f.bus.publishes) // JOIN then the chat message
	assert.Equal(t, "room/"+view.RoomID, f.bus.topics[1])
	published, ok := f.bus.messages[1].(*models.ChatMessage)
	require.True(t, ok)
	assert.Equal(t, msg.ID, published.ID)
}

func TestSendMessage_PublishFailureDoesNotFailAppend(t *testing.T) {
	f := newChatFixture(t)
	f.svc = NewChatService(f.rooms, f.messages, f.users, f.posts, f.store, failingBroadcaster{}, testLogger())
	ctx := context.Background()
	f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	post := f.addPost(t, "alice", "old bike")

	view, err := f.svc.CreateOrGetRoom(ctx, post.ID, bob.ID)
	require.NoError(t, err)

	msg, err := f.svc.SendMessage(ctx, view.RoomID, bob.ID, "hello", "", models.MessageTypeChat)
	require.NoError(t, err)
	assert.NotZero(t, msg.ID)

	messages, err := f.svc.Messages(ctx, view.RoomID)
	require.NoError(t, err)
	assert.Len(t, messages, 2)
}

func TestSendImageMessage(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	post := f.addPost(t, "alice", "old bike")

	view, err := f.svc.CreateOrGetRoom(ctx, post.ID, bob.ID)
	require.NoError(t, err)

	msg, err := f.svc.SendImageMessage(ctx, view.RoomID, bob.ID, "pic.png", strings.NewReader("png-bytes"), 9, "image/png")
	require.NoError(t, err)
	assert.Equal(t, models.MessageTypeImage, msg.Type)
	assert.Equal(t, "[image]", msg.Content)
	assert.Equal(t, "https://cdn.test/images/pic.png", msg.ImageURL)
	assert.Equal(t, 1, f.store.uploads)
}

func TestSendImageMessage_UploadFailure(t *testing.T) {
	f := newChatFixture(t)
	f.store.err = errors.New("bucket unreachable")
	ctx := context.Background()
	f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	post := f.addPost(t, "alice", "old bike")

	view, err := f.svc.CreateOrGetRoom(ctx, post.ID, bob.ID)
	require.NoError(t, err)

	_, err = f.svc.SendImageMessage(ctx, view.RoomID, bob.ID, "pic.png", strings.NewReader("png-bytes"), 9, "image/png")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUpstreamIO))

	// A failed upload appends nothing
	count, err := f.svc.MessageCount(ctx, view.RoomID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestJoinAndLeave(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	post := f.addPost(t, "alice", "old bike")

	view, err := f.svc.CreateOrGetRoom(ctx, post.ID, bob.ID)
	require.NoError(t, err)

	joined, err := f.svc.Join(ctx, view.RoomID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageTypeJoin, joined.Type)
	assert.Equal(t, "alice joined the room", joined.Content)

	left, err := f.svc.Leave(ctx, view.RoomID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageTypeLeave, left.Type)
	assert.Equal(t, "alice left the room", left.Content)

	_, err = f.svc.Join(ctx, view.RoomID, 999)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestMessages_UnknownRoom(t *testing.T) {
	f := newChatFixture(t)
	_, err := f.svc.Messages(context.Background(), "no-such-room")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRoomsByUser(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	carol := f.addUser(t, "carol")
	bike := f.addPost(t, "alice", "old bike")
	lamp := f.addPost(t, "alice", "desk lamp")

	first, err := f.svc.CreateOrGetRoom(ctx, bike.ID, bob.ID)
	require.NoError(t, err)
	second, err := f.svc.CreateOrGetRoom(ctx, lamp.ID, bob.ID)
	require.NoError(t, err)
	_, err = f.svc.CreateOrGetRoom(ctx, bike.ID, carol.ID)
	require.NoError(t, err)

	views, err := f.svc.RoomsByUser(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, first.RoomID, views[0].RoomID)
	assert.Equal(t, second.RoomID, views[1].RoomID)

	none, err := f.svc.RoomsByUser(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, none)
}

// TestConversationFlow walks a whole exchange end to end the way the REST and
// websocket surfaces drive it.
func TestConversationFlow(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	post := f.addPost(t, "alice", "old bike")

	view, err := f.svc.CreateOrGetRoom(ctx, post.ID, bob.ID)
	require.NoError(t, err)

	_, err = f.svc.SendMessage(ctx, view.RoomID, bob.ID, "hi, is this still available?", "", models.MessageTypeChat)
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, view.RoomID, alice.ID)
	require.NoError(t, err)
	_, err = f.svc.SendMessage(ctx, view.RoomID, alice.ID, "yes, it is", "", models.MessageTypeChat)
	require.NoError(t, err)
	_, err = f.svc.SendImageMessage(ctx, view.RoomID, bob.ID, "pic.png", strings.NewReader("png-bytes"), 9, "image/png")
	require.NoError(t, err)

	messages, err := f.svc.Messages(ctx, view.RoomID)
	require.NoError(t, err)
	require.Len(t, messages, 5)

	wantTypes := []models.MessageType{
		models.MessageTypeJoin,
		models.MessageTypeChat,
		models.MessageTypeJoin,
		models.MessageTypeChat,
		models.MessageTypeImage,
	}
	for i, want := range wantTypes {
		assert.Equal(t, want, messages[i].Type, "message %d", i)
	}

	refreshed, err := f.svc.RoomByPublicID(ctx, view.RoomID)
	require.NoError(t, err)
	assert.Equal(t, "[image]", refreshed.LastMessage)
}
