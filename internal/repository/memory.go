package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"marketchat/backend/internal/models"
)

// In-memory implementations of the repository interfaces. They mirror the
// GORM implementations' semantics (server-assigned ids and timestamps, the
// room triple uniqueness rule, message ordering) without a database.

// MemoryUserRepository is a mutex-guarded in-memory UserRepository
type MemoryUserRepository struct {
	mu     sync.RWMutex
	nextID uint
	users  map[uint]models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{nextID: 1, users: make(map[uint]models.User)}
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username || u.Email == user.Email {
			return ErrDuplicateUser
		}
	}
	user.ID = r.nextID
	r.nextID++
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if u, ok := r.users[id]; ok {
		copied := u
		return &copied, nil
	}
	return nil, ErrUserNotFound
}

func (r *MemoryUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Username == username {
			copied := u
			return &copied, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *MemoryUserRepository) List(ctx context.Context) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (r *MemoryUserRepository) Update(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return ErrUserNotFound
	}
	for id, u := range r.users {
		if id != user.ID && (u.Username == user.Username || u.Email == user.Email) {
			return ErrDuplicateUser
		}
	}
	user.UpdatedAt = time.Now()
	r.users[user.ID] = *user
	return nil
}

func (r *MemoryUserRepository) Delete(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *MemoryUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// MemoryPostRepository is a mutex-guarded in-memory PostRepository
type MemoryPostRepository struct {
	mu     sync.RWMutex
	nextID uint
	posts  map[uint]models.Post
}

func NewMemoryPostRepository() *MemoryPostRepository {
	return &MemoryPostRepository{nextID: 1, posts: make(map[uint]models.Post)}
}

func (r *MemoryPostRepository) Create(ctx context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	post.ID = r.nextID
	r.nextID++
	now := time.Now()
	post.CreatedAt = now
	post.UpdatedAt = now
	r.posts[post.ID] = *post
	return nil
}

func (r *MemoryPostRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.posts[id]; ok {
		copied := p
		return &copied, nil
	}
	return nil, ErrPostNotFound
}

func (r *MemoryPostRepository) List(ctx context.Context, page, pageSize int) ([]models.Post, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	all := r.sorted()
	total := int64(len(all))
	start := (page - 1) * pageSize
	if start >= len(all) {
		return []models.Post{}, total, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *MemoryPostRepository) Update(ctx context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[post.ID]; !ok {
		return ErrPostNotFound
	}
	post.UpdatedAt = time.Now()
	r.posts[post.ID] = *post
	return nil
}

func (r *MemoryPostRepository) Delete(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[id]; !ok {
		return ErrPostNotFound
	}
	delete(r.posts, id)
	return nil
}

func (r *MemoryPostRepository) FindByAuthor(ctx context.Context, author string) ([]models.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var posts []models.Post
	for _, p := range r.sorted() {
		if p.Author == author {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

func (r *MemoryPostRepository) SearchByKeyword(ctx context.Context, keyword string) ([]models.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var posts []models.Post
	for _, p := range r.sorted() {
		if strings.Contains(p.Title, keyword) || strings.Contains(p.Content, keyword) {
			posts = append(posts, p)
		}
	}
	return posts, nil
}

func (r *MemoryPostRepository) sorted() []models.Post {
	posts := make([]models.Post, 0, len(r.posts))
	for _, p := range r.posts {
		posts = append(posts, p)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID < posts[j].ID })
	return posts
}

// MemoryRoomRepository is a mutex-guarded in-memory RoomRepository. The mutex
// held across the duplicate check and the insert is the in-memory equivalent
// of the composite unique index.
type MemoryRoomRepository struct {
	mu     sync.RWMutex
	nextID uint
	rooms  map[uint]models.ChatRoom
}

func NewMemoryRoomRepository() *MemoryRoomRepository {
	return &MemoryRoomRepository{nextID: 1, rooms: make(map[uint]models.ChatRoom)}
}

func (r *MemoryRoomRepository) Create(ctx context.Context, room *models.ChatRoom) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.rooms {
		if existing.PostID == room.PostID && existing.User1ID == room.User1ID && existing.User2ID == room.User2ID {
			return ErrDuplicateRoom
		}
	}
	room.ID = r.nextID
	r.nextID++
	room.CreatedAt = time.Now()
	r.rooms[room.ID] = *room
	return nil
}

func (r *MemoryRoomRepository) Delete(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[id]; !ok {
		return ErrRoomNotFound
	}
	delete(r.rooms, id)
	return nil
}

func (r *MemoryRoomRepository) GetByRoomID(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, room := range r.rooms {
		if room.RoomID == roomID {
			copied := room
			return &copied, nil
		}
	}
	return nil, ErrRoomNotFound
}

func (r *MemoryRoomRepository) GetByTriple(ctx context.Context, postID, user1ID, user2ID uint) (*models.ChatRoom, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, room := range r.rooms {
		if room.PostID == postID && room.User1ID == user1ID && room.User2ID == user2ID {
			copied := room
			return &copied, nil
		}
	}
	return nil, ErrRoomNotFound
}

func (r *MemoryRoomRepository) ListByUser(ctx context.Context, userID uint) ([]models.ChatRoom, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var rooms []models.ChatRoom
	for _, room := range r.rooms {
		if room.User1ID == userID || room.User2ID == userID {
			rooms = append(rooms, room)
		}
	}
	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms, nil
}

func (r *MemoryRoomRepository) ExistsByPost(ctx context.Context, postID uint) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, room := range r.rooms {
		if room.PostID == postID {
			return true, nil
		}
	}
	return false, nil
}

// MemoryMessageRepository is a mutex-guarded in-memory MessageRepository
type MemoryMessageRepository struct {
	mu       sync.RWMutex
	nextID   uint
	messages []models.ChatMessage
}

func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{nextID: 1}
}

func (r *MemoryMessageRepository) Create(ctx context.Context, message *models.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	message.ID = r.nextID
	r.nextID++
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	r.messages = append(r.messages, *message)
	return nil
}

func (r *MemoryMessageRepository) ListByRoom(ctx context.Context, roomID string) ([]models.ChatMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var messages []models.ChatMessage
	for _, m := range r.messages {
		if m.RoomID == roomID {
			messages = append(messages, m)
		}
	}
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
			return messages[i].ID < messages[j].ID
		}
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})
	return messages, nil
}

func (r *MemoryMessageRepository) Latest(ctx context.Context, roomID string) (*models.ChatMessage, error) {
	messages, err := r.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, ErrMessageNotFound
	}
	latest := messages[len(messages)-1]
	return &latest, nil
}

func (r *MemoryMessageRepository) CountByRoom(ctx context.Context, roomID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var count int64
	for _, m := range r.messages {
		if m.RoomID == roomID {
			count++
		}
	}
	return count, nil
}
