package repository

import (
	"context"
	"errors"

	"marketchat/backend/internal/models"

	"gorm.io/gorm"
)

// RoomRepository owns chat room rows. Create relies on the composite unique
// index on (post_id, user1_id, user2_id) and reports a lost race as
// ErrDuplicateRoom so the caller can fall back to the winner's row.
type RoomRepository interface {
	Create(ctx context.Context, room *models.ChatRoom) error
	Delete(ctx context.Context, id uint) error
	GetByRoomID(ctx context.Context, roomID string) (*models.ChatRoom, error)
	GetByTriple(ctx context.Context, postID, user1ID, user2ID uint) (*models.ChatRoom, error)
	ListByUser(ctx context.Context, userID uint) ([]models.ChatRoom, error)
	ExistsByPost(ctx context.Context, postID uint) (bool, error)
}

type GormRoomRepository struct {
	db *gorm.DB
}

func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	return &GormRoomRepository{db: db}
}

func (r *GormRoomRepository) Create(ctx context.Context, room *models.ChatRoom) error {
	err := r.db.WithContext(ctx).Create(room).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateRoom
	}
	return err
}

func (r *GormRoomRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.ChatRoom{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (r *GormRoomRepository) GetByRoomID(ctx context.Context, roomID string) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.db.WithContext(ctx).Where("room_id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *GormRoomRepository) GetByTriple(ctx context.Context, postID, user1ID, user2ID uint) (*models.ChatRoom, error) {
	var room models.ChatRoom
	err := r.db.WithContext(ctx).
		Where("post_id = ? AND user1_id = ? AND user2_id = ?", postID, user1ID, user2ID).
		First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *GormRoomRepository) ListByUser(ctx context.Context, userID uint) ([]models.ChatRoom, error) {
	var rooms []models.ChatRoom
	err := r.db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("id ASC").
		Find(&rooms).Error
	return rooms, err
}

func (r *GormRoomRepository) ExistsByPost(ctx context.Context, postID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ChatRoom{}).Where("post_id = ?", postID).Count(&count).Error
	return count > 0, err
}
