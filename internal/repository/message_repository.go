package repository

import (
	"context"
	"errors"

	"marketchat/backend/internal/models"

	"gorm.io/gorm"
)

// MessageRepository owns the append-only message log. ListByRoom returns rows
// in (created_at, id) ascending order; id breaks ties when timestamps collide
// at the storage resolution.
type MessageRepository interface {
	Create(ctx context.Context, message *models.ChatMessage) error
	ListByRoom(ctx context.Context, roomID string) ([]models.ChatMessage, error)
	Latest(ctx context.Context, roomID string) (*models.ChatMessage, error)
	CountByRoom(ctx context.Context, roomID string) (int64, error)
}

type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) Create(ctx context.Context, message *models.ChatMessage) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *GormMessageRepository) ListByRoom(ctx context.Context, roomID string) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

func (r *GormMessageRepository) Latest(ctx context.Context, roomID string) (*models.ChatMessage, error) {
	var message models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC, id DESC").
		First(&message).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *GormMessageRepository) CountByRoom(ctx context.Context, roomID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ChatMessage{}).Where("room_id = ?", roomID).Count(&count).Error
	return count, err
}
