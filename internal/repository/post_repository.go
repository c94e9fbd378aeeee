package repository

import (
	"context"
	"errors"

	"marketchat/backend/internal/models"

	"gorm.io/gorm"
)

// PostRepository is the post directory storage interface
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	List(ctx context.Context, page, pageSize int) ([]models.Post, int64, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
	FindByAuthor(ctx context.Context, author string) ([]models.Post, error)
	SearchByKeyword(ctx context.Context, keyword string) ([]models.Post, error)
}

type GormPostRepository struct {
	db *gorm.DB
}

func NewGormPostRepository(db *gorm.DB) *GormPostRepository {
	return &GormPostRepository{db: db}
}

func (r *GormPostRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

func (r *GormPostRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.db.WithContext(ctx).First(&post, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *GormPostRepository) List(ctx context.Context, page, pageSize int) ([]models.Post, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Post{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var posts []models.Post
	err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&posts).Error
	return posts, total, err
}

func (r *GormPostRepository) Update(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Save(post).Error
}

func (r *GormPostRepository) Delete(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.Post{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (r *GormPostRepository) FindByAuthor(ctx context.Context, author string) ([]models.Post, error) {
	var posts []models.Post
	err := r.db.WithContext(ctx).Where("author = ?", author).Order("id ASC").Find(&posts).Error
	return posts, err
}

func (r *GormPostRepository) SearchByKeyword(ctx context.Context, keyword string) ([]models.Post, error) {
	pattern := "%" + keyword + "%"
	var posts []models.Post
	err := r.db.WithContext(ctx).
		Where("title LIKE ? OR content LIKE ?", pattern, pattern).
		Order("id ASC").
		Find(&posts).Error
	return posts, err
}
