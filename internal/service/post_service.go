package service

import (
	"context"
	"fmt"

	"marketchat/backend/internal/models"
	"marketchat/backend/internal/repository"
	apperrors "marketchat/backend/pkg/errors"
)

// PostService is the post directory collaborator: listing CRUD and search.
// Responses carry has_chat so list displays can show whether a conversation
// already exists for a post.
type PostService struct {
	posts repository.PostRepository
	rooms repository.RoomRepository
}

func NewPostService(posts repository.PostRepository, rooms repository.RoomRepository) *PostService {
	return &PostService{posts: posts, rooms: rooms}
}

func (s *PostService) List(ctx context.Context, page, pageSize int) (*models.PaginatedPosts, error) {
	posts, total, err := s.posts.List(ctx, page, pageSize)
	if err != nil {
		return nil, err
	}

	responses := make([]models.PostResponse, 0, len(posts))
	for i := range posts {
		resp, err := s.toResponse(ctx, &posts[i])
		if err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	return &models.PaginatedPosts{
		Posts:    responses,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func (s *PostService) GetByID(ctx context.Context, id uint) (*models.PostResponse, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrPostNotFound {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("post not found: id %d", id))
		}
		return nil, err
	}
	resp, err := s.toResponse(ctx, post)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *PostService) Create(ctx context.Context, req models.PostRequest) (*models.PostResponse, error) {
	post := &models.Post{
		Title:   req.Title,
		Content: req.Content,
		Author:  req.Author,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	resp := post.ToResponse(false)
	return &resp, nil
}

func (s *PostService) Update(ctx context.Context, id uint, req models.PostRequest) (*models.PostResponse, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrPostNotFound {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("post not found: id %d", id))
		}
		return nil, err
	}

	post.Title = req.Title
	post.Content = req.Content

	if err := s.posts.Update(ctx, post); err != nil {
		return nil, err
	}
	resp, err := s.toResponse(ctx, post)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *PostService) Delete(ctx context.Context, id uint) error {
	if err := s.posts.Delete(ctx, id); err != nil {
		if err == repository.ErrPostNotFound {
			return apperrors.NewNotFoundError(fmt.Sprintf("post not found: id %d", id))
		}
		return err
	}
	return nil
}

func (s *PostService) ByAuthor(ctx context.Context, author string) ([]models.PostResponse, error) {
	posts, err := s.posts.FindByAuthor(ctx, author)
	if err != nil {
		return nil, err
	}
	return s.toResponses(ctx, posts)
}

func (s *PostService) Search(ctx context.Context, keyword string) ([]models.PostResponse, error) {
	posts, err := s.posts.SearchByKeyword(ctx, keyword)
	if err != nil {
		return nil, err
	}
	return s.toResponses(ctx, posts)
}

func (s *PostService) toResponse(ctx context.Context, post *models.Post) (models.PostResponse, error) {
	hasChat, err := s.rooms.ExistsByPost(ctx, post.ID)
	if err != nil {
		return models.PostResponse{}, err
	}
	return post.ToResponse(hasChat), nil
}

func (s *PostService) toResponses(ctx context.Context, posts []models.Post) ([]models.PostResponse, error) {
	responses := make([]models.PostResponse, 0, len(posts))
	for i := range posts {
		resp, err := s.toResponse(ctx, &posts[i])
		if err != nil {
			return nil, err
		}
		responses = append(responses, resp)
	}
	return responses, nil
}
