package service

import (
	"context"
	"fmt"

	"marketchat/backend/internal/models"
	"marketchat/backend/internal/repository"
	apperrors "marketchat/backend/pkg/errors"
)

// UserService is the user directory collaborator: account registration and
// lookup by id or username.
type UserService struct {
	repo repository.UserRepository
}

func NewUserService(repo repository.UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) List(ctx context.Context) ([]models.UserResponse, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	responses := make([]models.UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, users[i].ToResponse())
	}
	return responses, nil
}

func (s *UserService) GetByID(ctx context.Context, id uint) (*models.UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("user not found: id %d", id))
		}
		return nil, err
	}
	resp := user.ToResponse()
	return &resp, nil
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.UserResponse, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("user not found: %s", username))
		}
		return nil, err
	}
	resp := user.ToResponse()
	return &resp, nil
}

func (s *UserService) Register(ctx context.Context, req models.CreateUserRequest) (*models.UserResponse, error) {
	if taken, err := s.repo.ExistsByUsername(ctx, req.Username); err != nil {
		return nil, err
	} else if taken {
		return nil, apperrors.NewConflictError(fmt.Sprintf("username already in use: %s", req.Username))
	}

	if taken, err := s.repo.ExistsByEmail(ctx, req.Email); err != nil {
		return nil, err
	} else if taken {
		return nil, apperrors.NewConflictError(fmt.Sprintf("email already in use: %s", req.Email))
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password, // hashed by the model's create hook
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if err == repository.ErrDuplicateUser {
			return nil, apperrors.NewConflictError("username or email already in use")
		}
		return nil, err
	}

	resp := user.ToResponse()
	return &resp, nil
}

func (s *UserService) Update(ctx context.Context, id uint, req models.UpdateUserRequest) (*models.UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("user not found: id %d", id))
		}
		return nil, err
	}

	if req.Username != user.Username {
		if taken, err := s.repo.ExistsByUsername(ctx, req.Username); err != nil {
			return nil, err
		} else if taken {
			return nil, apperrors.NewConflictError(fmt.Sprintf("username already in use: %s", req.Username))
		}
	}
	if req.Email != user.Email {
		if taken, err := s.repo.ExistsByEmail(ctx, req.Email); err != nil {
			return nil, err
		} else if taken {
			return nil, apperrors.NewConflictError(fmt.Sprintf("email already in use: %s", req.Email))
		}
	}

	user.Username = req.Username
	user.Email = req.Email
	if req.Password != "" {
		hashed, err := models.HashPassword(req.Password)
		if err != nil {
			return nil, err
		}
		user.Password = hashed
	}

	if err := s.repo.Update(ctx, user); err != nil {
		if err == repository.ErrDuplicateUser {
			return nil, apperrors.NewConflictError("username or email already in use")
		}
		return nil, err
	}

	resp := user.ToResponse()
	return &resp, nil
}

func (s *UserService) Delete(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if err == repository.ErrUserNotFound {
			return apperrors.NewNotFoundError(fmt.Sprintf("user not found: id %d", id))
		}
		return err
	}
	return nil
}
