package usecase

import (
	"context"
	"io"
	"strings"
	"time"

	"stompingground/internal/domain/entity"
	"stompingground/internal/domain/repository"
	"stompingground/pkg/errors"
)

// AuthClient is the slice of the identity provider the user usecase needs.
type AuthClient interface {
	CreateUser(ctx context.Context, email, password, displayName string) (string, error)
	GenerateToken(ctx context.Context, uid string) (string, error)
}

// AvatarUploader stores an avatar image and returns its public URL.
type AvatarUploader interface {
	UploadAvatar(ctx context.Context, file io.Reader, contentType, userID string) (string, error)
}

type UserUseCase struct {
	userRepo   repository.UserRepository
	authClient AuthClient
	uploader   AvatarUploader
}

func NewUserUseCase(userRepo repository.UserRepository, authClient AuthClient, uploader AvatarUploader) *UserUseCase {
	return &UserUseCase{
		userRepo:   userRepo,
		authClient: authClient,
		uploader:   uploader,
	}
}

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required"`
	Username string `json:"username" validate:"required,alphanum,min=3,max=30"`
	Type     string `json:"type" validate:"required,oneof=camper counselor parent donor"`
}

type UpdateProfileInput struct {
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
	Bio      string `json:"bio,omitempty"`
}

// Register provisions the identity-provider account and the profile
// document. The provider's uid becomes the profile id so both systems key
// users identically.
func (uc *UserUseCase) Register(ctx context.Context, input RegisterInput) (*entity.User, string, error) {
	uid, err := uc.authClient.CreateUser(ctx, input.Email, input.Password, input.Name)
	if err != nil {
		return nil, "", errors.BadRequest("Failed to create account", err)
	}

	now := time.Now()
	user := &entity.User{
		ID:        uid,
		Name:      input.Name,
		Username:  strings.ToLower(input.Username),
		Email:     input.Email,
		Type:      input.Type,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.userRepo.Create(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := uc.authClient.GenerateToken(ctx, uid)
	if err != nil {
		return nil, "", errors.Internal("Failed to generate token", err)
	}

	return user, token, nil
}

func (uc *UserUseCase) GetProfile(ctx context.Context, userID string) (*entity.User, error) {
	return uc.userRepo.GetByID(ctx, userID)
}

func (uc *UserUseCase) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*entity.User, error) {
	user, err := uc.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Name != "" {
		user.Name = input.Name
	}
	if input.Username != "" {
		user.Username = strings.ToLower(input.Username)
	}
	if input.Bio != "" {
		user.Bio = input.Bio
	}
	user.UpdatedAt = time.Now()

	if err := uc.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UploadAvatar stores the image and points the profile at the new URL.
func (uc *UserUseCase) UploadAvatar(ctx context.Context, userID string, file io.Reader, contentType string) (string, error) {
	if uc.uploader == nil {
		return "", errors.Internal("Avatar storage is not configured", nil)
	}
	if _, err := uc.userRepo.GetByID(ctx, userID); err != nil {
		return "", err
	}

	url, err := uc.uploader.UploadAvatar(ctx, file, contentType, userID)
	if err != nil {
		return "", errors.Internal("Failed to upload avatar", err)
	}
	if err := uc.userRepo.UpdateAvatarURL(ctx, userID, url); err != nil {
		return "", err
	}
	return url, nil
}
