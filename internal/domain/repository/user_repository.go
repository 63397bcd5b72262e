package repository

import (
	"context"

	"stompingground/internal/domain/entity"
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	Update(ctx context.Context, user *entity.User) error
	UpdateAvatarURL(ctx context.Context, id, avatarURL string) error
}
