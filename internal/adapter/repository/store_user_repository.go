package repository

import (
	"context"
	"time"

	"stompingground/internal/domain/entity"
	"stompingground/internal/domain/repository"
	"stompingground/internal/domain/store"
	"stompingground/pkg/errors"
)

const usersCollection = "users"

type storeUserRepository struct {
	store store.DocumentStore
}

func NewStoreUserRepository(st store.DocumentStore) repository.UserRepository {
	return &storeUserRepository{store: st}
}

func (r *storeUserRepository) Create(ctx context.Context, user *entity.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Type == "" {
		user.Type = entity.UserTypeCamper
	}
	return r.store.Put(ctx, usersCollection, user.ID, user)
}

func (r *storeUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	var user entity.User
	if err := r.store.Get(ctx, usersCollection, id, &user); err != nil {
		if errors.Is(err, "NOT_FOUND") {
			return nil, errors.NotFound("User", err)
		}
		return nil, err
	}
	return &user, nil
}

func (r *storeUserRepository) Update(ctx context.Context, user *entity.User) error {
	user.UpdatedAt = time.Now()
	return r.store.Put(ctx, usersCollection, user.ID, user)
}

func (r *storeUserRepository) UpdateAvatarURL(ctx context.Context, id, avatarURL string) error {
	return r.store.Update(ctx, usersCollection, id, map[string]interface{}{
		"avatarURL": avatarURL,
		"updatedAt": time.Now(),
	})
}
