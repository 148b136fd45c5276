package repository

import (
	"context"
	"errors"
	"slices"

	"cinecircle/internal/microservices/http-api/models"

	"gorm.io/gorm"
)

// UserRepository is the read side of accounts and friendships used to
// resolve @mentions.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
	ListFriends(ctx context.Context, userID string) ([]models.User, error)
}

// userRepository is the GORM implementation of UserRepository.
type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	if !validIDs(id) {
		return nil, ErrRecordNotFound
	}
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	ids = slices.DeleteFunc(slices.Clone(ids), func(id string) bool { return !validIDs(id) })
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error
	return users, err
}

func (r *userRepository) ListFriends(ctx context.Context, userID string) ([]models.User, error) {
	if !validIDs(userID) {
		return nil, nil
	}
	var friends []models.User
	err := r.db.WithContext(ctx).
		Joins("JOIN friendships f ON f.friend_id = users.id").
		Where("f.user_id = ?", userID).
		Order("users.name").
		Find(&friends).Error
	return friends, err
}
