package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tradecopier/copier/internal/apperr"
	"github.com/tradecopier/copier/internal/database"
	"github.com/tradecopier/copier/internal/model"
)

// UserRepository handles read/write operations for users and organisations.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new repository instance using the main
// read/write database.
func NewUserRepository() *UserRepository {
	return &UserRepository{db: database.DB}
}

// WithDB allows overriding the underlying *gorm.DB instance. Useful for
// tests or when operating inside a transaction.
func (r *UserRepository) WithDB(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user, assigning it an ID if it doesn't already have one.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "UserRepository", "op": "Create", "email": user.Email,
		}).WithError(err).Error("failed to create user")

		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return apperr.Conflict("a user with this email already exists", err)
		}
		return err
	}
	return nil
}

// FindByID fetches a single user by primary key. Returns NotFound if absent.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found", err)
		}
		return nil, err
	}
	return &user, nil
}

// FindByEmail fetches a single user by email, used during authentication.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found", err)
		}
		return nil, err
	}
	return &user, nil
}

// Touch is a narrow update of a user's updated_at column; kept separate
// from a general Update to avoid clobbering concurrent writes to other
// columns.
func (r *UserRepository) Touch(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Update("updated_at", at).Error
}
