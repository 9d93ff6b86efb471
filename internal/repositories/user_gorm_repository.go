package repositories

import (
	"context"
	"errors"

	"twitapp/internal/models"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"gorm.io/gorm"
)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Create creates a new user in the database.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("email", user.Email).
			Wrapf(err, "failed to create user")
	}
	return nil
}

// GetByEmail retrieves a user by their email from the database.
func (r *GORMUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(ErrNotFound)
		}
		return nil, oops.Code("USER_GET_FAILED").
			With("email", email).
			Wrapf(err, "failed to get user by email")
	}
	return &user, nil
}

// GetByID retrieves a user by their ID from the database.
func (r *GORMUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(ErrNotFound)
		}
		return nil, oops.Code("USER_GET_FAILED").
			With("id", id).
			Wrapf(err, "failed to get user by ID")
	}
	return &user, nil
}

// Update overwrites every column of the user keyed by its ID.
// Save is avoided because it falls back to an insert when nothing matched.
func (r *GORMUserRepository) Update(ctx context.Context, user *models.User) error {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"created_at":    user.CreatedAt,
			"email":         user.Email,
			"password_hash": user.PasswordHash,
		})
	if res.Error != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("id", user.ID).
			Wrapf(res.Error, "failed to update user")
	}
	if res.RowsAffected == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", user.ID).Wrap(ErrNotFound)
	}
	return nil
}
