package repositories

import (
	"context"

	"twitapp/internal/models"
)

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create inserts the user and assigns its ID.
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	// Update replaces the whole record keyed by user.ID.
	Update(ctx context.Context, user *models.User) error
}
