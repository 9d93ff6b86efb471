package repositories

import (
	"context"

	"twitapp/internal/models"
)

// TweetRepository defines the interface for tweet aggregate storage.
// Likes and comments have no storage of their own; they travel with the tweet.
type TweetRepository interface {
	// Create inserts the tweet with version 0 and assigns its ID.
	Create(ctx context.Context, tweet *models.Tweet) error
	GetByID(ctx context.Context, id string) (*models.Tweet, error)
	// ListByOwner returns tweets in the store's natural order.
	ListByOwner(ctx context.Context, ownerID string) ([]models.Tweet, error)
	// Delete removes the tweet and returns how many records were deleted.
	Delete(ctx context.Context, id string) (int64, error)
	// Replace overwrites the whole document if its stored version equals
	// expectedVersion, and sets tweet.Version to expectedVersion+1.
	// It returns ErrVersionConflict when the versions differ and ErrNotFound
	// when the tweet no longer exists.
	Replace(ctx context.Context, tweet *models.Tweet, expectedVersion int64) error
}
