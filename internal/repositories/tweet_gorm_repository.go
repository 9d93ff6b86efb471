package repositories

import (
	"context"
	"errors"

	"twitapp/internal/models"

	"github.com/google/uuid"
	"github.com/samber/oops"
	"gorm.io/gorm"
)

// GORMTweetRepository is a GORM implementation of TweetRepository.
// Each tweet is one row; likes and comments are JSON columns on that row.
type GORMTweetRepository struct {
	db *gorm.DB
}

// NewGORMTweetRepository creates a new instance of GORMTweetRepository.
func NewGORMTweetRepository(db *gorm.DB) *GORMTweetRepository {
	return &GORMTweetRepository{
		db: db,
	}
}

// Create creates a new tweet in the database.
func (r *GORMTweetRepository) Create(ctx context.Context, tweet *models.Tweet) error {
	if tweet.ID == "" {
		tweet.ID = uuid.New().String()
	}
	tweet.Version = 0
	if err := r.db.WithContext(ctx).Create(tweet).Error; err != nil {
		return oops.Code("TWEET_CREATE_FAILED").
			With("owner_id", tweet.OwnerID).
			Wrapf(err, "failed to create tweet")
	}
	return nil
}

// GetByID retrieves a single tweet by its ID from the database.
func (r *GORMTweetRepository) GetByID(ctx context.Context, id string) (*models.Tweet, error) {
	var tweet models.Tweet
	if err := r.db.WithContext(ctx).First(&tweet, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, oops.Code("TWEET_NOT_FOUND").With("tweet_id", id).Wrap(ErrNotFound)
		}
		return nil, oops.Code("TWEET_GET_FAILED").
			With("tweet_id", id).
			Wrapf(err, "failed to get tweet")
	}
	return &tweet, nil
}

// ListByOwner retrieves every tweet owned by ownerID.
func (r *GORMTweetRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Tweet, error) {
	tweets := []models.Tweet{}
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Find(&tweets).Error; err != nil {
		return nil, oops.Code("TWEET_LIST_FAILED").
			With("owner_id", ownerID).
			Wrapf(err, "failed to list tweets")
	}
	return tweets, nil
}

// Delete deletes a tweet by its ID. Deleting a missing tweet is not an error.
func (r *GORMTweetRepository) Delete(ctx context.Context, id string) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&models.Tweet{}, "id = ?", id)
	if res.Error != nil {
		return 0, oops.Code("TWEET_DELETE_FAILED").
			With("tweet_id", id).
			Wrapf(res.Error, "failed to delete tweet")
	}
	return res.RowsAffected, nil
}

// Replace overwrites the tweet row when its version still equals expectedVersion.
func (r *GORMTweetRepository) Replace(ctx context.Context, tweet *models.Tweet, expectedVersion int64) error {
	res := r.db.WithContext(ctx).
		Model(&models.Tweet{}).
		Where("id = ? AND version = ?", tweet.ID, expectedVersion).
		Updates(map[string]any{
			"owner_id":   tweet.OwnerID,
			"created_at": tweet.CreatedAt,
			"message":    tweet.Message,
			"likes":      tweet.Likes,
			"comments":   tweet.Comments,
			"version":    expectedVersion + 1,
		})
	if res.Error != nil {
		return oops.Code("TWEET_REPLACE_FAILED").
			With("tweet_id", tweet.ID).
			Wrapf(res.Error, "failed to replace tweet")
	}
	if res.RowsAffected == 0 {
		return r.missOrConflict(ctx, tweet.ID, expectedVersion)
	}
	tweet.Version = expectedVersion + 1
	return nil
}

func (r *GORMTweetRepository) missOrConflict(ctx context.Context, id string, expectedVersion int64) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Tweet{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return oops.Code("TWEET_REPLACE_FAILED").
			With("tweet_id", id).
			Wrapf(err, "failed to check tweet after replace")
	}
	if count == 0 {
		return oops.Code("TWEET_NOT_FOUND").With("tweet_id", id).Wrap(ErrNotFound)
	}
	return oops.Code("TWEET_VERSION_CONFLICT").
		With("tweet_id", id).
		With("expected_version", expectedVersion).
		Wrap(ErrVersionConflict)
}

// Migrate creates or updates the tables used by the GORM repositories.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Tweet{}); err != nil {
		return oops.Code("MIGRATE_FAILED").Wrapf(err, "failed to auto-migrate database")
	}
	return nil
}
