package repositories

import (
	"context"
	"sync"

	"twitapp/internal/models"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// MockTweetRepository is an in-memory implementation of TweetRepository.
// It keeps insertion order so listings are stable.
type MockTweetRepository struct {
	tweets map[string]*models.Tweet
	order  []string
	mu     sync.RWMutex
}

// NewMockTweetRepository creates a new instance of MockTweetRepository.
func NewMockTweetRepository() *MockTweetRepository {
	return &MockTweetRepository{
		tweets: make(map[string]*models.Tweet),
	}
}

// Create adds a new tweet.
func (r *MockTweetRepository) Create(_ context.Context, tweet *models.Tweet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tweet.ID == "" {
		tweet.ID = uuid.New().String()
	}
	if _, ok := r.tweets[tweet.ID]; ok {
		return oops.Code("TWEET_CREATE_FAILED").
			With("tweet_id", tweet.ID).
			Errorf("tweet with ID %s already exists", tweet.ID)
	}
	tweet.Version = 0
	r.tweets[tweet.ID] = tweet.Clone()
	r.order = append(r.order, tweet.ID)
	return nil
}

// GetByID returns a copy of the tweet with the given ID.
func (r *MockTweetRepository) GetByID(_ context.Context, id string) (*models.Tweet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tweet, ok := r.tweets[id]
	if !ok {
		return nil, oops.Code("TWEET_NOT_FOUND").With("tweet_id", id).Wrap(ErrNotFound)
	}
	return tweet.Clone(), nil
}

// ListByOwner returns copies of every tweet owned by ownerID in insertion order.
func (r *MockTweetRepository) ListByOwner(_ context.Context, ownerID string) ([]models.Tweet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tweets := make([]models.Tweet, 0)
	for _, id := range r.order {
		if t := r.tweets[id]; t.OwnerID == ownerID {
			tweets = append(tweets, *t.Clone())
		}
	}
	return tweets, nil
}

// Delete removes a tweet by its ID.
func (r *MockTweetRepository) Delete(_ context.Context, id string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tweets[id]; !ok {
		return 0, nil
	}
	delete(r.tweets, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return 1, nil
}

// Replace swaps in a copy of tweet when the stored version equals expectedVersion.
func (r *MockTweetRepository) Replace(_ context.Context, tweet *models.Tweet, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.tweets[tweet.ID]
	if !ok {
		return oops.Code("TWEET_NOT_FOUND").With("tweet_id", tweet.ID).Wrap(ErrNotFound)
	}
	if current.Version != expectedVersion {
		return oops.Code("TWEET_VERSION_CONFLICT").
			With("tweet_id", tweet.ID).
			With("expected_version", expectedVersion).
			With("stored_version", current.Version).
			Wrap(ErrVersionConflict)
	}
	tweet.Version = expectedVersion + 1
	r.tweets[tweet.ID] = tweet.Clone()
	return nil
}
