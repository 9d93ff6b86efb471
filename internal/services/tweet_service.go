package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"twitapp/internal/metrics"
	"twitapp/internal/models"
	"twitapp/internal/repositories"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMutationRetries is how many times a conflicting mutation is retried.
const DefaultMutationRetries = 5

const (
	retryBaseDelay = 5 * time.Millisecond
	retryMaxDelay  = 100 * time.Millisecond
)

// TweetService handles tweets and the likes and comments embedded in them.
// Sub-entity changes fetch the whole tweet, change it in memory and replace
// it conditionally on the version that was read.
type TweetService struct {
	tweets  repositories.TweetRepository
	events  EventPublisher
	metrics *metrics.Metrics
	retries uint64
}

// NewTweetService creates a new TweetService. events and m may be nil.
func NewTweetService(tweets repositories.TweetRepository, events EventPublisher, m *metrics.Metrics, retries int) *TweetService {
	if retries < 0 {
		retries = DefaultMutationRetries
	}
	return &TweetService{
		tweets:  tweets,
		events:  events,
		metrics: m,
		retries: uint64(retries),
	}
}

// CreateTweet stores a new tweet for ownerID and returns it as persisted.
func (s *TweetService) CreateTweet(ctx context.Context, ownerID string, req models.TweetRequest) (_ *models.Tweet, err error) {
	ctx, span := tracer.Start(ctx, "tweet.create")
	defer endSpan(span, &err)

	tweet, err := req.Tweet(ownerID)
	if err != nil {
		return nil, oops.Code("TWEET_INVALID").
			Public(err.Error()).
			Wrap(withKind(ErrBadRequest, err))
	}
	if err := s.tweets.Create(ctx, tweet); err != nil {
		return nil, oops.Code("TWEET_CREATE_FAILED").Wrap(withKind(ErrInternal, err))
	}

	// Read back so the caller sees exactly what was stored.
	stored, err := s.tweets.GetByID(ctx, tweet.ID)
	if err != nil {
		return nil, oops.Code("TWEET_CREATE_FAILED").
			With("tweet_id", tweet.ID).
			Wrap(withKind(ErrInternal, err))
	}
	publish(ctx, s.events, TweetEvent{Type: EventTweetCreated, TweetID: stored.ID, OwnerID: stored.OwnerID})
	return stored, nil
}

// GetTweet returns a tweet by id.
func (s *TweetService) GetTweet(ctx context.Context, id string) (*models.Tweet, error) {
	tweet, err := s.tweets.GetByID(ctx, id)
	if err != nil {
		return nil, fromStore(err, "TWEET_GET_FAILED", notFoundMessage(id))
	}
	return tweet, nil
}

// ListTweets returns the tweets owned by ownerID in the store's natural order.
func (s *TweetService) ListTweets(ctx context.Context, ownerID string) ([]models.Tweet, error) {
	tweets, err := s.tweets.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, oops.Code("TWEET_LIST_FAILED").
			With("owner_id", ownerID).
			Wrap(withKind(ErrInternal, err))
	}
	return tweets, nil
}

// DeleteTweet removes a tweet and returns how many were deleted. A missing id deletes nothing.
func (s *TweetService) DeleteTweet(ctx context.Context, id string) (_ int64, err error) {
	ctx, span := tracer.Start(ctx, "tweet.delete", trace.WithAttributes(attribute.String("tweet.id", id)))
	defer endSpan(span, &err)

	n, err := s.tweets.Delete(ctx, id)
	if err != nil {
		return 0, fromStore(err, "TWEET_DELETE_FAILED", notFoundMessage(id))
	}
	if n > 0 {
		publish(ctx, s.events, TweetEvent{Type: EventTweetDeleted, TweetID: id})
	}
	return n, nil
}

// AddLike appends a new like to the tweet.
func (s *TweetService) AddLike(ctx context.Context, tweetID string) (*models.Tweet, error) {
	return s.mutate(ctx, "add_like", EventLikeAdded, tweetID, func(t *models.Tweet) (string, bool) {
		like := t.AddLike(models.NewLike(t.ID))
		return like.ID, true
	})
}

// RemoveLike drops a like from the tweet. An absent like id is not an error.
func (s *TweetService) RemoveLike(ctx context.Context, tweetID, likeID string) (*models.Tweet, error) {
	return s.mutate(ctx, "remove_like", EventLikeRemoved, tweetID, func(t *models.Tweet) (string, bool) {
		return likeID, t.RemoveLike(likeID)
	})
}

// AddComment appends a new comment to the tweet.
func (s *TweetService) AddComment(ctx context.Context, tweetID string, req models.CommentRequest) (*models.Tweet, error) {
	comment, err := req.Comment(tweetID)
	if err != nil {
		return nil, oops.Code("COMMENT_INVALID").
			Public(err.Error()).
			Wrap(withKind(ErrBadRequest, err))
	}
	return s.mutate(ctx, "add_comment", EventCommentAdded, tweetID, func(t *models.Tweet) (string, bool) {
		added := t.AddComment(comment)
		return added.ID, true
	})
}

// RemoveComment drops a comment from the tweet. An absent comment id is not an error.
func (s *TweetService) RemoveComment(ctx context.Context, tweetID, commentID string) (*models.Tweet, error) {
	return s.mutate(ctx, "remove_comment", EventCommentRemoved, tweetID, func(t *models.Tweet) (string, bool) {
		return commentID, t.RemoveComment(commentID)
	})
}

// mutate runs fetch, apply, conditional replace, retrying the whole sequence
// on a version conflict. apply returns the affected sub-entity id and whether
// the tweet changed; an unchanged tweet is not written.
func (s *TweetService) mutate(ctx context.Context, op, eventType, tweetID string, apply func(*models.Tweet) (string, bool)) (result *models.Tweet, err error) {
	ctx, span := tracer.Start(ctx, "tweet."+op, trace.WithAttributes(attribute.String("tweet.id", tweetID)))
	defer endSpan(span, &err)
	defer func() {
		if err != nil {
			s.metrics.RecordMutation(op, "error")
		} else {
			s.metrics.RecordMutation(op, "success")
		}
	}()

	var (
		attempts int
		entityID string
		changed  bool
	)
	backoff := retry.NewExponential(retryBaseDelay)
	backoff = retry.WithJitter(retryBaseDelay, backoff)
	backoff = retry.WithCappedDuration(retryMaxDelay, backoff)
	backoff = retry.WithMaxRetries(s.retries, backoff)
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		tweet, err := s.tweets.GetByID(ctx, tweetID)
		if err != nil {
			return fromStore(err, "TWEET_MUTATION_FAILED", notFoundMessage(tweetID))
		}

		id, ok := apply(tweet)
		if !ok {
			result, entityID, changed = tweet, id, false
			return nil
		}

		if err := s.tweets.Replace(ctx, tweet, tweet.Version); err != nil {
			if errors.Is(err, repositories.ErrVersionConflict) {
				s.metrics.RecordConflict(op)
				return retry.RetryableError(err)
			}
			return fromStore(err, "TWEET_MUTATION_FAILED", notFoundMessage(tweetID))
		}
		result, entityID, changed = tweet, id, true
		return nil
	})
	span.SetAttributes(attribute.Int("mutation.attempts", attempts))
	if err != nil {
		if errors.Is(err, repositories.ErrVersionConflict) {
			return nil, oops.Code("TWEET_MUTATION_CONFLICT").
				With("tweet_id", tweetID).
				With("attempts", attempts).
				Wrap(withKind(ErrInternal, err))
		}
		if KindOf(err) == ErrInternal && !errors.Is(err, ErrInternal) {
			// context cancellation from the retry loop
			return nil, oops.Code("TWEET_MUTATION_FAILED").Wrap(withKind(ErrInternal, err))
		}
		return nil, err
	}

	if changed {
		publish(ctx, s.events, TweetEvent{
			Type:     eventType,
			TweetID:  result.ID,
			OwnerID:  result.OwnerID,
			EntityID: entityID,
		})
	}
	return result, nil
}

func notFoundMessage(id string) string {
	return fmt.Sprintf("Tweet with id %s not found", id)
}
