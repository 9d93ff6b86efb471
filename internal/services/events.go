package services

import (
	"context"
	"log/slog"
	"time"
)

// Routing keys of the domain events.
const (
	EventTweetCreated   = "tweet.created"
	EventTweetDeleted   = "tweet.deleted"
	EventLikeAdded      = "like.added"
	EventLikeRemoved    = "like.removed"
	EventCommentAdded   = "comment.added"
	EventCommentRemoved = "comment.removed"
)

// TweetEvent is published after a tweet or one of its sub-entities changed.
type TweetEvent struct {
	Type       string    `json:"type"`
	TweetID    string    `json:"tweet_id"`
	OwnerID    string    `json:"owner_id,omitempty"`
	EntityID   string    `json:"entity_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EventPublisher delivers domain events to a broker.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// publish is best effort: the write already happened, so a broker failure is only logged.
func publish(ctx context.Context, p EventPublisher, ev TweetEvent) {
	if p == nil {
		return
	}
	ev.OccurredAt = time.Now().UTC()
	if err := p.Publish(ctx, ev.Type, ev); err != nil {
		slog.WarnContext(ctx, "failed to publish event",
			"event", ev.Type, "tweet_id", ev.TweetID, "error", err)
	}
}
