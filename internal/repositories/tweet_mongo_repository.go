package repositories

import (
	"context"
	"errors"
	"time"

	"twitapp/internal/models"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type tweetDocument struct {
	ID        bson.ObjectID    `bson:"_id,omitempty"`
	OwnerID   string           `bson:"owner_id"`
	CreatedAt time.Time        `bson:"created_at"`
	Message   string           `bson:"message"`
	Likes     []models.Like    `bson:"likes"`
	Comments  []models.Comment `bson:"comments"`
	Version   int64            `bson:"version"`
}

func newTweetDocument(t *models.Tweet) tweetDocument {
	likes := t.Likes
	if likes == nil {
		likes = models.Likes{}
	}
	comments := t.Comments
	if comments == nil {
		comments = models.Comments{}
	}
	return tweetDocument{
		OwnerID:   t.OwnerID,
		CreatedAt: t.CreatedAt,
		Message:   t.Message,
		Likes:     likes,
		Comments:  comments,
		Version:   t.Version,
	}
}

func (d tweetDocument) model() *models.Tweet {
	likes := models.Likes(d.Likes)
	if likes == nil {
		likes = models.Likes{}
	}
	comments := models.Comments(d.Comments)
	if comments == nil {
		comments = models.Comments{}
	}
	return &models.Tweet{
		ID:        d.ID.Hex(),
		OwnerID:   d.OwnerID,
		CreatedAt: d.CreatedAt,
		Message:   d.Message,
		Likes:     likes,
		Comments:  comments,
		Version:   d.Version,
	}
}

// MongoTweetRepository is a MongoDB implementation of TweetRepository.
// Each tweet is one document with its likes and comments embedded.
type MongoTweetRepository struct {
	coll *mongo.Collection
}

// NewMongoTweetRepository creates a new instance of MongoTweetRepository.
func NewMongoTweetRepository(db *mongo.Database) *MongoTweetRepository {
	return &MongoTweetRepository{coll: db.Collection(tweetsCollection)}
}

// Create inserts the tweet with version 0 and sets tweet.ID to the generated ObjectID.
func (r *MongoTweetRepository) Create(ctx context.Context, tweet *models.Tweet) error {
	tweet.Version = 0
	res, err := r.coll.InsertOne(ctx, newTweetDocument(tweet))
	if err != nil {
		return oops.Code("TWEET_CREATE_FAILED").
			With("owner_id", tweet.OwnerID).
			Wrapf(err, "failed to insert tweet")
	}
	oid, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return oops.Code("TWEET_CREATE_FAILED").
			With("owner_id", tweet.OwnerID).
			Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	tweet.ID = oid.Hex()
	return nil
}

// GetByID returns the tweet with the given hex ObjectID.
func (r *MongoTweetRepository) GetByID(ctx context.Context, id string) (*models.Tweet, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	var doc tweetDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, oops.Code("TWEET_NOT_FOUND").With("tweet_id", id).Wrap(ErrNotFound)
		}
		return nil, oops.Code("TWEET_GET_FAILED").
			With("tweet_id", id).
			Wrapf(err, "failed to find tweet")
	}
	return doc.model(), nil
}

// ListByOwner returns every tweet owned by ownerID in cursor order.
func (r *MongoTweetRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Tweet, error) {
	cur, err := r.coll.Find(ctx, bson.M{"owner_id": ownerID})
	if err != nil {
		return nil, oops.Code("TWEET_LIST_FAILED").
			With("owner_id", ownerID).
			Wrapf(err, "failed to query tweets")
	}
	var docs []tweetDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, oops.Code("TWEET_LIST_FAILED").
			With("owner_id", ownerID).
			Wrapf(err, "failed to decode tweets")
	}
	tweets := make([]models.Tweet, 0, len(docs))
	for _, d := range docs {
		tweets = append(tweets, *d.model())
	}
	return tweets, nil
}

// Delete removes the tweet and returns the number of deleted documents.
func (r *MongoTweetRepository) Delete(ctx context.Context, id string) (int64, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return 0, err
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return 0, oops.Code("TWEET_DELETE_FAILED").
			With("tweet_id", id).
			Wrapf(err, "failed to delete tweet")
	}
	return res.DeletedCount, nil
}

// Replace overwrites the whole document when its version equals expectedVersion.
// Documents written before versioning existed count as version 0.
func (r *MongoTweetRepository) Replace(ctx context.Context, tweet *models.Tweet, expectedVersion int64) error {
	oid, err := parseObjectID(tweet.ID)
	if err != nil {
		return err
	}
	filter := bson.M{"_id": oid, "version": expectedVersion}
	if expectedVersion == 0 {
		filter = bson.M{"_id": oid, "$or": bson.A{
			bson.M{"version": int64(0)},
			bson.M{"version": bson.M{"$exists": false}},
		}}
	}

	doc := newTweetDocument(tweet)
	doc.ID = oid
	doc.Version = expectedVersion + 1
	res, err := r.coll.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return oops.Code("TWEET_REPLACE_FAILED").
			With("tweet_id", tweet.ID).
			Wrapf(err, "failed to replace tweet")
	}
	if res.MatchedCount == 0 {
		n, err := r.coll.CountDocuments(ctx, bson.M{"_id": oid})
		if err != nil {
			return oops.Code("TWEET_REPLACE_FAILED").
				With("tweet_id", tweet.ID).
				Wrapf(err, "failed to check tweet after replace")
		}
		if n == 0 {
			return oops.Code("TWEET_NOT_FOUND").With("tweet_id", tweet.ID).Wrap(ErrNotFound)
		}
		return oops.Code("TWEET_VERSION_CONFLICT").
			With("tweet_id", tweet.ID).
			With("expected_version", expectedVersion).
			Wrap(ErrVersionConflict)
	}
	tweet.Version = expectedVersion + 1
	return nil
}
