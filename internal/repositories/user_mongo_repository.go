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

type userDocument struct {
	ID           bson.ObjectID `bson:"_id,omitempty"`
	CreatedAt    time.Time     `bson:"created_at"`
	Email        string        `bson:"email"`
	PasswordHash string        `bson:"password_hash"`
}

func (d userDocument) model() *models.User {
	return &models.User{
		ID:           d.ID.Hex(),
		CreatedAt:    d.CreatedAt,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
	}
}

// MongoUserRepository is a MongoDB implementation of UserRepository.
type MongoUserRepository struct {
	coll *mongo.Collection
}

// NewMongoUserRepository creates a new instance of MongoUserRepository.
func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	return &MongoUserRepository{coll: db.Collection(usersCollection)}
}

// Create inserts the user and sets user.ID to the generated ObjectID.
func (r *MongoUserRepository) Create(ctx context.Context, user *models.User) error {
	doc := userDocument{
		CreatedAt:    user.CreatedAt,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
	}
	res, err := r.coll.InsertOne(ctx, doc)
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("email", user.Email).
			Wrapf(err, "failed to insert user")
	}
	oid, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return oops.Code("USER_CREATE_FAILED").
			With("email", user.Email).
			Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	user.ID = oid.Hex()
	return nil
}

// GetByEmail returns the first user with the given email.
func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email}, "email", email)
}

// GetByID returns the user with the given hex ObjectID.
func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, err
	}
	return r.findOne(ctx, bson.M{"_id": oid}, "id", id)
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M, key, value string) (*models.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, oops.Code("USER_NOT_FOUND").With(key, value).Wrap(ErrNotFound)
		}
		return nil, oops.Code("USER_GET_FAILED").
			With(key, value).
			Wrapf(err, "failed to find user")
	}
	return doc.model(), nil
}

// Update replaces the whole user document keyed by user.ID.
func (r *MongoUserRepository) Update(ctx context.Context, user *models.User) error {
	oid, err := parseObjectID(user.ID)
	if err != nil {
		return err
	}
	doc := userDocument{
		ID:           oid,
		CreatedAt:    user.CreatedAt,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
	}
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": oid}, doc)
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("id", user.ID).
			Wrapf(err, "failed to replace user")
	}
	if res.MatchedCount == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", user.ID).Wrap(ErrNotFound)
	}
	return nil
}
