package repositories

import (
	"context"
	"time"

	"github.com/samber/oops"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	usersCollection  = "users"
	tweetsCollection = "tweets"
)

// ConnectMongo opens a client for uri, pings it, and returns the named database.
// The caller owns the client and must Disconnect it.
func ConnectMongo(ctx context.Context, uri, dbName string) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetConnectTimeout(10 * time.Second))
	if err != nil {
		return nil, nil, oops.Code("MONGO_CONNECT_FAILED").
			With("database", dbName).
			Wrapf(err, "failed to connect to mongo")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, oops.Code("MONGO_CONNECT_FAILED").
			With("database", dbName).
			Wrapf(err, "failed to ping mongo")
	}
	return client, client.Database(dbName), nil
}

// EnsureMongoIndexes creates the lookup indexes used by the Mongo repositories.
// The email index is deliberately not unique; uniqueness is checked at registration.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	if _, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
	}); err != nil {
		return oops.Code("MIGRATE_FAILED").Wrapf(err, "failed to index users")
	}
	if _, err := db.Collection(tweetsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner_id", Value: 1}},
	}); err != nil {
		return oops.Code("MIGRATE_FAILED").Wrapf(err, "failed to index tweets")
	}
	return nil
}

func parseObjectID(id string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return bson.NilObjectID, oops.Code("INVALID_ID").With("id", id).Wrap(ErrInvalidID)
	}
	return oid, nil
}
