package database

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	UsersCollection             = "users"
	PostsCollection             = "posts"
	RegistrationsCollection     = "registrations"
	NotificationsCollection     = "notifications"
	PushSubscriptionsCollection = "push_subscriptions"
)

// DB wraps the Mongo client and the collections the service uses.
type DB struct {
	Client            *mongo.Client
	Users             *mongo.Collection
	Posts             *mongo.Collection
	Registrations     *mongo.Collection
	Notifications     *mongo.Collection
	PushSubscriptions *mongo.Collection
}

// Connect dials MongoDB, retrying a few times before giving up, and pings
// the primary.
func Connect(ctx context.Context, uri, dbName string, log zerolog.Logger) (*DB, error) {
	var (
		client *mongo.Client
		err    error
	)
	for attempt := 1; attempt <= 3; attempt++ {
		client, err = dial(ctx, uri)
		if err == nil {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("MongoDB connection attempt failed")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	db := client.Database(dbName)
	log.Info().Str("database", dbName).Msg("connected to MongoDB")
	return &DB{
		Client:            client,
		Users:             db.Collection(UsersCollection),
		Posts:             db.Collection(PostsCollection),
		Registrations:     db.Collection(RegistrationsCollection),
		Notifications:     db.Collection(NotificationsCollection),
		PushSubscriptions: db.Collection(PushSubscriptionsCollection),
	}, nil
}

func dial(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

// EnsureIndexes creates the indexes the store relies on. The unique index on
// registrations backs the one-registration-per-user rule.
func (d *DB) EnsureIndexes(ctx context.Context) error {
	specs := []struct {
		coll   *mongo.Collection
		models []mongo.IndexModel
	}{
		{d.Users, []mongo.IndexModel{
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "googleId", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
		}},
		{d.Posts, []mongo.IndexModel{
			{Keys: bson.D{{Key: "type", Value: 1}, {Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "month", Value: 1}, {Key: "upvotes", Value: -1}}},
		}},
		{d.Registrations, []mongo.IndexModel{
			{Keys: bson.D{{Key: "eventId", Value: 1}, {Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		}},
		{d.Notifications, []mongo.IndexModel{
			{Keys: bson.D{{Key: "recipient", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "post", Value: 1}}},
			{Keys: bson.D{{Key: "createdAt", Value: 1}}},
		}},
		{d.PushSubscriptions, []mongo.IndexModel{
			{Keys: bson.D{{Key: "endpoint", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		}},
	}
	for _, s := range specs {
		if _, err := s.coll.Indexes().CreateMany(ctx, s.models); err != nil {
			return fmt.Errorf("creating indexes on %s: %w", s.coll.Name(), err)
		}
	}
	return nil
}

func (d *DB) Disconnect(ctx context.Context) error {
	if d == nil || d.Client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return d.Client.Disconnect(ctx)
}
