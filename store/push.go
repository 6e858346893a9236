package store

import (
	"context"
	"time"

	"confique/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type PushStore struct {
	coll *mongo.Collection
}

// Save upserts by endpoint, so a browser re-subscribing moves the
// subscription to the current user.
func (s *PushStore) Save(ctx context.Context, sub *models.PushSubscription) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"endpoint": sub.Endpoint},
		bson.M{
			"$set": bson.M{
				"userId": sub.UserID,
				"p256dh": sub.P256dh,
				"auth":   sub.Auth,
			},
			"$setOnInsert": bson.M{"createdAt": sub.CreatedAt},
		},
		options.Update().SetUpsert(true),
	)
	return translate(err, "save push subscription")
}

func (s *PushStore) ListForUser(ctx context.Context, userID primitive.ObjectID) ([]models.PushSubscription, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"userId": userID})
	if err != nil {
		return nil, translate(err, "list push subscriptions")
	}
	defer cursor.Close(ctx)

	subs := []models.PushSubscription{}
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, translate(err, "decode push subscriptions")
	}
	return subs, nil
}

func (s *PushStore) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"endpoint": endpoint})
	return translate(err, "delete push subscription")
}
