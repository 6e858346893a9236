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

type NotificationStore struct {
	coll *mongo.Collection
}

func (s *NotificationStore) Create(ctx context.Context, n *models.Notification) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := s.coll.InsertOne(ctx, n)
	return translate(err, "insert notification")
}

func (s *NotificationStore) ListForUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]models.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := s.coll.Find(ctx, bson.M{"recipient": userID}, opts)
	if err != nil {
		return nil, translate(err, "list notifications")
	}
	defer cursor.Close(ctx)

	list := []models.Notification{}
	if err := cursor.All(ctx, &list); err != nil {
		return nil, translate(err, "decode notifications")
	}
	return list, nil
}

func (s *NotificationStore) UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"recipient": userID, "read": false})
	return n, translate(err, "count unread")
}

// MarkRead only matches notifications owned by userID, so another user's id
// reads as not found.
func (s *NotificationStore) MarkRead(ctx context.Context, id, userID primitive.ObjectID) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "recipient": userID},
		bson.M{"$set": bson.M{"read": true, "readAt": time.Now().UTC()}},
	)
	if err != nil {
		return translate(err, "mark read")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *NotificationStore) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := s.coll.UpdateMany(ctx,
		bson.M{"recipient": userID, "read": false},
		bson.M{"$set": bson.M{"read": true, "readAt": time.Now().UTC()}},
	)
	if err != nil {
		return 0, translate(err, "mark all read")
	}
	return res.ModifiedCount, nil
}

func (s *NotificationStore) Delete(ctx context.Context, id, userID primitive.ObjectID) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id, "recipient": userID})
	if err != nil {
		return translate(err, "delete notification")
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *NotificationStore) DeleteAllForUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return s.deleteMany(ctx, bson.M{"recipient": userID})
}

func (s *NotificationStore) DeleteByPost(ctx context.Context, postID primitive.ObjectID) (int64, error) {
	return s.deleteMany(ctx, bson.M{"post": postID})
}

func (s *NotificationStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.deleteMany(ctx, bson.M{"createdAt": bson.M{"$lt": cutoff}})
}

func (s *NotificationStore) deleteMany(ctx context.Context, filter bson.M) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, translate(err, "delete notifications")
	}
	return res.DeletedCount, nil
}
