package store

import (
	"context"

	"confique/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type RegistrationStore struct {
	coll *mongo.Collection
}

// Create inserts a registration. A second registration by the same user for
// the same event fails with ErrDuplicate via the unique index.
func (s *RegistrationStore) Create(ctx context.Context, r *models.Registration) error {
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, r)
	return translate(err, "insert registration")
}

func (s *RegistrationStore) Get(ctx context.Context, id primitive.ObjectID) (*models.Registration, error) {
	var r models.Registration
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&r); err != nil {
		return nil, translate(err, "find registration")
	}
	return &r, nil
}

func (s *RegistrationStore) Exists(ctx context.Context, eventID, userID primitive.ObjectID) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"eventId": eventID, "userId": userID}, options.Count().SetLimit(1))
	if err != nil {
		return false, translate(err, "count registrations")
	}
	return n > 0, nil
}

func (s *RegistrationStore) ListByEvent(ctx context.Context, eventID primitive.ObjectID) ([]models.Registration, error) {
	return s.find(ctx, bson.M{"eventId": eventID}, "list registrations")
}

func (s *RegistrationStore) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Registration, error) {
	return s.find(ctx, bson.M{"userId": userID}, "list user registrations")
}

func (s *RegistrationStore) find(ctx context.Context, filter bson.M, op string) ([]models.Registration, error) {
	cursor, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, translate(err, op)
	}
	defer cursor.Close(ctx)

	regs := []models.Registration{}
	if err := cursor.All(ctx, &regs); err != nil {
		return nil, translate(err, op)
	}
	return regs, nil
}

// CountByEvent returns registration counts keyed by event id hex.
func (s *RegistrationStore) CountByEvent(ctx context.Context, eventIDs []primitive.ObjectID) (map[string]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$eventId"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	if eventIDs != nil {
		match := bson.D{{Key: "$match", Value: bson.D{{Key: "eventId", Value: bson.D{{Key: "$in", Value: eventIDs}}}}}}
		pipeline = append(mongo.Pipeline{match}, pipeline...)
	}
	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, translate(err, "aggregate registration counts")
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID    primitive.ObjectID `bson:"_id"`
		Count int                `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, translate(err, "decode registration counts")
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.ID.Hex()] = row.Count
	}
	return counts, nil
}

func (s *RegistrationStore) UpdatePaymentStatus(ctx context.Context, id primitive.ObjectID, status models.PaymentStatus) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"paymentStatus": status}})
	if err != nil {
		return translate(err, "update payment status")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RegistrationStore) DeleteByEvent(ctx context.Context, eventID primitive.ObjectID) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"eventId": eventID})
	if err != nil {
		return 0, translate(err, "delete registrations")
	}
	return res.DeletedCount, nil
}
