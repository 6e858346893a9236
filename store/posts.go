package store

import (
	"context"
	"regexp"
	"time"

	"confique/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type PostSort string

const (
	SortRecent  PostSort = "recent"
	SortLikes   PostSort = "likes"
	SortUpvotes PostSort = "upvotes"
)

// PostFilter narrows a post listing. Zero values mean "any".
type PostFilter struct {
	Type     models.PostType
	Statuses []models.PostStatus
	UserID   primitive.ObjectID
	LikedBy  primitive.ObjectID
	IDs      []primitive.ObjectID
	Month    string
	Search   string
	Sort     PostSort
	Limit    int64
	Skip     int64
}

func (f PostFilter) query() bson.M {
	q := bson.M{}
	if f.Type != "" {
		q["type"] = f.Type
	}
	if len(f.Statuses) > 0 {
		q["status"] = bson.M{"$in": f.Statuses}
	}
	if !f.UserID.IsZero() {
		q["userId"] = f.UserID
	}
	if !f.LikedBy.IsZero() {
		q["likedBy"] = f.LikedBy
	}
	if f.IDs != nil {
		q["_id"] = bson.M{"$in": f.IDs}
	}
	if f.Month != "" {
		q["month"] = f.Month
	}
	if f.Search != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		q["$or"] = bson.A{
			bson.M{"title": re},
			bson.M{"content": re},
			bson.M{"location": re},
		}
	}
	return q
}

func (f PostFilter) sort() bson.D {
	switch f.Sort {
	case SortLikes:
		return bson.D{{Key: "likes", Value: -1}, {Key: "createdAt", Value: -1}}
	case SortUpvotes:
		return bson.D{{Key: "upvotes", Value: -1}, {Key: "createdAt", Value: -1}}
	default:
		return bson.D{{Key: "createdAt", Value: -1}}
	}
}

type PostStore struct {
	coll *mongo.Collection
}

func (s *PostStore) Create(ctx context.Context, p *models.Post) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := s.coll.InsertOne(ctx, p)
	return translate(err, "insert post")
}

func (s *PostStore) Get(ctx context.Context, id primitive.ObjectID) (*models.Post, error) {
	var p models.Post
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, translate(err, "find post")
	}
	return &p, nil
}

// Replace saves the whole document, so fields cleared in p disappear from
// the stored copy.
func (s *PostStore) Replace(ctx context.Context, p *models.Post) error {
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		return translate(err, "replace post")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return translate(err, "delete post")
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostStore) List(ctx context.Context, f PostFilter) ([]models.Post, error) {
	opts := options.Find().SetSort(f.sort())
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	if f.Skip > 0 {
		opts.SetSkip(f.Skip)
	}
	cursor, err := s.coll.Find(ctx, f.query(), opts)
	if err != nil {
		return nil, translate(err, "list posts")
	}
	defer cursor.Close(ctx)

	posts := []models.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, translate(err, "decode posts")
	}
	return posts, nil
}

// viewable matches an approved showcase post; other posts never count views.
func viewable(id primitive.ObjectID) bson.M {
	return bson.M{"_id": id, "type": models.PostShowcase, "status": models.StatusApproved}
}

func (s *PostStore) IncrementViews(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.coll.UpdateOne(ctx, viewable(id), bson.M{"$inc": bson.M{"views": 1}})
	if err != nil {
		return translate(err, "increment views")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ShowcaseStats aggregates the engagement counters over a user's showcase posts.
func (s *PostStore) ShowcaseStats(ctx context.Context, userID primitive.ObjectID) (models.ShowcaseStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "userId", Value: userID}, {Key: "type", Value: models.PostShowcase}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "posts", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "upvotes", Value: bson.D{{Key: "$sum", Value: "$upvotes"}}},
			{Key: "comments", Value: bson.D{{Key: "$sum", Value: "$commentCount"}}},
			{Key: "views", Value: bson.D{{Key: "$sum", Value: "$views"}}},
		}}},
	}
	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return models.ShowcaseStats{}, translate(err, "aggregate showcase stats")
	}
	defer cursor.Close(ctx)

	var rows []models.ShowcaseStats
	if err := cursor.All(ctx, &rows); err != nil {
		return models.ShowcaseStats{}, translate(err, "decode showcase stats")
	}
	stats := models.ShowcaseStats{}
	if len(rows) > 0 {
		stats = rows[0]
	}
	stats.RefreshedAt = time.Now().UTC()
	return stats, nil
}
