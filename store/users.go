package store

import (
	"context"
	"strings"
	"time"

	"confique/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Post reference lists kept on the user document.
const (
	RefUpvoted    = "upvotedPosts"
	RefBookmarked = "bookmarkedPosts"
)

type UserStore struct {
	coll *mongo.Collection
}

func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	_, err := s.coll.InsertOne(ctx, u)
	return translate(err, "insert user")
}

func (s *UserStore) Get(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (s *UserStore) GetByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"googleId": googleID})
}

func (s *UserStore) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := s.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, translate(err, "find user")
	}
	return &u, nil
}

// FindByIDs returns the users found, keyed by id. Missing ids are absent.
func (s *UserStore) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	out := map[primitive.ObjectID]models.User{}
	if len(ids) == 0 {
		return out, nil
	}
	cursor, err := s.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"passwordHash": 0}))
	if err != nil {
		return nil, translate(err, "find users")
	}
	defer cursor.Close(ctx)

	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, translate(err, "decode users")
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (s *UserStore) ListAdmins(ctx context.Context) ([]models.User, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"isAdmin": true})
	if err != nil {
		return nil, translate(err, "list admins")
	}
	defer cursor.Close(ctx)

	admins := []models.User{}
	if err := cursor.All(ctx, &admins); err != nil {
		return nil, translate(err, "decode admins")
	}
	return admins, nil
}

func (s *UserStore) Replace(ctx context.Context, u *models.User) error {
	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": u.ID}, u)
	if err != nil {
		return translate(err, "replace user")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UserStore) Touch(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"lastSeen": time.Now().UTC()}})
	return translate(err, "touch user")
}

func (s *UserStore) SetShowcaseStats(ctx context.Context, id primitive.ObjectID, stats models.ShowcaseStats) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"showcaseStats": stats}})
	if err != nil {
		return translate(err, "set showcase stats")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPostRef adds or removes postID from one of the user's reference lists.
func (s *UserStore) SetPostRef(ctx context.Context, userID primitive.ObjectID, list string, postID primitive.ObjectID, present bool) error {
	op := "$pull"
	if present {
		op = "$addToSet"
	}
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{op: bson.M{list: postID}})
	return translate(err, "update "+list)
}

// PullPostRefs removes a deleted post from every user's reference lists.
func (s *UserStore) PullPostRefs(ctx context.Context, postID primitive.ObjectID) error {
	_, err := s.coll.UpdateMany(ctx,
		bson.M{"$or": bson.A{bson.M{RefUpvoted: postID}, bson.M{RefBookmarked: postID}}},
		bson.M{"$pull": bson.M{RefUpvoted: postID, RefBookmarked: postID}},
	)
	return translate(err, "pull post refs")
}
