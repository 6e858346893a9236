package store

import (
	"testing"

	"confique/models"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestPostFilter_EmptyMatchesEverything(t *testing.T) {
	assert.Equal(t, bson.M{}, PostFilter{}.query())
}

func TestPostFilter_Query(t *testing.T) {
	user, liker := primitive.NewObjectID(), primitive.NewObjectID()
	ids := []primitive.ObjectID{primitive.NewObjectID(), primitive.NewObjectID()}

	tests := []struct {
		name   string
		filter PostFilter
		want   bson.M
	}{
		{"type", PostFilter{Type: models.PostEvent}, bson.M{"type": models.PostEvent}},
		{
			"statuses",
			PostFilter{Statuses: []models.PostStatus{models.StatusApproved, models.StatusPending}},
			bson.M{"status": bson.M{"$in": []models.PostStatus{models.StatusApproved, models.StatusPending}}},
		},
		{"owner", PostFilter{UserID: user}, bson.M{"userId": user}},
		{"liked by", PostFilter{LikedBy: liker}, bson.M{"likedBy": liker}},
		{"ids", PostFilter{IDs: ids}, bson.M{"_id": bson.M{"$in": ids}}},
		{"month", PostFilter{Type: models.PostShowcase, Month: "2026-10"}, bson.M{"type": models.PostShowcase, "month": "2026-10"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.query())
		})
	}
}

func TestPostFilter_EmptyIDListMatchesNothing(t *testing.T) {
	q := PostFilter{IDs: []primitive.ObjectID{}}.query()
	assert.Equal(t, bson.M{"_id": bson.M{"$in": []primitive.ObjectID{}}}, q)
}

func TestPostFilter_SearchIsQuotedCaseInsensitiveRegex(t *testing.T) {
	q := PostFilter{Search: "c++ (lab)"}.query()

	re := primitive.Regex{Pattern: `c\+\+ \(lab\)`, Options: "i"}
	assert.Equal(t, bson.A{
		bson.M{"title": re},
		bson.M{"content": re},
		bson.M{"location": re},
	}, q["$or"])
	assert.Len(t, q, 1)
}

func TestPostFilter_Sort(t *testing.T) {
	recent := bson.D{{Key: "createdAt", Value: -1}}

	assert.Equal(t, recent, PostFilter{}.sort())
	assert.Equal(t, recent, PostFilter{Sort: SortRecent}.sort())
	assert.Equal(t, bson.D{{Key: "likes", Value: -1}, {Key: "createdAt", Value: -1}}, PostFilter{Sort: SortLikes}.sort())
	assert.Equal(t, bson.D{{Key: "upvotes", Value: -1}, {Key: "createdAt", Value: -1}}, PostFilter{Sort: SortUpvotes}.sort())
}

func TestViewable_OnlyApprovedShowcase(t *testing.T) {
	id := primitive.NewObjectID()
	assert.Equal(t, bson.M{"_id": id, "type": models.PostShowcase, "status": models.StatusApproved}, viewable(id))
}
