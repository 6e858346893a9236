package handlers

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"confique/models"
	"confique/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestLikeUnlike_Rules(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice", false)
	bob := h.user("bob", false)
	p := h.seed(&models.Post{Type: models.PostConfession, UserID: alice.ID, Content: "like me"})
	path := "/api/posts/" + p.ID.Hex() + "/like"

	w, body := h.do(http.MethodPost, path, nil, bob)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["likes"])

	w, body = h.do(http.MethodPost, path, nil, bob)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.ErrAlreadyLiked.Error(), body["error"])

	w, body = h.do(http.MethodDelete, path, nil, bob)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, body["likes"])

	w, _ = h.do(http.MethodDelete, path, nil, bob)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	sc := h.seed(showcasePost(alice))
	w, body = h.do(http.MethodPost, "/api/posts/"+sc.ID.Hex()+"/like", nil, bob)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.ErrLikesUnsupported.Error(), body["error"])

	likes := h.notifier.ofType(models.NotifyLike)
	require.Len(t, likes, 1)
	assert.Equal(t, alice.ID, likes[0].Recipient)
	assert.Equal(t, bob.ID, likes[0].Actor)
}

func TestLike_HiddenPostReadsAsMissing(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice", false)
	bob := h.user("bob", false)
	p := h.seed(&models.Post{Type: models.PostNews, UserID: alice.ID, Title: "Draft", Content: "x", Status: models.StatusPending})

	w, _ := h.do(http.MethodPost, "/api/posts/"+p.ID.Hex()+"/like", nil, bob)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpvote_TogglesAndMirrorsUserList(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice", false)
	bob := h.user("bob", false)
	sc := h.seed(showcasePost(alice))
	path := "/api/posts/" + sc.ID.Hex() + "/upvote"

	w, body := h.do(http.MethodPost, path, nil, bob)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["upvoted"])
	assert.EqualValues(t, 1, body["upvotes"])
	assert.Equal(t, []primitive.ObjectID{bob.ID}, h.stored(sc).Upvoters)
	assert.Equal(t, []primitive.ObjectID{sc.ID}, h.storedUser(bob).UpvotedPosts)

	w, body = h.do(http.MethodPost, path, nil, bob)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["upvoted"])
	assert.EqualValues(t, 0, body["upvotes"])
	assert.Empty(t, h.stored(sc).Upvoters)
	assert.Empty(t, h.storedUser(bob).UpvotedPosts)

	w, body = h.do(http.MethodPost, path, nil, alice)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.ErrSelfUpvote.Error(), body["error"])

	w, _ = h.do(http.MethodDelete, path, nil, bob)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Len(t, h.notifier.ofType(models.NotifyUpvote), 1)
}

func TestUpvote_NonShowcaseRejected(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice", false)
	bob := h.user("bob", false)
	p := h.seed(&models.Post{Type: models.PostConfession, UserID: alice.ID, Content: "x"})

	w, body := h.do(http.MethodPost, "/api/posts/"+p.ID.Hex()+"/upvote", nil, bob)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.ErrNotShowcase.Error(), body["error"])
}

func TestComments_AddAndDelete(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice", false)
	bob := h.user("bob", false)
	carol := h.user("carol", false)
	p := h.seed(&models.Post{Type: models.PostConfession, UserID: alice.ID, Content: "thoughts?"})
	path := "/api/posts/" + p.ID.Hex() + "/comments"

	w, body := h.do(http.MethodPost, path, map[string]any{"text": "   "}, bob)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, fieldsOf(t, body), "text")

	w, body = h.do(http.MethodPost, path, map[string]any{"text": strings.Repeat("a", models.CommentMaxLen+1)}, bob)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = h.do(http.MethodPost, path, map[string]any{"text": "same here"}, bob)
	require.Equal(t, http.StatusCreated, w.Code, body)
	assert.EqualValues(t, 1, body["commentCount"])
	commentID := body["commentId"].(string)
	stored := h.stored(p)
	require.Len(t, stored.Comments, 1)
	assert.Equal(t, "bob", stored.Comments[0].AuthorName)
	assert.Equal(t, 1, stored.CommentCount)
	assert.Len(t, h.notifier.ofType(models.NotifyComment), 1)

	w, body = h.do(http.MethodDelete, path+"/"+commentID, nil, carol)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, CodeNotOwner, body["code"])

	w, body = h.do(http.MethodDelete, path+"/"+commentID, nil, alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, body["commentCount"])
	assert.Zero(t, h.stored(p).CommentCount)

	w, _ = h.do(http.MethodDelete, path+"/"+commentID, nil, alice)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestComments_ShowcaseIsPopulated(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice", false)
	bob := h.user("bob", false)
	sc := h.seed(showcasePost(alice))

	w, body := h.do(http.MethodPost, "/api/posts/"+sc.ID.Hex()+"/comments", map[string]any{"text": "ship it"}, bob)
	require.Equal(t, http.StatusCreated, w.Code, body)
	comments := body["comments"].([]any)
	require.Len(t, comments, 1)
	c := comments[0].(map[string]any)
	assert.Equal(t, "ship it", c["text"])
	assert.Equal(t, "bob", c["user"].(map[string]any)["name"])

	stored := h.stored(sc)
	assert.Len(t, stored.ShowcaseComments, 1)
	assert.Empty(t, stored.Comments)
	assert.Equal(t, 1, stored.CommentCount)
}

func TestBookmark_Toggles(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice", false)
	bob := h.user("bob", false)
	sc := h.seed(showcasePost(alice))
	path := "/api/posts/" + sc.ID.Hex() + "/bookmark"

	_, body := h.do(http.MethodPost, path, nil, bob)
	assert.Equal(t, true, body["bookmarked"])
	assert.Equal(t, []primitive.ObjectID{sc.ID}, h.storedUser(bob).BookmarkedPosts)

	_, body = h.do(http.MethodGet, "/api/users/me/bookmarks", nil, bob)
	assert.Len(t, body["posts"], 1)

	_, body = h.do(http.MethodPost, path, nil, bob)
	assert.Equal(t, false, body["bookmarked"])
	assert.Empty(t, h.storedUser(bob).BookmarkedPosts)
}

func TestView_IncrementsShowcaseOnly(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice", false)
	sc := h.seed(showcasePost(alice))
	p := h.seed(&models.Post{Type: models.PostConfession, UserID: alice.ID, Content: "x"})

	for i := 0; i < 3; i++ {
		w, _ := h.do(http.MethodPost, "/api/posts/"+sc.ID.Hex()+"/view", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, 3, h.stored(sc).Views)

	w, _ := h.do(http.MethodPost, "/api/posts/"+p.ID.Hex()+"/view", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestView_IgnoresUnapprovedShowcase(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice", false)
	pending := showcasePost(alice)
	pending.Status = models.StatusPending
	h.seed(pending)
	rejected := showcasePost(alice)
	rejected.Status = models.StatusRejected
	h.seed(rejected)

	for _, p := range []*models.Post{pending, rejected} {
		w, _ := h.do(http.MethodPost, "/api/posts/"+p.ID.Hex()+"/view", nil, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Zero(t, h.stored(p).Views)
	}
}

func TestReport_NotifiesEveryAdmin(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice", false)
	bob := h.user("bob", false)
	h.user("admin", true)
	h.user("moderator", true)
	p := h.seed(&models.Post{Type: models.PostConfession, UserID: alice.ID, Content: "rude words"})
	before := h.stored(p)

	w, body := h.do(http.MethodPost, "/api/posts/"+p.ID.Hex()+"/report", map[string]any{}, bob)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, msgFieldRequired, fieldsOf(t, body)["reason"])

	w, _ = h.do(http.MethodPost, "/api/posts/"+p.ID.Hex()+"/report", map[string]any{"reason": "harassment"}, bob)
	require.Equal(t, http.StatusOK, w.Code)

	reports := h.notifier.ofType(models.NotifyReport)
	require.Len(t, reports, 2)
	for _, n := range reports {
		assert.Equal(t, bob.ID, n.Actor)
		assert.Contains(t, n.Message, "harassment")
	}
	assert.Equal(t, before, h.stored(p))
}

func TestMyLikesAndUpvoted(t *testing.T) {
	h := newHarness(t)
	alice := h.user("alice", false)
	bob := h.user("bob", false)
	liked := h.seed(&models.Post{Type: models.PostConfession, UserID: alice.ID, Content: "one", LikedBy: []primitive.ObjectID{bob.ID}})
	h.seed(&models.Post{Type: models.PostConfession, UserID: alice.ID, Content: "two", CreatedAt: time.Now().Add(-time.Hour)})
	sc := h.seed(showcasePost(alice))
	require.NoError(t, h.users.SetPostRef(context.Background(), bob.ID, store.RefUpvoted, sc.ID, true))

	_, body := h.do(http.MethodGet, "/api/users/me/likes", nil, bob)
	assert.Equal(t, []any{liked.ID.Hex()}, body["postIds"])

	_, body = h.do(http.MethodGet, "/api/users/me/upvoted", nil, bob)
	posts := body["posts"].([]any)
	require.Len(t, posts, 1)
	assert.Equal(t, sc.ID.Hex(), posts[0].(map[string]any)["id"])
}
