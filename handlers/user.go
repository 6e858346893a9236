package handlers

import (
	"errors"
	"net/http"
	"strings"

	"confique/media"
	"confique/models"
	"confique/store"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UpdateProfileRequest struct {
	Name   string `json:"name" binding:"omitempty,min=2,max=50"`
	Avatar string `json:"avatar"`
}

// GetUser returns the public profile of a user.
func (a *API) GetUser(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := a.reqCtx(c)
	defer cancel()

	u, err := a.users.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": gin.H{
		"id":            u.ID.Hex(),
		"name":          u.Name,
		"avatar":        models.NormalizeAvatarURL(u.Avatar.URL),
		"showcaseStats": u.ShowcaseStats,
		"createdAt":     u.CreatedAt,
	}})
}

// UpdateMe changes the caller's name and avatar. A data URL avatar is
// uploaded and the previous upload is removed.
func (a *API) UpdateMe(c *gin.Context) {
	var req UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx, cancel := a.uploadCtx(c)
	defer cancel()

	user, ok := a.loadCaller(ctx, c)
	if !ok {
		return
	}

	if req.Name != "" {
		name := sanitizeText(req.Name)
		if len(name) < 2 {
			a.fail(c, models.NewValidationError("name", msgBelowMinLen))
			return
		}
		user.Name = name
	}

	oldAsset, newAsset := user.Avatar.PublicID, ""
	avatar := strings.TrimSpace(req.Avatar)
	switch {
	case avatar == "":
		oldAsset = ""
	case media.IsDataURL(avatar):
		asset, err := a.media.Upload(ctx, avatar, media.FolderAvatars)
		if err != nil {
			a.fail(c, &uploadError{err: err})
			return
		}
		user.Avatar = models.Avatar{URL: asset.URL, PublicID: asset.PublicID}
		newAsset = asset.PublicID
	case avatar == user.Avatar.URL:
		oldAsset = ""
	default:
		user.Avatar = models.Avatar{URL: models.NormalizeAvatarURL(avatar)}
	}

	if err := a.users.Replace(ctx, user); err != nil {
		a.destroyAssets(ctx, newAsset)
		a.fail(c, err)
		return
	}
	a.destroyAssets(ctx, oldAsset)
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated", "user": userView(user)})
}

// RefreshShowcaseStats recomputes the caller's denormalized showcase counters.
func (a *API) RefreshShowcaseStats(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user ID"})
		return
	}

	ctx, cancel := a.reqCtx(c)
	defer cancel()

	stats, err := a.posts.ShowcaseStats(ctx, id)
	if err != nil {
		a.fail(c, err)
		return
	}
	if err := a.users.SetShowcaseStats(ctx, id, stats); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"showcaseStats": stats})
}

func (a *API) MyBookmarks(c *gin.Context) {
	a.listReferenced(c, func(u *models.User) []primitive.ObjectID { return u.BookmarkedPosts })
}

func (a *API) MyUpvoted(c *gin.Context) {
	a.listReferenced(c, func(u *models.User) []primitive.ObjectID { return u.UpvotedPosts })
}

// listReferenced renders the approved posts named by one of the caller's
// reference lists.
func (a *API) listReferenced(c *gin.Context, refs func(*models.User) []primitive.ObjectID) {
	ctx, cancel := a.reqCtx(c)
	defer cancel()

	user, ok := a.loadCaller(ctx, c)
	if !ok {
		return
	}
	ids := refs(user)
	if len(ids) == 0 {
		c.JSON(http.StatusOK, gin.H{"posts": []models.PostView{}})
		return
	}
	posts, err := a.posts.List(ctx, store.PostFilter{
		IDs:      ids,
		Statuses: []models.PostStatus{models.StatusApproved},
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	views, err := a.renderPosts(ctx, posts, user)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": views})
}

// MyLikes returns the ids of posts the caller liked.
func (a *API) MyLikes(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user ID"})
		return
	}

	ctx, cancel := a.reqCtx(c)
	defer cancel()

	posts, err := a.posts.List(ctx, store.PostFilter{LikedBy: id})
	if err != nil {
		a.fail(c, err)
		return
	}
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID.Hex())
	}
	c.JSON(http.StatusOK, gin.H{"postIds": ids})
}

// MyRegistrations returns the ids of events the caller registered for.
func (a *API) MyRegistrations(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user ID"})
		return
	}

	ctx, cancel := a.reqCtx(c)
	defer cancel()

	regs, err := a.regs.ListByUser(ctx, id)
	if err != nil {
		a.fail(c, err)
		return
	}
	ids := make([]string, 0, len(regs))
	for _, r := range regs {
		ids = append(ids, r.EventID.Hex())
	}
	c.JSON(http.StatusOK, gin.H{"eventIds": ids})
}
