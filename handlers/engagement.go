package handlers

import (
	"context"
	"net/http"

	"confique/models"
	"confique/notify"
	"confique/store"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type commentRequest struct {
	Text string `json:"text" binding:"required"`
}

type reportRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// engage loads the caller and a post the caller may see. Hidden posts read
// as missing.
func (a *API) engage(ctx context.Context, c *gin.Context) (*models.User, *models.Post, bool) {
	user, ok := a.loadCaller(ctx, c)
	if !ok {
		return nil, nil, false
	}
	p, ok := a.loadPost(ctx, c)
	if !ok {
		return nil, nil, false
	}
	if !canSee(p, user) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return nil, nil, false
	}
	return user, p, true
}

// save persists an engagement change and drops the cached projection.
func (a *API) save(ctx context.Context, p *models.Post) error {
	if err := a.posts.Replace(ctx, p); err != nil {
		return err
	}
	a.invalidatePost(ctx, p.ID)
	return nil
}

func (a *API) LikePost(c *gin.Context) {
	ctx, cancel := a.reqCtx(c)
	defer cancel()

	user, p, ok := a.engage(ctx, c)
	if !ok {
		return
	}
	if err := models.Like(p, user.ID); err != nil {
		a.fail(c, err)
		return
	}
	if err := a.save(ctx, p); err != nil {
		a.fail(c, err)
		return
	}
	a.notifyUser(ctx, notify.Note{
		Recipient: p.UserID,
		Actor:     user.ID,
		Post:      p.ID,
		Type:      models.NotifyLike,
		Message:   user.Name + " liked your post",
	})
	c.JSON(http.StatusOK, gin.H{"liked": true, "likes": len(p.LikedBy)})
}

func (a *API) UnlikePost(c *gin.Context) {
	ctx, cancel := a.reqCtx(c)
	defer cancel()

	user, p, ok := a.engage(ctx, c)
	if !ok {
		return
	}
	if err := models.Unlike(p, user.ID); err != nil {
		a.fail(c, err)
		return
	}
	if err := a.save(ctx, p); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": false, "likes": len(p.LikedBy)})
}

// UpvotePost toggles the caller's upvote and mirrors it into the caller's
// upvotedPosts list.
func (a *API) UpvotePost(c *gin.Context) {
	ctx, cancel := a.reqCtx(c)
	defer cancel()

	user, p, ok := a.engage(ctx, c)
	if !ok {
		return
	}
	added, err := models.ToggleUpvote(p, user.ID)
	if err != nil {
		a.fail(c, err)
		return
	}
	if err := a.save(ctx, p); err != nil {
		a.fail(c, err)
		return
	}
	a.mirrorRef(ctx, user.ID, store.RefUpvoted, p.ID, added)
	if added {
		a.notifyUser(ctx, notify.Note{
			Recipient: p.UserID,
			Actor:     user.ID,
			Post:      p.ID,
			Type:      models.NotifyUpvote,
			Message:   user.Name + " upvoted your showcase",
		})
	}
	c.JSON(http.StatusOK, gin.H{"upvoted": added, "upvotes": len(p.Upvoters)})
}

func (a *API) RemoveUpvote(c *gin.Context) {
	ctx, cancel := a.reqCtx(c)
	defer cancel()

	user, p, ok := a.engage(ctx, c)
	if !ok {
		return
	}
	if err := models.RemoveUpvote(p, user.ID); err != nil {
		a.fail(c, err)
		return
	}
	if err := a.save(ctx, p); err != nil {
		a.fail(c, err)
		return
	}
	a.mirrorRef(ctx, user.ID, store.RefUpvoted, p.ID, false)
	c.JSON(http.StatusOK, gin.H{"upvoted": false, "upvotes": len(p.Upvoters)})
}

func (a *API) mirrorRef(ctx context.Context, userID primitive.ObjectID, list string, postID primitive.ObjectID, present bool) {
	if err := a.users.SetPostRef(ctx, userID, list, postID, present); err != nil {
		a.log.Warn().Err(err).Str("userId", userID.Hex()).Str("list", list).Msg("user reference update failed")
	}
}

func (a *API) AddComment(c *gin.Context) {
	var req commentRequest
	if !bindJSON(c, &req) {
		return
	}
	text, err := models.ValidateCommentText(sanitizeText(req.Text))
	if err != nil {
		a.fail(c, err)
		return
	}

	ctx, cancel := a.reqCtx(c)
	defer cancel()

	user, p, ok := a.engage(ctx, c)
	if !ok {
		return
	}
	id := models.AddComment(p, user, text, a.now().UTC())
	if err := a.save(ctx, p); err != nil {
		a.fail(c, err)
		return
	}
	a.notifyUser(ctx, notify.Note{
		Recipient: p.UserID,
		Actor:     user.ID,
		Post:      p.ID,
		Type:      models.NotifyComment,
		Message:   user.Name + " commented on your post",
	})

	view, err := a.renderPost(ctx, p, user)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":      "Comment added",
		"commentId":    id.Hex(),
		"comments":     view["comments"],
		"commentCount": view["commentCount"],
	})
}

// DeleteComment is allowed for the comment author, the post owner and admins.
func (a *API) DeleteComment(c *gin.Context) {
	commentID, ok := paramID(c, "commentId")
	if !ok {
		return
	}

	ctx, cancel := a.reqCtx(c)
	defer cancel()

	user, p, ok := a.engage(ctx, c)
	if !ok {
		return
	}
	authorID, err := models.RemoveComment(p, commentID)
	if err != nil {
		a.fail(c, err)
		return
	}
	if authorID != user.ID && !user.CanEdit(p.UserID) {
		forbidden(c)
		return
	}
	if err := a.save(ctx, p); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted", "commentCount": p.CommentCount})
}

// BookmarkPost toggles the post in the caller's bookmarks. The post itself
// is not written.
func (a *API) BookmarkPost(c *gin.Context) {
	ctx, cancel := a.reqCtx(c)
	defer cancel()

	user, p, ok := a.engage(ctx, c)
	if !ok {
		return
	}
	if p.Type != models.PostShowcase {
		a.fail(c, models.ErrNotShowcase)
		return
	}
	_, added := models.ToggleID(user.BookmarkedPosts, p.ID)
	if err := a.users.SetPostRef(ctx, user.ID, store.RefBookmarked, p.ID, added); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookmarked": added})
}

func (a *API) ViewPost(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := a.reqCtx(c)
	defer cancel()

	if err := a.posts.IncrementViews(ctx, id); err != nil {
		a.fail(c, err)
		return
	}
	a.invalidatePost(ctx, id)
	c.JSON(http.StatusOK, gin.H{"message": "View recorded"})
}

// ReportPost sends one report notification to every admin. The post is not
// modified.
func (a *API) ReportPost(c *gin.Context) {
	var req reportRequest
	if !bindJSON(c, &req) {
		return
	}
	reason := sanitizeText(req.Reason)
	if reason == "" {
		a.fail(c, models.NewValidationError("reason", msgFieldRequired))
		return
	}

	ctx, cancel := a.reqCtx(c)
	defer cancel()

	user, p, ok := a.engage(ctx, c)
	if !ok {
		return
	}
	admins, err := a.users.ListAdmins(ctx)
	if err != nil {
		a.fail(c, err)
		return
	}
	for _, admin := range admins {
		a.notifyUser(ctx, notify.Note{
			Recipient: admin.ID,
			Actor:     user.ID,
			Post:      p.ID,
			Type:      models.NotifyReport,
			Message:   user.Name + " reported \"" + postLabel(p) + "\": " + reason,
		})
	}
	a.log.Info().Str("postId", p.ID.Hex()).Int("admins", len(admins)).Msg("[Posts] reported")
	c.JSON(http.StatusOK, gin.H{"message": "Report submitted"})
}
