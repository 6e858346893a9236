package handlers

import (
	"errors"
	"net/http"

	"confique/models"
	"confique/store"

	"github.com/gin-gonic/gin"
)

const notificationLimit = 50

type notificationQuery struct {
	Limit int64 `form:"limit" binding:"omitempty,min=1,max=100"`
}

func (a *API) ListNotifications(c *gin.Context) {
	var q notificationQuery
	if !bindQuery(c, &q) {
		return
	}
	if q.Limit == 0 {
		q.Limit = notificationLimit
	}
	id, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user ID"})
		return
	}

	ctx, cancel := a.reqCtx(c)
	defer cancel()

	notes, err := a.notes.ListForUser(ctx, id, q.Limit)
	if err != nil {
		a.fail(c, err)
		return
	}
	if notes == nil {
		notes = []models.Notification{}
	}
	unread, err := a.notes.UnreadCount(ctx, id)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notes, "unreadCount": unread})
}

func (a *API) UnreadCount(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user ID"})
		return
	}

	ctx, cancel := a.reqCtx(c)
	defer cancel()

	unread, err := a.notes.UnreadCount(ctx, id)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unreadCount": unread})
}

// MarkNotificationRead only touches notifications addressed to the caller;
// anything else reads as missing.
func (a *API) MarkNotificationRead(c *gin.Context) {
	noteID, ok := paramID(c, "id")
	if !ok {
		return
	}
	id, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user ID"})
		return
	}

	ctx, cancel := a.reqCtx(c)
	defer cancel()

	if err := a.notes.MarkRead(ctx, noteID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
			return
		}
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}

func (a *API) MarkAllNotificationsRead(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user ID"})
		return
	}

	ctx, cancel := a.reqCtx(c)
	defer cancel()

	n, err := a.notes.MarkAllRead(ctx, id)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read", "updated": n})
}

func (a *API) DeleteNotification(c *gin.Context) {
	noteID, ok := paramID(c, "id")
	if !ok {
		return
	}
	id, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user ID"})
		return
	}

	ctx, cancel := a.reqCtx(c)
	defer cancel()

	if err := a.notes.Delete(ctx, noteID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
			return
		}
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification deleted"})
}

func (a *API) DeleteAllNotifications(c *gin.Context) {
	id, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user ID"})
		return
	}

	ctx, cancel := a.reqCtx(c)
	defer cancel()

	n, err := a.notes.DeleteAllForUser(ctx, id)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notifications cleared", "deleted": n})
}
