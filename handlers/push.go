package handlers

import (
	"net/http"
	"strings"

	"confique/models"

	"github.com/gin-gonic/gin"
)

// SubscribeRequest is the browser PushSubscription JSON.
type SubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required,url"`
	Keys     struct {
		P256dh string `json:"p256dh" binding:"required"`
		Auth   string `json:"auth" binding:"required"`
	} `json:"keys" binding:"required"`
}

func (a *API) VapidPublicKey(c *gin.Context) {
	if !a.cfg.PushEnabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Push notifications not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": a.cfg.VAPIDPublicKey})
}

// Subscribe stores a push endpoint for the caller. Re-subscribing the same
// endpoint moves it to the caller and refreshes its keys.
func (a *API) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if !bindJSON(c, &req) {
		return
	}
	id, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user ID"})
		return
	}

	ctx, cancel := a.reqCtx(c)
	defer cancel()

	sub := &models.PushSubscription{
		UserID:   id,
		Endpoint: strings.TrimSpace(req.Endpoint),
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	}
	if err := a.push.Save(ctx, sub); err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Subscribed to push notifications"})
}
