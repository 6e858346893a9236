package handlers

import (
	"errors"
	"net/http"

	"confique/models"
	"confique/store"

	"github.com/gin-gonic/gin"
)

const CodeNotOwner = "NOT_OWNER"

// uploadError marks a failed object-storage upload.
type uploadError struct{ err error }

func (e *uploadError) Error() string { return "upload failed: " + e.err.Error() }
func (e *uploadError) Unwrap() error { return e.err }

var clientRuleErrors = []error{
	models.ErrAlreadyLiked,
	models.ErrNotLiked,
	models.ErrLikesUnsupported,
	models.ErrNotShowcase,
	models.ErrSelfUpvote,
	models.ErrNotUpvoted,
}

// fail maps err onto a status code and JSON body.
func (a *API) fail(c *gin.Context, err error) {
	var ve *models.ValidationError
	var ue *uploadError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Validation failed", "fields": ve.Fields})
		return
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	case errors.Is(err, models.ErrCommentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Comment not found"})
		return
	case errors.Is(err, store.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": "Already exists"})
		return
	case errors.As(err, &ue):
		a.log.Error().Err(err).Str("path", c.FullPath()).Msg("[Upload] object storage failure")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Image upload failed"})
		return
	}
	for _, rule := range clientRuleErrors {
		if errors.Is(err, rule) {
			c.JSON(http.StatusBadRequest, gin.H{"error": rule.Error()})
			return
		}
	}

	_ = c.Error(err)
	a.log.Error().Err(err).Str("method", c.Request.Method).Str("path", c.FullPath()).Msg("request failed")
	msg := err.Error()
	if a.cfg.IsProduction() {
		msg = "Internal server error"
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

func forbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{"error": "You do not have permission to modify this resource", "code": CodeNotOwner})
}
