package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"confique/models"
	"confique/notify"
	"confique/store"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RegisterRequest struct {
	Name          string                   `json:"name" binding:"required,max=100"`
	Email         string                   `json:"email" binding:"required,email"`
	Phone         string                   `json:"phone" binding:"max=30"`
	CustomFields  map[string]string        `json:"customFields"`
	Tickets       []models.TicketSelection `json:"tickets" binding:"max=20"`
	TransactionID string                   `json:"transactionId" binding:"max=100"`
}

type paymentRequest struct {
	Status models.PaymentStatus `json:"status" binding:"required,oneof=pending under_review confirmed rejected"`
}

// RegisterForEvent records the caller's registration. Ticket prices and the
// total are always taken from the event, never from the request.
func (a *API) RegisterForEvent(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx, cancel := a.reqCtx(c)
	defer cancel()

	user, p, ok := a.engage(ctx, c)
	if !ok {
		return
	}

	exists, err := a.regs.Exists(ctx, p.ID, user.ID)
	if err != nil {
		a.fail(c, err)
		return
	}
	if exists {
		c.JSON(http.StatusConflict, gin.H{"error": "You are already registered for this event"})
		return
	}

	custom := make(map[string]string, len(req.CustomFields))
	for k, v := range req.CustomFields {
		custom[strings.TrimSpace(k)] = sanitizeText(v)
	}
	reg := &models.Registration{
		UserID:        user.ID,
		Name:          sanitizeText(req.Name),
		Email:         req.Email,
		Phone:         sanitizeText(req.Phone),
		CustomFields:  custom,
		Tickets:       req.Tickets,
		TransactionID: sanitizeText(req.TransactionID),
		CreatedAt:     a.now().UTC(),
	}
	if err := models.PrepareRegistration(p, reg); err != nil {
		a.fail(c, err)
		return
	}
	if err := a.regs.Create(ctx, reg); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "You are already registered for this event"})
			return
		}
		a.fail(c, err)
		return
	}

	a.notifyUser(ctx, notify.Note{
		Recipient: p.UserID,
		Actor:     user.ID,
		Post:      p.ID,
		Type:      models.NotifyRegistration,
		Message:   reg.Name + " registered for \"" + postLabel(p) + "\"",
	})
	a.log.Info().Str("postId", p.ID.Hex()).Str("userId", user.ID.Hex()).Msg("[Registrations] created")
	c.JSON(http.StatusCreated, gin.H{"message": "Registration successful", "registration": reg})
}

// ownedEvent loads the post and checks the caller is its owner or an admin.
func (a *API) ownedEvent(c *gin.Context) (*models.User, *models.Post, bool) {
	ctx, cancel := a.reqCtx(c)
	defer cancel()

	user, ok := a.loadCaller(ctx, c)
	if !ok {
		return nil, nil, false
	}
	p, ok := a.loadPost(ctx, c)
	if !ok {
		return nil, nil, false
	}
	if !user.CanEdit(p.UserID) {
		forbidden(c)
		return nil, nil, false
	}
	return user, p, true
}

func (a *API) ListRegistrations(c *gin.Context) {
	_, p, ok := a.ownedEvent(c)
	if !ok {
		return
	}

	ctx, cancel := a.reqCtx(c)
	defer cancel()

	regs, err := a.regs.ListByEvent(ctx, p.ID)
	if err != nil {
		a.fail(c, err)
		return
	}
	if regs == nil {
		regs = []models.Registration{}
	}
	c.JSON(http.StatusOK, gin.H{"registrations": regs, "count": len(regs)})
}

func (a *API) UpdatePaymentStatus(c *gin.Context) {
	regID, ok := paramID(c, "regId")
	if !ok {
		return
	}
	var req paymentRequest
	if !bindJSON(c, &req) {
		return
	}
	user, p, ok := a.ownedEvent(c)
	if !ok {
		return
	}

	ctx, cancel := a.reqCtx(c)
	defer cancel()

	reg, err := a.regs.Get(ctx, regID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && reg.EventID != p.ID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Registration not found"})
		return
	}
	if err != nil {
		a.fail(c, err)
		return
	}
	if err := a.regs.UpdatePaymentStatus(ctx, reg.ID, req.Status); err != nil {
		a.fail(c, err)
		return
	}
	reg.PaymentStatus = req.Status

	a.notifyUser(ctx, notify.Note{
		Recipient: reg.UserID,
		Actor:     user.ID,
		Post:      p.ID,
		Type:      models.NotifyPayment,
		Message:   "Your payment for \"" + postLabel(p) + "\" is " + strings.ReplaceAll(string(req.Status), "_", " "),
	})
	c.JSON(http.StatusOK, gin.H{"message": "Payment status updated", "registration": reg})
}

// ExportRegistrations streams the event's registrations as a CSV attachment.
func (a *API) ExportRegistrations(c *gin.Context) {
	_, p, ok := a.ownedEvent(c)
	if !ok {
		return
	}

	ctx, cancel := a.reqCtx(c)
	defer cancel()

	regs, err := a.regs.ListByEvent(ctx, p.ID)
	if err != nil {
		a.fail(c, err)
		return
	}
	var buf bytes.Buffer
	if err := models.WriteRegistrationsCSV(&buf, p, regs); err != nil {
		a.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="registrations-`+p.ID.Hex()+`.csv"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// RegistrationCounts returns {eventId: count}, optionally restricted to the
// comma separated ids query parameter.
func (a *API) RegistrationCounts(c *gin.Context) {
	var ids []primitive.ObjectID
	if raw := strings.TrimSpace(c.Query("ids")); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			id, err := primitive.ObjectIDFromHex(strings.TrimSpace(s))
			if err != nil {
				a.fail(c, models.NewValidationError("ids", msgInvalidFormat))
				return
			}
			ids = append(ids, id)
		}
	}

	ctx, cancel := a.reqCtx(c)
	defer cancel()

	counts, err := a.regs.CountByEvent(ctx, ids)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}
