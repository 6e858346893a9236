package models

import (
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PaymentStatus string

const (
	PaymentPending     PaymentStatus = "pending"
	PaymentUnderReview PaymentStatus = "under_review"
	PaymentConfirmed   PaymentStatus = "confirmed"
	PaymentRejected    PaymentStatus = "rejected"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentUnderReview, PaymentConfirmed, PaymentRejected:
		return true
	}
	return false
}

type TicketSelection struct {
	Type     string  `bson:"type" json:"type"`
	Quantity int     `bson:"quantity" json:"quantity"`
	Price    float64 `bson:"price" json:"price"`
}

// Registration is unique per (EventID, UserID).
type Registration struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EventID       primitive.ObjectID `bson:"eventId" json:"eventId"`
	UserID        primitive.ObjectID `bson:"userId" json:"userId"`
	Name          string             `bson:"name" json:"name"`
	Email         string             `bson:"email" json:"email"`
	Phone         string             `bson:"phone,omitempty" json:"phone,omitempty"`
	CustomFields  map[string]string  `bson:"customFields,omitempty" json:"customFields,omitempty"`
	Tickets       []TicketSelection  `bson:"tickets,omitempty" json:"tickets,omitempty"`
	TotalPrice    float64            `bson:"totalPrice,omitempty" json:"totalPrice,omitempty"`
	TransactionID string             `bson:"transactionId,omitempty" json:"transactionId,omitempty"`
	PaymentStatus PaymentStatus      `bson:"paymentStatus" json:"paymentStatus"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}

// PrepareRegistration checks r against the event's registration setup and
// fills in the server-derived fields: ticket prices, total and initial
// payment status.
func PrepareRegistration(event *Post, r *Registration) error {
	if !event.Type.IsEvent() {
		return NewValidationError("eventId", "registrations are only accepted for events")
	}
	if event.Status != StatusApproved {
		return NewValidationError("eventId", "event is not open for registration")
	}
	cfg := event.Registration
	if cfg == nil || !cfg.Open {
		return NewValidationError("eventId", "registration is closed")
	}
	if !cfg.InApp() {
		return NewValidationError("eventId", "this event registers through an external link")
	}

	ve := &ValidationError{}
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(strings.ToLower(r.Email))
	if r.Name == "" {
		ve.Add("name", "is required")
	}
	if r.Email == "" || !strings.Contains(r.Email, "@") {
		ve.Add("email", "must be a valid email")
	}

	// Only the event's declared fields are kept.
	custom := map[string]string{}
	for _, f := range cfg.Fields {
		v := strings.TrimSpace(r.CustomFields[f.Name])
		if v == "" {
			if f.Required {
				ve.Add("customFields."+f.Name, "is required")
			}
			continue
		}
		if f.Type == "select" && !contains(f.Options, v) {
			ve.Add("customFields."+f.Name, "must be one of "+strings.Join(f.Options, ", "))
			continue
		}
		custom[f.Name] = v
	}
	if len(custom) == 0 {
		custom = nil
	}
	r.CustomFields = custom

	r.TotalPrice = 0
	if event.Type == PostCulturalEvent {
		if len(r.Tickets) == 0 {
			ve.Add("tickets", "select at least one ticket")
		}
		for i := range r.Tickets {
			sel := &r.Tickets[i]
			price, ok := event.TicketPrice(sel.Type)
			if !ok {
				ve.Add(fmt.Sprintf("tickets[%d].type", i), "unknown ticket type")
				continue
			}
			if sel.Quantity < 1 {
				ve.Add(fmt.Sprintf("tickets[%d].quantity", i), "must be at least 1")
				continue
			}
			sel.Price = price
			r.TotalPrice += price * float64(sel.Quantity)
		}
	} else {
		r.Tickets = nil
		r.TotalPrice = event.Price
	}

	if err := ve.Err(); err != nil {
		return err
	}

	r.TransactionID = strings.TrimSpace(r.TransactionID)
	if r.TransactionID != "" {
		r.PaymentStatus = PaymentUnderReview
	} else {
		r.PaymentStatus = PaymentPending
	}
	r.EventID = event.ID
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
