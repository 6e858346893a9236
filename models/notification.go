package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type NotificationType string

const (
	NotifyReport       NotificationType = "report"
	NotifyUpvote       NotificationType = "upvote"
	NotifyComment      NotificationType = "comment"
	NotifyLike         NotificationType = "like"
	NotifyRegistration NotificationType = "registration"
	NotifyStatus       NotificationType = "status"
	NotifyPayment      NotificationType = "payment"
	NotifySystem       NotificationType = "system"
)

type Notification struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Recipient primitive.ObjectID  `bson:"recipient" json:"recipient"`
	Message   string              `bson:"message" json:"message"`
	Type      NotificationType    `bson:"type" json:"type"`
	Read      bool                `bson:"read" json:"read"`
	ReadAt    *time.Time          `bson:"readAt,omitempty" json:"readAt,omitempty"`
	Post      *primitive.ObjectID `bson:"post,omitempty" json:"post,omitempty"`
	Actor     *primitive.ObjectID `bson:"actor,omitempty" json:"actor,omitempty"`
	CreatedAt time.Time           `bson:"createdAt" json:"createdAt"`
}

// PushSubscription is a Web Push endpoint registered by a browser.
type PushSubscription struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Endpoint  string             `bson:"endpoint" json:"endpoint"`
	P256dh    string             `bson:"p256dh" json:"p256dh"`
	Auth      string             `bson:"auth" json:"auth"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
