package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type PostType string

const (
	PostConfession    PostType = "confession"
	PostEvent         PostType = "event"
	PostCulturalEvent PostType = "culturalEvent"
	PostNews          PostType = "news"
	PostShowcase      PostType = "showcase"
)

var PostTypes = []PostType{PostConfession, PostEvent, PostCulturalEvent, PostNews, PostShowcase}

func (t PostType) Valid() bool {
	for _, pt := range PostTypes {
		if t == pt {
			return true
		}
	}
	return false
}

// IsEvent reports whether the type carries the event field group.
func (t PostType) IsEvent() bool {
	return t == PostEvent || t == PostCulturalEvent
}

type PostStatus string

const (
	StatusPending  PostStatus = "pending"
	StatusApproved PostStatus = "approved"
	StatusRejected PostStatus = "rejected"
)

func (s PostStatus) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Author is the name/avatar snapshot taken when the post is written.
type Author struct {
	Name   string `bson:"name" json:"name"`
	Avatar string `bson:"avatar" json:"avatar"`
}

type Comment struct {
	ID           primitive.ObjectID `bson:"_id" json:"id"`
	UserID       primitive.ObjectID `bson:"userId" json:"userId"`
	Text         string             `bson:"text" json:"text"`
	AuthorName   string             `bson:"authorName" json:"authorName"`
	AuthorAvatar string             `bson:"authorAvatar" json:"authorAvatar"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
}

// ShowcaseComment references its author; name and avatar are populated on read.
type ShowcaseComment struct {
	ID        primitive.ObjectID `bson:"_id" json:"id"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Text      string             `bson:"text" json:"text"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

type FormField struct {
	Name     string   `bson:"name" json:"name"`
	Label    string   `bson:"label,omitempty" json:"label,omitempty"`
	Type     string   `bson:"type,omitempty" json:"type,omitempty"` // text, email, number, select
	Required bool     `bson:"required" json:"required"`
	Options  []string `bson:"options,omitempty" json:"options,omitempty"`
}

// RegistrationConfig holds either an external link or an in-app form, never both.
type RegistrationConfig struct {
	Open         bool        `bson:"open" json:"open"`
	ExternalLink string      `bson:"externalLink,omitempty" json:"externalLink,omitempty"`
	Fields       []FormField `bson:"fields,omitempty" json:"fields,omitempty"`
}

// InApp reports whether registrations are collected by this service.
func (r *RegistrationConfig) InApp() bool {
	return r != nil && r.ExternalLink == ""
}

// PaymentConfig holds either a payment link or a QR image, never both.
type PaymentConfig struct {
	Link      string `bson:"link,omitempty" json:"link,omitempty"`
	QRImage   string `bson:"qrImage,omitempty" json:"qrImage,omitempty"`
	QRImageID string `bson:"qrImageId,omitempty" json:"-"`
}

type TicketOption struct {
	Type  string  `bson:"type" json:"type"`
	Price float64 `bson:"price" json:"price"`
}

// Post is a tagged union over PostTypes. Field groups not owned by Type are
// kept empty by ApplyTypeHygiene and omitted from the stored document.
type Post struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Type         PostType           `bson:"type" json:"type"`
	Title        string             `bson:"title,omitempty" json:"title,omitempty"`
	Content      string             `bson:"content" json:"content"`
	Author       Author             `bson:"author" json:"author"`
	UserID       primitive.ObjectID `bson:"userId" json:"userId"`
	Status       PostStatus         `bson:"status" json:"status"`
	Images       []string           `bson:"images,omitempty" json:"images,omitempty"`
	ImageIDs     []string           `bson:"imageIds,omitempty" json:"-"`
	CommentCount int                `bson:"commentCount" json:"commentCount"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`

	// confession, event, culturalEvent, news
	Likes    int                  `bson:"likes,omitempty" json:"likes,omitempty"`
	LikedBy  []primitive.ObjectID `bson:"likedBy,omitempty" json:"likedBy,omitempty"`
	Comments []Comment            `bson:"comments,omitempty" json:"comments,omitempty"`

	// event, culturalEvent
	Location     string              `bson:"location,omitempty" json:"location,omitempty"`
	StartDate    *time.Time          `bson:"startDate,omitempty" json:"startDate,omitempty"`
	EndDate      *time.Time          `bson:"endDate,omitempty" json:"endDate,omitempty"`
	Duration     string              `bson:"duration,omitempty" json:"duration,omitempty"`
	Price        float64             `bson:"price,omitempty" json:"price,omitempty"`
	Registration *RegistrationConfig `bson:"registration,omitempty" json:"registration,omitempty"`
	Payment      *PaymentConfig      `bson:"payment,omitempty" json:"payment,omitempty"`

	// culturalEvent
	TicketOptions  []TicketOption `bson:"ticketOptions,omitempty" json:"ticketOptions,omitempty"`
	AvailableDates []time.Time    `bson:"availableDates,omitempty" json:"availableDates,omitempty"`

	// showcase
	Upvotes          int                  `bson:"upvotes,omitempty" json:"upvotes,omitempty"`
	Upvoters         []primitive.ObjectID `bson:"upvoters,omitempty" json:"upvoters,omitempty"`
	ShowcaseComments []ShowcaseComment    `bson:"showcaseComments,omitempty" json:"showcaseComments,omitempty"`
	Views            int                  `bson:"views,omitempty" json:"views,omitempty"`
	Month            string               `bson:"month,omitempty" json:"month,omitempty"`
	LaunchDate       string               `bson:"launchDate,omitempty" json:"launchDate,omitempty"`
}

// MonthBucket is the leaderboard bucket a showcase created at t belongs to.
func MonthBucket(t time.Time) string {
	return t.UTC().Format("2006-01")
}

func (p *Post) IsOwner(userID primitive.ObjectID) bool {
	return !userID.IsZero() && p.UserID == userID
}

// TicketPrice returns the configured price of a cultural event ticket type.
func (p *Post) TicketPrice(ticketType string) (float64, bool) {
	for _, opt := range p.TicketOptions {
		if opt.Type == ticketType {
			return opt.Price, true
		}
	}
	return 0, false
}
