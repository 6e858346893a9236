package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Avatar struct {
	URL      string `bson:"url" json:"url"`
	PublicID string `bson:"publicId,omitempty" json:"-"`
}

// ShowcaseStats is a cached aggregate over the user's showcase posts.
type ShowcaseStats struct {
	Posts       int       `bson:"posts" json:"posts"`
	Upvotes     int       `bson:"upvotes" json:"upvotes"`
	Comments    int       `bson:"comments" json:"comments"`
	Views       int       `bson:"views" json:"views"`
	RefreshedAt time.Time `bson:"refreshedAt" json:"refreshedAt"`
}

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash *string            `bson:"passwordHash,omitempty" json:"-"`
	GoogleID     *string            `bson:"googleId,omitempty" json:"-"`
	AuthProvider string             `bson:"authProvider" json:"authProvider"`
	Avatar       Avatar             `bson:"avatar" json:"avatar"`
	IsAdmin      bool               `bson:"isAdmin" json:"isAdmin"`

	ShowcaseStats   ShowcaseStats        `bson:"showcaseStats" json:"showcaseStats"`
	UpvotedPosts    []primitive.ObjectID `bson:"upvotedPosts,omitempty" json:"upvotedPosts,omitempty"`
	BookmarkedPosts []primitive.ObjectID `bson:"bookmarkedPosts,omitempty" json:"bookmarkedPosts,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	LastSeen  time.Time `bson:"lastSeen" json:"lastSeen"`
}

// UserSummary is the populated form of a user reference.
type UserSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{
		ID:     u.ID.Hex(),
		Name:   u.Name,
		Avatar: NormalizeAvatarURL(u.Avatar.URL),
	}
}

// Snapshot is the author copy stored on posts and comments.
func (u *User) Snapshot() Author {
	return Author{Name: u.Name, Avatar: NormalizeAvatarURL(u.Avatar.URL)}
}

// CanEdit reports whether the user may modify a resource owned by ownerID.
func (u *User) CanEdit(ownerID primitive.ObjectID) bool {
	return u.IsAdmin || (!u.ID.IsZero() && u.ID == ownerID)
}
