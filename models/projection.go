package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PostView is the client-facing projection of a Post.
type PostView map[string]any

type PopulatedComment struct {
	ID        string      `json:"id"`
	Text      string      `json:"text"`
	CreatedAt string      `json:"createdAt"`
	User      UserSummary `json:"user"`
}

// PopulationIDs returns the user ids Project needs resolved for p. Only
// showcase posts reference users that are not denormalized.
func PopulationIDs(p *Post) []primitive.ObjectID {
	if p.Type != PostShowcase {
		return nil
	}
	seen := map[primitive.ObjectID]bool{}
	var ids []primitive.ObjectID
	add := func(id primitive.ObjectID) {
		if !id.IsZero() && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, id := range p.Upvoters {
		add(id)
	}
	for _, c := range p.ShowcaseComments {
		add(c.UserID)
	}
	return ids
}

// Project builds the view of p for its type. users resolves the ids named by
// PopulationIDs; missing entries fall back to a placeholder user.
func Project(p *Post, users map[primitive.ObjectID]UserSummary) PostView {
	v := PostView{
		"id":           p.ID.Hex(),
		"type":         p.Type,
		"content":      p.Content,
		"author":       Author{Name: p.Author.Name, Avatar: NormalizeAvatarURL(p.Author.Avatar)},
		"userId":       p.UserID.Hex(),
		"status":       p.Status,
		"commentCount": p.CommentCount,
		"createdAt":    p.CreatedAt,
	}
	if p.Title != "" {
		v["title"] = p.Title
	}
	if len(p.Images) > 0 {
		v["images"] = p.Images
	}
	if !p.UpdatedAt.IsZero() {
		v["updatedAt"] = p.UpdatedAt
	}

	for _, g := range OwnedGroups(p.Type) {
		switch g {
		case GroupEngagement:
			projectEngagement(p, v)
		case GroupEvent:
			projectEvent(p, v)
		case GroupCultural:
			v["ticketOptions"] = nonNil(p.TicketOptions)
			v["availableDates"] = p.AvailableDates
		case GroupShowcase:
			projectShowcase(p, v, users)
		}
	}
	return v
}

func projectEngagement(p *Post, v PostView) {
	v["likes"] = len(p.LikedBy)
	v["comments"] = nonNil(p.Comments)
	v["commentCount"] = len(p.Comments)
}

func projectEvent(p *Post, v PostView) {
	v["location"] = p.Location
	v["price"] = p.Price
	if p.StartDate != nil {
		v["startDate"] = *p.StartDate
	}
	if p.EndDate != nil {
		v["endDate"] = *p.EndDate
	}
	if p.Duration != "" {
		v["duration"] = p.Duration
	}
	if p.Registration != nil {
		v["registration"] = p.Registration
	}
	if p.Payment != nil {
		v["payment"] = p.Payment
	}
}

func projectShowcase(p *Post, v PostView, users map[primitive.ObjectID]UserSummary) {
	upvoters := make([]UserSummary, 0, len(p.Upvoters))
	for _, id := range p.Upvoters {
		upvoters = append(upvoters, lookupUser(users, id))
	}
	comments := make([]PopulatedComment, 0, len(p.ShowcaseComments))
	for _, c := range p.ShowcaseComments {
		comments = append(comments, PopulatedComment{
			ID:        c.ID.Hex(),
			Text:      c.Text,
			CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
			User:      lookupUser(users, c.UserID),
		})
	}

	v["upvotes"] = len(p.Upvoters)
	v["upvoters"] = upvoters
	v["showcaseComments"] = comments
	v["comments"] = comments
	v["commentCount"] = len(comments)
	v["views"] = p.Views
	v["month"] = p.Month
	if p.LaunchDate != "" {
		v["launchDate"] = p.LaunchDate
	}
}

func lookupUser(users map[primitive.ObjectID]UserSummary, id primitive.ObjectID) UserSummary {
	if u, ok := users[id]; ok {
		return u
	}
	return UserSummary{ID: id.Hex(), Name: "Unknown User", Avatar: FallbackAvatar}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Decorate adds the viewer-specific flags to a view. A nil viewer leaves the
// view untouched.
func (v PostView) Decorate(p *Post, viewer *User) PostView {
	if viewer == nil {
		return v
	}
	out := make(PostView, len(v)+3)
	for k, val := range v {
		out[k] = val
	}
	if p.Type == PostShowcase {
		out["upvoted"] = ContainsID(p.Upvoters, viewer.ID)
		out["bookmarked"] = ContainsID(viewer.BookmarkedPosts, p.ID)
	} else {
		out["liked"] = ContainsID(p.LikedBy, viewer.ID)
	}
	return out
}
