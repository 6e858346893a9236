package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Rule violations on engagement actions. All are client errors.
var (
	ErrAlreadyLiked     = errors.New("post already liked")
	ErrNotLiked         = errors.New("post is not liked")
	ErrLikesUnsupported = errors.New("showcase posts use upvotes instead of likes")
	ErrNotShowcase      = errors.New("only showcase posts can be upvoted or bookmarked")
	ErrSelfUpvote       = errors.New("you cannot upvote your own post")
	ErrNotUpvoted       = errors.New("post is not upvoted")
	ErrCommentNotFound  = errors.New("comment not found")
)

// Like adds userID to the post's likers.
func Like(p *Post, userID primitive.ObjectID) error {
	if p.Type == PostShowcase {
		return ErrLikesUnsupported
	}
	if indexOf(p.LikedBy, userID) >= 0 {
		return ErrAlreadyLiked
	}
	p.LikedBy = append(p.LikedBy, userID)
	p.Likes = len(p.LikedBy)
	return nil
}

func Unlike(p *Post, userID primitive.ObjectID) error {
	if p.Type == PostShowcase {
		return ErrLikesUnsupported
	}
	i := indexOf(p.LikedBy, userID)
	if i < 0 {
		return ErrNotLiked
	}
	p.LikedBy = removeAt(p.LikedBy, i)
	p.Likes = len(p.LikedBy)
	return nil
}

// ToggleUpvote adds userID to the upvoters, or removes it when already
// present. It reports whether the call added an upvote.
func ToggleUpvote(p *Post, userID primitive.ObjectID) (bool, error) {
	if p.Type != PostShowcase {
		return false, ErrNotShowcase
	}
	if p.IsOwner(userID) {
		return false, ErrSelfUpvote
	}
	if i := indexOf(p.Upvoters, userID); i >= 0 {
		p.Upvoters = removeAt(p.Upvoters, i)
		p.Upvotes = len(p.Upvoters)
		return false, nil
	}
	p.Upvoters = append(p.Upvoters, userID)
	p.Upvotes = len(p.Upvoters)
	return true, nil
}

func RemoveUpvote(p *Post, userID primitive.ObjectID) error {
	if p.Type != PostShowcase {
		return ErrNotShowcase
	}
	i := indexOf(p.Upvoters, userID)
	if i < 0 {
		return ErrNotUpvoted
	}
	p.Upvoters = removeAt(p.Upvoters, i)
	p.Upvotes = len(p.Upvoters)
	return nil
}

// AddComment appends a comment by author to the list matching the post's
// type and recomputes CommentCount. It returns the new comment's id.
func AddComment(p *Post, author *User, text string, now time.Time) primitive.ObjectID {
	id := primitive.NewObjectID()
	if p.Type == PostShowcase {
		p.ShowcaseComments = append(p.ShowcaseComments, ShowcaseComment{
			ID:        id,
			UserID:    author.ID,
			Text:      text,
			CreatedAt: now,
		})
		p.CommentCount = len(p.ShowcaseComments)
		return id
	}
	snap := author.Snapshot()
	p.Comments = append(p.Comments, Comment{
		ID:           id,
		UserID:       author.ID,
		Text:         text,
		AuthorName:   snap.Name,
		AuthorAvatar: snap.Avatar,
		CreatedAt:    now,
	})
	p.CommentCount = len(p.Comments)
	return id
}

// RemoveComment deletes commentID and returns the id of its author.
func RemoveComment(p *Post, commentID primitive.ObjectID) (primitive.ObjectID, error) {
	if p.Type == PostShowcase {
		for i, c := range p.ShowcaseComments {
			if c.ID == commentID {
				p.ShowcaseComments = append(p.ShowcaseComments[:i], p.ShowcaseComments[i+1:]...)
				p.CommentCount = len(p.ShowcaseComments)
				return c.UserID, nil
			}
		}
		return primitive.NilObjectID, ErrCommentNotFound
	}
	for i, c := range p.Comments {
		if c.ID == commentID {
			p.Comments = append(p.Comments[:i], p.Comments[i+1:]...)
			p.CommentCount = len(p.Comments)
			return c.UserID, nil
		}
	}
	return primitive.NilObjectID, ErrCommentNotFound
}

// ToggleID adds id to list or removes it when present, reporting whether
// it was added.
func ToggleID(list []primitive.ObjectID, id primitive.ObjectID) ([]primitive.ObjectID, bool) {
	if i := indexOf(list, id); i >= 0 {
		return removeAt(list, i), false
	}
	return append(list, id), true
}

// ContainsID reports whether id is in list.
func ContainsID(list []primitive.ObjectID, id primitive.ObjectID) bool {
	return indexOf(list, id) >= 0
}

func indexOf(list []primitive.ObjectID, id primitive.ObjectID) int {
	for i, v := range list {
		if v == id {
			return i
		}
	}
	return -1
}

func removeAt(list []primitive.ObjectID, i int) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(list)-1)
	out = append(out, list[:i]...)
	return append(out, list[i+1:]...)
}
