// Package store holds the MongoDB repositories. Every mutation is a single
// document write; there is no optimistic concurrency control, so concurrent
// load-modify-save sequences on one document resolve last-write-wins.
package store

import (
	"errors"
	"fmt"

	"confique/database"

	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrDuplicate = errors.New("duplicate document")
)

// translate maps driver errors onto the package sentinels.
func translate(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", op, ErrDuplicate)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// Stores bundles the repositories built over one database.
type Stores struct {
	Posts         *PostStore
	Registrations *RegistrationStore
	Users         *UserStore
	Notifications *NotificationStore
	Push          *PushStore
}

func New(db *database.DB) *Stores {
	return &Stores{
		Posts:         &PostStore{coll: db.Posts},
		Registrations: &RegistrationStore{coll: db.Registrations},
		Users:         &UserStore{coll: db.Users},
		Notifications: &NotificationStore{coll: db.Notifications},
		Push:          &PushStore{coll: db.PushSubscriptions},
	}
}
