package handlers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"confique/media"
	"confique/models"
	"confique/notify"
	"confique/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// clone round-trips v through BSON so fakes never share slices with callers,
// as a real collection would not.
func clone[T any](v *T) *T {
	raw, err := bson.Marshal(v)
	if err != nil {
		panic(err)
	}
	out := new(T)
	if err := bson.Unmarshal(raw, out); err != nil {
		panic(err)
	}
	return out
}

type fakePosts struct {
	mu         sync.Mutex
	docs       map[primitive.ObjectID]*models.Post
	replaceErr error
}

func newFakePosts() *fakePosts {
	return &fakePosts{docs: map[primitive.ObjectID]*models.Post{}}
}

func (f *fakePosts) Create(_ context.Context, p *models.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	f.docs[p.ID] = clone(p)
	return nil
}

func (f *fakePosts) Get(_ context.Context, id primitive.ObjectID) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.docs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(p), nil
}

func (f *fakePosts) Replace(_ context.Context, p *models.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return f.replaceErr
	}
	if _, ok := f.docs[p.ID]; !ok {
		return store.ErrNotFound
	}
	f.docs[p.ID] = clone(p)
	return nil
}

func (f *fakePosts) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.docs, id)
	return nil
}

func (f *fakePosts) List(_ context.Context, filter store.PostFilter) ([]models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Post
	for _, p := range f.docs {
		if filter.Type != "" && p.Type != filter.Type {
			continue
		}
		if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, p.Status) {
			continue
		}
		if !filter.UserID.IsZero() && p.UserID != filter.UserID {
			continue
		}
		if !filter.LikedBy.IsZero() && !models.ContainsID(p.LikedBy, filter.LikedBy) {
			continue
		}
		if filter.IDs != nil && !models.ContainsID(filter.IDs, p.ID) {
			continue
		}
		if filter.Month != "" && p.Month != filter.Month {
			continue
		}
		if s := strings.ToLower(filter.Search); s != "" &&
			!strings.Contains(strings.ToLower(p.Title+" "+p.Content+" "+p.Location), s) {
			continue
		}
		out = append(out, *clone(p))
	}
	sort.Slice(out, func(i, j int) bool {
		switch filter.Sort {
		case store.SortUpvotes:
			if out[i].Upvotes != out[j].Upvotes {
				return out[i].Upvotes > out[j].Upvotes
			}
		case store.SortLikes:
			if out[i].Likes != out[j].Likes {
				return out[i].Likes > out[j].Likes
			}
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && int64(len(out)) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func hasStatus(list []models.PostStatus, s models.PostStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (f *fakePosts) IncrementViews(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.docs[id]
	if !ok || p.Type != models.PostShowcase || p.Status != models.StatusApproved {
		return store.ErrNotFound
	}
	p.Views++
	return nil
}

func (f *fakePosts) ShowcaseStats(_ context.Context, userID primitive.ObjectID) (models.ShowcaseStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var st models.ShowcaseStats
	for _, p := range f.docs {
		if p.Type != models.PostShowcase || p.UserID != userID {
			continue
		}
		st.Posts++
		st.Upvotes += p.Upvotes
		st.Comments += p.CommentCount
		st.Views += p.Views
	}
	st.RefreshedAt = time.Now().UTC()
	return st, nil
}

type fakeRegs struct {
	mu   sync.Mutex
	docs []*models.Registration
}

func (f *fakeRegs) Create(_ context.Context, r *models.Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d.EventID == r.EventID && d.UserID == r.UserID {
			return fmt.Errorf("insert registration: %w", store.ErrDuplicate)
		}
	}
	r.ID = primitive.NewObjectID()
	f.docs = append(f.docs, clone(r))
	return nil
}

func (f *fakeRegs) Get(_ context.Context, id primitive.ObjectID) (*models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d.ID == id {
			return clone(d), nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeRegs) Exists(_ context.Context, eventID, userID primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d.EventID == eventID && d.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRegs) filter(keep func(*models.Registration) bool) []models.Registration {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Registration
	for _, d := range f.docs {
		if keep(d) {
			out = append(out, *clone(d))
		}
	}
	return out
}

func (f *fakeRegs) ListByEvent(_ context.Context, eventID primitive.ObjectID) ([]models.Registration, error) {
	return f.filter(func(r *models.Registration) bool { return r.EventID == eventID }), nil
}

func (f *fakeRegs) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.Registration, error) {
	return f.filter(func(r *models.Registration) bool { return r.UserID == userID }), nil
}

func (f *fakeRegs) CountByEvent(_ context.Context, eventIDs []primitive.ObjectID) (map[string]int, error) {
	counts := map[string]int{}
	for _, r := range f.filter(func(r *models.Registration) bool {
		return eventIDs == nil || models.ContainsID(eventIDs, r.EventID)
	}) {
		counts[r.EventID.Hex()]++
	}
	return counts, nil
}

func (f *fakeRegs) UpdatePaymentStatus(_ context.Context, id primitive.ObjectID, status models.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d.ID == id {
			d.PaymentStatus = status
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeRegs) DeleteByEvent(_ context.Context, eventID primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*models.Registration
	var n int64
	for _, d := range f.docs {
		if d.EventID == eventID {
			n++
			continue
		}
		kept = append(kept, d)
	}
	f.docs = kept
	return n, nil
}

type fakeUsers struct {
	mu   sync.Mutex
	docs map[primitive.ObjectID]*models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{docs: map[primitive.ObjectID]*models.User{}}
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, d := range f.docs {
		if d.Email == u.Email {
			return fmt.Errorf("insert user: %w", store.ErrDuplicate)
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	f.docs[u.ID] = clone(u)
	return nil
}

func (f *fakeUsers) Get(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.docs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(u), nil
}

func (f *fakeUsers) find(match func(*models.User) bool) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.docs {
		if match(u) {
			return clone(u), nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return f.find(func(u *models.User) bool { return u.Email == email })
}

func (f *fakeUsers) GetByGoogleID(_ context.Context, googleID string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.GoogleID != nil && *u.GoogleID == googleID })
}

func (f *fakeUsers) FindByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[primitive.ObjectID]models.User{}
	for _, id := range ids {
		if u, ok := f.docs[id]; ok {
			out[id] = *clone(u)
		}
	}
	return out, nil
}

func (f *fakeUsers) ListAdmins(_ context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	admins := []models.User{}
	for _, u := range f.docs {
		if u.IsAdmin {
			admins = append(admins, *clone(u))
		}
	}
	return admins, nil
}

func (f *fakeUsers) Replace(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[u.ID]; !ok {
		return store.ErrNotFound
	}
	f.docs[u.ID] = clone(u)
	return nil
}

func (f *fakeUsers) Touch(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.docs[id]; ok {
		u.LastSeen = time.Now().UTC()
	}
	return nil
}

func (f *fakeUsers) SetShowcaseStats(_ context.Context, id primitive.ObjectID, stats models.ShowcaseStats) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.docs[id]
	if !ok {
		return store.ErrNotFound
	}
	u.ShowcaseStats = stats
	return nil
}

func (f *fakeUsers) SetPostRef(_ context.Context, userID primitive.ObjectID, list string, postID primitive.ObjectID, present bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.docs[userID]
	if !ok {
		return nil
	}
	ref := &u.UpvotedPosts
	if list == store.RefBookmarked {
		ref = &u.BookmarkedPosts
	}
	has := models.ContainsID(*ref, postID)
	if present != has {
		*ref, _ = models.ToggleID(*ref, postID)
	}
	return nil
}

func (f *fakeUsers) PullPostRefs(_ context.Context, postID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.docs {
		if models.ContainsID(u.UpvotedPosts, postID) {
			u.UpvotedPosts, _ = models.ToggleID(u.UpvotedPosts, postID)
		}
		if models.ContainsID(u.BookmarkedPosts, postID) {
			u.BookmarkedPosts, _ = models.ToggleID(u.BookmarkedPosts, postID)
		}
	}
	return nil
}

type fakeNotes struct {
	mu   sync.Mutex
	docs []*models.Notification
}

func (f *fakeNotes) add(n models.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	f.docs = append(f.docs, &n)
}

func (f *fakeNotes) ListForUser(_ context.Context, userID primitive.ObjectID, limit int64) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Notification
	for i := len(f.docs) - 1; i >= 0 && (limit <= 0 || int64(len(out)) < limit); i-- {
		if f.docs[i].Recipient == userID {
			out = append(out, *f.docs[i])
		}
	}
	return out, nil
}

func (f *fakeNotes) UnreadCount(_ context.Context, userID primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, d := range f.docs {
		if d.Recipient == userID && !d.Read {
			n++
		}
	}
	return n, nil
}

func (f *fakeNotes) MarkRead(_ context.Context, id, userID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d.ID == id && d.Recipient == userID {
			now := time.Now().UTC()
			d.Read, d.ReadAt = true, &now
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeNotes) MarkAllRead(_ context.Context, userID primitive.ObjectID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, d := range f.docs {
		if d.Recipient == userID && !d.Read {
			d.Read = true
			n++
		}
	}
	return n, nil
}

func (f *fakeNotes) deleteWhere(match func(*models.Notification) bool) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*models.Notification
	var n int64
	for _, d := range f.docs {
		if match(d) {
			n++
			continue
		}
		kept = append(kept, d)
	}
	f.docs = kept
	return n
}

func (f *fakeNotes) Delete(_ context.Context, id, userID primitive.ObjectID) error {
	if f.deleteWhere(func(n *models.Notification) bool { return n.ID == id && n.Recipient == userID }) == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (f *fakeNotes) DeleteAllForUser(_ context.Context, userID primitive.ObjectID) (int64, error) {
	return f.deleteWhere(func(n *models.Notification) bool { return n.Recipient == userID }), nil
}

func (f *fakeNotes) DeleteByPost(_ context.Context, postID primitive.ObjectID) (int64, error) {
	return f.deleteWhere(func(n *models.Notification) bool { return n.Post != nil && *n.Post == postID }), nil
}

func (f *fakeNotes) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	return f.deleteWhere(func(n *models.Notification) bool { return n.CreatedAt.Before(cutoff) }), nil
}

func (f *fakeNotes) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.docs)
}

type fakePush struct {
	saved []models.PushSubscription
}

func (f *fakePush) Save(_ context.Context, sub *models.PushSubscription) error {
	f.saved = append(f.saved, *sub)
	return nil
}

// recordingNotifier captures notes instead of dispatching them.
type recordingNotifier struct {
	mu    sync.Mutex
	notes []notify.Note
}

func (r *recordingNotifier) Notify(_ context.Context, n notify.Note) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recordingNotifier) ofType(t models.NotificationType) []notify.Note {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Note
	for _, n := range r.notes {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

type fakeMedia struct {
	mu        sync.Mutex
	n         int
	failAfter int
	destroyed []string
}

var errUploadRefused = errors.New("upload refused")

func (f *fakeMedia) Upload(_ context.Context, _ string, folder string) (media.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAfter > 0 && f.n >= f.failAfter {
		return media.Asset{}, errUploadRefused
	}
	f.n++
	id := fmt.Sprintf("%s/asset-%d", folder, f.n)
	return media.Asset{URL: "https://res.cloudinary.test/" + id + ".jpg", PublicID: id}, nil
}

func (f *fakeMedia) Destroy(_ context.Context, publicID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed = append(f.destroyed, publicID)
	return nil
}
