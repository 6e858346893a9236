package client

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"confique/models"

	"golang.org/x/sync/errgroup"
)

const refreshLimit = 100

var ErrUnknownPost = errors.New("client: post not loaded")

// State holds the collections a front-end renders from and the views derived
// from them. Derived views are rebuilt lazily after the posts or the search
// term change.
type State struct {
	api *Client

	mu            sync.RWMutex
	posts         []Post
	counts        map[string]int
	notifications []models.Notification
	unread        int64
	liked         map[string]bool
	registered    map[string]bool
	search        string

	dirty    bool
	sections map[models.PostType][]Post
	top      map[models.PostType][]Post
}

func NewState(api *Client) *State {
	return &State{
		api:        api,
		counts:     map[string]int{},
		liked:      map[string]bool{},
		registered: map[string]bool{},
		dirty:      true,
	}
}

// Refresh reloads every collection. Per-user collections are only fetched
// while the client holds a token.
func (s *State) Refresh(ctx context.Context) error {
	var (
		posts      []Post
		counts     map[string]int
		notes      []models.Notification
		unread     int64
		liked      []string
		registered []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		posts, err = s.api.ListPosts(gctx, ListOptions{Limit: refreshLimit})
		return err
	})
	g.Go(func() (err error) {
		counts, err = s.api.RegistrationCounts(gctx)
		return err
	})
	if s.api.Authenticated() {
		g.Go(func() (err error) {
			notes, unread, err = s.api.Notifications(gctx)
			return err
		})
		g.Go(func() (err error) {
			liked, err = s.api.LikedPostIDs(gctx)
			return err
		})
		g.Go(func() (err error) {
			registered, err = s.api.RegisteredEventIDs(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = posts
	s.counts = counts
	s.notifications = notes
	s.unread = unread
	s.liked = toSet(liked)
	s.registered = toSet(registered)
	s.dirty = true
	return nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// SetSearch sets the term Section filters by. An unchanged term keeps the
// derived views.
func (s *State) SetSearch(term string) {
	term = strings.TrimSpace(term)
	s.mu.Lock()
	defer s.mu.Unlock()
	if term != s.search {
		s.search = term
		s.dirty = true
	}
}

// Section returns the posts of type t that match the search term, in feed
// order.
func (s *State) Section(t models.PostType) []Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.derive()
	return append([]Post(nil), s.sections[t]...)
}

// Top returns up to n posts of type t ranked by likes, or by upvotes for
// showcase posts. The search term does not apply.
func (s *State) Top(t models.PostType, n int) []Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.derive()
	top := s.top[t]
	if n >= 0 && n < len(top) {
		top = top[:n]
	}
	return append([]Post(nil), top...)
}

func (s *State) derive() {
	if !s.dirty {
		return
	}
	needle := strings.ToLower(s.search)
	s.sections = map[models.PostType][]Post{}
	s.top = map[models.PostType][]Post{}
	for _, p := range s.posts {
		s.top[p.Type] = append(s.top[p.Type], p)
		if needle == "" || matches(p, needle) {
			s.sections[p.Type] = append(s.sections[p.Type], p)
		}
	}
	for t, list := range s.top {
		score := func(p Post) int { return p.Likes }
		if t == models.PostShowcase {
			score = func(p Post) int { return p.Upvotes }
		}
		sort.SliceStable(list, func(i, j int) bool { return score(list[i]) > score(list[j]) })
	}
	s.dirty = false
}

func matches(p Post, needle string) bool {
	for _, field := range []string{p.Title, p.Content, p.Location} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func (s *State) Liked(postID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.liked[postID]
}

func (s *State) Registered(eventID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registered[eventID]
}

func (s *State) RegistrationCount(eventID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[eventID]
}

func (s *State) Notifications() ([]models.Notification, int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Notification(nil), s.notifications...), s.unread
}

// Post returns the loaded copy of a post.
func (s *State) Post(postID string) (Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(postID); i >= 0 {
		return s.posts[i], true
	}
	return Post{}, false
}

func (s *State) indexOf(postID string) int {
	for i := range s.posts {
		if s.posts[i].ID == postID {
			return i
		}
	}
	return -1
}

// mutate applies fn to the loaded post and invalidates derived views.
func (s *State) mutate(postID string, fn func(p *Post)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(postID)
	if i < 0 {
		return false
	}
	fn(&s.posts[i])
	s.dirty = true
	return true
}

// ToggleLike flips the like locally, then calls the server. A failed call
// leaves the local flip in place; a successful one adopts the server count.
func (s *State) ToggleLike(ctx context.Context, postID string) (bool, error) {
	var liked bool
	ok := s.mutate(postID, func(p *Post) {
		liked = !s.liked[postID]
		if liked {
			s.liked[postID] = true
			p.Likes++
		} else {
			delete(s.liked, postID)
			if p.Likes > 0 {
				p.Likes--
			}
		}
	})
	if !ok {
		return false, ErrUnknownPost
	}

	call := s.api.Unlike
	if liked {
		call = s.api.Like
	}
	likes, err := call(ctx, postID)
	if err != nil {
		return liked, err
	}
	s.mutate(postID, func(p *Post) { p.Likes = likes })
	return liked, nil
}

// AddComment bumps the local comment count, then calls the server. The bump
// is undone when the call fails.
func (s *State) AddComment(ctx context.Context, postID, text string) error {
	if !s.mutate(postID, func(p *Post) { p.CommentCount++ }) {
		return ErrUnknownPost
	}
	count, err := s.api.AddComment(ctx, postID, text)
	if err != nil {
		s.mutate(postID, func(p *Post) {
			if p.CommentCount > 0 {
				p.CommentCount--
			}
		})
		return err
	}
	s.mutate(postID, func(p *Post) { p.CommentCount = count })
	return nil
}
