// Package client is a typed HTTP client for the confique API plus a local
// state aggregator that front-ends and the feed command build views from.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"confique/models"
)

const (
	defaultTimeout = 15 * time.Second
	maxErrorBody   = 4 << 10
)

// Post is the subset of a post projection the client works with.
type Post struct {
	ID           string            `json:"id"`
	Type         models.PostType   `json:"type"`
	Status       models.PostStatus `json:"status"`
	Title        string            `json:"title"`
	Content      string            `json:"content"`
	Location     string            `json:"location"`
	UserID       string            `json:"userId"`
	Likes        int               `json:"likes"`
	Upvotes      int               `json:"upvotes"`
	CommentCount int               `json:"commentCount"`
	Views        int               `json:"views"`
	Author       models.Author     `json:"author"`
	CreatedAt    time.Time         `json:"createdAt"`
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
	Code    string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("confique: %d %s (%s)", e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("confique: %d %s", e.Status, e.Message)
}

// Client talks to one API base URL. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.RWMutex
	token string

	// OnUnauthorized runs after a 401 response has cleared the token.
	OnUnauthorized func()
}

// New returns a client for baseURL such as "http://localhost:8080". A nil
// httpClient gets a default with a 15s timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Authenticated reports whether a token is held.
func (c *Client) Authenticated() bool {
	return c.Token() != ""
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := decodeError(resp)
		if resp.StatusCode == http.StatusUnauthorized {
			c.SetToken("")
			if c.OnUnauthorized != nil {
				c.OnUnauthorized()
			}
		}
		return apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Error  string            `json:"error"`
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		if payload.Error != "" {
			apiErr.Message = payload.Error
		}
		apiErr.Code = payload.Code
		apiErr.Fields = payload.Fields
	}
	return apiErr
}

// ListOptions narrows ListPosts; zero values are omitted.
type ListOptions struct {
	Type   models.PostType
	Search string
	Sort   string
	Limit  int
}

func (c *Client) ListPosts(ctx context.Context, opts ListOptions) ([]Post, error) {
	q := url.Values{}
	if opts.Type != "" {
		q.Set("type", string(opts.Type))
	}
	if opts.Search != "" {
		q.Set("search", opts.Search)
	}
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	path := "/api/posts"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Posts []Post `json:"posts"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Posts, nil
}

// RegistrationCounts returns registrations per event id. No ids means every
// event.
func (c *Client) RegistrationCounts(ctx context.Context, eventIDs ...string) (map[string]int, error) {
	path := "/api/posts/registrations/counts"
	if len(eventIDs) > 0 {
		path += "?" + url.Values{"ids": {strings.Join(eventIDs, ",")}}.Encode()
	}
	out := map[string]int{}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Notifications(ctx context.Context) ([]models.Notification, int64, error) {
	var out struct {
		Notifications []models.Notification `json:"notifications"`
		UnreadCount   int64                 `json:"unreadCount"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/notifications", nil, &out); err != nil {
		return nil, 0, err
	}
	return out.Notifications, out.UnreadCount, nil
}

func (c *Client) LikedPostIDs(ctx context.Context) ([]string, error) {
	var out struct {
		PostIDs []string `json:"postIds"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/users/me/likes", nil, &out); err != nil {
		return nil, err
	}
	return out.PostIDs, nil
}

func (c *Client) RegisteredEventIDs(ctx context.Context) ([]string, error) {
	var out struct {
		EventIDs []string `json:"eventIds"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/users/me/registrations", nil, &out); err != nil {
		return nil, err
	}
	return out.EventIDs, nil
}

// Like likes a post and returns the new like count.
func (c *Client) Like(ctx context.Context, postID string) (int, error) {
	return c.like(ctx, http.MethodPost, postID)
}

// Unlike removes a like and returns the new like count.
func (c *Client) Unlike(ctx context.Context, postID string) (int, error) {
	return c.like(ctx, http.MethodDelete, postID)
}

func (c *Client) like(ctx context.Context, method, postID string) (int, error) {
	var out struct {
		Likes int `json:"likes"`
	}
	if err := c.do(ctx, method, "/api/posts/"+url.PathEscape(postID)+"/like", nil, &out); err != nil {
		return 0, err
	}
	return out.Likes, nil
}

// AddComment posts a comment and returns the post's new comment count.
func (c *Client) AddComment(ctx context.Context, postID, text string) (int, error) {
	var out struct {
		CommentCount int `json:"commentCount"`
	}
	body := map[string]string{"text": text}
	if err := c.do(ctx, http.MethodPost, "/api/posts/"+url.PathEscape(postID)+"/comments", body, &out); err != nil {
		return 0, err
	}
	return out.CommentCount, nil
}
