package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"confique/cache"
	"confique/config"
	"confique/middleware"
	"confique/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type harness struct {
	t        *testing.T
	cfg      *config.Config
	auth     *middleware.Auth
	api      *API
	router   *gin.Engine
	posts    *fakePosts
	regs     *fakeRegs
	users    *fakeUsers
	notes    *fakeNotes
	push     *fakePush
	notifier *recordingNotifier
	media    *fakeMedia
	cache    *cache.MemoryCache
}

func newHarness(t *testing.T, tweak ...func(*Deps)) *harness {
	t.Helper()
	h := &harness{
		t: t,
		cfg: &config.Config{
			Env:                   "test",
			JWTSecret:             "jwt-secret",
			SessionSecret:         "session-secret",
			CronSecret:            "cron-secret",
			FrontendURL:           "http://localhost:5173",
			CacheTTL:              time.Minute,
			NotificationRetention: 30 * 24 * time.Hour,
			AdminEmails:           []string{"admin@confique.test"},
		},
		auth:     middleware.NewAuth("jwt-secret", time.Hour),
		posts:    newFakePosts(),
		regs:     &fakeRegs{},
		users:    newFakeUsers(),
		notes:    &fakeNotes{},
		push:     &fakePush{},
		notifier: &recordingNotifier{},
		media:    &fakeMedia{},
		cache:    cache.NewMemoryCache(time.Minute, 0),
	}
	t.Cleanup(func() { _ = h.cache.Close() })

	deps := Deps{
		Config:        h.cfg,
		Log:           zerolog.Nop(),
		Auth:          h.auth,
		Posts:         h.posts,
		Registrations: h.regs,
		Users:         h.users,
		Notifications: h.notes,
		Push:          h.push,
		Cache:         h.cache,
		Media:         h.media,
		Notifier:      h.notifier,
	}
	for _, fn := range tweak {
		fn(&deps)
	}
	h.api = New(deps)
	h.router = testRouter(h.api, h.auth, h.cfg.CronSecret)
	return h
}

// testRouter mirrors the production route table.
func testRouter(api *API, auth *middleware.Auth, cronSecret string) *gin.Engine {
	r := gin.New()
	required, optional := auth.Required(), auth.Optional()
	admin := middleware.RequireAdmin(api.IsAdmin)

	r.POST("/api/auth/signup", api.Signup)
	r.POST("/api/auth/login", api.Login)
	r.POST("/api/auth/google/credential", api.GoogleCredential)
	r.GET("/api/auth/google", api.GoogleLogin)
	r.GET("/api/auth/me", required, api.Me)

	r.GET("/api/posts", optional, api.ListPosts)
	r.GET("/api/posts/showcase/leaderboard", optional, api.ShowcaseLeaderboard)
	r.GET("/api/posts/registrations/counts", api.RegistrationCounts)
	r.GET("/api/posts/:id", optional, api.GetPost)
	r.POST("/api/posts/:id/view", api.ViewPost)
	r.POST("/api/posts", required, api.CreatePost)
	r.PUT("/api/posts/:id", required, api.UpdatePost)
	r.DELETE("/api/posts/:id", required, api.DeletePost)
	r.PATCH("/api/posts/:id/status", required, admin, api.UpdatePostStatus)
	r.POST("/api/posts/:id/like", required, api.LikePost)
	r.DELETE("/api/posts/:id/like", required, api.UnlikePost)
	r.POST("/api/posts/:id/upvote", required, api.UpvotePost)
	r.DELETE("/api/posts/:id/upvote", required, api.RemoveUpvote)
	r.POST("/api/posts/:id/comments", required, api.AddComment)
	r.DELETE("/api/posts/:id/comments/:commentId", required, api.DeleteComment)
	r.POST("/api/posts/:id/bookmark", required, api.BookmarkPost)
	r.POST("/api/posts/:id/report", required, api.ReportPost)
	r.POST("/api/posts/:id/register", required, api.RegisterForEvent)
	r.GET("/api/posts/:id/registrations", required, api.ListRegistrations)
	r.GET("/api/posts/:id/registrations/export", required, api.ExportRegistrations)
	r.PATCH("/api/posts/:id/registrations/:regId/payment", required, api.UpdatePaymentStatus)

	r.PUT("/api/users/me", required, api.UpdateMe)
	r.POST("/api/users/me/showcase-stats", required, api.RefreshShowcaseStats)
	r.GET("/api/users/me/bookmarks", required, api.MyBookmarks)
	r.GET("/api/users/me/upvoted", required, api.MyUpvoted)
	r.GET("/api/users/me/likes", required, api.MyLikes)
	r.GET("/api/users/me/registrations", required, api.MyRegistrations)
	r.GET("/api/users/:id", api.GetUser)

	r.GET("/api/notifications/vapid-key", api.VapidPublicKey)
	r.POST("/api/notifications/subscribe", required, api.Subscribe)
	r.GET("/api/notifications", required, api.ListNotifications)
	r.GET("/api/notifications/unread-count", required, api.UnreadCount)
	r.PATCH("/api/notifications/read-all", required, api.MarkAllNotificationsRead)
	r.PATCH("/api/notifications/:id/read", required, api.MarkNotificationRead)
	r.DELETE("/api/notifications/:id", required, api.DeleteNotification)
	r.DELETE("/api/notifications", required, api.DeleteAllNotifications)

	r.GET("/api/cron/cleanup-notifications", middleware.CronSecret(cronSecret), api.CleanupNotifications)
	return r
}

func (h *harness) user(name string, admin bool) *models.User {
	h.t.Helper()
	u := &models.User{
		Name:         name,
		Email:        name + "@confique.test",
		AuthProvider: "email",
		Avatar:       models.Avatar{URL: models.FallbackAvatar},
		IsAdmin:      admin,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(h.t, h.users.Create(context.Background(), u))
	return u
}

func (h *harness) seed(p *models.Post) *models.Post {
	h.t.Helper()
	if p.Status == "" {
		p.Status = models.StatusApproved
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Content == "" {
		p.Content = "seeded content"
	}
	models.ApplyTypeHygiene(p)
	require.NoError(h.t, h.posts.Create(context.Background(), p))
	return p
}

func (h *harness) stored(p *models.Post) *models.Post {
	h.t.Helper()
	got, err := h.posts.Get(context.Background(), p.ID)
	require.NoError(h.t, err)
	return got
}

func (h *harness) storedUser(u *models.User) *models.User {
	h.t.Helper()
	got, err := h.users.Get(context.Background(), u.ID)
	require.NoError(h.t, err)
	return got
}

// do sends a JSON request as u (anonymous when nil) and decodes an object
// response body.
func (h *harness) do(method, path string, body any, u *models.User) (*httptest.ResponseRecorder, map[string]any) {
	h.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if u != nil {
		token, err := h.auth.Issue(u.ID.Hex())
		require.NoError(h.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func eventPost(owner *models.User) *models.Post {
	start := time.Date(2026, 11, 20, 18, 0, 0, 0, time.UTC)
	return &models.Post{
		Type:         models.PostEvent,
		Title:        "Hack Night",
		Content:      "Bring a laptop",
		UserID:       owner.ID,
		Author:       owner.Snapshot(),
		Location:     "Lab 3",
		StartDate:    &start,
		Duration:     "3h",
		Price:        50,
		Registration: &models.RegistrationConfig{Open: true},
	}
}

func culturalPost(owner *models.User) *models.Post {
	return &models.Post{
		Type:     models.PostCulturalEvent,
		Title:    "Spring Fest",
		Content:  "Music and dance",
		UserID:   owner.ID,
		Author:   owner.Snapshot(),
		Location: "Main Lawn",
		TicketOptions: []models.TicketOption{
			{Type: "General", Price: 100},
			{Type: "VIP", Price: 250},
		},
		AvailableDates: []time.Time{time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)},
		Registration:   &models.RegistrationConfig{Open: true},
	}
}

func showcasePost(owner *models.User) *models.Post {
	return &models.Post{
		Type:    models.PostShowcase,
		Title:   "Campus Map",
		Content: "An indoor map of the campus",
		UserID:  owner.ID,
		Author:  owner.Snapshot(),
		Month:   models.MonthBucket(time.Now()),
	}
}
