package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"confique/cache"
	"confique/config"
	"confique/media"
	"confique/middleware"
	"confique/models"
	"confique/notify"
	"confique/store"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/oauth2"
	"google.golang.org/api/idtoken"
)

const (
	requestTimeout = 10 * time.Second
	uploadTimeout  = 30 * time.Second
)

type PostStore interface {
	Create(ctx context.Context, p *models.Post) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Post, error)
	Replace(ctx context.Context, p *models.Post) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	List(ctx context.Context, f store.PostFilter) ([]models.Post, error)
	IncrementViews(ctx context.Context, id primitive.ObjectID) error
	ShowcaseStats(ctx context.Context, userID primitive.ObjectID) (models.ShowcaseStats, error)
}

type RegistrationStore interface {
	Create(ctx context.Context, r *models.Registration) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Registration, error)
	Exists(ctx context.Context, eventID, userID primitive.ObjectID) (bool, error)
	ListByEvent(ctx context.Context, eventID primitive.ObjectID) ([]models.Registration, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Registration, error)
	CountByEvent(ctx context.Context, eventIDs []primitive.ObjectID) (map[string]int, error)
	UpdatePaymentStatus(ctx context.Context, id primitive.ObjectID, status models.PaymentStatus) error
	DeleteByEvent(ctx context.Context, eventID primitive.ObjectID) (int64, error)
}

type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error)
	ListAdmins(ctx context.Context) ([]models.User, error)
	Replace(ctx context.Context, u *models.User) error
	Touch(ctx context.Context, id primitive.ObjectID) error
	SetShowcaseStats(ctx context.Context, id primitive.ObjectID, stats models.ShowcaseStats) error
	SetPostRef(ctx context.Context, userID primitive.ObjectID, list string, postID primitive.ObjectID, present bool) error
	PullPostRefs(ctx context.Context, postID primitive.ObjectID) error
}

type NotificationStore interface {
	ListForUser(ctx context.Context, userID primitive.ObjectID, limit int64) ([]models.Notification, error)
	UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error)
	MarkRead(ctx context.Context, id, userID primitive.ObjectID) error
	MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int64, error)
	Delete(ctx context.Context, id, userID primitive.ObjectID) error
	DeleteAllForUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
	DeleteByPost(ctx context.Context, postID primitive.ObjectID) (int64, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type PushStore interface {
	Save(ctx context.Context, sub *models.PushSubscription) error
}

type Notifier interface {
	Notify(ctx context.Context, n notify.Note)
}

// IDTokenVerifier checks a Google Identity Services credential.
type IDTokenVerifier func(ctx context.Context, credential, audience string) (*idtoken.Payload, error)

// Deps wires the API to its collaborators.
type Deps struct {
	Config        *config.Config
	Log           zerolog.Logger
	Auth          *middleware.Auth
	Posts         PostStore
	Registrations RegistrationStore
	Users         UserStore
	Notifications NotificationStore
	Push          PushStore
	Cache         cache.Cache
	Media         media.Store
	Notifier      Notifier
	VerifyIDToken IDTokenVerifier
}

// API holds the HTTP handlers. Each handler bounds its store calls with a
// per-request timeout.
type API struct {
	cfg      *config.Config
	log      zerolog.Logger
	auth     *middleware.Auth
	posts    PostStore
	regs     RegistrationStore
	users    UserStore
	notes    NotificationStore
	push     PushStore
	cache    cache.Cache
	media    media.Store
	notifier Notifier
	google   *oauth2.Config
	verifyID IDTokenVerifier
	now      func() time.Time
}

func New(d Deps) *API {
	RegisterValidators()
	a := &API{
		cfg:      d.Config,
		log:      d.Log,
		auth:     d.Auth,
		posts:    d.Posts,
		regs:     d.Registrations,
		users:    d.Users,
		notes:    d.Notifications,
		push:     d.Push,
		cache:    d.Cache,
		media:    d.Media,
		notifier: d.Notifier,
		verifyID: d.VerifyIDToken,
		now:      time.Now,
	}
	if a.media == nil {
		a.media = media.Disabled{}
	}
	if a.verifyID == nil {
		a.verifyID = idtoken.Validate
	}
	if d.Config.GoogleEnabled() {
		a.google = googleOAuthConfig(d.Config)
	}
	return a
}

func (a *API) reqCtx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

func (a *API) uploadCtx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), uploadTimeout)
}

// callerID returns the authenticated user id set by the auth middleware.
func callerID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.GetString(middleware.ContextUserID))
	return id, err == nil
}

// loadCaller fetches the authenticated user, writing a 401 when the token
// names an unknown or malformed id.
func (a *API) loadCaller(ctx context.Context, c *gin.Context) (*models.User, bool) {
	id, ok := callerID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user ID", "code": middleware.CodeTokenInvalid})
		return nil, false
	}
	u, err := a.users.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found", "code": middleware.CodeTokenInvalid})
		return nil, false
	}
	if err != nil {
		a.fail(c, err)
		return nil, false
	}
	return u, true
}

// viewer returns the caller when the request is authenticated, nil otherwise.
func (a *API) viewer(ctx context.Context, c *gin.Context) *models.User {
	id, ok := callerID(c)
	if !ok {
		return nil
	}
	u, err := a.users.Get(ctx, id)
	if err != nil {
		return nil
	}
	return u
}

func paramID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return primitive.NilObjectID, false
	}
	return id, true
}

func (a *API) loadPost(ctx context.Context, c *gin.Context) (*models.Post, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	p, err := a.posts.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return nil, false
	}
	if err != nil {
		a.fail(c, err)
		return nil, false
	}
	return p, true
}

// IsAdmin backs the admin guard middleware.
func (a *API) IsAdmin(c *gin.Context, userID string) (bool, error) {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return false, nil
	}
	ctx, cancel := a.reqCtx(c)
	defer cancel()
	u, err := a.users.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return u.IsAdmin, nil
}

func (a *API) invalidatePost(ctx context.Context, id primitive.ObjectID) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Delete(ctx, cache.PostKey(id.Hex())); err != nil {
		a.log.Warn().Err(err).Str("postId", id.Hex()).Msg("cache invalidation failed")
	}
}

// destroyAssets removes uploaded objects; failures are logged and swallowed.
func (a *API) destroyAssets(ctx context.Context, ids ...string) {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if err := a.media.Destroy(ctx, id); err != nil {
			a.log.Warn().Err(err).Str("publicId", id).Msg("asset delete failed")
		}
	}
}

func (a *API) notifyUser(ctx context.Context, n notify.Note) {
	if a.notifier != nil {
		a.notifier.Notify(ctx, n)
	}
}

func userView(u *models.User) gin.H {
	return gin.H{
		"id":              u.ID.Hex(),
		"name":            u.Name,
		"email":           u.Email,
		"avatar":          models.NormalizeAvatarURL(u.Avatar.URL),
		"authProvider":    u.AuthProvider,
		"isAdmin":         u.IsAdmin,
		"showcaseStats":   u.ShowcaseStats,
		"upvotedPosts":    idList(u.UpvotedPosts),
		"bookmarkedPosts": idList(u.BookmarkedPosts),
		"createdAt":       u.CreatedAt,
	}
}

func idList(ids []primitive.ObjectID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Hex())
	}
	return out
}
