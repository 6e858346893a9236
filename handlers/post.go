package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"confique/cache"
	"confique/media"
	"confique/models"
	"confique/notify"
	"confique/store"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultListLimit = 50
	leaderboardLimit = 10
)

// PostInput is the create/update payload. Fields outside the chosen type's
// groups are accepted and then stripped.
type PostInput struct {
	Type           models.PostType            `json:"type" binding:"required,posttype"`
	Title          string                     `json:"title"`
	Content        string                     `json:"content"`
	Images         []string                   `json:"images" binding:"max=10"`
	Location       string                     `json:"location"`
	StartDate      *time.Time                 `json:"startDate"`
	EndDate        *time.Time                 `json:"endDate"`
	Duration       string                     `json:"duration"`
	Price          float64                    `json:"price"`
	Registration   *models.RegistrationConfig `json:"registration"`
	Payment        *models.PaymentConfig      `json:"payment"`
	TicketOptions  []models.TicketOption      `json:"ticketOptions"`
	AvailableDates []time.Time                `json:"availableDates"`
	LaunchDate     string                     `json:"launchDate"`
}

type listQuery struct {
	Type   string `form:"type" binding:"omitempty,posttype"`
	Status string `form:"status" binding:"omitempty,oneof=pending approved rejected"`
	UserID string `form:"userId" binding:"omitempty,objectid"`
	Search string `form:"search" binding:"max=100"`
	Sort   string `form:"sort" binding:"omitempty,oneof=recent likes upvotes"`
	Month  string `form:"month" binding:"omitempty,datetime=2006-01"`
	Limit  int64  `form:"limit" binding:"omitempty,min=1,max=100"`
	Skip   int64  `form:"skip" binding:"omitempty,min=0"`
}

type cachedPost struct {
	Post models.Post     `json:"post"`
	View models.PostView `json:"view"`
}

// applyInput copies the editable fields of in onto p, sanitizing text.
func applyInput(p *models.Post, in *PostInput) {
	p.Type = in.Type
	p.Title = sanitizeText(in.Title)
	p.Content = sanitizeText(in.Content)
	p.Location = sanitizeText(in.Location)
	p.StartDate = in.StartDate
	p.EndDate = in.EndDate
	p.Duration = sanitizeText(in.Duration)
	p.Price = in.Price
	p.LaunchDate = sanitizeText(in.LaunchDate)
	p.AvailableDates = in.AvailableDates

	p.Registration = nil
	if r := in.Registration; r != nil {
		reg := &models.RegistrationConfig{Open: r.Open, ExternalLink: strings.TrimSpace(r.ExternalLink)}
		for _, f := range r.Fields {
			f.Name = strings.TrimSpace(f.Name)
			f.Label = sanitizeText(f.Label)
			reg.Fields = append(reg.Fields, f)
		}
		p.Registration = reg
	}
	p.Payment = nil
	if pay := in.Payment; pay != nil {
		p.Payment = &models.PaymentConfig{
			Link:    strings.TrimSpace(pay.Link),
			QRImage: strings.TrimSpace(pay.QRImage),
		}
	}
	p.TicketOptions = nil
	for _, t := range in.TicketOptions {
		p.TicketOptions = append(p.TicketOptions, models.TicketOption{Type: sanitizeText(t.Type), Price: t.Price})
	}
}

// storeImages uploads inline images and keeps hosted ones, returning the
// final URL list with its parallel asset ids.
func (a *API) storeImages(ctx context.Context, in []string, oldURLs, oldIDs []string) ([]string, []string, error) {
	known := map[string]string{}
	for i, u := range oldURLs {
		if i < len(oldIDs) {
			known[u] = oldIDs[i]
		}
	}
	var urls, ids, uploaded []string
	for _, img := range in {
		img = strings.TrimSpace(img)
		switch {
		case img == "":
			continue
		case media.IsDataURL(img):
			asset, err := a.media.Upload(ctx, img, media.FolderPosts)
			if err != nil {
				a.destroyAssets(ctx, uploaded...)
				return nil, nil, &uploadError{err: err}
			}
			uploaded = append(uploaded, asset.PublicID)
			urls = append(urls, asset.URL)
			ids = append(ids, asset.PublicID)
		default:
			urls = append(urls, img)
			ids = append(ids, known[img])
		}
	}
	if allEmpty(ids) {
		ids = nil
	}
	return urls, ids, nil
}

// storePaymentQR uploads an inline payment QR image. An unchanged hosted QR
// keeps its asset id.
func (a *API) storePaymentQR(ctx context.Context, pay, old *models.PaymentConfig) error {
	if pay == nil || pay.QRImage == "" {
		return nil
	}
	if media.IsDataURL(pay.QRImage) {
		asset, err := a.media.Upload(ctx, pay.QRImage, media.FolderPayments)
		if err != nil {
			return &uploadError{err: err}
		}
		pay.QRImage, pay.QRImageID = asset.URL, asset.PublicID
		return nil
	}
	if old != nil && old.QRImage == pay.QRImage {
		pay.QRImageID = old.QRImageID
	}
	return nil
}

func allEmpty(ss []string) bool {
	for _, s := range ss {
		if s != "" {
			return false
		}
	}
	return true
}

func qrID(p *models.PaymentConfig) string {
	if p == nil {
		return ""
	}
	return p.QRImageID
}

func (a *API) summaries(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.UserSummary, error) {
	out := map[primitive.ObjectID]models.UserSummary{}
	if len(ids) == 0 {
		return out, nil
	}
	users, err := a.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for id, u := range users {
		u := u
		out[id] = u.Summary()
	}
	return out, nil
}

// renderPosts projects posts with a single population query for all of them.
func (a *API) renderPosts(ctx context.Context, posts []models.Post, viewer *models.User) ([]models.PostView, error) {
	var ids []primitive.ObjectID
	for i := range posts {
		ids = append(ids, models.PopulationIDs(&posts[i])...)
	}
	users, err := a.summaries(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]models.PostView, 0, len(posts))
	for i := range posts {
		views = append(views, models.Project(&posts[i], users).Decorate(&posts[i], viewer))
	}
	return views, nil
}

func (a *API) renderPost(ctx context.Context, p *models.Post, viewer *models.User) (models.PostView, error) {
	views, err := a.renderPosts(ctx, []models.Post{*p}, viewer)
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

func canSee(p *models.Post, viewer *models.User) bool {
	if p.Status == models.StatusApproved {
		return true
	}
	return viewer != nil && viewer.CanEdit(p.UserID)
}

func (a *API) ListPosts(c *gin.Context) {
	var q listQuery
	if !bindQuery(c, &q) {
		return
	}

	ctx, cancel := a.reqCtx(c)
	defer cancel()

	viewer := a.viewer(ctx, c)
	f := store.PostFilter{
		Type:   models.PostType(q.Type),
		Search: strings.TrimSpace(q.Search),
		Month:  q.Month,
		Sort:   store.PostSort(q.Sort),
		Limit:  q.Limit,
		Skip:   q.Skip,
	}
	if f.Limit == 0 {
		f.Limit = defaultListLimit
	}
	if q.UserID != "" {
		f.UserID, _ = primitive.ObjectIDFromHex(q.UserID)
	}

	// Only admins and authors see posts that are not approved.
	privileged := viewer != nil && (viewer.IsAdmin || (!f.UserID.IsZero() && viewer.ID == f.UserID))
	switch {
	case privileged && q.Status != "":
		f.Statuses = []models.PostStatus{models.PostStatus(q.Status)}
	case privileged && !f.UserID.IsZero():
	default:
		f.Statuses = []models.PostStatus{models.StatusApproved}
	}

	posts, err := a.posts.List(ctx, f)
	if err != nil {
		a.fail(c, err)
		return
	}
	views, err := a.renderPosts(ctx, posts, viewer)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"posts": views, "count": len(views)})
}

// GetPost serves one post. The undecorated projection is cached under
// post:<id> and dropped by every mutation of the post.
func (a *API) GetPost(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := a.reqCtx(c)
	defer cancel()

	viewer := a.viewer(ctx, c)
	key := cache.PostKey(id.Hex())

	var entry cachedPost
	hit := false
	if a.cache != nil {
		if raw, err := a.cache.Get(ctx, key); err == nil {
			hit = json.Unmarshal(raw, &entry) == nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			a.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
	}

	if !hit {
		p, err := a.posts.Get(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
			return
		}
		if err != nil {
			a.fail(c, err)
			return
		}
		view, err := a.renderPost(ctx, p, nil)
		if err != nil {
			a.fail(c, err)
			return
		}
		entry = cachedPost{Post: *p, View: view}
		if a.cache != nil {
			if raw, err := json.Marshal(entry); err == nil {
				if err := a.cache.Set(ctx, key, raw, a.cfg.CacheTTL); err != nil {
					a.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
				}
			}
		}
	}

	if !canSee(&entry.Post, viewer) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}
	c.Header("X-Cache", map[bool]string{true: "HIT", false: "MISS"}[hit])
	c.JSON(http.StatusOK, gin.H{"post": entry.View.Decorate(&entry.Post, viewer)})
}

func (a *API) CreatePost(c *gin.Context) {
	var in PostInput
	if !bindJSON(c, &in) {
		return
	}

	ctx, cancel := a.uploadCtx(c)
	defer cancel()

	user, ok := a.loadCaller(ctx, c)
	if !ok {
		return
	}
	now := a.now().UTC()
	if err := models.CheckShowcaseDeadline(in.Type, now, a.cfg.ShowcaseDeadline); err != nil {
		a.fail(c, err)
		return
	}

	p := &models.Post{
		Author:    user.Snapshot(),
		UserID:    user.ID,
		Status:    models.StatusApproved,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyInput(p, &in)
	if p.Type == models.PostNews && !user.IsAdmin {
		p.Status = models.StatusPending
	}
	if p.Type == models.PostShowcase {
		p.Month = models.MonthBucket(now)
	}
	models.ApplyTypeHygiene(p)
	if err := models.ValidatePost(p); err != nil {
		a.fail(c, err)
		return
	}

	urls, ids, err := a.storeImages(ctx, in.Images, nil, nil)
	if err != nil {
		a.fail(c, err)
		return
	}
	p.Images, p.ImageIDs = urls, ids
	if err := a.storePaymentQR(ctx, p.Payment, nil); err != nil {
		a.destroyAssets(ctx, ids...)
		a.fail(c, err)
		return
	}

	if err := a.posts.Create(ctx, p); err != nil {
		a.destroyAssets(ctx, append(ids, qrID(p.Payment))...)
		a.fail(c, err)
		return
	}

	view, err := a.renderPost(ctx, p, user)
	if err != nil {
		a.fail(c, err)
		return
	}
	a.log.Info().Str("postId", p.ID.Hex()).Str("type", string(p.Type)).Str("userId", user.ID.Hex()).Msg("[Posts] created")
	c.JSON(http.StatusCreated, gin.H{"message": "Post created", "post": view})
}

func (a *API) UpdatePost(c *gin.Context) {
	var in PostInput
	if !bindJSON(c, &in) {
		return
	}

	ctx, cancel := a.uploadCtx(c)
	defer cancel()

	user, ok := a.loadCaller(ctx, c)
	if !ok {
		return
	}
	p, ok := a.loadPost(ctx, c)
	if !ok {
		return
	}
	if !user.CanEdit(p.UserID) {
		forbidden(c)
		return
	}

	now := a.now().UTC()
	oldType := p.Type
	oldImages, oldIDs := p.Images, p.ImageIDs
	oldPayment := p.Payment

	if in.Type == models.PostShowcase && oldType != models.PostShowcase {
		if err := models.CheckShowcaseDeadline(in.Type, now, a.cfg.ShowcaseDeadline); err != nil {
			a.fail(c, err)
			return
		}
	}
	applyInput(p, &in)
	if p.Type == models.PostShowcase && p.Month == "" {
		p.Month = models.MonthBucket(p.CreatedAt)
	}
	if p.Type == models.PostNews && oldType != models.PostNews && !user.IsAdmin {
		p.Status = models.StatusPending
	}
	models.ApplyTypeHygiene(p)
	if err := models.ValidatePost(p); err != nil {
		a.fail(c, err)
		return
	}

	if in.Images != nil {
		urls, ids, err := a.storeImages(ctx, in.Images, oldImages, oldIDs)
		if err != nil {
			a.fail(c, err)
			return
		}
		p.Images, p.ImageIDs = urls, ids
	}
	fresh := orphaned(p.ImageIDs, oldIDs)
	if err := a.storePaymentQR(ctx, p.Payment, oldPayment); err != nil {
		a.destroyAssets(ctx, fresh...)
		a.fail(c, err)
		return
	}
	if id := qrID(p.Payment); id != "" && id != qrID(oldPayment) {
		fresh = append(fresh, id)
	}

	p.UpdatedAt = now
	if err := a.posts.Replace(ctx, p); err != nil {
		a.destroyAssets(ctx, fresh...)
		a.fail(c, err)
		return
	}
	a.invalidatePost(ctx, p.ID)

	a.destroyAssets(ctx, orphaned(oldIDs, p.ImageIDs)...)
	if old := qrID(oldPayment); old != "" && old != qrID(p.Payment) {
		a.destroyAssets(ctx, old)
	}

	view, err := a.renderPost(ctx, p, user)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Post updated", "post": view})
}

// orphaned returns ids present in before but not in after.
func orphaned(before, after []string) []string {
	keep := map[string]bool{}
	for _, id := range after {
		keep[id] = true
	}
	var out []string
	for _, id := range before {
		if id != "" && !keep[id] {
			out = append(out, id)
		}
	}
	return out
}

type statusRequest struct {
	Status models.PostStatus `json:"status" binding:"required,oneof=pending approved rejected"`
}

// UpdatePostStatus is the admin moderation endpoint.
func (a *API) UpdatePostStatus(c *gin.Context) {
	var req statusRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx, cancel := a.reqCtx(c)
	defer cancel()

	admin, ok := a.loadCaller(ctx, c)
	if !ok {
		return
	}
	p, ok := a.loadPost(ctx, c)
	if !ok {
		return
	}
	if p.Status == req.Status {
		c.JSON(http.StatusOK, gin.H{"message": "Status unchanged", "status": p.Status})
		return
	}
	p.Status = req.Status
	p.UpdatedAt = a.now().UTC()
	if err := a.posts.Replace(ctx, p); err != nil {
		a.fail(c, err)
		return
	}
	a.invalidatePost(ctx, p.ID)

	a.notifyUser(ctx, notify.Note{
		Recipient: p.UserID,
		Actor:     admin.ID,
		Post:      p.ID,
		Type:      models.NotifyStatus,
		Message:   "Your post \"" + postLabel(p) + "\" was " + string(p.Status),
	})
	c.JSON(http.StatusOK, gin.H{"message": "Status updated", "status": p.Status})
}

// DeletePost removes a post together with its registrations and
// notifications. Dependents go first so a failure leaves the post in place.
func (a *API) DeletePost(c *gin.Context) {
	ctx, cancel := a.reqCtx(c)
	defer cancel()

	user, ok := a.loadCaller(ctx, c)
	if !ok {
		return
	}
	p, ok := a.loadPost(ctx, c)
	if !ok {
		return
	}
	if !user.CanEdit(p.UserID) {
		forbidden(c)
		return
	}

	regs, err := a.regs.DeleteByEvent(ctx, p.ID)
	if err != nil {
		a.fail(c, err)
		return
	}
	if _, err := a.notes.DeleteByPost(ctx, p.ID); err != nil {
		a.fail(c, err)
		return
	}
	if err := a.posts.Delete(ctx, p.ID); err != nil {
		a.fail(c, err)
		return
	}
	a.invalidatePost(ctx, p.ID)
	if err := a.users.PullPostRefs(ctx, p.ID); err != nil {
		a.log.Warn().Err(err).Str("postId", p.ID.Hex()).Msg("[Posts] user reference cleanup failed")
	}
	a.destroyAssets(ctx, append(append([]string{}, p.ImageIDs...), qrID(p.Payment))...)

	a.log.Info().Str("postId", p.ID.Hex()).Int64("registrations", regs).Msg("[Posts] deleted")
	c.JSON(http.StatusOK, gin.H{"message": "Post deleted", "registrationsDeleted": regs})
}

type leaderboardQuery struct {
	Month string `form:"month" binding:"omitempty,datetime=2006-01"`
	Limit int64  `form:"limit" binding:"omitempty,min=1,max=50"`
}

// ShowcaseLeaderboard ranks approved showcase posts of a month by upvotes.
func (a *API) ShowcaseLeaderboard(c *gin.Context) {
	var q leaderboardQuery
	if !bindQuery(c, &q) {
		return
	}
	if q.Month == "" {
		q.Month = models.MonthBucket(a.now())
	}
	if q.Limit == 0 {
		q.Limit = leaderboardLimit
	}

	ctx, cancel := a.reqCtx(c)
	defer cancel()

	posts, err := a.posts.List(ctx, store.PostFilter{
		Type:     models.PostShowcase,
		Statuses: []models.PostStatus{models.StatusApproved},
		Month:    q.Month,
		Sort:     store.SortUpvotes,
		Limit:    q.Limit,
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	views, err := a.renderPosts(ctx, posts, a.viewer(ctx, c))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"month": q.Month, "posts": views})
}

func postLabel(p *models.Post) string {
	if p.Title != "" {
		return p.Title
	}
	r := []rune(p.Content)
	if len(r) > 40 {
		return string(r[:40]) + "…"
	}
	return string(r)
}
