package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"confique/config"
	"confique/models"
	"confique/store"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	stateCookie   = "oauth_state"
	stateLifetime = 10 * time.Minute
	userInfoURL   = "https://www.googleapis.com/oauth2/v2/userinfo"
)

type GoogleUserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

type GoogleCredentialRequest struct {
	Credential string `json:"credential" binding:"required"`
}

type stateClaims struct {
	Nonce string `json:"nonce"`
	jwt.RegisteredClaims
}

func googleOAuthConfig(cfg *config.Config) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// signState binds the OAuth round trip to the browser that started it: the
// nonce goes into a cookie and into the signed state parameter.
func (a *API) signState(nonce string) (string, error) {
	now := a.now()
	claims := stateClaims{
		Nonce: nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateLifetime)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.cfg.SessionSecret))
}

func (a *API) verifyState(state, nonce string) error {
	claims := &stateClaims{}
	_, err := jwt.ParseWithClaims(state, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(a.cfg.SessionSecret), nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return err
	}
	if nonce == "" || claims.Nonce != nonce {
		return errors.New("state does not match this browser")
	}
	return nil
}

// GoogleLogin redirects to the Google consent screen.
func (a *API) GoogleLogin(c *gin.Context) {
	if a.google == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google OAuth not configured"})
		return
	}
	nonce := uuid.NewString()
	state, err := a.signState(nonce)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, nonce, int(stateLifetime.Seconds()), "/api/auth/google", "", a.cfg.IsProduction(), true)
	c.Redirect(http.StatusTemporaryRedirect, a.google.AuthCodeURL(state, oauth2.AccessTypeOnline))
}

// GoogleCallback completes the redirect flow and hands the API token to the
// front-end.
func (a *API) GoogleCallback(c *gin.Context) {
	if a.google == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google OAuth not configured"})
		return
	}
	nonce, _ := c.Cookie(stateCookie)
	c.SetCookie(stateCookie, "", -1, "/api/auth/google", "", a.cfg.IsProduction(), true)

	if err := a.verifyState(c.Query("state"), nonce); err != nil {
		a.log.Warn().Err(err).Msg("[Google] state verification failed")
		a.redirectAuthError(c, "invalid_state")
		return
	}
	code := c.Query("code")
	if code == "" {
		a.redirectAuthError(c, "missing_code")
		return
	}

	ctx, cancel := a.reqCtx(c)
	defer cancel()

	tok, err := a.google.Exchange(ctx, code)
	if err != nil {
		a.log.Error().Err(err).Msg("[Google] token exchange failed")
		a.redirectAuthError(c, "exchange_failed")
		return
	}
	info, err := fetchGoogleUser(ctx, a.google.Client(ctx, tok))
	if err != nil {
		a.log.Error().Err(err).Msg("[Google] userinfo request failed")
		a.redirectAuthError(c, "userinfo_failed")
		return
	}

	user, err := a.upsertGoogleUser(ctx, info)
	if err != nil {
		a.log.Error().Err(err).Str("email", info.Email).Msg("[Google] user upsert failed")
		a.redirectAuthError(c, "account_failed")
		return
	}
	token, err := a.auth.Issue(user.ID.Hex())
	if err != nil {
		a.redirectAuthError(c, "token_failed")
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, a.frontendCallback(url.Values{"token": {token}}))
}

// GoogleCredential accepts a Google Identity Services ID token.
func (a *API) GoogleCredential(c *gin.Context) {
	var req GoogleCredentialRequest
	if !bindJSON(c, &req) {
		return
	}
	if a.cfg.GoogleClientID == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google sign-in not configured"})
		return
	}

	ctx, cancel := a.reqCtx(c)
	defer cancel()

	payload, err := a.verifyID(ctx, req.Credential, a.cfg.GoogleClientID)
	if err != nil {
		a.log.Warn().Err(err).Msg("[Google] credential rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid Google credential", "code": "TOKEN_INVALID"})
		return
	}
	info := GoogleUserInfo{
		ID:      payload.Subject,
		Email:   claimString(payload.Claims, "email"),
		Name:    claimString(payload.Claims, "name"),
		Picture: claimString(payload.Claims, "picture"),
	}
	if info.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email not provided by Google"})
		return
	}

	user, err := a.upsertGoogleUser(ctx, info)
	if err != nil {
		a.fail(c, err)
		return
	}
	token, err := a.auth.Issue(user.ID.Hex())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"user":    userView(user),
	})
}

func claimString(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

func fetchGoogleUser(ctx context.Context, client *http.Client) (GoogleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userInfoURL, nil)
	if err != nil {
		return GoogleUserInfo{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return GoogleUserInfo{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return GoogleUserInfo{}, fmt.Errorf("userinfo returned %d", resp.StatusCode)
	}
	var info GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return GoogleUserInfo{}, err
	}
	if info.Email == "" {
		return GoogleUserInfo{}, errors.New("userinfo has no email")
	}
	return info, nil
}

// upsertGoogleUser finds the account by Google id, then by email (linking
// it), and creates one otherwise.
func (a *API) upsertGoogleUser(ctx context.Context, info GoogleUserInfo) (*models.User, error) {
	now := a.now().UTC()

	user, err := a.users.GetByGoogleID(ctx, info.ID)
	if errors.Is(err, store.ErrNotFound) {
		user, err = a.users.GetByEmail(ctx, info.Email)
	}
	switch {
	case err == nil:
		if user.GoogleID == nil && info.ID != "" {
			gid := info.ID
			user.GoogleID = &gid
		}
		if (user.Avatar.URL == "" || user.Avatar.URL == models.FallbackAvatar) && info.Picture != "" {
			user.Avatar = models.Avatar{URL: models.NormalizeAvatarURL(info.Picture)}
		}
		user.LastSeen = now
		if err := a.users.Replace(ctx, user); err != nil {
			return nil, err
		}
		return user, nil

	case errors.Is(err, store.ErrNotFound):
		gid := info.ID
		name := sanitizeText(info.Name)
		if name == "" {
			name = strings.SplitN(info.Email, "@", 2)[0]
		}
		user = &models.User{
			Name:         name,
			Email:        info.Email,
			GoogleID:     &gid,
			AuthProvider: "google",
			Avatar:       models.Avatar{URL: models.NormalizeAvatarURL(info.Picture)},
			IsAdmin:      a.cfg.IsAdminEmail(info.Email),
			CreatedAt:    now,
			LastSeen:     now,
		}
		if err := a.users.Create(ctx, user); err != nil {
			return nil, err
		}
		a.log.Info().Str("userId", user.ID.Hex()).Msg("[Google] user created")
		return user, nil

	default:
		return nil, err
	}
}

func (a *API) frontendCallback(q url.Values) string {
	return strings.TrimRight(a.cfg.FrontendURL, "/") + "/auth/callback?" + q.Encode()
}

func (a *API) redirectAuthError(c *gin.Context, reason string) {
	c.Redirect(http.StatusTemporaryRedirect, a.frontendCallback(url.Values{"error": {reason}}))
}
