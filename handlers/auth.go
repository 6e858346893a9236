package handlers

import (
	"errors"
	"net/http"
	"strings"

	"confique/models"
	"confique/store"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type SignupRequest struct {
	Name     string `json:"name" binding:"required,min=2,max=50"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (a *API) Signup(c *gin.Context) {
	var req SignupRequest
	if !bindJSON(c, &req) {
		return
	}
	name := sanitizeText(req.Name)
	if len(name) < 2 {
		a.fail(c, models.NewValidationError("name", msgBelowMinLen))
		return
	}

	ctx, cancel := a.reqCtx(c)
	defer cancel()

	if _, err := a.users.GetByEmail(ctx, req.Email); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already in use"})
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		a.fail(c, err)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		a.fail(c, err)
		return
	}
	hash := string(hashed)
	now := a.now().UTC()
	user := &models.User{
		Name:         name,
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: &hash,
		AuthProvider: "email",
		Avatar:       models.Avatar{URL: models.FallbackAvatar},
		IsAdmin:      a.cfg.IsAdminEmail(req.Email),
		CreatedAt:    now,
		LastSeen:     now,
	}
	if err := a.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already in use"})
			return
		}
		a.fail(c, err)
		return
	}

	token, err := a.auth.Issue(user.ID.Hex())
	if err != nil {
		a.fail(c, err)
		return
	}
	a.log.Info().Str("userId", user.ID.Hex()).Msg("[Auth] user signed up")
	c.JSON(http.StatusCreated, gin.H{
		"message": "User created successfully",
		"token":   token,
		"user":    userView(user),
	})
}

func (a *API) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx, cancel := a.reqCtx(c)
	defer cancel()

	user, err := a.users.GetByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}
	if err != nil {
		a.fail(c, err)
		return
	}
	if user.PasswordHash == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "This account uses Google sign-in"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	token, err := a.auth.Issue(user.ID.Hex())
	if err != nil {
		a.fail(c, err)
		return
	}
	if err := a.users.Touch(ctx, user.ID); err != nil {
		a.log.Warn().Err(err).Str("userId", user.ID.Hex()).Msg("[Auth] last seen update failed")
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"user":    userView(user),
	})
}

func (a *API) Me(c *gin.Context) {
	ctx, cancel := a.reqCtx(c)
	defer cancel()

	user, ok := a.loadCaller(ctx, c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userView(user)})
}
