package middleware

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	CodeTokenMissing = "TOKEN_MISSING"
	CodeTokenInvalid = "TOKEN_INVALID"
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeNotAdmin     = "NOT_ADMIN"

	// ContextUserID is the gin context key holding the caller's id hex.
	ContextUserID = "userId"
)

type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// Auth issues and verifies HS256 API tokens.
type Auth struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuth(secret string, ttl time.Duration) *Auth {
	return &Auth{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (a *Auth) Issue(userID string) (string, error) {
	now := a.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse validates the token and returns its claims. Expired tokens wrap
// jwt.ErrTokenExpired.
func (a *Auth) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == "" {
		return nil, errors.New("token is not valid")
	}
	return claims, nil
}

// UserID resolves a raw token to the user id it carries.
func (a *Auth) UserID(tokenString string) (string, error) {
	claims, err := a.Parse(tokenString)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

// bearer reads the token from the Authorization header, falling back to the
// token query parameter.
func bearer(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if t := c.Query("token"); t != "" {
			return t, true
		}
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", true
	}
	return parts[1], true
}

// Required rejects requests without a valid token.
func (a *Auth) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		raw, present := bearer(c)
		if !present {
			abortAuth(c, "Authentication required", CodeTokenMissing)
			return
		}
		claims, err := a.Parse(raw)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				abortAuth(c, "Token expired", CodeTokenExpired)
				return
			}
			abortAuth(c, "Invalid token", CodeTokenInvalid)
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Next()
	}
}

// Optional sets the caller id when a valid token is present and otherwise
// lets the request through anonymously.
func (a *Auth) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, present := bearer(c); present && raw != "" {
			if claims, err := a.Parse(raw); err == nil {
				c.Set(ContextUserID, claims.UserID)
			}
		}
		c.Next()
	}
}

func abortAuth(c *gin.Context, msg, code string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "code": code})
}

// RequireAdmin lets the request through only when isAdmin reports true for
// the authenticated caller.
func RequireAdmin(isAdmin func(c *gin.Context, userID string) (bool, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(ContextUserID)
		if uid == "" {
			abortAuth(c, "Authentication required", CodeTokenMissing)
			return
		}
		ok, err := isAdmin(c, uid)
		if err != nil {
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify permissions"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required", "code": CodeNotAdmin})
			return
		}
		c.Next()
	}
}

// CronSecret guards scheduler endpoints. The secret may arrive as the
// secret query parameter or as a bearer token.
func CronSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.Query("secret")
		if got == "" {
			got = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
