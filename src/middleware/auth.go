package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// UserIDKey is the gin context key holding the authenticated user id.
const UserIDKey = "user_id"

// devUserHeader identifies the caller when no JWT secret is configured.
const devUserHeader = "X-User-ID"

const adminKeyHeader = "X-Admin-Key"

type AuthMiddleware struct {
	secret []byte
}

// NewAuthMiddleware verifies HS256 tokens signed with secret. An empty
// secret switches to development mode, where the X-User-ID header is trusted.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{secret: []byte(secret)}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		var userID string
		if len(m.secret) == 0 {
			userID = strings.TrimSpace(c.GetHeader(devUserHeader))
		} else {
			authHeader := c.GetHeader("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
				c.Abort()
				return
			}

			sub, err := m.subject(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
				c.Abort()
				return
			}
			userID = sub
		}

		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

func (m *AuthMiddleware) subject(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}

	sub, err := token.Claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

// UserID returns the id set by RequireAuth.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// RequireAdmin guards operator routes with a shared key. With no key
// configured every admin request is rejected.
func RequireAdmin(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader(adminKeyHeader)
		if adminKey == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(adminKey)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}
