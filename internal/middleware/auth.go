package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	EmailKey   = "email"
	authCookie = "token"
)

var errSigningMethod = errors.New("unexpected signing method")

// Claims is the part of the session token this service reads. Tokens are
// issued elsewhere.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Auth verifies the session token from the token cookie or a Bearer header
// and stores the caller's email under EmailKey.
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		raw := tokenFrom(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "authentication required"})
			return
		}
		claims := &Claims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errSigningMethod
			}
			return key, nil
		})
		if err != nil || strings.TrimSpace(claims.Email) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "invalid or expired token"})
			return
		}
		c.Set(EmailKey, strings.ToLower(strings.TrimSpace(claims.Email)))
		c.Next()
	}
}

func tokenFrom(c *gin.Context) string {
	if v, err := c.Cookie(authCookie); err == nil && v != "" {
		return v
	}
	h := c.GetHeader("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// Email returns the caller identity set by Auth.
func Email(c *gin.Context) string {
	return c.GetString(EmailKey)
}
