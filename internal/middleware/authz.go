package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"taskdesk/backend/internal/models"
	"taskdesk/backend/internal/services"
)

const (
	ContextUserID   = "user_id"
	ContextUserRole = "user_role"
	ContextClaims   = "claims"
)

type TokenParser interface {
	ParseToken(ctx context.Context, token string) (*services.Claims, error)
}

// AuthMiddleware verifies the bearer token and stores the caller's id, role
// and claims on the gin context.
func AuthMiddleware(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_token",
				"message": "Authorization header is required",
			})
			return
		}

		tokenStr, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || strings.TrimSpace(tokenStr) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_token_format",
				"message": "Authorization header must use Bearer token",
			})
			return
		}

		claims, err := parser.ParseToken(c.Request.Context(), strings.TrimSpace(tokenStr))
		switch {
		case errors.Is(err, services.ErrTokenRevoked):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "revoked_token",
				"message": "Token has been revoked",
			})
			return
		case errors.Is(err, services.ErrInvalidToken):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_token",
				"message": "Token validation failed",
			})
			return
		case err != nil:
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error":   "auth_unavailable",
				"message": "Unable to verify token right now",
			})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextClaims, claims)

		c.Next()
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get(ContextUserRole)
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   "insufficient_role",
			"message": "User role does not have access to this resource",
		})
	}
}

func UserID(c *gin.Context) (int64, bool) {
	value, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	id, ok := value.(int64)
	return id, ok && id > 0
}

func UserClaims(c *gin.Context) (*services.Claims, bool) {
	value, ok := c.Get(ContextClaims)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*services.Claims)
	return claims, ok
}
