package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/grabngo/loaner/internal/model"
	"github.com/grabngo/loaner/pkg/auth"
	"github.com/redis/go-redis/v9"
)

// Context keys set by the auth middlewares
const (
	EmailKey  = "email"
	ClaimsKey = "claims"
)

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", false
	}
	return parts[1], true
}

// authenticate validates the token and rejects revoked ones
func authenticate(c *gin.Context, jwtManager *auth.JWTManager, rdb *redis.Client, tokenString string) (*auth.Claims, int, string) {
	exists, err := rdb.Exists(c.Request.Context(), "blacklist:"+tokenString).Result()
	if err != nil {
		// Fail closed
		return nil, http.StatusInternalServerError, "Auth server error"
	}
	if exists > 0 {
		return nil, http.StatusUnauthorized, "Token has been revoked"
	}

	claims, err := jwtManager.ValidateToken(tokenString)
	if err != nil {
		return nil, http.StatusUnauthorized, "Invalid or expired token"
	}
	return claims, 0, ""
}

// AuthMiddleware validates JWT tokens and injects user claims into context
func AuthMiddleware(jwtManager *auth.JWTManager, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{Error: "Authorization header required"})
			return
		}
		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, model.ErrorResponse{Error: "Invalid authorization format. Use: Bearer <token>"})
			return
		}

		claims, status, msg := authenticate(c, jwtManager, rdb, tokenString)
		if claims == nil {
			c.AbortWithStatusJSON(status, model.ErrorResponse{Error: msg})
			return
		}

		c.Set(EmailKey, claims.Email)
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// OptionalAuth attaches claims when a valid token is present and otherwise
// lets the request through anonymously. Devices heartbeat with or without a
// signed-in user.
func OptionalAuth(jwtManager *auth.JWTManager, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.Next()
			return
		}
		claims, status, msg := authenticate(c, jwtManager, rdb, tokenString)
		if claims == nil {
			c.AbortWithStatusJSON(status, model.ErrorResponse{Error: msg})
			return
		}
		c.Set(EmailKey, claims.Email)
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// Claims returns the authenticated claims, or nil
func Claims(c *gin.Context) *auth.Claims {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

// RequirePermission rejects callers whose token lacks perm.
// Superadmins pass every check.
func RequirePermission(perm model.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil || !claims.Can(string(perm)) {
			c.AbortWithStatusJSON(http.StatusForbidden, model.ErrorResponse{
				Error:   "PermissionDeniedError",
				Message: "missing permission " + string(perm),
			})
			return
		}
		c.Next()
	}
}

// RequireSuperadmin rejects everyone but superadmins
func RequireSuperadmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil || !claims.Superadmin {
			c.AbortWithStatusJSON(http.StatusForbidden, model.ErrorResponse{
				Error:   "PermissionDeniedError",
				Message: "superadmin only",
			})
			return
		}
		c.Next()
	}
}

// CronToken guards the scheduler endpoints with a shared secret sent in
// the X-Cron-Token header
func CronToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" || subtle.ConstantTimeCompare([]byte(c.GetHeader("X-Cron-Token")), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, model.ErrorResponse{Error: "invalid cron token"})
			return
		}
		c.Next()
	}
}
