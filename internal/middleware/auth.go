package middleware

import (
	"net/http"
	"strings"

	"enchiridion/config"
	"enchiridion/internal/auth"

	"github.com/gin-gonic/gin"
)

const (
	ctxPartnerID = "partner_id"
	ctxEmail     = "email"
	ctxSuperuser = "is_superuser"
	ctxClaims    = "claims"
)

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func setClaims(c *gin.Context, claims *auth.Claims) {
	c.Set(ctxPartnerID, claims.PartnerID)
	c.Set(ctxEmail, claims.Email)
	c.Set(ctxSuperuser, claims.Superuser)
	c.Set(ctxClaims, claims)
}

// AuthRequired validates the bearer JWT and stores the partner claims in the context.
func AuthRequired(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format"})
			return
		}
		claims, err := auth.ParseAccessToken(cfg, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth sets the claims when a valid token is present and lets anonymous requests through.
func OptionalAuth(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if claims, err := auth.ParseAccessToken(cfg, token); err == nil {
				setClaims(c, claims)
			}
		}
		c.Next()
	}
}

// GetPartnerID returns the authenticated partner ID, or "" for anonymous requests.
func GetPartnerID(c *gin.Context) string {
	return c.GetString(ctxPartnerID)
}

func GetEmail(c *gin.Context) string {
	return c.GetString(ctxEmail)
}

func IsSuperuser(c *gin.Context) bool {
	return c.GetBool(ctxSuperuser)
}
