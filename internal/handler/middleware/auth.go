package middleware

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"ledger-gateway/internal/pkg/config"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserIDKey = "user_id"
	ctxAPIKeyKey = "api_key"
)

// AuthMiddleware authenticates requests with a static API key, supplied via
// X-API-Key or an Authorization bearer token.
type AuthMiddleware struct {
	validKeys map[string]struct{}
}

func NewAuthMiddleware(cfg config.AuthConfig) *AuthMiddleware {
	keys := make(map[string]struct{}, len(cfg.APIKeys))
	for _, key := range cfg.APIKeys {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			keys[trimmed] = struct{}{}
		}
	}
	return &AuthMiddleware{validKeys: keys}
}

func (m *AuthMiddleware) RequireAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := extractAPIKey(c)
		if apiKey == "" {
			slog.Warn("missing API key", "client_ip", c.ClientIP(), "path", c.Request.URL.Path)
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "API key required",
			})
			c.Abort()
			return
		}

		if _, ok := m.validKeys[apiKey]; !ok {
			slog.Warn("invalid API key attempt",
				"api_key", maskAPIKey(apiKey),
				"client_ip", c.ClientIP(),
				"path", c.Request.URL.Path,
			)
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
			})
			c.Abort()
			return
		}

		c.Set(ctxAPIKeyKey, apiKey)
		c.Set(ctxUserIDKey, userIDForKey(apiKey))
		c.Next()
	}
}

// OptionalAPIKey resolves the caller identity when a valid key is present but
// never rejects. Used by the operator webhook surface.
func (m *AuthMiddleware) OptionalAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := extractAPIKey(c)
		if apiKey != "" {
			if _, ok := m.validKeys[apiKey]; ok {
				c.Set(ctxAPIKeyKey, apiKey)
				c.Set(ctxUserIDKey, userIDForKey(apiKey))
			}
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) string {
	if userID, exists := c.Get(ctxUserIDKey); exists {
		if id, ok := userID.(string); ok {
			return id
		}
	}
	return ""
}

func extractAPIKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(authHeader[len("Bearer "):])
	}
	return ""
}

// userIDForKey derives a stable caller identity from the key without logging
// the key itself.
func userIDForKey(apiKey string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(apiKey))
	if len(encoded) > 8 {
		encoded = encoded[:8]
	}
	return "user_" + encoded
}

func maskAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "***"
	}
	return apiKey[:8] + "***"
}
