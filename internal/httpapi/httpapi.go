// Package httpapi is the headless operator console for the broadcast
// daemon: a gin router exposing profile CRUD, enable toggles, status, and
// a server-sent-events stream of connect/disconnect transitions. Built
// around a per-concern *Handlers struct + gin.H envelope convention.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/denpacast/broadcast/internal/auth"
	"github.com/denpacast/broadcast/internal/broadcast"
)

// securityHeaders sets a conservative baseline of response headers.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		c.Next()
	}
}

// authRequired enforces Authorization: Bearer <token> on mutating routes.
func authRequired(a *auth.Auth) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "authentication required"})
			return
		}
		const prefix = "Bearer "
		if len(authHeader) <= len(prefix) || authHeader[:len(prefix)] != prefix {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "authentication required"})
			return
		}
		token := authHeader[len(prefix):]
		if _, err := a.ValidateToken(token); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "invalid or expired token"})
			return
		}
		c.Next()
	}
}

// New builds the gin router for the control surface. a is the operator
// auth service; coord is the BroadcastCoordinator whose profiles/status
// this API exposes.
func New(a *auth.Auth, coord *broadcast.Coordinator, configPath string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), securityHeaders())

	authHandlers := newAuthHandlers(a)
	profileHandlers := newProfileHandlers(coord, configPath)
	statusHandlers := newStatusHandlers(coord)
	eventHandlers := newEventHandlers(coord)

	r.GET("/health", statusHandlers.Health)
	r.POST("/api/auth/login", authHandlers.Login)
	r.GET("/api/auth/verify", authRequired(a), authHandlers.VerifyToken)

	r.GET("/api/status", statusHandlers.Status)
	r.GET("/api/events", eventHandlers.Stream)

	r.GET("/api/profiles", profileHandlers.List)
	r.POST("/api/profiles", authRequired(a), profileHandlers.Create)
	r.DELETE("/api/profiles/:name", authRequired(a), profileHandlers.Delete)
	r.PUT("/api/profiles/:name/enabled", authRequired(a), profileHandlers.SetEnabled)
	r.PUT("/api/broadcast/enabled", authRequired(a), profileHandlers.SetGlobalEnabled)

	return r
}
