package main

import (
	"log/slog"
	"net/http"
	"time"

	"crm-bridge/internal/apperr"
	"crm-bridge/internal/httpapi"
	"crm-bridge/internal/ratelimit"
	"crm-bridge/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type routerDeps struct {
	Log *slog.Logger
	// ExposeStacks adds stack traces to error envelopes.
	ExposeStacks bool

	// AllowedOrigins empty allows every origin.
	AllowedOrigins []string
	// TrustedProxies empty makes ClientIP the socket peer.
	TrustedProxies []string

	// Guard gates every /api/hubspot route.
	Guard gin.HandlerFunc
	// Limiter is optional.
	Limiter ratelimit.Limiter

	Handlers httpapi.Handlers
}

// newRouter builds the engine and its middleware chain.
// Keep this file free of business logic. Handlers delegate to internal modules.
func newRouter(d routerDeps) (*gin.Engine, error) {
	r := gin.New()
	// nil turns off forwarded-header trust entirely.
	if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
		return nil, err
	}

	// Order matters: the error middleware must sit inside the logger so the summary
	// line sees the final status, and recovery must sit inside the error middleware.
	r.Use(logger.Middleware(d.Log))
	r.Use(corsMiddleware(d.AllowedOrigins))
	r.Use(apperr.Middleware(d.ExposeStacks))
	r.Use(apperr.Recovery())

	h := d.Handlers

	// public
	r.GET("/api/health", h.Health)

	hs := r.Group("/api/hubspot")
	if d.Limiter != nil {
		hs.Use(ratelimit.Middleware(d.Limiter))
	}
	hs.Use(d.Guard)
	{
		hs.GET("/test-connection", h.TestConnection)
		hs.POST("/contacts", h.UpsertContact)
		hs.POST("/calls", h.LogCall)
		hs.GET("/stats", h.Stats)

		hs.POST("/calls/start", h.StartCall)
		hs.GET("/calls/:id", h.GetCall)
		hs.POST("/calls/:id/end", h.EndCall)
	}

	return r, nil
}

// corsMiddleware serves requests from unlisted origins without CORS headers
// instead of rejecting them, leaving enforcement to the browser.
func corsMiddleware(origins []string) gin.HandlerFunc {
	h := cors.New(corsConfig(origins))
	if len(origins) == 0 {
		return h
	}
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" || allowed[origin] {
			h(c)
			return
		}
		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-Id"},
		ExposeHeaders: []string{"X-Request-Id", "RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset", "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
