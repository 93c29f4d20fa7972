package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"adpilot/internal/streaming"
	"adpilot/pkg/health"
	"adpilot/pkg/middleware"
	"adpilot/pkg/ratelimit"
)

// initHTTPServer builds the ops surface: health, metrics, streaming status and
// the cache invalidation hook the rule-management API calls.
func (a *App) initHTTPServer() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(
		middleware.RecoveryMiddleware(a.Logger),
		middleware.LoggerMiddleware(a.Logger),
		middleware.RequestIDMiddleware(),
	)

	registry := health.NewCheckerRegistry()
	registry.Register(health.NewPostgreSQLChecker(a.db))
	registry.Register(health.NewRedisChecker(a.redisClient))
	registry.Register(health.NewMongoDBChecker(a.mongoClient))
	registry.Register(health.NewFuncChecker("streaming", func(ctx context.Context) error {
		state := a.supervisor.Status().State
		if state == streaming.StateStopped || state == streaming.StateDegraded {
			return fmt.Errorf("stream is %s", state)
		}
		return nil
	}))

	router.GET("/health", func(c *gin.Context) {
		h := registry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, h)
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")

	api.GET("/streaming/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"supervisor": a.supervisor.Status(),
			"pipeline":   a.processor.Stats(),
		})
	})

	mutating := api.Group("")
	if a.Config.Server.RateLimit.Enabled {
		rlCfg := ratelimit.DefaultConfig()
		rlCfg.RPS = a.Config.Server.RateLimit.RPS
		rlCfg.Burst = a.Config.Server.RateLimit.Burst
		mutating.Use(ratelimit.RateLimitMiddleware(rlCfg))
	}

	mutating.POST("/rules/:tenant_id/invalidate", func(c *gin.Context) {
		tenantID := c.Param("tenant_id")
		if tenantID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "tenant_id is required"})
			return
		}
		a.ruleCache.Invalidate(tenantID)
		c.JSON(http.StatusAccepted, gin.H{"invalidated": tenantID})
	})

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: router,
	}
}
