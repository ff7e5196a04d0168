package main

import (
	"database/sql"
	"net/http"
	"time"

	"tenant-platform/internal/httpapi"
	"tenant-platform/internal/membership"
	"tenant-platform/internal/metrics"
	"tenant-platform/internal/rbac"
	"tenant-platform/internal/records"
	"tenant-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type handlers struct {
	db      *sql.DB
	reg     *prometheus.Registry
	access  *rbac.Service
	members *membership.Service
	records *records.Service
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), h.db, 2*time.Second); err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler(h.reg)))

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)

	api := httpapi.Handlers{Members: h.members, Records: h.records}
	api.Register(v1, h.access)
}
