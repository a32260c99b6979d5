package handlers

import (
	"gorm.io/gorm"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dag-trigger-gateway/internal/config"
	"dag-trigger-gateway/internal/metrics"
	"dag-trigger-gateway/internal/repository"
	"dag-trigger-gateway/internal/scheduler"
	"dag-trigger-gateway/internal/trigger"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	db        *gorm.DB
	repo      *repository.Repository
	trigger   *trigger.Service
	scheduler *scheduler.Scheduler
	metrics   *metrics.Metrics
	cfg       *config.Config
}

// NewHandlers creates new HTTP handlers
func NewHandlers(
	db *gorm.DB,
	repo *repository.Repository,
	t *trigger.Service,
	s *scheduler.Scheduler,
	m *metrics.Metrics,
	cfg *config.Config,
) *Handlers {
	return &Handlers{db: db, repo: repo, trigger: t, scheduler: s, metrics: m, cfg: cfg}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	// Pub/Sub push delivery; the subscription may point at either path
	router.POST("/", h.HandlePush)
	router.POST("/push", h.HandlePush)

	// Health check
	router.GET("/healthz", h.HealthCheck)

	// Prometheus metrics
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := router.Group("/api/v1")
	{
		// Trigger logs
		api.GET("/logs", h.GetLogs)
		api.GET("/logs/:id", h.GetLog)

		// Stats scheduler control
		api.POST("/scheduler/start", h.StartScheduler)
		api.POST("/scheduler/stop", h.StopScheduler)
		api.POST("/scheduler/run-once", h.RunOnce)
		api.GET("/scheduler/status", h.GetSchedulerStatus)
	}
}
