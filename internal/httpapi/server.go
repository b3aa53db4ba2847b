// Package httpapi — HTTP-интерфейс для UI продавца: очередь, индикатор сети,
// создание заказов, ручная синхронизация и retry.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vendorsync/internal/connectivity"
	"github.com/vladislavdragonenkov/vendorsync/internal/domain"
	"github.com/vladislavdragonenkov/vendorsync/internal/health"
	"github.com/vladislavdragonenkov/vendorsync/internal/service/offline"
)

// Config — зависимости и настройки роутера.
type Config struct {
	Manager *offline.Manager
	// Manual задан, только если сеть переключается вручную; иначе PUT /v1/connectivity отвечает 409.
	Manual         *connectivity.Manual
	Health         *health.Handler
	AllowedOrigins []string
	Logger         *log.Entry
}

type server struct {
	manager  *offline.Manager
	manual   *connectivity.Manual
	validate *validatorv10.Validate
	logger   *log.Entry
}

// NewRouter собирает gin.Engine со всеми маршрутами.
func NewRouter(cfg Config) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}

	s := &server{
		manager:  cfg.Manager,
		manual:   cfg.Manual,
		validate: newValidator(),
		logger:   logger,
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	corsConfig := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	}
	router.Use(cors.New(corsConfig))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/livez", gin.WrapF(health.LivenessHandler))
	if cfg.Health != nil {
		router.GET("/healthz", gin.WrapH(cfg.Health))
		router.GET("/readyz", gin.WrapF(cfg.Health.ReadinessHandler))
	}

	v1 := router.Group("/v1")
	v1.GET("/queue", s.getQueue)
	v1.GET("/status", s.getStatus)
	v1.POST("/orders", s.createOrder)
	v1.POST("/orders/retry-failed", s.retryFailed)
	v1.POST("/orders/:id/retry", s.retryOrder)
	v1.POST("/sync", s.syncNow)
	v1.PUT("/connectivity", s.setConnectivity)

	return router
}

type statusResponse struct {
	Online          bool       `json:"online"`
	SyncInFlight    bool       `json:"syncInFlight"`
	Pending         int        `json:"pending"`
	Synced          int        `json:"synced"`
	Failed          int        `json:"failed"`
	OldestPendingAt *time.Time `json:"oldestPendingAt,omitempty"`
}

func toStatusResponse(status offline.Status) statusResponse {
	resp := statusResponse{
		Online:       status.Online,
		SyncInFlight: status.SyncInFlight,
		Pending:      status.Pending,
		Synced:       status.Synced,
		Failed:       status.Failed,
	}
	if !status.OldestPendingAt.IsZero() {
		oldest := status.OldestPendingAt
		resp.OldestPendingAt = &oldest
	}
	return resp
}

type syncResponse struct {
	Trigger    string   `json:"trigger"`
	Synced     []string `json:"synced"`
	Failed     []string `json:"failed"`
	Skipped    int      `json:"skipped"`
	DurationMs int64    `json:"durationMs"`
}

func (s *server) getQueue(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"orders": s.manager.Snapshot(),
		"status": toStatusResponse(s.manager.Status()),
	})
}

func (s *server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, toStatusResponse(s.manager.Status()))
}

func (s *server) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := bindAndValidate(c, &req, s.validate); err != nil {
		return
	}

	order, err := s.manager.Enqueue(req.toDraft())
	if err != nil {
		if domain.IsInvalidDraft(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "msg": err.Error()})
			return
		}
		s.internalError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

func (s *server) syncNow(c *gin.Context) {
	report, err := s.manager.SyncAll(c.Request.Context())
	switch {
	case errors.Is(err, domain.ErrSyncInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "sync_in_progress"})
		return
	case errors.Is(err, domain.ErrOffline):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "offline"})
		return
	case err != nil:
		s.internalError(c, err)
		return
	}

	resp := syncResponse{
		Trigger:    report.Trigger,
		Synced:     report.Synced,
		Failed:     report.Failed,
		Skipped:    report.Skipped,
		DurationMs: report.Duration.Milliseconds(),
	}
	if resp.Synced == nil {
		resp.Synced = []string{}
	}
	if resp.Failed == nil {
		resp.Failed = []string{}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *server) retryOrder(c *gin.Context) {
	order, err := s.manager.Retry(c.Param("id"))
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order_not_found"})
		return
	case errors.Is(err, domain.ErrOrderNotFailed):
		c.JSON(http.StatusConflict, gin.H{"error": "order_not_failed"})
		return
	case err != nil:
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *server) retryFailed(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"requeued": s.manager.RetryFailed()})
}

func (s *server) setConnectivity(c *gin.Context) {
	if s.manual == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "connectivity_is_probed"})
		return
	}

	var req connectivityRequest
	if err := bindAndValidate(c, &req, s.validate); err != nil {
		return
	}

	changed := s.manual.Set(*req.Online)
	c.JSON(http.StatusOK, gin.H{"online": *req.Online, "changed": changed})
}

func (s *server) internalError(c *gin.Context, err error) {
	s.logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}

func requestLogger(logger *log.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(log.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("http request")
			return
		}
		entry.Debug("http request")
	}
}
