// Package app собирает агент синхронизации офлайн-заказов: хранилище,
// отправку, источник сети, менеджер очереди, HTTP API и фоновые воркеры.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/vendorsync/internal/health"
	"github.com/vladislavdragonenkov/vendorsync/internal/httpapi"
	"github.com/vladislavdragonenkov/vendorsync/internal/metrics"
	"github.com/vladislavdragonenkov/vendorsync/internal/service/offline"
	"github.com/vladislavdragonenkov/vendorsync/internal/service/retention"
	"github.com/vladislavdragonenkov/vendorsync/internal/version"
)

// Run запускает агент и блокируется до отмены ctx или ошибки HTTP-сервера.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := deps.close(); closeErr != nil {
			logger.WithError(closeErr).Warn("failed to close runtime dependencies")
		}
	}()

	manager := offline.NewManager(
		deps.store,
		deps.submitter,
		deps.conn,
		offline.WithLogger(log.WithField("component", "offline-manager")),
		offline.WithMetrics(metrics.NewSyncMetrics()),
		offline.WithGracePeriod(cfg.GracePeriod),
		offline.WithSubmitTimeout(cfg.SubmitTimeout),
		offline.WithPersistTimeout(cfg.PersistTimeout),
		offline.WithQueueWarnSize(cfg.QueueWarnSize),
		offline.WithSyncOnEnqueue(cfg.SyncOnEnqueue),
	)

	workersCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	// Prober стартует offline; первый опрос до Start избавляет от лишнего перехода.
	if deps.prober != nil {
		deps.prober.ProbeOnce(workersCtx)
	}

	manager.Start(workersCtx)
	defer manager.Close()

	workersDone := make(chan struct{})
	go func() {
		defer close(workersDone)
		runWorkers(workersCtx, cfg, deps, manager, logger)
	}()
	defer func() {
		stopWorkers()
		<-workersDone
	}()

	healthHandler := newHealthHandler(cfg, deps, manager)
	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)
	defer shutdownHTTP(metricsSrv, cfg.ShutdownTimeout, logger)

	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewRouter(httpapi.Config{
		Manager:        manager,
		Manual:         deps.manual,
		Health:         healthHandler,
		AllowedOrigins: splitList(cfg.AllowedOrigins),
		Logger:         log.WithField("component", "http-api"),
	})

	lis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.HTTPAddr, err)
	}
	apiSrv := &http.Server{Handler: router, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP API слушает %s", lis.Addr())
		errCh <- apiSrv.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP API")
		shutdownHTTP(apiSrv, cfg.ShutdownTimeout, logger)
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// runWorkers запускает фоновые циклы и ждёт их завершения.
func runWorkers(ctx context.Context, cfg Config, deps *runtimeDependencies, manager *offline.Manager, logger *log.Entry) {
	done := make(chan struct{}, 2)
	started := 0

	if deps.prober != nil {
		started++
		go func() {
			defer func() { done <- struct{}{} }()
			deps.prober.Run(ctx)
		}()
	}

	worker := retention.NewWorker(manager, cfg.FailedRetention,
		retention.WithInterval(cfg.RetentionPeriod),
		retention.WithLogger(log.WithField("component", "retention-worker")),
	)
	if worker.Enabled() {
		started++
		go func() {
			defer func() { done <- struct{}{} }()
			worker.Run(ctx)
		}()
	} else {
		logger.Debug("failed order retention disabled")
	}

	for i := 0; i < started; i++ {
		<-done
	}
}

func newHealthHandler(cfg Config, deps *runtimeDependencies, manager *offline.Manager) *healthcheck.Handler {
	handler := healthcheck.NewHandler(version.GetVersion())
	if deps.storageChecker != nil {
		handler.RegisterChecker("storage", deps.storageChecker)
	}
	handler.RegisterChecker("connectivity", healthcheck.NewFuncChecker("connectivity", func(context.Context) (healthcheck.Status, string) {
		if manager.Status().Online {
			return healthcheck.StatusHealthy, ""
		}
		return healthcheck.StatusDegraded, "order acceptance service is unreachable"
	}))
	handler.RegisterChecker("queue", healthcheck.NewFuncChecker("queue", queueHealth(cfg.QueueWarnSize, manager)))
	return handler
}

func queueHealth(warnSize int, manager *offline.Manager) func(context.Context) (healthcheck.Status, string) {
	return func(context.Context) (healthcheck.Status, string) {
		status := manager.Status()
		switch {
		case warnSize > 0 && status.Pending > warnSize:
			return healthcheck.StatusDegraded, fmt.Sprintf("%d orders pending", status.Pending)
		case status.Failed > 0:
			return healthcheck.StatusDegraded, fmt.Sprintf("%d orders need retry", status.Failed)
		default:
			return healthcheck.StatusHealthy, ""
		}
	}
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus. Пустой addr отключает сервер.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, 5*time.Second, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, timeout time.Duration, logger *log.Entry) {
	if srv == nil {
		return
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("http shutdown with error")
	}
}
