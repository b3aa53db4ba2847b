package retention

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

const defaultInterval = time.Hour

var (
	retentionRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vendorsync_retention_runs_total",
		Help: "Total number of failed-order retention runs.",
	})
	retentionLastPurged = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vendorsync_retention_last_purged",
		Help: "Number of failed orders purged during the last retention run.",
	})
)

// Purger удаляет failed-заказы, последний раз обновлённые раньше before.
type Purger interface {
	PurgeFailed(before time.Time) int
}

// Options задает параметры воркера.
type Options struct {
	Logger   *log.Entry
	Interval time.Duration
	Now      func() time.Time
}

// Option настраивает Worker.
type Option func(*Options)

// WithLogger задает logger для воркера.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithInterval задает интервал между запусками.
func WithInterval(interval time.Duration) Option {
	return func(opts *Options) {
		opts.Interval = interval
	}
}

// WithNow подменяет источник времени.
func WithNow(now func() time.Time) Option {
	return func(opts *Options) {
		opts.Now = now
	}
}

// Worker периодически удаляет из очереди failed-заказы старше retention.
// При retention <= 0 воркер выключен: failed-заказы остаются видимыми.
type Worker struct {
	purger    Purger
	retention time.Duration
	logger    *log.Entry
	interval  time.Duration
	now       func() time.Time
}

// NewWorker создает воркер очистки failed-заказов.
func NewWorker(purger Purger, retention time.Duration, options ...Option) *Worker {
	opts := Options{Interval: defaultInterval}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "failed-order-retention")
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Worker{
		purger:    purger,
		retention: retention,
		logger:    logger,
		interval:  opts.Interval,
		now:       opts.Now,
	}
}

// Enabled сообщает, будет ли воркер что-то удалять.
func (w *Worker) Enabled() bool {
	return w.purger != nil && w.retention > 0
}

// Run запускает периодическую очистку до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if !w.Enabled() {
		w.logger.Debug("failed-order retention is disabled")
		return
	}

	w.RunOnce()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce()
		}
	}
}

// RunOnce выполняет один проход и возвращает число удалённых заказов.
func (w *Worker) RunOnce() int {
	if !w.Enabled() {
		return 0
	}

	purged := w.purger.PurgeFailed(w.now().Add(-w.retention))
	retentionRunsTotal.Inc()
	retentionLastPurged.Set(float64(purged))
	if purged > 0 {
		w.logger.WithFields(log.Fields{
			"purged":    purged,
			"retention": w.retention.String(),
		}).Info("stale failed orders purged")
	}
	return purged
}
