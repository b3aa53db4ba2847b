// queue-replay просматривает failed-заказы в сохранённой очереди и по флагу
// -execute возвращает их в pending. Запускать при остановленном vendor-sync:
// агент держит очередь в памяти и перезапишет слот при следующем изменении.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/vendorsync/internal/domain"
	"github.com/vladislavdragonenkov/vendorsync/internal/storage/postgres"
	"github.com/vladislavdragonenkov/vendorsync/internal/storage/sqlite"
)

const (
	defaultReplayLimit = 100
	defaultTimeout     = 30 * time.Second
)

type config struct {
	driver     string
	dsn        string
	sqlitePath string
	slotKey    string
	limit      int
	execute    bool
}

type slotStore interface {
	domain.SlotStore
	Close() error
}

var newSlotStore = func(ctx context.Context, cfg config) (slotStore, error) {
	switch cfg.driver {
	case "sqlite":
		store, err := sqlite.Open(ctx, cfg.sqlitePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		store, err := postgres.Open(ctx, cfg.dsn)
		if err != nil {
			return nil, err
		}
		return postgresSlotStore{SlotRepository: postgres.NewSlotRepository(store), store: store}, nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.driver)
	}
}

type postgresSlotStore struct {
	*postgres.SlotRepository
	store *postgres.Store
}

func (s postgresSlotStore) Close() error { return s.store.Close() }

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	cfg, err := readConfig()
	if err != nil {
		fail("%v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		fail("queue replay failed: %v", err)
	}
}

func readConfig() (config, error) {
	var cfg config

	flag.StringVar(&cfg.driver, "driver", "sqlite", "storage driver: sqlite|postgres")
	flag.StringVar(&cfg.dsn, "dsn", "", "PostgreSQL DSN (fallback: VENDOR_SYNC_POSTGRES_DSN)")
	flag.StringVar(&cfg.sqlitePath, "sqlite-path", "", "SQLite file (fallback: VENDOR_SYNC_SQLITE_PATH)")
	flag.StringVar(&cfg.slotKey, "slot", domain.QueueSlotKey, "queue slot key")
	flag.IntVar(&cfg.limit, "limit", defaultReplayLimit, "max number of failed orders to requeue")
	flag.BoolVar(&cfg.execute, "execute", false, "requeue failed orders; default is dry-run")
	flag.Parse()

	cfg.driver = strings.ToLower(strings.TrimSpace(cfg.driver))
	if strings.TrimSpace(cfg.dsn) == "" {
		cfg.dsn = strings.TrimSpace(os.Getenv("VENDOR_SYNC_POSTGRES_DSN"))
	}
	if strings.TrimSpace(cfg.sqlitePath) == "" {
		cfg.sqlitePath = strings.TrimSpace(os.Getenv("VENDOR_SYNC_SQLITE_PATH"))
	}

	switch cfg.driver {
	case "sqlite":
		if cfg.sqlitePath == "" {
			return config{}, fmt.Errorf("sqlite path is required (-sqlite-path or VENDOR_SYNC_SQLITE_PATH)")
		}
	case "postgres":
		if cfg.dsn == "" {
			return config{}, fmt.Errorf("postgres dsn is required (-dsn or VENDOR_SYNC_POSTGRES_DSN)")
		}
	default:
		return config{}, fmt.Errorf("unsupported driver: %s (use sqlite|postgres)", cfg.driver)
	}
	if strings.TrimSpace(cfg.slotKey) == "" {
		return config{}, fmt.Errorf("slot is required")
	}
	if cfg.limit <= 0 {
		return config{}, fmt.Errorf("limit must be > 0")
	}

	return cfg, nil
}

func run(ctx context.Context, cfg config) error {
	log.WithFields(log.Fields{
		"driver":  cfg.driver,
		"slot":    cfg.slotKey,
		"limit":   cfg.limit,
		"execute": cfg.execute,
	}).Info("starting queue replay")

	store, err := newSlotStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open slot store: %w", err)
	}
	defer func() { _ = store.Close() }()

	_, err = runReplay(ctx, cfg, store, time.Now().UTC())
	return err
}

type replayStats struct {
	total    int
	failed   int
	requeued int
}

func runReplay(ctx context.Context, cfg config, store domain.SlotStore, now time.Time) (replayStats, error) {
	var stats replayStats

	raw, err := store.ReadSlot(ctx, cfg.slotKey)
	if errors.Is(err, domain.ErrSlotNotFound) {
		log.WithField("slot", cfg.slotKey).Info("queue slot is empty")
		return stats, nil
	}
	if err != nil {
		return stats, fmt.Errorf("read slot %s: %w", cfg.slotKey, err)
	}

	orders, err := domain.DecodeQueue(raw)
	if err != nil {
		return stats, fmt.Errorf("decode slot %s: %w", cfg.slotKey, err)
	}
	stats.total = len(orders)

	for i := range orders {
		if orders[i].Status != domain.OrderStatusFailed {
			continue
		}
		stats.failed++

		entry := log.WithFields(log.Fields{
			"order_id":   orders[i].ID,
			"supplier":   orders[i].SupplierName,
			"attempts":   orders[i].Attempts,
			"last_error": orders[i].LastError,
		})
		if !cfg.execute || stats.requeued >= cfg.limit {
			entry.Info("dry-run: failed order")
			continue
		}
		if err := orders[i].Requeue(now); err != nil {
			return stats, fmt.Errorf("requeue %s: %w", orders[i].ID, err)
		}
		stats.requeued++
		entry.Info("failed order requeued")
	}

	if cfg.execute && stats.requeued > 0 {
		data, err := domain.EncodeQueue(orders)
		if err != nil {
			return stats, fmt.Errorf("encode slot %s: %w", cfg.slotKey, err)
		}
		if err := store.WriteSlot(ctx, cfg.slotKey, data); err != nil {
			return stats, fmt.Errorf("write slot %s: %w", cfg.slotKey, err)
		}
	}

	mode := "dry-run"
	if cfg.execute {
		mode = "execute"
	}
	log.WithFields(log.Fields{
		"mode":     mode,
		"total":    stats.total,
		"failed":   stats.failed,
		"requeued": stats.requeued,
	}).Info("queue replay finished")

	return stats, nil
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
