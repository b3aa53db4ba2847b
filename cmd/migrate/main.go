package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/vendorsync/internal/storage/postgres"
	"github.com/vladislavdragonenkov/vendorsync/internal/storage/sqlite"
)

const (
	defaultTimeout = 30 * time.Second
)

func main() {
	var (
		driver     string
		direction  string
		steps      int
		dsn        string
		sqlitePath string
	)

	flag.StringVar(&driver, "driver", "postgres", "storage driver: postgres|sqlite")
	flag.StringVar(&direction, "direction", "up", "migration direction: up|down|status")
	flag.IntVar(&steps, "steps", 0, "number of migrations to apply/rollback (0=all for up, 1 for down)")
	flag.StringVar(&dsn, "dsn", "", "PostgreSQL DSN (fallback: VENDOR_SYNC_POSTGRES_DSN)")
	flag.StringVar(&sqlitePath, "sqlite-path", "", "SQLite file (fallback: VENDOR_SYNC_SQLITE_PATH)")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres":
		runPostgres(ctx, dsn, direction, steps)
	case "sqlite":
		runSQLite(ctx, sqlitePath, direction)
	default:
		fail("unsupported driver: %s (use postgres|sqlite)", driver)
	}
}

func runPostgres(ctx context.Context, dsn, direction string, steps int) {
	if strings.TrimSpace(dsn) == "" {
		dsn = strings.TrimSpace(os.Getenv("VENDOR_SYNC_POSTGRES_DSN"))
	}
	if dsn == "" {
		fail("VENDOR_SYNC_POSTGRES_DSN (or -dsn) is required")
	}

	store, err := postgres.Open(ctx, dsn)
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "up":
		if err := store.MigrateUp(ctx, steps); err != nil {
			fail("migrate up failed: %v", err)
		}
		version, count, err := store.MigrationStatus(ctx)
		if err != nil {
			fail("migration status failed: %v", err)
		}
		fmt.Printf("migrate up ok: version=%d applied=%d\n", version, count)
	case "down":
		if steps <= 0 {
			steps = 1
		}
		if err := store.MigrateDown(ctx, steps); err != nil {
			fail("migrate down failed: %v", err)
		}
		version, count, err := store.MigrationStatus(ctx)
		if err != nil {
			fail("migration status failed: %v", err)
		}
		fmt.Printf("migrate down ok: version=%d applied=%d\n", version, count)
	case "status":
		version, count, err := store.MigrationStatus(ctx)
		if err != nil {
			fail("migration status failed: %v", err)
		}
		fmt.Printf("migration status: version=%d applied=%d\n", version, count)
	default:
		fail("unsupported direction: %s (use up|down|status)", direction)
	}
}

// runSQLite: Open уже применяет все up-миграции, откат для файла на устройстве не поддерживается.
func runSQLite(ctx context.Context, path, direction string) {
	if strings.TrimSpace(path) == "" {
		path = strings.TrimSpace(os.Getenv("VENDOR_SYNC_SQLITE_PATH"))
	}
	if path == "" {
		fail("VENDOR_SYNC_SQLITE_PATH (or -sqlite-path) is required")
	}

	direction = strings.ToLower(strings.TrimSpace(direction))
	if direction != "up" && direction != "status" {
		fail("unsupported direction for sqlite: %s (use up|status)", direction)
	}

	store, err := sqlite.Open(ctx, path)
	if err != nil {
		fail("open sqlite store: %v", err)
	}
	defer store.Close()

	version, err := store.MigrationVersion(ctx)
	if err != nil {
		fail("migration status failed: %v", err)
	}
	fmt.Printf("sqlite %s ok: path=%s version=%d\n", direction, store.Path(), version)
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
