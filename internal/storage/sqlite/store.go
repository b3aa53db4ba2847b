// Package sqlite хранит слоты очереди в локальном файле SQLite.
// Это режим по умолчанию для устройства продавца: файл переживает перезапуск
// процесса и не требует сервера БД.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vladislavdragonenkov/vendorsync/internal/domain"
	"github.com/vladislavdragonenkov/vendorsync/internal/storage/migrations"
)

const (
	opTimeout      = 5 * time.Second
	migrationsGlob = "sql/migrations/*.sql"
	dsnPragmas     = "?_pragma=busy_timeout=5000&_pragma=journal_mode=WAL"
	migrationTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at INTEGER NOT NULL
)`
)

//go:embed sql/migrations/*.sql
var migrationsFS embed.FS

var errStoreNotInitialized = errors.New("sqlite store is not initialized")

// Store — подключение к файлу SQLite и реализация domain.SlotStore.
type Store struct {
	db   *sql.DB
	path string
}

// Open открывает (или создаёт) файл базы и применяет миграции.
func Open(ctx context.Context, path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Один писатель: SQLite сериализует запись на уровне файла.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	store := &Store{db: db, path: path}
	if err := store.migrateUp(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path возвращает путь к файлу базы.
func (s *Store) Path() string {
	return s.path
}

// Ping проверяет доступность базы.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}
	pingCtx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// Close закрывает базу.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ReadSlot(ctx context.Context, key string) ([]byte, error) {
	if s == nil || s.db == nil {
		return nil, errStoreNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM slots WHERE key = ?`, strings.TrimSpace(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read slot %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) WriteSlot(ctx context.Context, key string, value []byte) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if value == nil {
		value = []byte{}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO slots (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE
		SET value = excluded.value,
		    updated_at = excluded.updated_at
	`, strings.TrimSpace(key), value, time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("write slot %q: %w", key, err)
	}
	return nil
}

// MigrationVersion возвращает последнюю применённую версию схемы.
func (s *Store) MigrationVersion(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errStoreNotInitialized
	}
	var version int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("query migration version: %w", err)
	}
	return version, nil
}

func (s *Store) migrateUp(ctx context.Context) error {
	list, err := migrations.Load(migrationsFS, migrationsGlob)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, migrationTable); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	applied := make(map[int64]bool)
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("query applied migrations: %w", err)
	}
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan applied migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("iterate applied migrations: %w", err)
	}
	_ = rows.Close()

	for _, m := range list {
		if applied[m.Version] {
			continue
		}
		if err := s.applyUp(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) applyUp(ctx context.Context, m migrations.Migration) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx (up %d): %w", m.Version, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, m.UpSQL); err != nil {
		return fmt.Errorf("execute up migration %d_%s: %w", m.Version, m.Name, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)
	`, m.Version, m.Name, time.Now().UTC().UnixMilli()); err != nil {
		return fmt.Errorf("record up migration %d_%s: %w", m.Version, m.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit up migration %d_%s: %w", m.Version, m.Name, err)
	}
	return nil
}

var _ domain.SlotStore = (*Store)(nil)
