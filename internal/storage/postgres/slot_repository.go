package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/vendorsync/internal/domain"
)

// SlotRepository хранит слоты очереди в таблице queue_slots.
// Каждая запись целиком заменяет значение слота и увеличивает revision.
type SlotRepository struct {
	db *sql.DB
}

// NewSlotRepository создаёт PostgreSQL-реализацию domain.SlotStore.
func NewSlotRepository(store *Store) *SlotRepository {
	return &SlotRepository{db: store.DB()}
}

func (r *SlotRepository) ReadSlot(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var value []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT value
		FROM queue_slots
		WHERE key = $1
	`, strings.TrimSpace(key)).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read queue slot %q: %w", key, err)
	}

	return value, nil
}

func (r *SlotRepository) WriteSlot(ctx context.Context, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if value == nil {
		value = []byte{}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO queue_slots (key, value, updated_at, revision)
		VALUES ($1, $2, NOW(), 1)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value,
		    updated_at = NOW(),
		    revision = queue_slots.revision + 1
	`, strings.TrimSpace(key), value)
	if err != nil {
		return fmt.Errorf("write queue slot %q: %w", key, err)
	}

	return nil
}

// Revision возвращает число записей слота (0, если слота нет).
func (r *SlotRepository) Revision(ctx context.Context, key string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var revision int64
	err := r.db.QueryRowContext(ctx, `
		SELECT revision FROM queue_slots WHERE key = $1
	`, strings.TrimSpace(key)).Scan(&revision)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read queue slot revision %q: %w", key, err)
	}
	return revision, nil
}

var _ domain.SlotStore = (*SlotRepository)(nil)
