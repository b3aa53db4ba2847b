package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/vendorsync/internal/domain"
)

func TestSlotRepository_PostgresReadWrite(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewSlotRepository(store)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := repo.ReadSlot(ctx, domain.QueueSlotKey); !errors.Is(err, domain.ErrSlotNotFound) {
		t.Fatalf("expected ErrSlotNotFound, got %v", err)
	}

	first := []byte(`{"version":1,"orders":[]}`)
	if err := repo.WriteSlot(ctx, domain.QueueSlotKey, first); err != nil {
		t.Fatalf("write slot: %v", err)
	}
	second := []byte(`{"version":1,"orders":[{"id":"a","status":"pending"}]}`)
	if err := repo.WriteSlot(ctx, domain.QueueSlotKey, second); err != nil {
		t.Fatalf("overwrite slot: %v", err)
	}

	got, err := repo.ReadSlot(ctx, domain.QueueSlotKey)
	if err != nil {
		t.Fatalf("read slot: %v", err)
	}
	if string(got) != string(second) {
		t.Fatalf("slot must be replaced whole, got %s", got)
	}

	revision, err := repo.Revision(ctx, domain.QueueSlotKey)
	if err != nil {
		t.Fatalf("revision: %v", err)
	}
	if revision != 2 {
		t.Fatalf("expected revision 2, got %d", revision)
	}
}

func TestSlotRepository_PostgresEmptyValue(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewSlotRepository(store)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := repo.WriteSlot(ctx, "empty", nil); err != nil {
		t.Fatalf("write nil slot: %v", err)
	}
	got, err := repo.ReadSlot(ctx, "empty")
	if err != nil {
		t.Fatalf("read slot: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty value, got %q", got)
	}
}
