package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/vendorsync/internal/domain"
)

func openTestStore(t *testing.T, path string) *Store {
	t.Helper()

	store, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_ReadMissingSlot(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "queue.db"))

	_, err := store.ReadSlot(context.Background(), domain.QueueSlotKey)
	require.True(t, errors.Is(err, domain.ErrSlotNotFound))
}

func TestStore_WriteReplacesSlot(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "queue.db"))
	ctx := context.Background()

	require.NoError(t, store.WriteSlot(ctx, domain.QueueSlotKey, []byte(`{"version":1,"orders":[]}`)))
	require.NoError(t, store.WriteSlot(ctx, domain.QueueSlotKey, []byte(`[]`)))

	got, err := store.ReadSlot(ctx, domain.QueueSlotKey)
	require.NoError(t, err)
	require.Equal(t, "[]", string(got))
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "queue.db")
	ctx := context.Background()

	first, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, first.WriteSlot(ctx, "k", []byte("value")))
	require.NoError(t, first.Close())

	second := openTestStore(t, path)
	got, err := second.ReadSlot(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "value", string(got))

	version, err := second.MigrationVersion(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, version)
}

func TestStore_EmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	require.Error(t, err)
}

func TestStore_NilGuards(t *testing.T) {
	var store *Store

	require.Error(t, store.Ping(context.Background()))
	require.NoError(t, store.Close())
	_, err := store.ReadSlot(context.Background(), "k")
	require.Error(t, err)
}
