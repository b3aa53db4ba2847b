package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/vendorsync/internal/domain"
)

// SlotStore — in-memory реализация domain.SlotStore.
// Умеет имитировать сбои чтения и записи для тестов.
type SlotStore struct {
	mu       sync.RWMutex
	slots    map[string][]byte
	readErr  error
	writeErr error
	writes   int
}

// NewSlotStore создаёт пустое хранилище слотов.
func NewSlotStore() *SlotStore {
	return &SlotStore{slots: make(map[string][]byte)}
}

func (s *SlotStore) ReadSlot(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key = strings.TrimSpace(key)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.readErr != nil {
		return nil, s.readErr
	}
	value, ok := s.slots[key]
	if !ok {
		return nil, domain.ErrSlotNotFound
	}
	return cloneBytes(value), nil
}

func (s *SlotStore) WriteSlot(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key = strings.TrimSpace(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writeErr != nil {
		return s.writeErr
	}
	s.slots[key] = cloneBytes(value)
	s.writes++
	return nil
}

// Put записывает значение в обход счётчика и сбоев (подготовка данных в тестах).
func (s *SlotStore) Put(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[key] = cloneBytes(value)
}

// Get возвращает значение слота без учёта сбоев.
func (s *SlotStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.slots[key]
	return cloneBytes(value), ok
}

// FailReads включает ошибку для всех ReadSlot; nil выключает.
func (s *SlotStore) FailReads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

// FailWrites включает ошибку для всех WriteSlot; nil выключает.
func (s *SlotStore) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// Writes возвращает число успешных записей.
func (s *SlotStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

func cloneBytes(value []byte) []byte {
	if value == nil {
		return nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out
}

var _ domain.SlotStore = (*SlotStore)(nil)
