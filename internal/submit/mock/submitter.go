// Package mock содержит конфигурируемую заглушку OrderSubmitter.
package mock

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/vendorsync/internal/domain"
)

// Submitter — заглушка OrderSubmitter для тестов и локального запуска.
// Записывает каждый вызов и умеет блокировать отправку до Release.
type Submitter struct {
	mu        sync.Mutex
	err       error
	errByID   map[string]error
	calls     []domain.OfflineOrder
	gate      chan struct{}
	entered   chan string
	active    int
	maxActive int
}

// NewSubmitter возвращает mock с успешным сценарием по умолчанию.
func NewSubmitter() *Submitter {
	return &Submitter{errByID: make(map[string]error)}
}

// FailAll задаёт ошибку для всех заказов без собственной ошибки; nil — успех.
func (s *Submitter) FailAll(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// FailOrder задаёт ошибку для конкретного заказа; nil снимает её.
func (s *Submitter) FailOrder(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.errByID, id)
		return
	}
	s.errByID[id] = err
}

// Block заставляет следующие вызовы ждать Release (или отмены ctx).
// Возвращает канал, в который пишется id каждого вошедшего вызова.
func (s *Submitter) Block() <-chan string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = make(chan struct{})
	s.entered = make(chan string, 128)
	return s.entered
}

// Release снимает блокировку, установленную Block.
func (s *Submitter) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate != nil {
		close(s.gate)
		s.gate = nil
	}
}

// SubmitOrder записывает вызов и возвращает настроенный результат.
func (s *Submitter) SubmitOrder(ctx context.Context, order domain.OfflineOrder) error {
	s.mu.Lock()
	s.calls = append(s.calls, order.Clone())
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	gate, entered := s.gate, s.entered
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	if gate != nil {
		entered <- order.ID
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.errByID[order.ID]; ok {
		return err
	}
	return s.err
}

// Calls возвращает копию журнала вызовов в порядке поступления.
func (s *Submitter) Calls() []domain.OfflineOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.OfflineOrder, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallIDs возвращает id заказов в порядке вызовов.
func (s *Submitter) CallIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(s.calls))
	for i, order := range s.calls {
		ids[i] = order.ID
	}
	return ids
}

// MaxConcurrent возвращает максимальное число одновременных вызовов.
func (s *Submitter) MaxConcurrent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxActive
}

var _ domain.OrderSubmitter = (*Submitter)(nil)
