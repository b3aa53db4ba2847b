// Package connectivity реализует источники сигнала "есть связь с сервисом приёма заказов".
package connectivity

import (
	"sync"

	"github.com/vladislavdragonenkov/vendorsync/internal/domain"
)

// Manual — источник, состояние которого меняют явно (HTTP, тесты).
// Подписчики вызываются синхронно и только при смене состояния.
type Manual struct {
	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]func(bool)
}

// NewManual создаёт источник с начальным состоянием online.
func NewManual(online bool) *Manual {
	return &Manual{
		online: online,
		subs:   make(map[int]func(bool)),
	}
}

func (m *Manual) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *Manual) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
		})
	}
}

// Set меняет состояние. Возвращает true, если состояние изменилось.
func (m *Manual) Set(online bool) bool {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return false
	}
	m.online = online
	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(online)
	}
	return true
}

// Subscribers возвращает число активных подписчиков.
func (m *Manual) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

var _ domain.ConnectivitySource = (*Manual)(nil)
