// Package clock даёт менеджеру очереди явные отложенные задачи,
// чтобы тесты могли двигать виртуальное время вместо ожидания таймеров.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Task — запланированная задача.
type Task interface {
	// Stop отменяет задачу. Возвращает false, если задача уже выполнена или отменена.
	Stop() bool
}

// Scheduler планирует отложенные вызовы и сообщает текущее время.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Task
}

// Real — Scheduler на основе системного времени.
type Real struct{}

// NewReal возвращает системный планировщик.
func NewReal() Real { return Real{} }

func (Real) Now() time.Time { return time.Now().UTC() }

func (Real) AfterFunc(d time.Duration, fn func()) Task {
	return time.AfterFunc(d, fn)
}

// Virtual — планировщик с ручным временем.
// Задачи выполняются синхронно внутри Advance в порядке срока.
type Virtual struct {
	mu    sync.Mutex
	now   time.Time
	seq   int
	tasks []*virtualTask
}

type virtualTask struct {
	owner *Virtual
	at    time.Time
	seq   int
	fn    func()
	done  bool
}

// NewVirtual создаёт виртуальные часы, начинающиеся со start.
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

func (v *Virtual) AfterFunc(d time.Duration, fn func()) Task {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.seq++
	task := &virtualTask{owner: v, at: v.now.Add(d), seq: v.seq, fn: fn}
	v.tasks = append(v.tasks, task)
	return task
}

// Advance сдвигает время на d и выполняет все задачи, срок которых наступил.
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	target := v.now.Add(d)
	v.mu.Unlock()

	for {
		v.mu.Lock()
		next := v.nextDueLocked(target)
		if next == nil {
			v.now = target
			v.mu.Unlock()
			return
		}
		next.done = true
		if next.at.After(v.now) {
			v.now = next.at
		}
		v.mu.Unlock()

		// fn может планировать новые задачи, поэтому вызываем без блокировки.
		next.fn()
	}
}

// Pending возвращает число невыполненных задач.
func (v *Virtual) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	n := 0
	for _, t := range v.tasks {
		if !t.done {
			n++
		}
	}
	return n
}

func (v *Virtual) nextDueLocked(target time.Time) *virtualTask {
	alive := v.tasks[:0]
	for _, t := range v.tasks {
		if !t.done {
			alive = append(alive, t)
		}
	}
	v.tasks = alive

	sort.SliceStable(v.tasks, func(i, j int) bool {
		if !v.tasks[i].at.Equal(v.tasks[j].at) {
			return v.tasks[i].at.Before(v.tasks[j].at)
		}
		return v.tasks[i].seq < v.tasks[j].seq
	})

	if len(v.tasks) == 0 || v.tasks[0].at.After(target) {
		return nil
	}
	return v.tasks[0]
}

func (t *virtualTask) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()

	if t.done {
		return false
	}
	t.done = true
	return true
}
