package clock

import (
	"testing"
	"time"
)

func TestVirtual_AdvanceRunsDueTasksInOrder(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	v := NewVirtual(start)

	var fired []string
	v.AfterFunc(3*time.Second, func() { fired = append(fired, "c") })
	v.AfterFunc(1*time.Second, func() { fired = append(fired, "a") })
	v.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })

	v.Advance(1999 * time.Millisecond)
	if len(fired) != 1 || fired[0] != "a" {
		t.Fatalf("expected only a to fire, got %v", fired)
	}

	v.Advance(2 * time.Second)
	if len(fired) != 3 || fired[1] != "b" || fired[2] != "c" {
		t.Fatalf("unexpected firing order: %v", fired)
	}
	if got := v.Now(); !got.Equal(start.Add(3999 * time.Millisecond)) {
		t.Fatalf("unexpected now: %s", got)
	}
}

func TestVirtual_StopCancelsTask(t *testing.T) {
	t.Parallel()

	v := NewVirtual(time.Unix(0, 0))
	fired := false
	task := v.AfterFunc(time.Second, func() { fired = true })

	if !task.Stop() {
		t.Fatal("first Stop should report cancellation")
	}
	if task.Stop() {
		t.Fatal("second Stop should return false")
	}

	v.Advance(time.Minute)
	if fired {
		t.Fatal("stopped task must not fire")
	}
	if v.Pending() != 0 {
		t.Fatalf("expected no pending tasks, got %d", v.Pending())
	}
}

func TestVirtual_TaskCanScheduleTask(t *testing.T) {
	t.Parallel()

	v := NewVirtual(time.Unix(0, 0))
	count := 0
	v.AfterFunc(time.Second, func() {
		count++
		v.AfterFunc(time.Second, func() { count++ })
	})

	v.Advance(2 * time.Second)
	if count != 2 {
		t.Fatalf("expected chained task to fire, count=%d", count)
	}
}

func TestReal_AfterFunc(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})
	NewReal().AfterFunc(5*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("real scheduler did not fire")
	}
}
