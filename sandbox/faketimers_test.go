package sandbox

import "testing"

func TestAdvanceByTimeFiresInOrder(t *testing.T) {
	f := NewFakeTimers()
	f.Install()

	var order []string
	f.Schedule(100, kindTimeout, func() { order = append(order, "a") })
	f.Schedule(50, kindTimeout, func() { order = append(order, "b") })

	f.AdvanceByTime(100)

	if len(order) != 2 || order[0] != "b" || order[1] != "a" {
		t.Fatalf("expected b then a, got %v", order)
	}
}

func TestRunAllTimersDrainsIntervalsWithCap(t *testing.T) {
	f := NewFakeTimers()
	f.Install()

	count := 0
	var id int
	id = f.Schedule(10, kindInterval, func() {
		count++
		if count >= 3 {
			f.Clear(id)
		}
	})

	f.RunAllTimers()

	if count != 3 {
		t.Fatalf("expected the interval to fire exactly 3 times, got %d", count)
	}
	if f.GetTimerCount() != 0 {
		t.Fatalf("expected no pending timers after the interval cleared itself")
	}
}

func TestRunOnlyPendingTimersIgnoresTimersScheduledDuringTheRun(t *testing.T) {
	f := NewFakeTimers()
	f.Install()

	var ran []string
	f.Schedule(0, kindTimeout, func() {
		ran = append(ran, "first")
		f.Schedule(0, kindTimeout, func() { ran = append(ran, "second") })
	})

	f.RunOnlyPendingTimers()

	if len(ran) != 1 || ran[0] != "first" {
		t.Fatalf("expected only the originally pending timer to run, got %v", ran)
	}
	if f.GetTimerCount() != 1 {
		t.Fatalf("expected the newly scheduled timer to remain pending")
	}
}

func TestGetTimerCount(t *testing.T) {
	f := NewFakeTimers()
	f.Schedule(10, kindTimeout, func() {})
	f.Schedule(20, kindTimeout, func() {})
	if f.GetTimerCount() != 2 {
		t.Fatalf("expected 2 pending timers, got %d", f.GetTimerCount())
	}
}

func TestClearAllTimers(t *testing.T) {
	f := NewFakeTimers()
	f.Schedule(10, kindTimeout, func() {})
	f.ClearAllTimers()
	if f.GetTimerCount() != 0 {
		t.Fatalf("expected no timers after ClearAllTimers")
	}
}
