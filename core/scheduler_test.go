package core

import "testing"

func TestSchedulerOrderAndReschedule(t *testing.T) {
	var s Scheduler
	var order []string

	periodic := &Timer{WakeTime: 10}
	periodic.Handler = func(t *Timer) uint8 {
		order = append(order, "p")
		t.WakeTime += 10
		return SF_RESCHEDULE
	}
	once := &Timer{WakeTime: 15, Handler: func(*Timer) uint8 {
		order = append(order, "o")
		return SF_DONE
	}}
	s.Add(periodic)
	s.Add(once)

	s.Dispatch(5)
	if len(order) != 0 {
		t.Fatalf("timers fired early: %v", order)
	}
	s.Dispatch(20)
	want := []string{"p", "o", "p"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("got %v, want %v", order, want)
			break
		}
	}
	if s.Pending() != 1 {
		t.Errorf("pending = %d, want 1", s.Pending())
	}
}

func TestSchedulerWraparound(t *testing.T) {
	var s Scheduler
	fired := 0
	timer := &Timer{WakeTime: 0xFFFFFFF0, Handler: func(t *Timer) uint8 {
		fired++
		t.WakeTime += 0x20 // wraps past zero
		return SF_RESCHEDULE
	}}
	s.Add(timer)

	s.Dispatch(0xFFFFFFF8)
	if fired != 1 {
		t.Fatalf("fired %d, want 1", fired)
	}
	// 0x10 is after 0xFFFFFFF8 across the wrap but before the new wake time
	s.Dispatch(0x08)
	if fired != 1 {
		t.Errorf("fired %d before wake time", fired)
	}
	s.Dispatch(0x10)
	if fired != 2 {
		t.Errorf("fired %d, want 2", fired)
	}
}

func TestSchedulerRemove(t *testing.T) {
	var s Scheduler
	a := &Timer{WakeTime: 1, Handler: func(*Timer) uint8 { return SF_DONE }}
	b := &Timer{WakeTime: 2, Handler: func(*Timer) uint8 { return SF_DONE }}
	s.Add(a)
	s.Add(b)
	s.Remove(a)
	if s.Pending() != 1 {
		t.Errorf("pending = %d", s.Pending())
	}
	s.Remove(a)
	if s.Pending() != 1 {
		t.Error("removing an unscheduled timer changed the list")
	}
}

func TestTicksFromSeconds(t *testing.T) {
	if got := TicksFromSeconds(1000000, StandbyTickPeriod); got != 200 {
		t.Errorf("standby period = %d ticks, want 200", got)
	}
	if got := TicksFromSeconds(1000000, 1e-9); got != 1 {
		t.Errorf("tiny period = %d ticks, want 1", got)
	}
}
