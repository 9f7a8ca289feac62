package core

// Timer represents a scheduled event
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// timeBefore compares clock values across wraparound.
func timeBefore(a, b uint32) bool {
	return int32(a-b) < 0
}

// Scheduler is a sorted timer list driven by Dispatch. Handlers run with
// interrupts disabled and must not block.
type Scheduler struct {
	list *Timer
	now  uint32
}

// Add inserts t in wake-time order.
func (s *Scheduler) Add(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	s.insert(t)
}

// Remove unlinks t if it is scheduled.
func (s *Scheduler) Remove(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	for pp := &s.list; *pp != nil; pp = &(*pp).Next {
		if *pp == t {
			*pp = t.Next
			t.Next = nil
			return
		}
	}
}

func (s *Scheduler) insert(t *Timer) {
	if s.list == nil || timeBefore(t.WakeTime, s.list.WakeTime) {
		t.Next = s.list
		s.list = t
		return
	}

	current := s.list
	for current.Next != nil && !timeBefore(t.WakeTime, current.Next.WakeTime) {
		current = current.Next
	}
	t.Next = current.Next
	current.Next = t
}

// Now returns the clock value of the current Dispatch.
func (s *Scheduler) Now() uint32 {
	return s.now
}

// Dispatch runs every timer due at now.
func (s *Scheduler) Dispatch(now uint32) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	s.now = now
	for s.list != nil && !timeBefore(now, s.list.WakeTime) {
		timer := s.list
		s.list = timer.Next
		timer.Next = nil

		if timer.Handler(timer) == SF_RESCHEDULE {
			s.insert(timer)
		}
	}
}

// Pending returns the number of scheduled timers.
func (s *Scheduler) Pending() int {
	n := 0
	for t := s.list; t != nil; t = t.Next {
		n++
	}
	return n
}
