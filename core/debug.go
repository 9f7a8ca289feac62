package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// Event is one record in the tick's post-mortem ring.
type Event struct {
	Type   uint8
	Index  uint8  // heater index where relevant
	Tick   uint32 // tick count at the event
	Value1 uint32
	Value2 uint32
}

// Event type codes
const (
	EvtHeaterFault = 1 // filter sum out of range: v1=sum v2=overheat threshold
	EvtTickLate    = 2 // tick timer fell behind: v1=missed periods
	EvtProbeReset  = 3 // probe filters reinitialised: v1=probe type
)

const EventRingSize = 32

// EventRing keeps the last EventRingSize events. Record runs in the tick or
// with interrupts disabled; readers take a copy with interrupts disabled.
type EventRing struct {
	events [EventRingSize]Event
	head   uint8
}

// Record stores an event, overwriting the oldest.
func (r *EventRing) Record(typ, index uint8, tick, v1, v2 uint32) {
	idx := r.head
	r.events[idx] = Event{Type: typ, Index: index, Tick: tick, Value1: v1, Value2: v2}
	r.head = (idx + 1) % EventRingSize
}

// Snapshot returns the recorded events from oldest to newest.
func (r *EventRing) Snapshot() []Event {
	state := disableInterrupts()
	events := r.events
	head := r.head
	restoreInterrupts(state)

	out := make([]Event, 0, EventRingSize)
	for i := uint8(0); i < EventRingSize; i++ {
		evt := events[(head+i)%EventRingSize]
		if evt.Type == 0 {
			continue
		}
		out = append(out, evt)
	}
	return out
}

func (r *EventRing) Clear() {
	state := disableInterrupts()
	r.events = [EventRingSize]Event{}
	r.head = 0
	restoreInterrupts(state)
}

func eventName(t uint8) string {
	switch t {
	case EvtHeaterFault:
		return "HEATER_FAULT"
	case EvtTickLate:
		return "TICK_LATE"
	case EvtProbeReset:
		return "PROBE_RESET"
	}
	return "UNKNOWN"
}

// Dump writes the ring through w, oldest first.
func (r *EventRing) Dump(w DebugWriter) {
	if w == nil {
		return
	}
	w("[EVENTS] === Event Ring Dump ===")
	for _, evt := range r.Snapshot() {
		w("[EVENTS] " + eventName(evt.Type) +
			" idx=" + itoa(int(evt.Index)) +
			" tick=" + utoa(evt.Tick) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	w("[EVENTS] === End Dump ===")
}

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Async debug output channel
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts the async debug output goroutine
// Call this from main() after SetDebugWriter
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go debugOutputWorker()
}

func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message for async output (non-blocking)
// Returns immediately even if channel is full (drops message)
func DebugAsync(msg string) {
	if debugChan != nil {
		select {
		case debugChan <- msg:
		default:
		}
	}
}
