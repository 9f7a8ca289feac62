package core

import "github.com/chewxy/math32"

// DefaultTimerFreq is the clock rate Poll is driven at unless configured.
const DefaultTimerFreq = 1000000

// StandbyTickPeriod is the default sampling tick period in seconds.
const StandbyTickPeriod float32 = 2.0e-4

// TicksFromSeconds converts a period to timer ticks, never returning zero.
func TicksFromSeconds(freq uint32, seconds float32) uint32 {
	t := math32.Round(seconds * float32(freq))
	if t < 1 {
		return 1
	}
	if t >= float32(0x7FFFFFFF) {
		return 0x7FFFFFFF
	}
	return uint32(t)
}

// TicksToSeconds converts timer ticks to seconds.
func TicksToSeconds(freq uint32, ticks uint32) float32 {
	return float32(ticks) / float32(freq)
}
