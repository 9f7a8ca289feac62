//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"
)

// timerFreq is the rate of the RP2040 microsecond timer.
const timerFreq = 1000000

// RP2040 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWL = timerBase + 0x28 // Raw timer low word
)

var timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))

// hardwareTime returns the low 32 bits of the microsecond counter. The
// scheduler compares times modulo 2^32.
func hardwareTime() uint32 {
	return timerRAWL.Get()
}
