//go:build rp2040

package main

import (
	"machine"
)

// initUSB configures machine.Serial, which is USB CDC on the RP2040.
func initUSB() {
	machine.Serial.Configure(machine.UARTConfig{})
}

// usbAvailable returns the number of bytes available to read from USB
func usbAvailable() int {
	return machine.Serial.Buffered()
}

// usbRead reads a single byte from USB
func usbRead() (byte, error) {
	return machine.Serial.ReadByte()
}

// usbWrite writes multiple bytes to USB
func usbWrite(data []byte) (int, error) {
	return machine.Serial.Write(data)
}
