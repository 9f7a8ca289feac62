// Package serial carries framed command traffic between the host tools and
// the heatsense firmware's USB CDC port.
package serial

import (
	"errors"
	"io"
	"time"
)

// DefaultBaud is passed to the OS driver only; USB CDC ignores it.
const DefaultBaud = 115200

// DefaultReadTimeout bounds a Read so callers can poll for response frames
// and check their own deadlines.
const DefaultReadTimeout = 100 * time.Millisecond

var ErrNoDevice = errors.New("serial: no device given")

// Port is a byte stream to the firmware. Reads may return 0 bytes when the
// read timeout expires. Implemented by the native port and by host/sim.
type Port interface {
	io.ReadWriteCloser

	// Flush discards input received before the call, so the next read starts
	// on fresh frames.
	Flush() error
}

// Config selects the device to open.
type Config struct {
	Device      string // "/dev/ttyACM0", "COM3"
	Baud        int
	ReadTimeout time.Duration // 0 blocks until data arrives
}

// DefaultConfig returns the settings used for the firmware's USB port.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: DefaultReadTimeout,
	}
}

// Validate fills a zero baud rate and rejects a missing device.
func (c *Config) Validate() error {
	if c.Device == "" {
		return ErrNoDevice
	}
	if c.Baud <= 0 {
		c.Baud = DefaultBaud
	}
	if c.ReadTimeout < 0 {
		c.ReadTimeout = 0
	}
	return nil
}
