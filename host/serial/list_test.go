//go:build !wasm

package serial

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortPortsPutsLikelyFirst(t *testing.T) {
	ports := []PortInfo{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyACM1", USB: true, VID: "2e8a", PID: "000a", Likely: true},
		{Name: "/dev/ttyACM0", USB: true, VID: "0403", PID: "6001"},
		{Name: "/dev/ttyACM2", USB: true, VID: "2E8A", PID: "000a", Likely: true},
	}
	sortPorts(ports)

	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.Name
	}
	assert.Equal(t, []string{"/dev/ttyACM1", "/dev/ttyACM2", "/dev/ttyACM0", "/dev/ttyS0"}, names)
}

func TestPortInfoString(t *testing.T) {
	assert.Equal(t, "/dev/ttyS0", PortInfo{Name: "/dev/ttyS0"}.String())
	assert.Equal(t, "/dev/ttyACM0 usb 2E8A:000A serial E66 (rp2040)",
		PortInfo{Name: "/dev/ttyACM0", USB: true, VID: "2E8A", PID: "000A", Serial: "E66", Likely: true}.String())
}

func TestOpenNilConfig(t *testing.T) {
	_, err := Open(nil)
	assert.ErrorIs(t, err, ErrNilConfig)
}
