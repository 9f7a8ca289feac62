//go:build !wasm

package serial

import (
	"fmt"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

// RP2040 boards running TinyGo enumerate with the Raspberry Pi vendor ID.
const RaspberryPiVID = "2E8A"

// PortInfo describes one serial port found on the host.
type PortInfo struct {
	Name   string
	USB    bool
	VID    string
	PID    string
	Serial string
	// Likely is set for ports whose USB vendor matches the firmware's board.
	Likely bool
}

// List returns the host's serial ports, likely firmware ports first.
func List() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]PortInfo, 0, len(ports))
	for _, p := range ports {
		result = append(result, PortInfo{
			Name:   p.Name,
			USB:    p.IsUSB,
			VID:    p.VID,
			PID:    p.PID,
			Serial: p.SerialNumber,
			Likely: p.IsUSB && strings.EqualFold(p.VID, RaspberryPiVID),
		})
	}
	sortPorts(result)
	return result, nil
}

func sortPorts(ports []PortInfo) {
	sort.SliceStable(ports, func(i, j int) bool {
		if ports[i].Likely != ports[j].Likely {
			return ports[i].Likely
		}
		return ports[i].Name < ports[j].Name
	})
}

// String formats the port for a listing.
func (p PortInfo) String() string {
	if !p.USB {
		return p.Name
	}
	s := p.Name + " usb " + p.VID + ":" + p.PID
	if p.Serial != "" {
		s += " serial " + p.Serial
	}
	if p.Likely {
		s += " (rp2040)"
	}
	return s
}
