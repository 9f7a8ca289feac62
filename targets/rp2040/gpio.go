//go:build rp2040

package main

import (
	"machine"

	"heatsense/core"
)

// rpPins implements core.GPIODriver with machine.Pin.
type rpPins struct{}

func (rpPins) ConfigureOutput(pin core.GPIOPin) error {
	machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinOutput})
	return nil
}

func (rpPins) ConfigureInputPullUp(pin core.GPIOPin) error {
	machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return nil
}

func (rpPins) SetPin(pin core.GPIOPin, value bool) error {
	machine.Pin(pin).Set(value)
	return nil
}

func (rpPins) ReadPin(pin core.GPIOPin) bool {
	return machine.Pin(pin).Get()
}
