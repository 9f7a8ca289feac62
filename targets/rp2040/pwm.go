//go:build rp2040

package main

import (
	"machine"

	"heatsense/core"
)

// pwmMax is the duty resolution reported to core.
const pwmMax = 255

// pwmPeripheral is an interface for PWM hardware peripherals
// This abstracts over TinyGo's unexported *pwmGroup type
type pwmPeripheral interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

// rpPWM implements core.PWMDriver for the heater outputs on the RP2040's
// PWM slices
type rpPWM struct {
	// Key: pin number, Value: PWM channel
	channels map[uint32]uint8

	// Key: slice number (0-7), Value: PWM peripheral
	peripherals map[uint8]pwmPeripheral
}

func newRPPWM() *rpPWM {
	return &rpPWM{
		channels:    make(map[uint32]uint8),
		peripherals: make(map[uint8]pwmPeripheral),
	}
}

func (d *rpPWM) GetMaxValue() uint32 {
	return pwmMax
}

// ConfigureHardwarePWM configures a pin for hardware PWM output with a
// period of cycleTicks microseconds.
func (d *rpPWM) ConfigureHardwarePWM(pin core.PWMPin, cycleTicks uint32) (uint32, error) {
	pinNum := uint32(pin)

	// GPIO N belongs to slice (N >> 1) & 7, channel A for even pins
	sliceNum := uint8((pinNum >> 1) & 0x7)
	pwm, exists := d.peripherals[sliceNum]
	if !exists {
		pwm = slicePeripheral(sliceNum)
		d.peripherals[sliceNum] = pwm
	}

	err := pwm.Configure(machine.PWMConfig{
		Period: uint64(cycleTicks) * 1000,
	})
	if err != nil {
		return 0, err
	}

	channel, err := pwm.Channel(machine.Pin(pinNum))
	if err != nil {
		return 0, err
	}
	d.channels[pinNum] = channel
	return cycleTicks, nil
}

// SetDutyCycle sets the PWM duty cycle for a pin
// value: 0 (fully off) to pwmMax (fully on)
func (d *rpPWM) SetDutyCycle(pin core.PWMPin, value core.PWMValue) error {
	pinNum := uint32(pin)
	channel, exists := d.channels[pinNum]
	if !exists {
		return nil
	}
	pwm := d.peripherals[uint8((pinNum>>1)&0x7)]

	// scale to the slice's counter top
	duty := (uint32(value) * pwm.Top()) / pwmMax
	pwm.Set(channel, duty)
	return nil
}

// slicePeripheral returns the PWM peripheral for a given slice number
func slicePeripheral(sliceNum uint8) pwmPeripheral {
	switch sliceNum {
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	case 7:
		return machine.PWM7
	}
	return machine.PWM0
}
