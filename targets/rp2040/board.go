//go:build rp2040

package main

import (
	"machine"

	"heatsense/core"
)

// Board wiring. ADC channels 0-2 are GPIO26-28.
const (
	bedChannel    core.ADCChannel = 0
	hotEndChannel core.ADCChannel = 1
	probeChannel  core.ADCChannel = 2

	bedHeaterPin    = core.PWMPin(machine.GPIO14)
	hotEndHeaterPin = core.PWMPin(machine.GPIO15)

	modulationPin = core.GPIOPin(machine.GPIO16)
	probeInputPin = core.GPIOPin(machine.GPIO17)

	// 10 Hz heater PWM at the 1 MHz timer
	heaterCycleTicks = 100000

	// EEPROM address of the configuration record
	nvAddress = 0
)

var (
	i2cBus    = machine.I2C0
	i2cConfig = machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       machine.GPIO4,
		SCL:       machine.GPIO5,
	}
)
