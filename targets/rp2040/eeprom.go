//go:build rp2040

package main

import (
	"tinygo.org/x/drivers/at24cx"
)

// eeprom implements core.BackingStore on an AT24C32-class part sharing the
// display's I2C bus. Page splitting is done by the driver.
type eeprom struct {
	dev at24cx.Device
}

func newEEPROM() *eeprom {
	dev := at24cx.New(i2cBus)
	dev.Configure(at24cx.Config{})
	return &eeprom{dev: dev}
}

func (e *eeprom) ReadBlock(address uint32, buf []byte) error {
	_, err := e.dev.ReadAt(buf, int64(address))
	return err
}

func (e *eeprom) WriteBlock(address uint32, buf []byte) error {
	_, err := e.dev.WriteAt(buf, int64(address))
	return err
}
