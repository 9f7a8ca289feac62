//go:build rp2040

package main

import (
	"errors"
	"machine"

	"heatsense/core"
)

var errADCChannel = errors.New("unsupported ADC channel")

// rpADC implements core.ADCDriver on the RP2040's external inputs. A
// conversion takes about 2 us, so StartConversion completes it and Result
// returns the latched value.
type rpADC struct {
	channels [4]*machine.ADC
	latched  [4]core.ADCValue
}

func newRPADC() *rpADC {
	machine.InitADC()
	return &rpADC{}
}

// ConfigureChannel sets up a specific ADC channel (pin mux, etc.).
func (d *rpADC) ConfigureChannel(ch core.ADCChannel) error {
	if int(ch) >= len(d.channels) {
		return errADCChannel
	}
	if d.channels[ch] != nil {
		return nil
	}

	var adc machine.ADC
	switch ch {
	case 0:
		adc = machine.ADC{Pin: machine.ADC0}
	case 1:
		adc = machine.ADC{Pin: machine.ADC1}
	case 2:
		adc = machine.ADC{Pin: machine.ADC2}
	case 3:
		adc = machine.ADC{Pin: machine.ADC3}
	}
	if err := adc.Configure(machine.ADCConfig{}); err != nil {
		return err
	}
	d.channels[ch] = &adc
	return nil
}

func (d *rpADC) StartConversion(ch core.ADCChannel) {
	if int(ch) >= len(d.channels) || d.channels[ch] == nil {
		return
	}
	// machine.ADC scales the 12-bit result to 16 bits
	d.latched[ch] = core.ADCValue(d.channels[ch].Get() >> 4)
}

func (d *rpADC) Result(ch core.ADCChannel) core.ADCValue {
	if int(ch) >= len(d.latched) {
		return 0
	}
	return d.latched[ch]
}
