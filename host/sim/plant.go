package sim

import (
	"math"
	"time"
)

const kelvin = 273.15

// Thermal is a first-order heater plant with a Beta thermistor.
type Thermal struct {
	cfg  HeaterConfig
	Temp float64 // C
	// Power is the heater drive in [0,1].
	Power float64

	Disconnected bool
	Shorted      bool
}

func NewThermal(cfg HeaterConfig) *Thermal {
	return &Thermal{cfg: cfg, Temp: cfg.Ambient}
}

// Advance integrates the plant over dt.
func (t *Thermal) Advance(dt time.Duration) {
	s := dt.Seconds()
	t.Temp += (t.Power*t.cfg.HeatRate - (t.Temp-t.cfg.Ambient)*t.cfg.Loss) * s
}

// Resistance returns the thermistor resistance at the plant temperature.
func (t *Thermal) Resistance() float64 {
	return t.cfg.R25 * math.Exp(t.cfg.Beta*(1/(t.Temp+kelvin)-1/(25+kelvin)))
}

// ADC returns the 12-bit reading across the thermistor of a divider with
// the series resistor to the reference.
func (t *Thermal) ADC() uint16 {
	switch {
	case t.Disconnected:
		return 4095
	case t.Shorted:
		return 0
	}
	r := t.Resistance()
	v := 4096 * r / (r + t.cfg.SeriesR)
	return clampADC(v)
}

func clampADC(v float64) uint16 {
	if v < 0 {
		return 0
	}
	if v > 4095 {
		return 4095
	}
	return uint16(v)
}

// ProbeModel is a reflective sensor above the bed.
type ProbeModel struct {
	cfg    ProbeConfig
	Height float64 // mm
}

func NewProbeModel(cfg ProbeConfig) *ProbeModel {
	return &ProbeModel{cfg: cfg, Height: cfg.StartHeight}
}

// Reflection returns the reflected signal in ADC counts at the current height.
func (p *ProbeModel) Reflection() float64 {
	h := p.Height
	if h < 0 {
		h = 0
	}
	scale := p.cfg.Scale
	if scale <= 0 {
		scale = 1
	}
	return p.cfg.Peak / (1 + (h/scale)*(h/scale))
}

// ADC returns the sensor output with the emitter on or off.
func (p *ProbeModel) ADC(emitter bool) uint16 {
	v := p.cfg.AmbientLevel
	if emitter {
		v += p.Reflection()
	}
	return clampADC(v)
}

// SwitchClosed reports whether a mechanical probe touches at this height.
func (p *ProbeModel) SwitchClosed() bool {
	return p.Height <= p.cfg.SwitchHeight
}
