package core

import "github.com/chewxy/math32"

// MaxHeaters is the number of heater slots; heater 0 is the bed.
const MaxHeaters = 6

// HeaterParams is the per-heater calibration held in the configuration record.
// Beta and the derived R_inf are only ever set together through SetR25AndBeta.
type HeaterParams struct {
	Kp, Ki, Kd float32
	Kt, Ks     float32
	FullBand   float32
	PIDMin     float32
	PIDMax     float32

	SeriesR       float32
	ADCLowOffset  float32
	ADCHighOffset float32

	beta float32
	rInf float32
}

// SetR25AndBeta sets the thermistor curve from its resistance at 25 C.
func (p *HeaterParams) SetR25AndBeta(r25, beta float32) {
	p.rInf = r25 * math32.Exp(-beta/(25-AbsZero))
	p.beta = beta
}

// R25 returns the thermistor resistance at 25 C.
func (p HeaterParams) R25() float32 {
	return p.rInf * math32.Exp(p.beta/(25-AbsZero))
}

func (p HeaterParams) Beta() float32 { return p.beta }
func (p HeaterParams) RInf() float32 { return p.rInf }

// Valid reports whether every field is finite and the ADC offsets leave a
// positive span.
func (p HeaterParams) Valid() bool {
	for _, v := range [...]float32{
		p.Kp, p.Ki, p.Kd, p.Kt, p.Ks, p.FullBand, p.PIDMin, p.PIDMax,
		p.SeriesR, p.ADCLowOffset, p.ADCHighOffset, p.beta, p.rInf,
	} {
		if !finite(v) {
			return false
		}
	}
	return offsetSpan(p) > 0
}

func finite(v float32) bool {
	return !math32.IsNaN(v) && !math32.IsInf(v, 0)
}

// UsePID reports whether the heater runs PID rather than bang-bang control.
func (p HeaterParams) UsePID() bool {
	return p.Kp >= 0
}

type heaterDefaults struct {
	r25, beta, seriesR       float32
	kp, ki, kd, kt, ks       float32
	fullBand, pidMin, pidMax float32
}

var (
	bedDefaults = heaterDefaults{
		r25: 10000, beta: 3988, seriesR: 4700,
		kp: -1, ki: 5, kd: 500, kt: 2.7, ks: 1,
		fullBand: 5, pidMin: 0, pidMax: 255,
	}
	hotEndDefaults = heaterDefaults{
		r25: 100000, beta: 4388, seriesR: 4700,
		kp: 10, ki: 0.1, kd: 100, kt: 0.25, ks: 1,
		fullBand: 30, pidMin: 0, pidMax: 180,
	}
)

// DefaultHeaterParams returns the compiled-in calibration for heater h.
func DefaultHeaterParams(h int) HeaterParams {
	d := hotEndDefaults
	if h == 0 {
		d = bedDefaults
	}
	p := HeaterParams{
		Kp: d.kp, Ki: d.ki, Kd: d.kd, Kt: d.kt, Ks: d.ks,
		FullBand: d.fullBand,
		PIDMin:   d.pidMin,
		PIDMax:   d.pidMax,
		SeriesR:  d.seriesR,
	}
	p.SetR25AndBeta(d.r25, d.beta)
	return p
}
