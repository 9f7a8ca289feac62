package core

import "errors"

var ErrHeaterFaulted = errors.New("core: heater has a latched fault")

// heaterOutput is one heater's PWM drive with an optional deadline. If the
// host does not refresh a non-zero power before the deadline the heater is
// turned off.
type heaterOutput struct {
	power       float32
	maxDuration uint32
	checkEnd    bool
	timer       Timer
}

// DriveHeater sets heater h to power and, when maxDuration is non-zero,
// turns it off again maxDuration timer ticks after now unless refreshed.
// A heater with a latched fault only accepts zero power.
func (p *Platform) DriveHeater(h int, power float32, maxDuration uint32, now uint32) error {
	if h < 0 || h >= len(p.outputs) {
		return ErrInvalidHeater
	}
	if power > 0 && p.HeaterFault(h) {
		return ErrHeaterFaulted
	}
	out := &p.outputs[h]
	p.sched.Remove(&out.timer)
	out.power = power
	out.maxDuration = maxDuration
	out.checkEnd = maxDuration != 0 && power > 0
	p.SetHeater(h, power)

	if out.checkEnd {
		out.timer = Timer{
			WakeTime: now + maxDuration,
			Handler: func(*Timer) uint8 {
				p.heaterExpired(h)
				return SF_DONE
			},
		}
		p.sched.Add(&out.timer)
	}
	return nil
}

// HeaterPower returns the power last requested for heater h.
func (p *Platform) HeaterPower(h int) float32 {
	if h < 0 || h >= len(p.outputs) {
		return 0
	}
	return p.outputs[h].power
}

func (p *Platform) heaterExpired(h int) {
	out := &p.outputs[h]
	out.power = 0
	out.checkEnd = false
	p.SetHeater(h, 0)
	DebugPrintln("[HEAT] heater " + itoa(h) + " not refreshed, turned off")
}

// cutoff is the sampler's fault action: heater h goes off and its deadline
// is dropped. It runs in the tick; only a newly latched fault is logged.
func (p *Platform) cutoff(h int, latched bool) {
	if h < 0 || h >= len(p.outputs) {
		return
	}
	p.outputs[h].power = 0
	p.outputs[h].checkEnd = false
	p.SetHeater(h, 0)
	if latched {
		DebugAsync("[HEAT] heater " + itoa(h) + " fault, turned off")
	}
}

// ShutdownHeaters turns every heater off and cancels pending deadlines.
func (p *Platform) ShutdownHeaters() {
	for h := range p.outputs {
		p.sched.Remove(&p.outputs[h].timer)
		p.outputs[h].power = 0
		p.outputs[h].checkEnd = false
		p.SetHeater(h, 0)
	}
}
