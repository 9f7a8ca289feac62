package core

import (
	"errors"
	"sync/atomic"
)

var (
	ErrInvalidTickPeriod   = errors.New("core: tick period must be positive")
	ErrNoHeaters           = errors.New("core: at least one heater channel required")
	ErrMissingDriver       = errors.New("core: ADC driver and backing store are required")
	ErrUnknownNetworkField = errors.New("core: unknown network field")
)

// PlatformConfig describes the board. It is built by the target and handed
// to NewPlatform; nothing in core reaches for global hardware state.
type PlatformConfig struct {
	ADC     ADCDriver
	Pins    GPIODriver
	PWM     PWMDriver
	Backing BackingStore

	NvAddress uint32

	HeaterChannels   []ADCChannel
	HeaterPins       []PWMPin
	HeaterActiveLow  bool
	HeaterCycleTicks uint32

	ProbeChannel       ADCChannel
	ModulationPin      GPIOPin
	ProbeInputPin      GPIOPin
	ProbeInputInverted bool

	// TimerFreq is the rate of the clock passed to Init and Poll.
	TimerFreq uint32

	// FreeMemory reports never-used RAM for the configuration record.
	FreeMemory func() uint32
}

// Platform is the context object owning the sampler, probe, configuration
// store and tick scheduler.
type Platform struct {
	cfg     PlatformConfig
	store   *Store
	sampler *Sampler
	probe   *Probe
	outputs []heaterOutput

	sched      Scheduler
	tickTimer  Timer
	tickPeriod atomic.Uint32 // timer ticks
	pwmMax     uint32
}

func NewPlatform(cfg PlatformConfig) (*Platform, error) {
	if cfg.ADC == nil || cfg.Backing == nil {
		return nil, ErrMissingDriver
	}
	if len(cfg.HeaterChannels) == 0 {
		return nil, ErrNoHeaters
	}
	if len(cfg.HeaterChannels) > MaxHeaters {
		cfg.HeaterChannels = cfg.HeaterChannels[:MaxHeaters]
	}
	if cfg.TimerFreq == 0 {
		cfg.TimerFreq = DefaultTimerFreq
	}

	p := &Platform{cfg: cfg, outputs: make([]heaterOutput, len(cfg.HeaterChannels))}
	p.store = NewStore(cfg.Backing, cfg.NvAddress)
	p.store.SetFreeMemoryProbe(cfg.FreeMemory)
	p.sampler = NewSampler(SamplerConfig{
		ADC:            cfg.ADC,
		Pins:           cfg.Pins,
		HeaterChannels: cfg.HeaterChannels,
		ProbeChannel:   cfg.ProbeChannel,
		ModulationPin:  cfg.ModulationPin,
		Cutoff:         p.cutoff,
	})
	p.probe = newProbe(p.store, p.sampler, cfg.Pins, cfg.ModulationPin,
		cfg.ProbeInputPin, cfg.ProbeInputInverted,
		func() float32 { return p.Temperature(0) })
	return p, nil
}

// Init loads the configuration, seeds the thermistor filters, turns every
// heater off and schedules the tick at the standby period. A configuration
// load error is returned after the platform is otherwise ready.
func (p *Platform) Init(now uint32) error {
	loadErr := p.store.Load()
	if loadErr != nil {
		DebugPrintln("[NV] load failed: " + loadErr.Error())
	}

	if p.cfg.PWM != nil {
		p.pwmMax = p.cfg.PWM.GetMaxValue()
		for _, pin := range p.cfg.HeaterPins {
			if _, err := p.cfg.PWM.ConfigureHardwarePWM(pin, p.cfg.HeaterCycleTicks); err != nil {
				DebugPrintln("[HEAT] PWM configure failed: " + err.Error())
			}
		}
	}

	for h, ch := range p.cfg.HeaterChannels {
		p.SetHeater(h, 0)
		if err := p.cfg.ADC.ConfigureChannel(ch); err != nil {
			DebugPrintln("[ADC] channel " + itoa(int(ch)) + ": " + err.Error())
		}
		p.cfg.ADC.StartConversion(ch)
		p.sampler.SeedThermistor(h, p.cfg.ADC.Result(ch))
		p.sampler.SetOverheatSum(h, p.store.HeaterParams(h).OverheatSum())
	}
	if err := p.cfg.ADC.ConfigureChannel(p.cfg.ProbeChannel); err != nil {
		DebugPrintln("[ADC] probe channel: " + err.Error())
	}

	if p.cfg.Pins != nil && p.cfg.ProbeInputPin != NoPin {
		p.cfg.Pins.ConfigureInputPullUp(p.cfg.ProbeInputPin)
	}
	p.probe.init()

	p.tickPeriod.Store(TicksFromSeconds(p.cfg.TimerFreq, StandbyTickPeriod))
	p.sched.Remove(&p.tickTimer)
	p.tickTimer = Timer{
		WakeTime: now + p.tickPeriod.Load(),
		Handler:  p.tickHandler,
	}
	p.sched.Add(&p.tickTimer)
	return loadErr
}

// tickHandler runs the sampler and reschedules one period later. Periods
// missed by a late Poll are skipped, not replayed.
func (p *Platform) tickHandler(t *Timer) uint8 {
	p.sampler.Tick()

	period := p.tickPeriod.Load()
	t.WakeTime += period
	now := p.sched.Now()
	if timeBefore(t.WakeTime, now) {
		missed := (now-t.WakeTime)/period + 1
		p.sampler.events.Record(EvtTickLate, 0, p.sampler.isr.ticks, missed, 0)
		t.WakeTime = now + period
	}
	return SF_RESCHEDULE
}

// Poll runs every timer due at now. Call it from the main loop.
func (p *Platform) Poll(now uint32) {
	p.sched.Dispatch(now)
}

// Now returns the time of the last Poll.
func (p *Platform) Now() uint32 {
	return p.sched.Now()
}

// SetTickPeriod changes the sampling period. A non-positive or NaN period
// is replaced by StandbyTickPeriod and reported.
func (p *Platform) SetTickPeriod(seconds float32) error {
	var err error
	if !(seconds > 0) {
		DebugPrintln("[TICK] invalid period " + ftoa(seconds, 6) + ", using standby rate")
		seconds = StandbyTickPeriod
		err = ErrInvalidTickPeriod
	}
	p.tickPeriod.Store(TicksFromSeconds(p.cfg.TimerFreq, seconds))
	return err
}

// TickPeriod returns the sampling period in seconds.
func (p *Platform) TickPeriod() float32 {
	return TicksToSeconds(p.cfg.TimerFreq, p.tickPeriod.Load())
}

func (p *Platform) Heaters() int {
	return p.sampler.Heaters()
}

// RawTemperature returns heater h's filter sum scaled to the virtual ADC range.
func (p *Platform) RawTemperature(h int) int32 {
	if h < 0 || h >= p.Heaters() {
		return ADCRangeVirtual
	}
	return RawFromSum(p.sampler.ThermistorSnapshot(h).Sum)
}

// Temperature returns heater h's temperature in C. Out-of-range heaters and
// disconnected sensors read AbsZero.
func (p *Platform) Temperature(h int) float32 {
	if h < 0 || h >= p.Heaters() {
		return AbsZero
	}
	return p.store.HeaterParams(h).Temperature(p.RawTemperature(h))
}

// HeaterFault reports heater h's sticky fault bit.
func (p *Platform) HeaterFault(h int) bool {
	return p.sampler.Faults()&(1<<uint(h)) != 0
}

// Faults returns all sticky fault bits.
func (p *Platform) Faults() uint32 {
	return p.sampler.Faults()
}

// ClearHeaterFault clears heater h's fault once the caller has dealt with it.
func (p *Platform) ClearHeaterFault(h int) {
	if h >= 0 && h < p.Heaters() {
		p.sampler.ClearFault(h)
	}
}

// SetHeater drives heater h at power in [0,1]. Safe to call from the tick.
func (p *Platform) SetHeater(h int, power float32) {
	if p.cfg.PWM == nil || h < 0 || h >= len(p.cfg.HeaterPins) {
		return
	}
	if !(power > 0) {
		power = 0
	} else if power > 1 {
		power = 1
	}
	full := p.pwmMax
	if full == 0 {
		full = p.cfg.PWM.GetMaxValue()
	}
	v := uint32(float32(full) * power)
	if p.cfg.HeaterActiveLow {
		v = full - v
	}
	p.cfg.PWM.SetDutyCycle(p.cfg.HeaterPins[h], PWMValue(v))
}

func (p *Platform) HeaterParams(h int) HeaterParams {
	return p.store.HeaterParams(h)
}

// SetHeaterParams stores heater h's calibration and refreshes its
// overheat threshold.
func (p *Platform) SetHeaterParams(h int, params HeaterParams) error {
	if h < 0 || h >= MaxHeaters {
		return ErrInvalidHeater
	}
	err := p.store.SetHeaterParams(h, params)
	p.sampler.SetOverheatSum(h, p.store.HeaterParams(h).OverheatSum())
	return err
}

func (p *Platform) Probe() *Probe {
	return p.probe
}

func (p *Platform) Store() *Store {
	return p.store
}

func (p *Platform) Sampler() *Sampler {
	return p.sampler
}

// SoftwareResetReason records reason before a requested reset. The reset
// itself belongs to the target.
func (p *Platform) SoftwareResetReason(reason uint16) error {
	return p.store.SetResetReason(reason)
}

// Diagnostics writes a status report through w.
func (p *Platform) Diagnostics(w DebugWriter) {
	if w == nil {
		return
	}
	w("=== Platform ===")
	for h := 0; h < p.Heaters(); h++ {
		line := "heater " + itoa(h) + ": " + ftoa(p.Temperature(h), 1) + "C raw=" +
			itoa(int(p.RawTemperature(h))) + " overheat_sum=" + utoa(p.sampler.OverheatSum(h))
		if p.HeaterFault(h) {
			line += " FAULT"
		} else if p.outputs[h].power > 0 {
			line += " power=" + ftoa(p.outputs[h].power, 2)
		}
		w(line)
	}
	probe := p.probe
	w("probe: type=" + probe.Type().String() +
		" reading=" + itoa(int(probe.ScaledReading())) +
		" stop_height=" + ftoa(probe.StopHeight(), 2))
	d := p.store.Data()
	w("tick: period_us=" + utoa(uint32(p.TickPeriod()*1e6+0.5)) + " ticks=" + utoa(p.sampler.Ticks()))
	w("nv: writes=" + utoa(p.store.Writes()) +
		" emulation=" + p.store.Emulating().String() +
		" ip=" + ipString(d.IPAddress) +
		" reset_reason=" + utoa(uint32(d.ResetReason)) +
		" never_used_ram=" + utoa(d.NeverUsedRAM))
	p.sampler.Events().Dump(w)
}
