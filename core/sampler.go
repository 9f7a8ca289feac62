package core

import "sync/atomic"

// Tick states. The heater is sampled between the two probe samples so the
// probe's on and off filters see the same duty cycle for any heater count.
const (
	tickIdle     = 0 // no conversion in flight
	tickHeaterA  = 1 // heater conversion in flight
	tickProbeOn  = 2 // probe conversion in flight, emitter on
	tickHeaterB  = 3 // heater conversion in flight
	tickProbeOff = 4 // probe conversion in flight, emitter off
)

// isrState is written only by Tick.
type isrState struct {
	state       uint8
	heater      int
	ticks       uint32
	thermistors []AveragingFilter
	probeOn     AveragingFilter
	probeOff    AveragingFilter
}

// loopShared is written only by the main loop and read by Tick.
type loopShared struct {
	overheat   [MaxHeaters]atomic.Uint32
	disconnect atomic.Uint32
	probeType  atomic.Uint32
}

// SamplerConfig wires the sampler to its hardware.
type SamplerConfig struct {
	ADC            ADCDriver
	Pins           GPIODriver
	HeaterChannels []ADCChannel
	ProbeChannel   ADCChannel
	ModulationPin  GPIOPin

	// Cutoff forces a heater off. Called from Tick on every faulting sample;
	// latched is true only for the sample that raised the fault.
	Cutoff func(heater int, latched bool)
}

// Sampler multiplexes one ADC across the heater thermistors and the probe
// and enforces the over-temperature interlock on every heater sample.
type Sampler struct {
	cfg    SamplerConfig
	isr    isrState
	shared loopShared
	faults atomic.Uint32
	events EventRing
}

// NewSampler builds a sampler for at least one heater channel.
func NewSampler(cfg SamplerConfig) *Sampler {
	if len(cfg.HeaterChannels) > MaxHeaters {
		cfg.HeaterChannels = cfg.HeaterChannels[:MaxHeaters]
	}
	s := &Sampler{cfg: cfg}
	s.isr.thermistors = make([]AveragingFilter, len(cfg.HeaterChannels))
	for i := range s.isr.thermistors {
		s.isr.thermistors[i] = NewAveragingFilter(ThermistorSamples)
	}
	s.isr.probeOn = NewAveragingFilter(ProbeSamples)
	s.isr.probeOff = NewAveragingFilter(ProbeSamples)
	s.shared.disconnect.Store(DisconnectSum())
	return s
}

// Heaters returns the number of sampled heaters.
func (s *Sampler) Heaters() int {
	return len(s.isr.thermistors)
}

// Tick advances the sampling cycle by one state. It never blocks and does
// no floating point outside the fault branch.
func (s *Sampler) Tick() {
	isr := &s.isr
	isr.ticks++

	switch isr.state {
	case tickHeaterA, tickHeaterB:
		h := isr.heater
		f := &isr.thermistors[h]
		f.ProcessReading(s.cfg.ADC.Result(s.cfg.HeaterChannels[h]))
		s.cfg.ADC.StartConversion(s.cfg.ProbeChannel)
		if f.IsValid() {
			sum := f.Sum()
			overheat := s.shared.overheat[h].Load()
			if sum < overheat || sum >= s.shared.disconnect.Load() {
				latched := s.raiseFault(h)
				if s.cfg.Cutoff != nil {
					s.cfg.Cutoff(h, latched)
				}
				if latched {
					s.events.Record(EvtHeaterFault, uint8(h), isr.ticks, sum, overheat)
				}
			}
		}
		isr.heater++
		if isr.heater == len(isr.thermistors) {
			isr.heater = 0
		}
		isr.state++

	case tickProbeOn:
		isr.probeOn.ProcessReading(s.cfg.ADC.Result(s.cfg.ProbeChannel))
		s.cfg.ADC.StartConversion(s.cfg.HeaterChannels[isr.heater])
		if s.modulated() {
			s.cfg.Pins.SetPin(s.cfg.ModulationPin, false) // emitter off
		}
		isr.state++

	case tickProbeOff:
		isr.probeOff.ProcessReading(s.cfg.ADC.Result(s.cfg.ProbeChannel))
		fallthrough

	default:
		s.cfg.ADC.StartConversion(s.cfg.HeaterChannels[isr.heater])
		if s.modulated() {
			s.cfg.Pins.SetPin(s.cfg.ModulationPin, true) // emitter on
		}
		isr.state = tickHeaterA
	}
}

func (s *Sampler) modulated() bool {
	return ProbeType(s.shared.probeType.Load()) == ProbeModulatedIR &&
		s.cfg.Pins != nil && s.cfg.ModulationPin != NoPin
}

// raiseFault sets the sticky fault bit and reports whether it was clear.
func (s *Sampler) raiseFault(h int) bool {
	bit := uint32(1) << h
	for {
		old := s.faults.Load()
		if old&bit != 0 {
			return false
		}
		if s.faults.CompareAndSwap(old, old|bit) {
			return true
		}
	}
}

// Faults returns the sticky fault bits, one per heater.
func (s *Sampler) Faults() uint32 {
	return s.faults.Load()
}

// ClearFault clears heater h's fault bit. The tick never does this itself.
func (s *Sampler) ClearFault(h int) {
	bit := uint32(1) << h
	for {
		old := s.faults.Load()
		if s.faults.CompareAndSwap(old, old&^bit) {
			return
		}
	}
}

// SetOverheatSum installs heater h's precomputed overheat threshold.
func (s *Sampler) SetOverheatSum(h int, sum uint32) {
	if h >= 0 && h < MaxHeaters {
		s.shared.overheat[h].Store(sum)
	}
}

func (s *Sampler) OverheatSum(h int) uint32 {
	return s.shared.overheat[h].Load()
}

// SeedThermistor pre-fills heater h's filter. Main loop, before the tick runs
// or with it stopped.
func (s *Sampler) SeedThermistor(h int, v ADCValue) {
	state := disableInterrupts()
	s.isr.thermistors[h].Init(v)
	restoreInterrupts(state)
}

// resetProbe switches the probe type seen by the tick and restarts both
// probe filters as a single step.
func (s *Sampler) resetProbe(t ProbeType) {
	state := disableInterrupts()
	s.shared.probeType.Store(uint32(t))
	s.isr.probeOn.Init(0)
	s.isr.probeOff.Init(0)
	s.events.Record(EvtProbeReset, 0, s.isr.ticks, uint32(t), 0)
	restoreInterrupts(state)
}

// ThermistorSnapshot copies heater h's filter state.
func (s *Sampler) ThermistorSnapshot(h int) FilterSnapshot {
	state := disableInterrupts()
	snap := s.isr.thermistors[h].snapshot()
	restoreInterrupts(state)
	return snap
}

// ProbeSnapshots copies both probe filters in one step.
func (s *Sampler) ProbeSnapshots() (on, off FilterSnapshot) {
	state := disableInterrupts()
	on = s.isr.probeOn.snapshot()
	off = s.isr.probeOff.snapshot()
	restoreInterrupts(state)
	return on, off
}

// Ticks returns the number of ticks processed.
func (s *Sampler) Ticks() uint32 {
	state := disableInterrupts()
	n := s.isr.ticks
	restoreInterrupts(state)
	return n
}

// Events returns the tick's event ring.
func (s *Sampler) Events() *EventRing {
	return &s.events
}
