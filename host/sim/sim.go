// Package sim runs the firmware core against simulated heaters, thermistors
// and a bed probe.
package sim

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"heatsense/core"
)

// Board wiring used by the simulator.
const (
	ModulationPin core.GPIOPin    = 20
	ProbeInputPin core.GPIOPin    = 21
	ProbeChannel  core.ADCChannel = 8
	heaterPWMBase core.PWMPin     = 10
	pwmMax                        = 255
	nvSize                        = 1024
	zAxis                         = 2
)

// Sim is a simulated board. All methods are safe for concurrent use; the
// firmware itself only ever runs under the lock, as on one core.
type Sim struct {
	mu sync.Mutex

	sc       *Scenario
	platform *core.Platform
	server   *core.CommandServer
	adc      *ADC
	pins     *Pins
	pwm      *PWM
	heaters  []*Thermal
	probe    *ProbeModel

	now         time.Duration
	lastControl time.Duration
	probing     bool
	hit         bool
	hitHeight   float64
	in          []byte
	out         []byte
}

// New builds the board and firmware for sc. Call Init before stepping.
func New(sc *Scenario) (*Sim, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	s := &Sim{
		sc:    sc,
		adc:   NewADC(),
		pins:  NewPins(),
		pwm:   NewPWM(pwmMax),
		probe: NewProbeModel(sc.Probe),
	}

	var backing core.BackingStore = NewMemBacking(nvSize)
	if sc.NvFile != "" {
		backing = NewFileBacking(sc.NvFile, nvSize)
	}

	cfg := core.PlatformConfig{
		ADC:           s.adc,
		Pins:          s.pins,
		PWM:           s.pwm,
		Backing:       backing,
		ProbeChannel:  ProbeChannel,
		ModulationPin: ModulationPin,
		ProbeInputPin: ProbeInputPin,
		TimerFreq:     1000000,
	}
	for i, hc := range sc.Heaters {
		th := NewThermal(hc)
		s.heaters = append(s.heaters, th)
		ch := core.ADCChannel(i)
		pin := heaterPWMBase + core.PWMPin(i)
		s.adc.Attach(ch, th.ADC)
		s.pwm.Attach(pin, func(p float64) { th.Power = p })
		cfg.HeaterChannels = append(cfg.HeaterChannels, ch)
		cfg.HeaterPins = append(cfg.HeaterPins, pin)
	}
	s.adc.Attach(ProbeChannel, func() uint16 {
		return s.probe.ADC(s.pins.ReadPin(ModulationPin))
	})
	s.pins.AttachInput(ProbeInputPin, s.probe.SwitchClosed)

	p, err := core.NewPlatform(cfg)
	if err != nil {
		return nil, fmt.Errorf("sim: %w", err)
	}
	s.platform = p
	return s, nil
}

// Init starts the firmware and applies the scenario's thermistor and probe
// settings, which persist like host commands would.
func (s *Sim) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.platform
	if err := p.Init(s.clock()); err != nil {
		return fmt.Errorf("sim: nv load: %w", err)
	}
	for h, hc := range s.sc.Heaters {
		params := p.HeaterParams(h)
		params.SetR25AndBeta(float32(hc.R25), float32(hc.Beta))
		params.SeriesR = float32(hc.SeriesR)
		if err := p.SetHeaterParams(h, params); err != nil {
			return fmt.Errorf("sim: heater %d: %w", h, err)
		}
	}
	t, _ := ParseProbeType(s.sc.Probe.Type)
	if err := p.Probe().SetType(t); err != nil {
		return fmt.Errorf("sim: probe type: %w", err)
	}
	if s.sc.TickPeriod > 0 {
		if err := p.SetTickPeriod(float32(s.sc.TickPeriod.Seconds())); err != nil {
			return fmt.Errorf("sim: %w", err)
		}
	}
	s.server = core.NewCommandServer(p, func(b []byte) {
		s.out = append(s.out, b...)
	})
	s.server.AddConstant("MCU", "sim")
	return nil
}

// clock converts simulated time to firmware timer ticks.
func (s *Sim) clock() uint32 {
	return uint32(s.now / time.Microsecond)
}

// Step advances the plant by one scenario step and lets the firmware run.
func (s *Sim) Step() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step()
}

func (s *Sim) step() {
	dt := s.sc.Step
	s.now += dt

	for i, th := range s.heaters {
		hc := s.sc.Heaters[i]
		th.Disconnected = hc.DisconnectAt > 0 && s.now >= hc.DisconnectAt
		th.Shorted = hc.ShortAt > 0 && s.now >= hc.ShortAt
		th.Advance(dt)
	}

	if !s.hit && s.now >= s.sc.Probe.StartAt && s.sc.Probe.Speed > 0 {
		s.probing = true
		s.probe.Height -= s.sc.Probe.Speed * dt.Seconds()
	}

	s.platform.Poll(s.clock())

	if s.sc.ControlPeriod > 0 && s.now-s.lastControl >= s.sc.ControlPeriod {
		s.lastControl = s.now
		s.control()
	}

	if s.probing && !s.hit && s.platform.Probe().Stopped(zAxis) == core.EndstopHit {
		s.hit = true
		s.probing = false
		s.hitHeight = s.probe.Height
	}
}

// control is a bang-bang controller refreshing each heater's deadline.
func (s *Sim) control() {
	p := s.platform
	deadline := uint32(5 * s.sc.ControlPeriod / time.Microsecond)
	for h, hc := range s.sc.Heaters {
		if hc.Target <= 0 || p.HeaterFault(h) {
			continue
		}
		var power float32
		if float64(p.Temperature(h)) < hc.Target {
			power = 1
		}
		p.DriveHeater(h, power, deadline, s.clock())
	}
}

// Now returns the simulated time.
func (s *Sim) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Status is a snapshot of plant and firmware state.
type Status struct {
	Time         time.Duration
	PlantTemps   []float64
	Temps        []float32
	Faults       uint32
	ProbeType    core.ProbeType
	ProbeReading int32
	ProbeHeight  float64
	ProbeState   core.EndstopState
	ProbeHit     bool
	HitHeight    float64
}

func (s *Sim) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.platform
	st := Status{
		Time:         s.now,
		Faults:       p.Faults(),
		ProbeType:    p.Probe().Type(),
		ProbeReading: p.Probe().ScaledReading(),
		ProbeHeight:  s.probe.Height,
		ProbeState:   p.Probe().Stopped(zAxis),
		ProbeHit:     s.hit,
		HitHeight:    s.hitHeight,
	}
	for h, th := range s.heaters {
		st.PlantTemps = append(st.PlantTemps, th.Temp)
		st.Temps = append(st.Temps, p.Temperature(h))
	}
	return st
}

func (st Status) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "t=%7.2fs", st.Time.Seconds())
	for h, temp := range st.Temps {
		fmt.Fprintf(&sb, " h%d=%.1fC(%.1f)", h, temp, st.PlantTemps[h])
		if st.Faults&(1<<uint(h)) != 0 {
			sb.WriteString("!")
		}
	}
	fmt.Fprintf(&sb, " probe=%s reading=%d z=%.3f %s", st.ProbeType, st.ProbeReading, st.ProbeHeight, st.ProbeState)
	return sb.String()
}

// Diagnostics returns the firmware's diagnostics report.
func (s *Sim) Diagnostics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var lines []string
	s.platform.Diagnostics(func(line string) { lines = append(lines, line) })
	return lines
}

// Result summarises a completed run.
type Result struct {
	Final     Status
	Writes    uint32
	Defaulted bool
}

// Run executes sc to completion, writing a status line to w every report
// interval and the diagnostics report at the end.
func Run(ctx context.Context, sc *Scenario, w io.Writer) (*Result, error) {
	s, err := New(sc)
	if err != nil {
		return nil, err
	}
	if err := s.Init(); err != nil {
		return nil, err
	}

	var nextReport time.Duration
	for i := 0; s.now < sc.Duration; i++ {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return s.result(), err
			}
		}
		s.Step()
		if sc.ReportInterval > 0 && s.now >= nextReport {
			nextReport = s.now + sc.ReportInterval
			fmt.Fprintln(w, s.Status())
		}
	}

	fmt.Fprintln(w, s.Status())
	for _, line := range s.Diagnostics() {
		fmt.Fprintln(w, line)
	}
	return s.result(), nil
}

func (s *Sim) result() *Result {
	st := s.Status()
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Result{
		Final:     st,
		Writes:    s.platform.Store().Writes(),
		Defaulted: s.platform.Store().Defaulted(),
	}
}

// Platform exposes the firmware for tests and tools. Callers must not use
// it concurrently with Step.
func (s *Sim) Platform() *core.Platform {
	return s.platform
}
