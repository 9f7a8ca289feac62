package core

// ProbeType selects the bed-proximity sensing method and its calibration slot.
type ProbeType uint8

const (
	ProbeSwitch ProbeType = iota
	ProbeUnmodulatedIR
	ProbeModulatedIR
	ProbeUltrasonic
)

// Valid reports whether t names a supported probe.
func (t ProbeType) Valid() bool {
	return t <= ProbeUltrasonic
}

func (t ProbeType) String() string {
	switch t {
	case ProbeSwitch:
		return "switch"
	case ProbeUnmodulatedIR:
		return "ir"
	case ProbeModulatedIR:
		return "modulated-ir"
	case ProbeUltrasonic:
		return "ultrasonic"
	}
	return "invalid"
}

// SwitchTriggeredReading is the scaled reading of a closed switch probe.
const SwitchTriggeredReading = 1000

// ProbeParams is one probe calibration slot.
type ProbeParams struct {
	ADCValue        int32   // scaled reading at which the probe triggers
	Height          float32 // stop height in mm at CalibTemp
	CalibTemp       float32
	TempCoefficient float32 // mm per degree
}

// DefaultProbeParams returns a calibration triggering at ADC 400 with the
// given stop height, calibrated at 20 C with no temperature compensation.
func DefaultProbeParams(height float32) ProbeParams {
	return ProbeParams{ADCValue: 400, Height: height, CalibTemp: 20}
}

// Valid reports whether every float field is finite.
func (p ProbeParams) Valid() bool {
	return finite(p.Height) && finite(p.CalibTemp) && finite(p.TempCoefficient)
}

// StopHeight returns the compensated trigger height at bed temperature temp.
func (p ProbeParams) StopHeight(temp float32) float32 {
	return (temp-p.CalibTemp)*p.TempCoefficient + p.Height
}

// EndstopState is the probe trigger state seen by homing logic.
type EndstopState uint8

const (
	EndstopClear EndstopState = iota
	EndstopNear
	EndstopHit
)

func (s EndstopState) String() string {
	switch s {
	case EndstopNear:
		return "near"
	case EndstopHit:
		return "hit"
	}
	return "clear"
}

// probeSensor is one probe variant's scaling law.
type probeSensor interface {
	Type() ProbeType
	scaled(on, off FilterSnapshot) int32
	secondary(on, off FilterSnapshot) (int32, bool)
}

// switchSensor reads a digital input and needs no filters.
type switchSensor struct {
	pins     GPIODriver
	pin      GPIOPin
	inverted bool
}

func (s switchSensor) Type() ProbeType { return ProbeSwitch }

func (s switchSensor) triggered() bool {
	if s.pins == nil || s.pin == NoPin {
		return false
	}
	return s.pins.ReadPin(s.pin) != s.inverted
}

func (s switchSensor) scaled(FilterSnapshot, FilterSnapshot) int32 {
	if s.triggered() {
		return SwitchTriggeredReading
	}
	return 0
}

func (s switchSensor) secondary(FilterSnapshot, FilterSnapshot) (int32, bool) {
	return 0, false
}

// averagingSensor covers the unmodulated IR and direct-mode ultrasonic
// probes, which average the readings taken in both halves of the cycle.
type averagingSensor struct {
	kind ProbeType
}

func (s averagingSensor) Type() ProbeType { return s.kind }

func (s averagingSensor) scaled(on, off FilterSnapshot) int32 {
	if !on.Valid || !off.Valid {
		return 0
	}
	return int32((on.Sum + off.Sum) / (8 * ProbeSamples))
}

func (s averagingSensor) secondary(FilterSnapshot, FilterSnapshot) (int32, bool) {
	return 0, false
}

// modulatedSensor subtracts the emitter-off level from the emitter-on level.
type modulatedSensor struct{}

func (modulatedSensor) Type() ProbeType { return ProbeModulatedIR }

func (modulatedSensor) scaled(on, off FilterSnapshot) int32 {
	if !on.Valid || !off.Valid {
		return 0
	}
	// noise can make the difference negative
	return (int32(on.Sum) - int32(off.Sum)) / (4 * ProbeSamples)
}

func (modulatedSensor) secondary(on, off FilterSnapshot) (int32, bool) {
	if !on.Valid || !off.Valid {
		return 0, false
	}
	return int32(on.Sum / (4 * ProbeSamples)), true
}

// Probe is the main-loop view of the bed probe. Its filters belong to the
// sampler; readings come from snapshots and may be one cycle stale.
type Probe struct {
	store   *Store
	sampler *Sampler
	pins    GPIODriver
	modPin  GPIOPin
	input   switchSensor
	bedTemp func() float32
	sensor  probeSensor
}

func newProbe(store *Store, sampler *Sampler, pins GPIODriver, modPin, inputPin GPIOPin, inverted bool, bedTemp func() float32) *Probe {
	return &Probe{
		store:   store,
		sampler: sampler,
		pins:    pins,
		modPin:  modPin,
		input:   switchSensor{pins: pins, pin: inputPin, inverted: inverted},
		bedTemp: bedTemp,
	}
}

func (p *Probe) sensorFor(t ProbeType) probeSensor {
	switch t {
	case ProbeUnmodulatedIR, ProbeUltrasonic:
		return averagingSensor{kind: t}
	case ProbeModulatedIR:
		return modulatedSensor{}
	}
	return p.input
}

// init selects the sensor variant for the stored type, resets both filters
// and drives the modulation output to its idle level.
func (p *Probe) init() {
	t := p.store.Data().ProbeType
	if !t.Valid() {
		t = ProbeSwitch
	}
	p.sensor = p.sensorFor(t)
	p.sampler.resetProbe(t)

	if p.pins == nil || p.modPin == NoPin {
		return
	}
	switch t {
	case ProbeUnmodulatedIR, ProbeModulatedIR:
		p.pins.ConfigureOutput(p.modPin)
		p.pins.SetPin(p.modPin, true) // emitter on
	case ProbeUltrasonic:
		p.pins.ConfigureOutput(p.modPin)
		p.pins.SetPin(p.modPin, false) // alternate sensor selected
	}
}

func (p *Probe) Type() ProbeType {
	return p.sensor.Type()
}

// SetType selects a probe type, persisting it if it changed. Unsupported
// values select the switch. Both filters restart invalid either way.
func (p *Probe) SetType(t ProbeType) error {
	if !t.Valid() {
		t = ProbeSwitch
	}
	err := p.store.SetProbeType(t)
	p.init()
	return err
}

// ScaledReading returns the probe reading in 10-bit-equivalent units, or 0
// while the filters are still filling.
func (p *Probe) ScaledReading() int32 {
	on, off := p.sampler.ProbeSnapshots()
	return p.sensor.scaled(on, off)
}

// SecondaryReadings returns the emitter-on level of a modulated probe.
func (p *Probe) SecondaryReadings() (int32, bool) {
	on, off := p.sampler.ProbeSnapshots()
	return p.sensor.secondary(on, off)
}

// RawHeight returns the latest emitter-on ADC sample, or 0 for a switch.
func (p *Probe) RawHeight() int32 {
	if p.Type() == ProbeSwitch {
		return 0
	}
	on, _ := p.sampler.ProbeSnapshots()
	return int32(on.Latest)
}

// Params returns the calibration slot of the active type.
func (p *Probe) Params() ProbeParams {
	d := p.store.Data()
	return *d.ProbeParamsFor(p.Type())
}

// SetParams replaces the calibration of the active type.
func (p *Probe) SetParams(params ProbeParams) error {
	return p.store.SetProbeParams(p.Type(), params)
}

// StopHeight evaluates the active calibration at the bed temperature.
func (p *Probe) StopHeight() float32 {
	return p.Params().StopHeight(p.bedTemp())
}

func (p *Probe) Axes() [NumAxes]bool {
	return p.store.Data().ProbeAxes
}

func (p *Probe) SetAxes(axes [NumAxes]bool) error {
	return p.store.SetProbeAxes(axes)
}

// Stopped reports the probe state for homing axis. Axes that do not use the
// probe are always clear.
func (p *Probe) Stopped(axis int) EndstopState {
	if axis < 0 || axis >= NumAxes || !p.Axes()[axis] {
		return EndstopClear
	}
	if sw, ok := p.sensor.(switchSensor); ok {
		if sw.triggered() {
			return EndstopHit
		}
		return EndstopClear
	}

	v := p.ScaledReading()
	target := p.Params().ADCValue
	switch {
	case v >= target:
		return EndstopHit
	case v*10 >= target*9:
		return EndstopNear
	}
	return EndstopClear
}

// MustHomeXYBeforeZ reports whether Z homing needs the probe over the bed.
func (p *Probe) MustHomeXYBeforeZ() bool {
	return p.Type() != ProbeSwitch
}
