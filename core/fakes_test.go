package core

import "errors"

// fakeADC returns fixed per-channel values, or the value hook returned when
// the conversion was started.
type fakeADC struct {
	values  map[ADCChannel]ADCValue
	hook    map[ADCChannel]func() ADCValue
	latched map[ADCChannel]ADCValue
	started []ADCChannel
	results map[ADCChannel]int
}

func newFakeADC() *fakeADC {
	return &fakeADC{
		values:  make(map[ADCChannel]ADCValue),
		hook:    make(map[ADCChannel]func() ADCValue),
		latched: make(map[ADCChannel]ADCValue),
		results: make(map[ADCChannel]int),
	}
}

func (a *fakeADC) ConfigureChannel(ADCChannel) error { return nil }

func (a *fakeADC) StartConversion(ch ADCChannel) {
	a.started = append(a.started, ch)
	if f := a.hook[ch]; f != nil {
		a.latched[ch] = f()
	}
}

func (a *fakeADC) Result(ch ADCChannel) ADCValue {
	a.results[ch]++
	if a.hook[ch] != nil {
		return a.latched[ch]
	}
	return a.values[ch]
}

type fakePins struct {
	state  map[GPIOPin]bool
	writes map[GPIOPin]int
}

func newFakePins() *fakePins {
	return &fakePins{state: make(map[GPIOPin]bool), writes: make(map[GPIOPin]int)}
}

func (p *fakePins) ConfigureOutput(GPIOPin) error      { return nil }
func (p *fakePins) ConfigureInputPullUp(GPIOPin) error { return nil }

func (p *fakePins) SetPin(pin GPIOPin, v bool) error {
	p.state[pin] = v
	p.writes[pin]++
	return nil
}

func (p *fakePins) ReadPin(pin GPIOPin) bool { return p.state[pin] }

type fakePWM struct {
	duty map[PWMPin]PWMValue
}

func newFakePWM() *fakePWM {
	return &fakePWM{duty: make(map[PWMPin]PWMValue)}
}

func (p *fakePWM) ConfigureHardwarePWM(pin PWMPin, cycle uint32) (uint32, error) {
	return cycle, nil
}

func (p *fakePWM) SetDutyCycle(pin PWMPin, v PWMValue) error {
	p.duty[pin] = v
	return nil
}

func (p *fakePWM) GetMaxValue() uint32 { return 255 }

// memBacking is an in-memory BackingStore counting writes.
type memBacking struct {
	data       []byte
	writes     int
	failAll    bool
	failWrites int // fail this many writes, then succeed
}

func newMemBacking(size int) *memBacking {
	return &memBacking{data: make([]byte, size)}
}

var errBacking = errors.New("backing store failure")

func (m *memBacking) ReadBlock(address uint32, buf []byte) error {
	if m.failAll {
		return errBacking
	}
	copy(buf, m.data[address:])
	return nil
}

func (m *memBacking) WriteBlock(address uint32, buf []byte) error {
	m.writes++
	if m.failAll {
		return errBacking
	}
	if m.failWrites > 0 {
		m.failWrites--
		return errBacking
	}
	copy(m.data[address:], buf)
	return nil
}

const (
	testModPin   GPIOPin    = 20
	testInputPin GPIOPin    = 21
	testProbeCh  ADCChannel = 7
)

// roomTempADC is the real ADC reading of a default bed thermistor at 25 C.
const roomTempADC ADCValue = 2786

type testRig struct {
	p       *Platform
	adc     *fakeADC
	pins    *fakePins
	pwm     *fakePWM
	backing *memBacking
}

func newTestRig(heaters int) *testRig {
	r := &testRig{
		adc:     newFakeADC(),
		pins:    newFakePins(),
		pwm:     newFakePWM(),
		backing: newMemBacking(1024),
	}
	cfg := PlatformConfig{
		ADC:           r.adc,
		Pins:          r.pins,
		PWM:           r.pwm,
		Backing:       r.backing,
		ProbeChannel:  testProbeCh,
		ModulationPin: testModPin,
		ProbeInputPin: testInputPin,
		TimerFreq:     1000000,
	}
	for h := 0; h < heaters; h++ {
		cfg.HeaterChannels = append(cfg.HeaterChannels, ADCChannel(h))
		cfg.HeaterPins = append(cfg.HeaterPins, PWMPin(10+h))
		r.adc.values[ADCChannel(h)] = roomTempADC
	}
	p, err := NewPlatform(cfg)
	if err != nil {
		panic(err)
	}
	r.p = p
	return r
}

// tickUntilSampled ticks until heater channel ch has been read once more
// and returns the number of ticks taken.
func (r *testRig) tickUntilSampled(ch ADCChannel) int {
	before := r.adc.results[ch]
	n := 0
	for r.adc.results[ch] == before {
		r.p.sampler.Tick()
		n++
		if n > 100 {
			panic("channel never sampled")
		}
	}
	return n
}
