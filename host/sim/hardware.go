package sim

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"heatsense/core"
)

// ADC samples the plants. Conversions latch the value at start, as a real
// converter would.
type ADC struct {
	channels map[core.ADCChannel]func() uint16
	latched  map[core.ADCChannel]core.ADCValue
}

func NewADC() *ADC {
	return &ADC{
		channels: make(map[core.ADCChannel]func() uint16),
		latched:  make(map[core.ADCChannel]core.ADCValue),
	}
}

// Attach routes channel ch to source.
func (a *ADC) Attach(ch core.ADCChannel, source func() uint16) {
	a.channels[ch] = source
}

func (a *ADC) ConfigureChannel(ch core.ADCChannel) error {
	if _, ok := a.channels[ch]; !ok {
		return fmt.Errorf("sim: adc channel %d not attached", ch)
	}
	return nil
}

func (a *ADC) StartConversion(ch core.ADCChannel) {
	if f := a.channels[ch]; f != nil {
		a.latched[ch] = core.ADCValue(f())
	}
}

func (a *ADC) Result(ch core.ADCChannel) core.ADCValue {
	return a.latched[ch]
}

// Pins holds output levels and computed inputs.
type Pins struct {
	levels map[core.GPIOPin]bool
	inputs map[core.GPIOPin]func() bool
}

func NewPins() *Pins {
	return &Pins{
		levels: make(map[core.GPIOPin]bool),
		inputs: make(map[core.GPIOPin]func() bool),
	}
}

// AttachInput makes pin read from source.
func (p *Pins) AttachInput(pin core.GPIOPin, source func() bool) {
	p.inputs[pin] = source
}

func (p *Pins) ConfigureOutput(core.GPIOPin) error { return nil }

func (p *Pins) ConfigureInputPullUp(pin core.GPIOPin) error {
	if _, ok := p.inputs[pin]; !ok {
		p.levels[pin] = true
	}
	return nil
}

func (p *Pins) SetPin(pin core.GPIOPin, v bool) error {
	p.levels[pin] = v
	return nil
}

func (p *Pins) ReadPin(pin core.GPIOPin) bool {
	if f := p.inputs[pin]; f != nil {
		return f()
	}
	return p.levels[pin]
}

// PWM records duty cycles as plant power.
type PWM struct {
	max   uint32
	sinks map[core.PWMPin]func(float64)
	duty  map[core.PWMPin]core.PWMValue
}

func NewPWM(max uint32) *PWM {
	return &PWM{max: max, sinks: make(map[core.PWMPin]func(float64)), duty: make(map[core.PWMPin]core.PWMValue)}
}

// Attach routes pin's duty cycle, as a fraction, to sink.
func (p *PWM) Attach(pin core.PWMPin, sink func(float64)) {
	p.sinks[pin] = sink
}

func (p *PWM) ConfigureHardwarePWM(pin core.PWMPin, cycleTicks uint32) (uint32, error) {
	return cycleTicks, nil
}

func (p *PWM) SetDutyCycle(pin core.PWMPin, v core.PWMValue) error {
	p.duty[pin] = v
	if f := p.sinks[pin]; f != nil {
		f(float64(v) / float64(p.max))
	}
	return nil
}

func (p *PWM) GetMaxValue() uint32 { return p.max }

func (p *PWM) Duty(pin core.PWMPin) core.PWMValue { return p.duty[pin] }

// MemBacking is an in-memory BackingStore.
type MemBacking struct {
	data   []byte
	Writes int
}

var ErrOutOfRange = errors.New("sim: backing store access out of range")

func NewMemBacking(size int) *MemBacking {
	return &MemBacking{data: make([]byte, size)}
}

func (m *MemBacking) ReadBlock(address uint32, buf []byte) error {
	if int(address)+len(buf) > len(m.data) {
		return ErrOutOfRange
	}
	copy(buf, m.data[address:])
	return nil
}

func (m *MemBacking) WriteBlock(address uint32, buf []byte) error {
	if int(address)+len(buf) > len(m.data) {
		return ErrOutOfRange
	}
	m.Writes++
	copy(m.data[address:], buf)
	return nil
}

// FileBacking keeps the record in a file so it survives between runs. A
// missing file reads as erased memory.
type FileBacking struct {
	mu   sync.Mutex
	path string
	size int
}

func NewFileBacking(path string, size int) *FileBacking {
	return &FileBacking{path: path, size: size}
}

func (f *FileBacking) load() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	if len(data) < f.size {
		erased := make([]byte, f.size)
		for i := range erased {
			erased[i] = 0xFF
		}
		copy(erased, data)
		data = erased
	}
	return data, nil
}

func (f *FileBacking) ReadBlock(address uint32, buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if int(address)+len(buf) > f.size {
		return ErrOutOfRange
	}
	data, err := f.load()
	if err != nil {
		return err
	}
	copy(buf, data[address:])
	return nil
}

func (f *FileBacking) WriteBlock(address uint32, buf []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if int(address)+len(buf) > f.size {
		return ErrOutOfRange
	}
	data, err := f.load()
	if err != nil {
		return err
	}
	copy(data[address:], buf)
	if err := os.WriteFile(f.path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	return nil
}
