package core

// Samples averaged per filter.
const (
	ThermistorSamples = 4
	ProbeSamples      = 8
)

// AveragingFilter keeps the running sum of the last N raw samples.
// It is written only by the tick; other contexts read it through Snapshot.
type AveragingFilter struct {
	samples []ADCValue
	sum     uint32
	cursor  int
	count   int
}

// NewAveragingFilter allocates a filter of capacity n. It starts invalid with
// a zero sum until Init is called.
func NewAveragingFilter(n int) AveragingFilter {
	if n < 1 {
		n = 1
	}
	return AveragingFilter{samples: make([]ADCValue, n)}
}

// Init pre-seeds every slot with initial and marks the filter invalid.
func (f *AveragingFilter) Init(initial ADCValue) {
	for i := range f.samples {
		f.samples[i] = initial
	}
	f.sum = uint32(initial) * uint32(len(f.samples))
	f.cursor = 0
	f.count = 0
}

// ProcessReading replaces the oldest sample with x.
func (f *AveragingFilter) ProcessReading(x ADCValue) {
	f.sum -= uint32(f.samples[f.cursor])
	f.samples[f.cursor] = x
	f.sum += uint32(x)
	f.cursor++
	if f.cursor == len(f.samples) {
		f.cursor = 0
	}
	if f.count < len(f.samples) {
		f.count++
	}
}

// Sum returns the running total, not the average.
func (f *AveragingFilter) Sum() uint32 {
	return f.sum
}

// IsValid reports whether the buffer has been filled since the last Init.
func (f *AveragingFilter) IsValid() bool {
	return f.count == len(f.samples)
}

// Latest returns the most recently processed sample.
func (f *AveragingFilter) Latest() ADCValue {
	i := f.cursor - 1
	if i < 0 {
		i = len(f.samples) - 1
	}
	return f.samples[i]
}

// Len returns the filter capacity.
func (f *AveragingFilter) Len() int {
	return len(f.samples)
}

// FilterSnapshot is a copy of filter state taken outside the tick.
// It may be up to one multiplexing cycle old.
type FilterSnapshot struct {
	Sum    uint32
	Valid  bool
	Latest ADCValue
}

func (f *AveragingFilter) snapshot() FilterSnapshot {
	return FilterSnapshot{Sum: f.sum, Valid: f.IsValid(), Latest: f.Latest()}
}
