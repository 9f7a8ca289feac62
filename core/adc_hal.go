package core

// ADCChannel identifies a logical ADC input.
type ADCChannel uint8

// ADCValue is a single real (non-oversampled) conversion result, 0..ADCRangeReal.
type ADCValue uint16

// ADCDriver is the abstract ADC interface that core code uses.
// StartConversion and Result are called from the tick and must not block
// for longer than one conversion.
type ADCDriver interface {
	// ConfigureChannel prepares a channel for analog input.
	ConfigureChannel(ch ADCChannel) error

	// StartConversion begins a conversion on ch.
	StartConversion(ch ADCChannel)

	// Result returns the last completed conversion on ch.
	Result(ch ADCChannel) ADCValue
}
