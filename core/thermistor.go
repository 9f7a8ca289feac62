package core

import "github.com/chewxy/math32"

// ADC geometry. Filter sums of ThermistorSamples real readings are scaled to a
// virtual range with one extra bit of resolution.
const (
	ADCRangeReal           = 4095
	ADCOversampleBits      = 1
	ADCRangeVirtual        = ((ADCRangeReal + 1) << ADCOversampleBits) - 1
	ADCDisconnectedReal    = 4092
	ADCDisconnectedVirtual = ADCDisconnectedReal << ADCOversampleBits
)

// Temperatures in degrees Celsius.
const (
	AbsZero                 float32 = -273.15
	BadHighTemperature      float32 = 300
	ShortCircuitTemperature float32 = 2000
)

// RawFromSum converts a thermistor filter sum to the virtual ADC range.
func RawFromSum(sum uint32) int32 {
	return int32(sum / (ThermistorSamples >> ADCOversampleBits))
}

// Temperature converts a virtual-range reading to degrees Celsius using the
// Beta equation. A disconnected sensor returns AbsZero, a shorted one
// returns ShortCircuitTemperature.
func (p HeaterParams) Temperature(raw int32) float32 {
	// an ideal ADC reading N means the input lies in [N, N+1)
	reading := float32(raw) + 0.5

	// some ADCs never reach full scale; the negative high offset compensates
	if p.ADCHighOffset < 0 {
		raw -= int32(p.ADCHighOffset)
	}
	if raw >= ADCDisconnectedVirtual {
		return AbsZero
	}

	const span = ADCRangeVirtual + 1
	scaled := offsetSpan(p)
	if !(scaled > 0) {
		return AbsZero
	}
	reading -= p.ADCLowOffset
	reading *= span / scaled

	resistance := reading * p.SeriesR / (span - reading)
	if resistance <= p.rInf {
		return ShortCircuitTemperature
	}
	return AbsZero + p.beta/math32.Log(resistance/p.rInf)
}

// offsetSpan is the virtual ADC span left after the low and high offsets.
func offsetSpan(p HeaterParams) float32 {
	return ADCRangeVirtual + 1 + p.ADCHighOffset - p.ADCLowOffset
}

// IsDisconnected reports whether t is the disconnected-sensor sentinel.
func IsDisconnected(t float32) bool {
	return t <= AbsZero
}

// OverheatSum returns the thermistor filter sum at BadHighTemperature.
// Sums below it mean the sensor is too hot.
func (p HeaterParams) OverheatSum() uint32 {
	r := p.rInf * math32.Exp(p.beta/(BadHighTemperature-AbsZero))
	adc := (ADCRangeReal + 1) * r / (r + p.SeriesR)
	return uint32(adc+0.9) * ThermistorSamples
}

// DisconnectSum returns the thermistor filter sum at or above which the
// sensor is treated as open circuit.
func DisconnectSum() uint32 {
	return ADCDisconnectedReal * ThermistorSamples
}
