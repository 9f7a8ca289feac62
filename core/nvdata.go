package core

import (
	"encoding/binary"
	"errors"

	"github.com/chewxy/math32"

	"heatsense/protocol"
)

// NvMagic tags a record written by this firmware layout.
const NvMagic uint32 = 0x48534E31

// NumAxes is the number of axes carrying a probe-applicability flag (X, Y, Z).
const NumAxes = 3

// Emulation selects the host-facing dialect the firmware mimics.
type Emulation uint8

const (
	EmulationNative Emulation = iota
	EmulationRepRapFirmware
	EmulationMarlin
	EmulationTeacup
	EmulationSprinter
	EmulationRepetier
)

func (e Emulation) String() string {
	switch e {
	case EmulationNative:
		return "native"
	case EmulationRepRapFirmware:
		return "reprapfirmware"
	case EmulationMarlin:
		return "marlin"
	case EmulationTeacup:
		return "teacup"
	case EmulationSprinter:
		return "sprinter"
	case EmulationRepetier:
		return "repetier"
	}
	return "unknown"
}

// NvData is the persisted configuration record. It is a comparable value:
// a change is detected with != against the loaded copy.
type NvData struct {
	Magic     uint32
	Emulation Emulation

	IPAddress  [4]byte
	NetMask    [4]byte
	Gateway    [4]byte
	MACAddress [6]byte

	ProbeType      ProbeType
	ProbeAxes      [NumAxes]bool
	SwitchProbe    ProbeParams
	IRProbe        ProbeParams
	AlternateProbe ProbeParams

	Heaters [MaxHeaters]HeaterParams

	ResetReason  uint16
	NeverUsedRAM uint32
}

// DefaultProbeStopHeight is the trigger height of IR and ultrasonic probes in mm.
const DefaultProbeStopHeight float32 = 0.7

// DefaultNvData returns the compiled-in configuration.
func DefaultNvData() NvData {
	d := NvData{
		Magic:      NvMagic,
		Emulation:  EmulationNative,
		IPAddress:  [4]byte{192, 168, 1, 10},
		NetMask:    [4]byte{255, 255, 255, 0},
		Gateway:    [4]byte{192, 168, 1, 1},
		MACAddress: [6]byte{0xBE, 0xEF, 0xDE, 0xAD, 0xFE, 0xED},

		ProbeType:      ProbeSwitch,
		ProbeAxes:      [NumAxes]bool{true, false, true},
		SwitchProbe:    DefaultProbeParams(0),
		IRProbe:        DefaultProbeParams(DefaultProbeStopHeight),
		AlternateProbe: DefaultProbeParams(DefaultProbeStopHeight),
	}
	for h := range d.Heaters {
		d.Heaters[h] = DefaultHeaterParams(h)
	}
	return d
}

// ProbeParamsFor returns the calibration slot used by probe type t.
func (d *NvData) ProbeParamsFor(t ProbeType) *ProbeParams {
	switch t {
	case ProbeUnmodulatedIR, ProbeModulatedIR:
		return &d.IRProbe
	case ProbeUltrasonic:
		return &d.AlternateProbe
	}
	return &d.SwitchProbe
}

const (
	probeParamsSize  = 4 * 4
	heaterParamsSize = 13 * 4

	// NvDataSize is the encoded record length including the CRC trailer.
	NvDataSize = 4 + 1 + 4 + 4 + 4 + 6 + 1 + NumAxes + 3*probeParamsSize +
		MaxHeaters*heaterParamsSize + 2 + 4 + 2
)

var (
	ErrNvDataShort = errors.New("core: configuration record truncated")
	ErrNvDataCRC   = errors.New("core: configuration record checksum mismatch")
)

// MarshalBinary encodes the record in its fixed little-endian layout
// followed by a CRC16 trailer.
func (d NvData) MarshalBinary() ([]byte, error) {
	w := nvWriter{b: make([]byte, 0, NvDataSize)}
	w.u32(d.Magic)
	w.u8(uint8(d.Emulation))
	w.bytes(d.IPAddress[:])
	w.bytes(d.NetMask[:])
	w.bytes(d.Gateway[:])
	w.bytes(d.MACAddress[:])
	w.u8(uint8(d.ProbeType))
	for _, a := range d.ProbeAxes {
		w.bool(a)
	}
	for _, p := range []ProbeParams{d.SwitchProbe, d.IRProbe, d.AlternateProbe} {
		w.u32(uint32(p.ADCValue))
		w.f32(p.Height)
		w.f32(p.CalibTemp)
		w.f32(p.TempCoefficient)
	}
	for _, h := range d.Heaters {
		for _, f := range [...]float32{h.Kp, h.Ki, h.Kd, h.Kt, h.Ks, h.FullBand, h.PIDMin, h.PIDMax,
			h.SeriesR, h.ADCLowOffset, h.ADCHighOffset, h.beta, h.rInf} {
			w.f32(f)
		}
	}
	w.u16(d.ResetReason)
	w.u32(d.NeverUsedRAM)
	return protocol.AppendCRC16(w.b), nil
}

// UnmarshalBinary decodes a record written by MarshalBinary.
func (d *NvData) UnmarshalBinary(data []byte) error {
	if len(data) < NvDataSize {
		return ErrNvDataShort
	}
	if !protocol.CheckCRC16(data[:NvDataSize]) {
		return ErrNvDataCRC
	}

	r := nvReader{b: data[:NvDataSize-2]}
	var out NvData
	out.Magic = r.u32()
	out.Emulation = Emulation(r.u8())
	r.bytes(out.IPAddress[:])
	r.bytes(out.NetMask[:])
	r.bytes(out.Gateway[:])
	r.bytes(out.MACAddress[:])
	out.ProbeType = ProbeType(r.u8())
	for i := range out.ProbeAxes {
		out.ProbeAxes[i] = r.u8() != 0
	}
	for _, p := range []*ProbeParams{&out.SwitchProbe, &out.IRProbe, &out.AlternateProbe} {
		p.ADCValue = int32(r.u32())
		p.Height = r.f32()
		p.CalibTemp = r.f32()
		p.TempCoefficient = r.f32()
	}
	for i := range out.Heaters {
		h := &out.Heaters[i]
		for _, f := range [...]*float32{&h.Kp, &h.Ki, &h.Kd, &h.Kt, &h.Ks, &h.FullBand, &h.PIDMin, &h.PIDMax,
			&h.SeriesR, &h.ADCLowOffset, &h.ADCHighOffset, &h.beta, &h.rInf} {
			*f = r.f32()
		}
	}
	out.ResetReason = r.u16()
	out.NeverUsedRAM = r.u32()

	*d = out
	return nil
}

type nvWriter struct {
	b []byte
}

func (w *nvWriter) u8(v uint8)     { w.b = append(w.b, v) }
func (w *nvWriter) u16(v uint16)   { w.b = binary.LittleEndian.AppendUint16(w.b, v) }
func (w *nvWriter) u32(v uint32)   { w.b = binary.LittleEndian.AppendUint32(w.b, v) }
func (w *nvWriter) f32(v float32)  { w.u32(math32.Float32bits(v)) }
func (w *nvWriter) bytes(v []byte) { w.b = append(w.b, v...) }
func (w *nvWriter) bool(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

// nvReader assumes the caller checked the length.
type nvReader struct {
	b   []byte
	pos int
}

func (r *nvReader) u8() uint8 {
	v := r.b[r.pos]
	r.pos++
	return v
}

func (r *nvReader) u16() uint16 {
	v := binary.LittleEndian.Uint16(r.b[r.pos:])
	r.pos += 2
	return v
}

func (r *nvReader) u32() uint32 {
	v := binary.LittleEndian.Uint32(r.b[r.pos:])
	r.pos += 4
	return v
}

func (r *nvReader) f32() float32 {
	return math32.Float32frombits(r.u32())
}

func (r *nvReader) bytes(dst []byte) {
	r.pos += copy(dst, r.b[r.pos:])
}
