package core

import "errors"

// BackingStore is the persistent medium behind the configuration record.
// Calls are synchronous and may block for a long time: main loop only.
type BackingStore interface {
	ReadBlock(address uint32, buf []byte) error
	WriteBlock(address uint32, buf []byte) error
}

var (
	ErrUnsupportedEmulation = errors.New("core: unsupported emulation mode")
	ErrInvalidHeater        = errors.New("core: heater index out of range")
	ErrInvalidCalibration   = errors.New("core: calibration value out of range")
)

// Store owns the in-memory configuration record and writes it back as a
// whole, only when a setter actually changes it.
type Store struct {
	backing    BackingStore
	address    uint32
	freeMemory func() uint32

	data      NvData
	writes    uint32
	defaulted bool
}

func NewStore(backing BackingStore, address uint32) *Store {
	return &Store{backing: backing, address: address}
}

// SetFreeMemoryProbe installs the callback recording never-used RAM.
func (s *Store) SetFreeMemoryProbe(f func() uint32) {
	s.freeMemory = f
}

// Load reads the record. A magic or checksum mismatch, or a failed read,
// installs the compiled-in defaults and persists them once.
func (s *Store) Load() error {
	buf := make([]byte, NvDataSize)
	var d NvData
	err := s.backing.ReadBlock(s.address, buf)
	if err == nil {
		err = d.UnmarshalBinary(buf)
	}
	if err == nil && d.Magic == NvMagic {
		s.data = d
		s.defaulted = false
		return nil
	}

	DebugPrintln("[NV] record invalid, loading defaults")
	s.data = DefaultNvData()
	s.data.NeverUsedRAM = s.neverUsedRAM()
	s.defaulted = true
	return s.Persist()
}

// Persist writes the whole record unconditionally.
func (s *Store) Persist() error {
	return s.write(s.data)
}

func (s *Store) write(d NvData) error {
	buf, err := d.MarshalBinary()
	if err != nil {
		return err
	}
	s.writes++
	return s.backing.WriteBlock(s.address, buf)
}

// Data returns a copy of the record.
func (s *Store) Data() NvData {
	return s.data
}

// Writes counts backing store writes since creation.
func (s *Store) Writes() uint32 {
	return s.writes
}

// Defaulted reports whether the last Load fell back to defaults.
func (s *Store) Defaulted() bool {
	return s.defaulted
}

// update applies mutate to a copy and persists only when the copy differs.
// The record in memory only changes once the write has succeeded, so a
// failed setter can be retried.
func (s *Store) update(mutate func(d *NvData)) error {
	next := s.data
	mutate(&next)
	if next == s.data {
		return nil
	}
	if err := s.write(next); err != nil {
		return err
	}
	s.data = next
	return nil
}

func (s *Store) neverUsedRAM() uint32 {
	if s.freeMemory == nil {
		return 0
	}
	return s.freeMemory()
}

func (s *Store) SetProbeType(t ProbeType) error {
	return s.update(func(d *NvData) { d.ProbeType = t })
}

func (s *Store) SetProbeAxes(axes [NumAxes]bool) error {
	return s.update(func(d *NvData) { d.ProbeAxes = axes })
}

// SetProbeParams replaces the calibration slot used by probe type t.
func (s *Store) SetProbeParams(t ProbeType, p ProbeParams) error {
	if !p.Valid() {
		return ErrInvalidCalibration
	}
	return s.update(func(d *NvData) { *d.ProbeParamsFor(t) = p })
}

func (s *Store) SetHeaterParams(h int, p HeaterParams) error {
	if h < 0 || h >= MaxHeaters {
		return ErrInvalidHeater
	}
	if !p.Valid() {
		return ErrInvalidCalibration
	}
	return s.update(func(d *NvData) { d.Heaters[h] = p })
}

func (s *Store) SetIPAddress(a [4]byte) error {
	return s.update(func(d *NvData) { d.IPAddress = a })
}

func (s *Store) SetNetMask(a [4]byte) error {
	return s.update(func(d *NvData) { d.NetMask = a })
}

func (s *Store) SetGateway(a [4]byte) error {
	return s.update(func(d *NvData) { d.Gateway = a })
}

func (s *Store) SetMACAddress(a [6]byte) error {
	return s.update(func(d *NvData) { d.MACAddress = a })
}

// SetEmulation accepts native, RepRapFirmware (stored as native) and Marlin.
func (s *Store) SetEmulation(e Emulation) error {
	switch e {
	case EmulationNative, EmulationMarlin:
	case EmulationRepRapFirmware:
		e = EmulationNative
	default:
		return ErrUnsupportedEmulation
	}
	return s.update(func(d *NvData) { d.Emulation = e })
}

// Emulating returns the active emulation; RepRapFirmware reads as native.
func (s *Store) Emulating() Emulation {
	if s.data.Emulation == EmulationRepRapFirmware {
		return EmulationNative
	}
	return s.data.Emulation
}

// SetResetReason records why the firmware is about to reset, together with
// the current never-used RAM figure.
func (s *Store) SetResetReason(reason uint16) error {
	ram := s.neverUsedRAM()
	return s.update(func(d *NvData) {
		d.ResetReason = reason
		d.NeverUsedRAM = ram
	})
}

// HeaterParams returns heater h's calibration without copying the record.
func (s *Store) HeaterParams(h int) HeaterParams {
	if h < 0 || h >= MaxHeaters {
		return HeaterParams{}
	}
	return s.data.Heaters[h]
}
