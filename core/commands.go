package core

import (
	"heatsense/protocol"
)

// FirmwareVersion is reported in the dictionary.
const FirmwareVersion = "heatsense-" + protocol.Version

// Which address set_network changes.
const (
	NetworkIP      = 0
	NetworkMask    = 1
	NetworkGateway = 2
)

// diagnosticsChunk bounds one diagnostics response so it fits a frame.
const diagnosticsChunk = 48

// argReader decodes VLQ arguments, keeping the first error.
type argReader struct {
	data *[]byte
	err  error
}

func (a *argReader) u32() uint32 {
	if a.err != nil {
		return 0
	}
	v, err := protocol.DecodeVLQUint(a.data)
	a.err = err
	return v
}

func (a *argReader) i32() int32 {
	if a.err != nil {
		return 0
	}
	v, err := protocol.DecodeVLQInt(a.data)
	a.err = err
	return v
}

func (a *argReader) u8() uint8 {
	return uint8(a.u32())
}

// CommandServer connects the framed command channel to a Platform. It runs
// entirely in the main loop.
type CommandServer struct {
	platform  *Platform
	registry  *CommandRegistry
	dict      *Dictionary
	out       *protocol.ScratchOutput
	transport *protocol.Transport
	write     func([]byte)

	idIdentifyResponse uint16
	idTemperature      uint16
	idProbeState       uint16
	idDiagnostics      uint16
	idError            uint16
}

// NewCommandServer registers the command set. write receives encoded frames
// whenever the output buffer is flushed.
func NewCommandServer(p *Platform, write func([]byte)) *CommandServer {
	s := &CommandServer{
		platform: p,
		registry: NewCommandRegistry(),
		out:      protocol.NewScratchOutput(),
		write:    write,
	}
	s.transport = protocol.NewTransport(s.out, s.handlePayload)

	r := s.registry
	s.idIdentifyResponse = r.RegisterResponse("identify_response", "offset=%u data=%.*s")
	r.Register("identify", "offset=%u count=%c", s.handleIdentify)

	r.Register("query_temperature", "heater=%c", s.handleQueryTemperature)
	r.Register("clear_fault", "heater=%c", s.handleClearFault)
	r.Register("set_thermistor", "heater=%c r25=%u beta=%u series_r=%u low_offset=%i high_offset=%i", s.handleSetThermistor)
	r.Register("set_pid", "heater=%c kp_m=%i ki_m=%i kd_m=%i", s.handleSetPID)
	r.Register("set_probe_type", "type=%c", s.handleSetProbeType)
	r.Register("set_probe_params", "adc_value=%i height_um=%i calib_temp_mc=%i coeff_um_per_c=%i", s.handleSetProbeParams)
	r.Register("set_probe_axes", "mask=%c", s.handleSetProbeAxes)
	r.Register("query_probe", "", s.handleQueryProbe)
	r.Register("set_heater", "heater=%c power_m=%u max_duration_us=%u", s.handleSetHeater)
	r.Register("emergency_stop", "", s.handleEmergencyStop)
	r.Register("set_tick_period", "period_us=%u", s.handleSetTickPeriod)
	r.Register("set_emulation", "mode=%c", s.handleSetEmulation)
	r.Register("set_network", "which=%c addr=%u", s.handleSetNetwork)
	r.Register("set_mac_address", "high=%u low=%u", s.handleSetMAC)
	r.Register("get_diagnostics", "", s.handleGetDiagnostics)

	s.idTemperature = r.RegisterResponse("temperature", "heater=%c temp_mc=%i raw=%u fault=%c")
	s.idProbeState = r.RegisterResponse("probe_state",
		"type=%c reading=%i secondary=%i raw=%i stop_height_um=%i axes=%c")
	s.idDiagnostics = r.RegisterResponse("diagnostics", "line=%.*s")
	s.idError = r.RegisterResponse("error", "cmd=%u msg=%.*s")

	s.dict = NewDictionary(r, FirmwareVersion)
	s.dict.AddConstant("MAX_HEATERS", MaxHeaters)
	s.dict.AddConstant("HEATERS", p.Heaters())
	s.dict.AddConstant("ADC_MAX", ADCRangeReal)
	s.dict.AddConstant("THERMISTOR_SAMPLES", ThermistorSamples)
	s.dict.AddConstant("PROBE_SAMPLES", ProbeSamples)
	s.dict.AddConstant("CLOCK_FREQ", p.cfg.TimerFreq)
	return s
}

func (s *CommandServer) Registry() *CommandRegistry { return s.registry }
func (s *CommandServer) Dictionary() *Dictionary    { return s.dict }

// AddConstant publishes a target-specific constant in the dictionary.
func (s *CommandServer) AddConstant(name string, value interface{}) {
	s.dict.AddConstant(name, value)
}

// Receive feeds raw bytes from the host and returns how many were consumed.
// Pending output is flushed before returning.
func (s *CommandServer) Receive(data []byte) int {
	n := s.transport.Receive(data)
	s.Flush()
	return n
}

// Flush hands buffered frames to the writer.
func (s *CommandServer) Flush() {
	if data := s.out.Result(); len(data) > 0 {
		if s.write != nil {
			s.write(data)
		}
		s.out.Reset()
	}
}

// Reset drops buffered output and returns the transport to its power-on
// state. Used when the host reconnects.
func (s *CommandServer) Reset() {
	s.transport.Reset()
	s.out.Reset()
}

func (s *CommandServer) handlePayload(payload []byte) error {
	for len(payload) > 0 {
		id, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return err
		}
		if err := s.registry.Dispatch(uint16(id), &payload); err != nil {
			s.sendError(id, err)
			if err == ErrUnknownCommand {
				// arguments cannot be skipped without the format
				return err
			}
		}
	}
	return nil
}

// send encodes one response frame, flushing first if it might not fit.
func (s *CommandServer) send(id uint16, args func(out protocol.OutputBuffer)) {
	if s.out.CurPosition() > protocol.ScratchSize-protocol.FrameMax {
		s.Flush()
	}
	s.transport.SendFrame(func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(id))
		args(out)
	})
}

func (s *CommandServer) sendError(cmd uint32, err error) {
	msg := err.Error()
	if len(msg) > diagnosticsChunk {
		msg = msg[:diagnosticsChunk]
	}
	s.send(s.idError, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, cmd)
		protocol.EncodeVLQBytes(out, []byte(msg))
	})
}

func (s *CommandServer) handleIdentify(data *[]byte) error {
	a := argReader{data: data}
	offset := a.u32()
	count := a.u8()
	if a.err != nil {
		return a.err
	}
	if count > diagnosticsChunk {
		count = diagnosticsChunk
	}
	chunk := s.dict.GetChunk(offset, count)
	s.send(s.idIdentifyResponse, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, offset)
		protocol.EncodeVLQBytes(out, chunk)
	})
	return nil
}

func (s *CommandServer) heaterArg(a *argReader) (int, error) {
	h := int(a.u8())
	if a.err != nil {
		return 0, a.err
	}
	if h >= s.platform.Heaters() {
		return 0, ErrInvalidHeater
	}
	return h, nil
}

func (s *CommandServer) sendTemperature(h int) {
	p := s.platform
	temp := int32(p.Temperature(h) * 1000)
	raw := uint32(p.RawTemperature(h))
	var fault uint32
	if p.HeaterFault(h) {
		fault = 1
	}
	s.send(s.idTemperature, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, uint32(h))
		protocol.EncodeVLQInt(out, temp)
		protocol.EncodeVLQUint(out, raw)
		protocol.EncodeVLQUint(out, fault)
	})
}

func (s *CommandServer) handleQueryTemperature(data *[]byte) error {
	a := argReader{data: data}
	h, err := s.heaterArg(&a)
	if err != nil {
		return err
	}
	s.sendTemperature(h)
	return nil
}

func (s *CommandServer) handleClearFault(data *[]byte) error {
	a := argReader{data: data}
	h, err := s.heaterArg(&a)
	if err != nil {
		return err
	}
	s.platform.ClearHeaterFault(h)
	s.sendTemperature(h)
	return nil
}

func (s *CommandServer) handleSetThermistor(data *[]byte) error {
	a := argReader{data: data}
	h, err := s.heaterArg(&a)
	r25 := a.u32()
	beta := a.u32()
	seriesR := a.u32()
	low := a.i32()
	high := a.i32()
	if err == nil {
		err = a.err
	}
	if err != nil {
		return err
	}

	params := s.platform.HeaterParams(h)
	params.SetR25AndBeta(float32(r25), float32(beta))
	params.SeriesR = float32(seriesR)
	params.ADCLowOffset = float32(low)
	params.ADCHighOffset = float32(high)
	err = s.platform.SetHeaterParams(h, params)
	s.sendTemperature(h)
	return err
}

func (s *CommandServer) handleSetHeater(data *[]byte) error {
	a := argReader{data: data}
	h, err := s.heaterArg(&a)
	power := a.u32()
	us := a.u32()
	if err == nil {
		err = a.err
	}
	if err != nil {
		return err
	}

	p := s.platform
	var ticks uint32
	if us != 0 {
		ticks = TicksFromSeconds(p.cfg.TimerFreq, float32(us)/1e6)
	}
	return p.DriveHeater(h, float32(power)/1000, ticks, p.Now())
}

func (s *CommandServer) handleEmergencyStop(data *[]byte) error {
	s.platform.ShutdownHeaters()
	return nil
}

func (s *CommandServer) handleSetPID(data *[]byte) error {
	a := argReader{data: data}
	h, err := s.heaterArg(&a)
	kp := a.i32()
	ki := a.i32()
	kd := a.i32()
	if err == nil {
		err = a.err
	}
	if err != nil {
		return err
	}

	params := s.platform.HeaterParams(h)
	params.Kp = float32(kp) / 1000
	params.Ki = float32(ki) / 1000
	params.Kd = float32(kd) / 1000
	return s.platform.SetHeaterParams(h, params)
}

func (s *CommandServer) sendProbeState() {
	probe := s.platform.Probe()
	secondary, _ := probe.SecondaryReadings()
	var mask uint32
	for i, used := range probe.Axes() {
		if used {
			mask |= 1 << uint(i)
		}
	}
	typ := uint32(probe.Type())
	reading := probe.ScaledReading()
	raw := probe.RawHeight()
	stop := int32(probe.StopHeight() * 1000)
	s.send(s.idProbeState, func(out protocol.OutputBuffer) {
		protocol.EncodeVLQUint(out, typ)
		protocol.EncodeVLQInt(out, reading)
		protocol.EncodeVLQInt(out, secondary)
		protocol.EncodeVLQInt(out, raw)
		protocol.EncodeVLQInt(out, stop)
		protocol.EncodeVLQUint(out, mask)
	})
}

func (s *CommandServer) handleSetProbeType(data *[]byte) error {
	a := argReader{data: data}
	t := ProbeType(a.u8())
	if a.err != nil {
		return a.err
	}
	err := s.platform.Probe().SetType(t)
	s.sendProbeState()
	return err
}

func (s *CommandServer) handleSetProbeParams(data *[]byte) error {
	a := argReader{data: data}
	adc := a.i32()
	height := a.i32()
	calib := a.i32()
	coeff := a.i32()
	if a.err != nil {
		return a.err
	}
	return s.platform.Probe().SetParams(ProbeParams{
		ADCValue:        adc,
		Height:          float32(height) / 1000,
		CalibTemp:       float32(calib) / 1000,
		TempCoefficient: float32(coeff) / 1000,
	})
}

func (s *CommandServer) handleSetProbeAxes(data *[]byte) error {
	a := argReader{data: data}
	mask := a.u8()
	if a.err != nil {
		return a.err
	}
	var axes [NumAxes]bool
	for i := range axes {
		axes[i] = mask&(1<<uint(i)) != 0
	}
	return s.platform.Probe().SetAxes(axes)
}

func (s *CommandServer) handleQueryProbe(data *[]byte) error {
	s.sendProbeState()
	return nil
}

func (s *CommandServer) handleSetTickPeriod(data *[]byte) error {
	a := argReader{data: data}
	us := a.u32()
	if a.err != nil {
		return a.err
	}
	return s.platform.SetTickPeriod(float32(us) / 1e6)
}

func (s *CommandServer) handleSetEmulation(data *[]byte) error {
	a := argReader{data: data}
	mode := Emulation(a.u8())
	if a.err != nil {
		return a.err
	}
	return s.platform.Store().SetEmulation(mode)
}

func (s *CommandServer) handleSetNetwork(data *[]byte) error {
	a := argReader{data: data}
	which := a.u8()
	v := a.u32()
	if a.err != nil {
		return a.err
	}
	addr := [4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
	store := s.platform.Store()
	switch which {
	case NetworkIP:
		return store.SetIPAddress(addr)
	case NetworkMask:
		return store.SetNetMask(addr)
	case NetworkGateway:
		return store.SetGateway(addr)
	}
	return ErrUnknownNetworkField
}

func (s *CommandServer) handleSetMAC(data *[]byte) error {
	a := argReader{data: data}
	high := a.u32()
	low := a.u32()
	if a.err != nil {
		return a.err
	}
	mac := [6]byte{byte(high >> 8), byte(high), byte(low >> 24), byte(low >> 16), byte(low >> 8), byte(low)}
	return s.platform.Store().SetMACAddress(mac)
}

func (s *CommandServer) handleGetDiagnostics(data *[]byte) error {
	s.platform.Diagnostics(func(line string) {
		for len(line) > 0 {
			n := len(line)
			if n > diagnosticsChunk {
				n = diagnosticsChunk
			}
			chunk := []byte(line[:n])
			line = line[n:]
			s.send(s.idDiagnostics, func(out protocol.OutputBuffer) {
				protocol.EncodeVLQBytes(out, chunk)
			})
		}
	})
	return nil
}
