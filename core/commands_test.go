package core

import (
	"bytes"
	"compress/zlib"
	"io"
	"strings"
	"testing"

	"heatsense/protocol"
)

type response struct {
	name string
	args []byte
}

type serverRig struct {
	*testRig
	s       *CommandServer
	written []byte
	seq     uint8
}

func newServerRig(t *testing.T, heaters int) *serverRig {
	r := &serverRig{testRig: newTestRig(heaters)}
	if err := r.p.Init(0); err != nil {
		t.Fatal(err)
	}
	r.s = NewCommandServer(r.p, func(b []byte) {
		r.written = append(r.written, b...)
	})
	return r
}

// payload encodes name followed by args as one command.
func (r *serverRig) payload(t *testing.T, name string, args ...int32) []byte {
	cmd, ok := r.s.Registry().GetCommandByName(name)
	if !ok {
		t.Fatalf("no command %q", name)
	}
	out := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(out, uint32(cmd.ID))
	for _, a := range args {
		protocol.EncodeVLQInt(out, a)
	}
	return append([]byte(nil), out.Result()...)
}

// send frames payload, feeds it to the server and returns the non-ack
// responses written back.
func (r *serverRig) send(t *testing.T, payload []byte) []response {
	frame, err := protocol.AppendFrame(nil, r.seq, payload)
	if err != nil {
		t.Fatal(err)
	}
	r.seq = (r.seq + 1) & protocol.FrameSeqMask
	r.written = nil
	if n := r.s.Receive(frame); n != len(frame) {
		t.Fatalf("consumed %d of %d bytes", n, len(frame))
	}

	var out []response
	data := r.written
	for len(data) > 0 {
		body, _, n, err := protocol.ParseFrame(data)
		if err != nil {
			t.Fatalf("bad response frame: %v", err)
		}
		data = data[n:]
		if len(body) == 0 {
			continue
		}
		id, err := protocol.DecodeVLQUint(&body)
		if err != nil {
			t.Fatal(err)
		}
		cmd, ok := r.s.Registry().GetCommand(uint16(id))
		if !ok || !cmd.IsResponse() {
			t.Fatalf("unexpected response id %d", id)
		}
		out = append(out, response{name: cmd.Name, args: body})
	}
	return out
}

func (r *serverRig) call(t *testing.T, name string, args ...int32) []response {
	return r.send(t, r.payload(t, name, args...))
}

func decodeInts(t *testing.T, data []byte, n int) []int32 {
	vals := make([]int32, n)
	for i := range vals {
		v, err := protocol.DecodeVLQInt(&data)
		if err != nil {
			t.Fatalf("arg %d: %v", i, err)
		}
		vals[i] = v
	}
	return vals
}

func TestIdentifyReturnsDictionary(t *testing.T) {
	r := newServerRig(t, 2)

	var dict []byte
	for {
		resp := r.call(t, "identify", int32(len(dict)), 40)
		if len(resp) != 1 || resp[0].name != "identify_response" {
			t.Fatalf("responses %+v", resp)
		}
		args := resp[0].args
		offset, _ := protocol.DecodeVLQUint(&args)
		if int(offset) != len(dict) {
			t.Fatalf("offset %d, want %d", offset, len(dict))
		}
		chunk, err := protocol.DecodeVLQBytes(&args)
		if err != nil {
			t.Fatal(err)
		}
		if len(chunk) == 0 {
			break
		}
		dict = append(dict, chunk...)
	}

	zr, err := zlib.NewReader(bytes.NewReader(dict))
	if err != nil {
		t.Fatal(err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != string(r.s.Dictionary().Generate()) {
		t.Errorf("reassembled dictionary differs")
	}
	text := string(raw)
	for _, want := range []string{
		"version " + FirmwareVersion + "\n",
		"const HEATERS 2\n",
		"const THERMISTOR_SAMPLES 4\n",
		"cmd 1 identify offset=%u count=%c\n",
		"resp 0 identify_response offset=%u data=%.*s\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("dictionary missing %q", want)
		}
	}
}

func TestIdentifyCountIsBounded(t *testing.T) {
	r := newServerRig(t, 1)
	resp := r.call(t, "identify", 0, 255)
	args := resp[0].args
	protocol.DecodeVLQUint(&args)
	chunk, _ := protocol.DecodeVLQBytes(&args)
	if len(chunk) != diagnosticsChunk {
		t.Errorf("chunk length %d, want %d", len(chunk), diagnosticsChunk)
	}
}

func TestQueryTemperature(t *testing.T) {
	r := newServerRig(t, 2)
	resp := r.call(t, "query_temperature", 0)
	if len(resp) != 1 || resp[0].name != "temperature" {
		t.Fatalf("responses %+v", resp)
	}
	v := decodeInts(t, resp[0].args, 4)
	if v[0] != 0 {
		t.Errorf("heater %d", v[0])
	}
	if v[1] < 24500 || v[1] > 25500 {
		t.Errorf("temp_mc %d, want about 25000", v[1])
	}
	if v[2] != int32(roomTempADC)*2 {
		t.Errorf("raw %d", v[2])
	}
	if v[3] != 0 {
		t.Errorf("fault %d", v[3])
	}
}

func TestInvalidHeaterReportsError(t *testing.T) {
	r := newServerRig(t, 1)
	resp := r.call(t, "query_temperature", 3)
	if len(resp) != 1 || resp[0].name != "error" {
		t.Fatalf("responses %+v", resp)
	}
	args := resp[0].args
	cmd, _ := protocol.DecodeVLQUint(&args)
	msg, _ := protocol.DecodeVLQBytes(&args)
	query, _ := r.s.Registry().GetCommandByName("query_temperature")
	if uint16(cmd) != query.ID {
		t.Errorf("error for command %d, want %d", cmd, query.ID)
	}
	if string(msg) != ErrInvalidHeater.Error() {
		t.Errorf("message %q", msg)
	}
}

func TestUnknownCommandStopsPayload(t *testing.T) {
	r := newServerRig(t, 1)
	payload := []byte{0x7f}
	payload = append(payload, r.payload(t, "query_temperature", 0)...)
	resp := r.send(t, payload)
	if len(resp) != 1 || resp[0].name != "error" {
		t.Fatalf("responses %+v", resp)
	}
}

func TestSeveralCommandsInOnePayload(t *testing.T) {
	r := newServerRig(t, 2)
	payload := r.payload(t, "query_temperature", 0)
	payload = append(payload, r.payload(t, "query_temperature", 1)...)
	resp := r.send(t, payload)
	if len(resp) != 2 {
		t.Fatalf("got %d responses", len(resp))
	}
	if v := decodeInts(t, resp[1].args, 1); v[0] != 1 {
		t.Errorf("second response for heater %d", v[0])
	}
}

func TestSetThermistorUpdatesStoreAndThreshold(t *testing.T) {
	r := newServerRig(t, 1)
	writes := r.p.Store().Writes()
	resp := r.call(t, "set_thermistor", 0, 100000, 4388, 4700, 0, 0)
	if len(resp) != 1 || resp[0].name != "temperature" {
		t.Fatalf("responses %+v", resp)
	}
	params := r.p.HeaterParams(0)
	if params.R25() < 99999 || params.R25() > 100001 || params.Beta() != 4388 {
		t.Errorf("params r25=%f beta=%f", params.R25(), params.Beta())
	}
	if r.p.Store().Writes() != writes+1 {
		t.Errorf("store not persisted")
	}
	if r.p.Sampler().OverheatSum(0) != params.OverheatSum() {
		t.Errorf("overheat threshold not refreshed")
	}
}

func TestSetThermistorRejectsOffsetsWithoutSpan(t *testing.T) {
	r := newServerRig(t, 1)
	before := r.p.HeaterParams(0)
	writes := r.p.Store().Writes()

	resp := r.call(t, "set_thermistor", 0, 100000, 4388, 4700, ADCRangeVirtual+1, 0)
	if len(resp) != 2 || resp[0].name != "temperature" || resp[1].name != "error" {
		t.Fatalf("responses %+v", resp)
	}
	v := decodeInts(t, resp[0].args, 4)
	if v[1] < 24500 || v[1] > 25500 {
		t.Errorf("temp_mc %d, want calibration unchanged", v[1])
	}
	args := resp[1].args
	protocol.DecodeVLQUint(&args)
	msg, _ := protocol.DecodeVLQBytes(&args)
	if string(msg) != ErrInvalidCalibration.Error() {
		t.Errorf("message %q", msg)
	}
	if r.p.HeaterParams(0) != before || r.p.Store().Writes() != writes {
		t.Error("rejected calibration was applied")
	}
}

func TestSetPID(t *testing.T) {
	r := newServerRig(t, 2)
	if resp := r.call(t, "set_pid", 1, 12000, 150, 90000); len(resp) != 0 {
		t.Fatalf("responses %+v", resp)
	}
	p := r.p.HeaterParams(1)
	if p.Kp != 12 || p.Ki != 0.15 || p.Kd != 90 {
		t.Errorf("pid %f %f %f", p.Kp, p.Ki, p.Kd)
	}
}

func TestSetProbeTypeReportsState(t *testing.T) {
	r := newServerRig(t, 1)
	resp := r.call(t, "set_probe_type", int32(ProbeModulatedIR))
	if len(resp) != 1 || resp[0].name != "probe_state" {
		t.Fatalf("responses %+v", resp)
	}
	if v := decodeInts(t, resp[0].args, 1); ProbeType(v[0]) != ProbeModulatedIR {
		t.Errorf("type %d", v[0])
	}
	if r.p.Store().Data().ProbeType != ProbeModulatedIR {
		t.Errorf("type not persisted")
	}

	resp = r.call(t, "set_probe_type", 9)
	if v := decodeInts(t, resp[0].args, 1); ProbeType(v[0]) != ProbeSwitch {
		t.Errorf("invalid type became %d", v[0])
	}
}

func TestSetProbeParamsAndAxes(t *testing.T) {
	r := newServerRig(t, 1)
	r.call(t, "set_probe_type", int32(ProbeModulatedIR))
	r.call(t, "set_probe_params", 500, 1200, 25000, 0)
	r.call(t, "set_probe_axes", 0x5)

	got := r.p.Probe().Params()
	if got.ADCValue != 500 || got.Height != 1.2 || got.CalibTemp != 25 {
		t.Errorf("params %+v", got)
	}
	if axes := r.p.Probe().Axes(); axes != [NumAxes]bool{true, false, true} {
		t.Errorf("axes %v", axes)
	}

	resp := r.call(t, "query_probe")
	v := decodeInts(t, resp[0].args, 6)
	if v[4] != 1200 {
		t.Errorf("stop height %d", v[4])
	}
	if v[5] != 0x5 {
		t.Errorf("axes mask %#x", v[5])
	}
}

func TestSetTickPeriodCommand(t *testing.T) {
	r := newServerRig(t, 1)
	r.call(t, "set_tick_period", 500)
	if got := r.p.TickPeriod(); got < 0.000499 || got > 0.000501 {
		t.Errorf("tick period %f", got)
	}

	resp := r.call(t, "set_tick_period", 0)
	if len(resp) != 1 || resp[0].name != "error" {
		t.Fatalf("responses %+v", resp)
	}
	if got := r.p.TickPeriod(); got < 0.000199 || got > 0.000201 {
		t.Errorf("tick period %f after invalid request", got)
	}
}

func TestSetEmulation(t *testing.T) {
	r := newServerRig(t, 1)
	r.call(t, "set_emulation", int32(EmulationMarlin))
	if r.p.Store().Emulating() != EmulationMarlin {
		t.Errorf("emulation %v", r.p.Store().Emulating())
	}
	resp := r.call(t, "set_emulation", int32(EmulationTeacup))
	if len(resp) != 1 || resp[0].name != "error" {
		t.Fatalf("responses %+v", resp)
	}
}

func TestSetNetwork(t *testing.T) {
	r := newServerRig(t, 1)
	r.call(t, "set_network", NetworkIP, -1062731510) // 192.168.1.10
	r.call(t, "set_network", NetworkGateway, -1062731775)
	r.call(t, "set_mac_address", 0x0102, 0x03040506)

	d := r.p.Store().Data()
	if d.IPAddress != [4]byte{192, 168, 1, 10} {
		t.Errorf("ip %v", d.IPAddress)
	}
	if d.Gateway != [4]byte{192, 168, 0, 1} {
		t.Errorf("gateway %v", d.Gateway)
	}
	if d.MACAddress != [6]byte{1, 2, 3, 4, 5, 6} {
		t.Errorf("mac %v", d.MACAddress)
	}

	resp := r.call(t, "set_network", 7, 0)
	if len(resp) != 1 || resp[0].name != "error" {
		t.Fatalf("responses %+v", resp)
	}
}

func TestGetDiagnostics(t *testing.T) {
	r := newServerRig(t, 2)
	resp := r.call(t, "get_diagnostics")
	var text strings.Builder
	for _, m := range resp {
		if m.name != "diagnostics" {
			t.Fatalf("unexpected %q", m.name)
		}
		args := m.args
		chunk, err := protocol.DecodeVLQBytes(&args)
		if err != nil {
			t.Fatal(err)
		}
		if len(chunk) > diagnosticsChunk {
			t.Errorf("chunk of %d bytes", len(chunk))
		}
		text.Write(chunk)
	}
	for _, want := range []string{"=== Platform ===", "heater 1:", "probe: type=", "nv: writes="} {
		if !strings.Contains(text.String(), want) {
			t.Errorf("diagnostics missing %q", want)
		}
	}
}

func TestClearFaultResponds(t *testing.T) {
	r := newServerRig(t, 1)
	r.adc.values[0] = 4095
	for i := 0; i < 40; i++ {
		r.p.Sampler().Tick()
	}
	if !r.p.HeaterFault(0) {
		t.Fatal("disconnected thermistor did not fault")
	}
	resp := r.call(t, "query_temperature", 0)
	if v := decodeInts(t, resp[0].args, 4); v[3] != 1 {
		t.Errorf("fault flag %d", v[3])
	}

	r.adc.values[0] = roomTempADC
	for i := 0; i < 40; i++ {
		r.p.Sampler().Tick()
	}
	resp = r.call(t, "clear_fault", 0)
	if v := decodeInts(t, resp[0].args, 4); v[3] != 0 {
		t.Errorf("fault flag %d after clear", v[3])
	}
}

func TestSetHeaterAndEmergencyStop(t *testing.T) {
	r := newServerRig(t, 2)
	if resp := r.call(t, "set_heater", 1, 500, 0); len(resp) != 0 {
		t.Fatalf("responses %+v", resp)
	}
	if got := r.pwm.duty[11]; got != 127 {
		t.Errorf("duty %d, want 127", got)
	}
	r.call(t, "emergency_stop")
	if r.pwm.duty[11] != 0 {
		t.Errorf("heater on after emergency stop")
	}
}

func TestResetResynchronizes(t *testing.T) {
	r := newServerRig(t, 1)

	// bad sequence byte drops the transport out of sync
	garbage := []byte{0x05, 0x00, 0x00, 0x00, 0x00}
	if n := r.s.Receive(garbage); n != len(garbage) {
		t.Fatalf("consumed %d of %d", n, len(garbage))
	}

	r.s.Reset()
	r.seq = 0
	resp := r.call(t, "query_temperature", 0)
	if len(resp) != 1 || resp[0].name != "temperature" {
		t.Fatalf("responses %+v", resp)
	}
}
