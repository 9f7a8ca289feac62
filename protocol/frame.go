package protocol

import "errors"

var (
	ErrFrameIncomplete = errors.New("protocol: incomplete frame")
	ErrFrameInvalid    = errors.New("protocol: invalid frame")
	ErrPayloadTooLarge = errors.New("protocol: payload exceeds frame size")
)

// AppendFrame appends payload wrapped in a frame carrying sequence seq.
func AppendFrame(dst []byte, seq uint8, payload []byte) ([]byte, error) {
	if len(payload) > PayloadMax {
		return dst, ErrPayloadTooLarge
	}
	start := len(dst)
	dst = append(dst, byte(len(payload)+FrameMin), FrameDest|(seq&FrameSeqMask))
	dst = append(dst, payload...)
	crc := CRC16(dst[start:])
	return append(dst, byte(crc>>8), byte(crc), FrameSync), nil
}

// ParseFrame decodes the frame at the start of data. On ErrFrameInvalid the
// caller should drop bytes up to the next sync byte; on ErrFrameIncomplete it
// should wait for more input.
func ParseFrame(data []byte) (payload []byte, seq uint8, n int, err error) {
	if len(data) < FrameMin {
		return nil, 0, 0, ErrFrameIncomplete
	}
	n = int(data[FramePosLen])
	if n < FrameMin || n > FrameMax {
		return nil, 0, 0, ErrFrameInvalid
	}
	seq = data[FramePosSeq]
	if seq&^FrameSeqMask != FrameDest {
		return nil, 0, 0, ErrFrameInvalid
	}
	if len(data) < n {
		return nil, 0, 0, ErrFrameIncomplete
	}
	if data[n-1] != FrameSync || !CheckCRC16(data[:n-1]) {
		return nil, 0, 0, ErrFrameInvalid
	}
	return data[FrameHeaderSize : n-FrameTrailerSize], seq & FrameSeqMask, n, nil
}

// FrameHandler consumes one verified payload.
type FrameHandler func(payload []byte) error

// Transport is the device side of the channel: it resynchronises on garbage,
// filters out-of-sequence frames and acknowledges every frame it sees.
type Transport struct {
	output   OutputBuffer
	handler  FrameHandler
	nextSeq  uint8
	synced   bool
	lastErr  error
	rejected uint32
}

func NewTransport(output OutputBuffer, handler FrameHandler) *Transport {
	return &Transport{output: output, handler: handler, synced: true}
}

// Receive processes as many complete frames as data holds and returns the
// number of bytes consumed.
func (t *Transport) Receive(data []byte) int {
	total := len(data)
	for len(data) > 0 {
		if !t.synced {
			i := 0
			for i < len(data) && data[i] != FrameSync {
				i++
			}
			if i == len(data) {
				data = data[i:]
				break
			}
			data = data[i+1:]
			t.synced = true
			t.sendAck()
			continue
		}
		if data[0] == FrameSync {
			data = data[1:]
			continue
		}

		payload, seq, n, err := ParseFrame(data)
		if err == ErrFrameIncomplete {
			break
		}
		if err != nil {
			t.rejected++
			t.synced = false
			continue
		}
		data = data[n:]

		if seq == 0 && t.nextSeq != 0 {
			// host restarted its sequence
			t.nextSeq = 0
		}
		if seq == t.nextSeq {
			t.nextSeq = (seq + 1) & FrameSeqMask
			if t.handler != nil {
				if err := t.handler(payload); err != nil {
					t.lastErr = err
				}
			}
		}
		t.sendAck()
	}
	return total - len(data)
}

// SendFrame encodes one frame with the current sequence.
func (t *Transport) SendFrame(encode func(out OutputBuffer)) {
	start := t.output.CurPosition()
	t.output.Output([]byte{0, FrameDest | t.nextSeq})
	encode(t.output)
	length := len(t.output.DataSince(start)) + FrameTrailerSize
	t.output.Update(start, byte(length))

	crc := CRC16(t.output.DataSince(start))
	t.output.Output([]byte{byte(crc >> 8), byte(crc), FrameSync})
}

func (t *Transport) sendAck() {
	t.SendFrame(func(OutputBuffer) {})
}

// LastError returns the most recent handler error.
func (t *Transport) LastError() error {
	return t.lastErr
}

// Rejected counts frames dropped for length, sequence byte or checksum.
func (t *Transport) Rejected() uint32 {
	return t.rejected
}

// Reset returns the transport to its power-on state.
func (t *Transport) Reset() {
	t.nextSeq = 0
	t.synced = true
	t.lastErr = nil
}
