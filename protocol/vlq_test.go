package protocol

import "testing"

func TestVLQRoundTripInt(t *testing.T) {
	values := []int32{0, 1, -1, 31, -32, 95, 96, 127, -127, 4095, -4096, 12287,
		65535, -65535, 1000000, -1000000, 1 << 30, -(1 << 30)}

	for _, want := range values {
		out := NewScratchOutput()
		EncodeVLQInt(out, want)
		data := out.Result()

		got, err := DecodeVLQInt(&data)
		if err != nil {
			t.Errorf("decode %d: %v", want, err)
			continue
		}
		if got != want {
			t.Errorf("VLQ mismatch: expected %d, got %d", want, got)
		}
		if len(data) != 0 {
			t.Errorf("value %d left %d bytes undecoded", want, len(data))
		}
	}
}

func TestVLQShortEncodings(t *testing.T) {
	cases := []struct {
		v    int32
		size int
	}{
		{0, 1},
		{-32, 1},
		{95, 1},
		{96, 2},
		{4095, 2},
		{300, 2},
	}
	for _, tc := range cases {
		out := NewScratchOutput()
		EncodeVLQInt(out, tc.v)
		if n := len(out.Result()); n != tc.size {
			t.Errorf("EncodeVLQInt(%d) used %d bytes, want %d", tc.v, n, tc.size)
		}
	}
}

func TestVLQUintLargeValue(t *testing.T) {
	out := NewScratchOutput()
	EncodeVLQUint(out, 0xFFFFFFF0)
	data := out.Result()
	got, err := DecodeVLQUint(&data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != 0xFFFFFFF0 {
		t.Errorf("got 0x%X", got)
	}
}

func TestVLQBufferTooSmall(t *testing.T) {
	data := []byte{0x80}
	if _, err := DecodeVLQInt(&data); err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall, got %v", err)
	}
	var empty []byte
	if _, err := DecodeVLQInt(&empty); err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall on empty input, got %v", err)
	}
}

func TestVLQTooManyGroups(t *testing.T) {
	data := []byte{0x81, 0x81, 0x81, 0x81, 0x81, 0x01}
	if _, err := DecodeVLQInt(&data); err != ErrInvalidVLQ {
		t.Errorf("Expected ErrInvalidVLQ, got %v", err)
	}
}

func TestVLQBytes(t *testing.T) {
	for i, want := range [][]byte{{}, {0x01}, {0xFF, 0xFE, 0xFD}, make([]byte, 40)} {
		out := NewScratchOutput()
		EncodeVLQBytes(out, want)
		data := out.Result()

		got, err := DecodeVLQBytes(&data)
		if err != nil {
			t.Errorf("case %d: %v", i, err)
			continue
		}
		if string(got) != string(want) {
			t.Errorf("case %d: got %v, want %v", i, got, want)
		}
	}

	truncated := []byte{5, 1, 2}
	if _, err := DecodeVLQBytes(&truncated); err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall for truncated string, got %v", err)
	}
}
