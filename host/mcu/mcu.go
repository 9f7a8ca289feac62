package mcu

import (
	"bytes"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"heatsense/host/serial"
	"heatsense/protocol"
)

// identify and identify_response have fixed IDs so the dictionary can be
// fetched before it is known.
const (
	identifyResponseID = 0
	identifyID         = 1
	identifyChunk      = 40
)

var (
	ErrNotConnected = errors.New("mcu: not connected")
	ErrNoDictionary = errors.New("mcu: dictionary not retrieved")
	ErrTimeout      = errors.New("mcu: timed out waiting for response")
)

// ErrorResponse is returned when the firmware answers a command with an
// error message.
type ErrorResponse struct {
	Command string
	Message string
}

func (e *ErrorResponse) Error() string {
	return "mcu: " + e.Command + ": " + e.Message
}

// MCU represents a connection to the heatsense firmware
type MCU struct {
	port    io.ReadWriter
	closer  io.Closer
	seq     uint8
	rx      []byte
	pending [][]byte

	dictionary     *Dictionary
	dictionaryData []byte

	// Timeout bounds each wait for a response.
	Timeout time.Duration
	// Verbose logs frames and dictionary progress.
	Verbose bool
}

// New wraps an already open byte stream.
func New(port io.ReadWriter) *MCU {
	m := &MCU{port: port, Timeout: time.Second}
	if c, ok := port.(io.Closer); ok {
		m.closer = c
	}
	return m
}

// Connect opens device with the default serial configuration
func Connect(device string) (*MCU, error) {
	return ConnectWithConfig(serial.DefaultConfig(device))
}

// ConnectWithConfig opens a serial port and discards any stale input.
func ConnectWithConfig(cfg *serial.Config) (*MCU, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	if err := port.Flush(); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to flush serial port: %w", err)
	}
	return New(port), nil
}

// Close closes the connection to the MCU
func (m *MCU) Close() error {
	if m.closer == nil {
		return nil
	}
	err := m.closer.Close()
	m.closer = nil
	m.port = nil
	return err
}

func (m *MCU) Dictionary() *Dictionary {
	return m.dictionary
}

// DictionaryRaw returns the inflated dictionary text.
func (m *MCU) DictionaryRaw() []byte {
	return m.dictionaryData
}

func (m *MCU) sendPayload(payload []byte) error {
	if m.port == nil {
		return ErrNotConnected
	}
	frame, err := protocol.AppendFrame(nil, m.seq, payload)
	if err != nil {
		return err
	}
	m.seq = (m.seq + 1) & protocol.FrameSeqMask
	if m.Verbose {
		log.Printf("tx % x", frame)
	}
	_, err = m.port.Write(frame)
	return err
}

// nextPayload returns the next non-empty frame payload from the device.
func (m *MCU) nextPayload(timeout time.Duration) ([]byte, error) {
	if m.port == nil {
		return nil, ErrNotConnected
	}
	deadline := time.Now().Add(timeout)
	buf := make([]byte, 256)
	for {
		for len(m.pending) == 0 && len(m.rx) > 0 {
			payload, _, n, err := protocol.ParseFrame(m.rx)
			if err == protocol.ErrFrameIncomplete {
				break
			}
			if err != nil {
				m.resync()
				continue
			}
			if len(payload) > 0 {
				m.pending = append(m.pending, append([]byte{}, payload...))
			}
			m.rx = m.rx[n:]
		}
		if len(m.pending) > 0 {
			p := m.pending[0]
			m.pending = m.pending[1:]
			return p, nil
		}

		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}
		n, err := m.port.Read(buf)
		if n > 0 {
			if m.Verbose {
				log.Printf("rx % x", buf[:n])
			}
			m.rx = append(m.rx, buf[:n]...)
		}
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("read: %w", err)
		}
		if n == 0 {
			time.Sleep(time.Millisecond)
		}
	}
}

// resync drops bytes up to and including the next sync byte.
func (m *MCU) resync() {
	for i, b := range m.rx {
		if b == protocol.FrameSync {
			m.rx = m.rx[i+1:]
			return
		}
	}
	m.rx = m.rx[:0]
}

// RetrieveDictionary fetches and parses the dictionary in identify chunks
func (m *MCU) RetrieveDictionary() error {
	var data []byte
	for {
		chunk, err := m.identify(uint32(len(data)), identifyChunk)
		if err != nil {
			return fmt.Errorf("failed to retrieve dictionary chunk at offset %d: %w", len(data), err)
		}
		if len(chunk) == 0 {
			break
		}
		data = append(data, chunk...)
		if m.Verbose {
			log.Printf("retrieved %d dictionary bytes", len(data))
		}
	}

	text, err := inflate(data)
	if err != nil {
		return fmt.Errorf("failed to inflate dictionary: %w", err)
	}
	dict, err := ParseDictionary(text)
	if err != nil {
		return fmt.Errorf("failed to parse dictionary: %w", err)
	}
	m.dictionaryData = text
	m.dictionary = dict
	return nil
}

func (m *MCU) identify(offset uint32, count uint8) ([]byte, error) {
	out := &byteOutput{}
	protocol.EncodeVLQUint(out, identifyID)
	protocol.EncodeVLQUint(out, offset)
	protocol.EncodeVLQUint(out, uint32(count))
	if err := m.sendPayload(out.buf); err != nil {
		return nil, fmt.Errorf("failed to send identify command: %w", err)
	}

	for {
		payload, err := m.nextPayload(m.Timeout)
		if err != nil {
			return nil, err
		}
		id, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return nil, err
		}
		if id != identifyResponseID {
			continue
		}
		respOffset, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode response offset: %w", err)
		}
		if respOffset != offset {
			return nil, fmt.Errorf("offset mismatch: expected %d, got %d", offset, respOffset)
		}
		data, err := protocol.DecodeVLQBytes(&payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode response data: %w", err)
		}
		return append([]byte{}, data...), nil
	}
}

// Send encodes and sends one command without waiting.
func (m *MCU) Send(name string, args map[string]string) error {
	if m.dictionary == nil {
		return ErrNoDictionary
	}
	msg, ok := m.dictionary.Commands[name]
	if !ok {
		return fmt.Errorf("mcu: unknown command %q", name)
	}
	payload, err := EncodeCommand(msg, args)
	if err != nil {
		return err
	}
	return m.sendPayload(payload)
}

// Receive waits for the next decoded response.
func (m *MCU) Receive(timeout time.Duration) ([]*Response, error) {
	if m.dictionary == nil {
		return nil, ErrNoDictionary
	}
	payload, err := m.nextPayload(timeout)
	if err != nil {
		return nil, err
	}
	return m.dictionary.DecodeResponses(payload)
}

// Call sends a command and collects its responses until want arrives.
// With want empty, responses arriving within settle are returned. An error
// response for the command is returned as *ErrorResponse.
func (m *MCU) Call(name string, args map[string]string, want string, settle time.Duration) ([]*Response, error) {
	if err := m.Send(name, args); err != nil {
		return nil, err
	}

	cmdID := int64(m.dictionary.Commands[name].ID)
	wait := m.Timeout
	if want == "" {
		wait = settle
	}
	var got []*Response
	for {
		resps, err := m.Receive(wait)
		if err == ErrTimeout && want == "" {
			return got, nil
		}
		if err != nil {
			return got, err
		}
		for _, r := range resps {
			if r.Name == "error" {
				if id, _ := r.Int("cmd"); id == cmdID {
					msg, _ := r.Text("msg")
					return got, &ErrorResponse{Command: name, Message: msg}
				}
			}
			got = append(got, r)
			if want != "" && r.Name == want {
				return got, nil
			}
		}
	}
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
