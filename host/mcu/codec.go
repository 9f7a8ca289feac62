package mcu

import (
	"fmt"
	"strconv"
	"strings"

	"heatsense/protocol"
)

// byteOutput is a growable protocol.OutputBuffer.
type byteOutput struct {
	buf []byte
}

func (b *byteOutput) Output(data []byte)       { b.buf = append(b.buf, data...) }
func (b *byteOutput) CurPosition() int         { return len(b.buf) }
func (b *byteOutput) Update(pos int, val byte) { b.buf[pos] = val }
func (b *byteOutput) DataSince(pos int) []byte { return b.buf[pos:] }

// EncodeCommand builds the payload for msg from key=value arguments.
// Missing integer arguments default to zero.
func EncodeCommand(msg *Message, args map[string]string) ([]byte, error) {
	for key := range args {
		if !msg.hasParam(key) {
			return nil, fmt.Errorf("%s has no parameter %q", msg.Name, key)
		}
	}

	out := &byteOutput{}
	protocol.EncodeVLQUint(out, uint32(msg.ID))
	for _, p := range msg.Params {
		v := args[p.Name]
		if p.IsBytes() {
			protocol.EncodeVLQBytes(out, []byte(v))
			continue
		}
		if v == "" {
			v = "0"
		}
		n, err := strconv.ParseInt(v, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("%s %s=%q: %w", msg.Name, p.Name, v, err)
		}
		if n < -1<<31 || n > 1<<32-1 {
			return nil, fmt.Errorf("%s %s=%d out of range", msg.Name, p.Name, n)
		}
		protocol.EncodeVLQInt(out, int32(n))
	}
	return out.buf, nil
}

func (m *Message) hasParam(name string) bool {
	for _, p := range m.Params {
		if p.Name == name {
			return true
		}
	}
	return false
}

// Field is one decoded response argument. Bytes is set for string
// parameters, Int otherwise.
type Field struct {
	Name  string
	Int   int64
	Bytes []byte
}

// Response is a decoded device message.
type Response struct {
	Name   string
	Fields []Field
}

// Int returns the named integer field.
func (r *Response) Int(name string) (int64, bool) {
	for _, f := range r.Fields {
		if f.Name == name && f.Bytes == nil {
			return f.Int, true
		}
	}
	return 0, false
}

// Text returns the named string field.
func (r *Response) Text(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name && f.Bytes != nil {
			return string(f.Bytes), true
		}
	}
	return "", false
}

func (r *Response) String() string {
	var sb strings.Builder
	sb.WriteString(r.Name)
	for _, f := range r.Fields {
		sb.WriteString(" " + f.Name + "=")
		if f.Bytes != nil {
			sb.WriteString(strconv.Quote(string(f.Bytes)))
		} else {
			sb.WriteString(strconv.FormatInt(f.Int, 10))
		}
	}
	return sb.String()
}

// DecodeResponses decodes every message in payload.
func (d *Dictionary) DecodeResponses(payload []byte) ([]*Response, error) {
	var out []*Response
	for len(payload) > 0 {
		id, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			return out, err
		}
		msg, ok := d.Responses[int(id)]
		if !ok {
			return out, fmt.Errorf("unknown response id %d", id)
		}
		resp, err := decodeMessage(msg, &payload)
		if err != nil {
			return out, err
		}
		out = append(out, resp)
	}
	return out, nil
}

func decodeMessage(msg *Message, payload *[]byte) (*Response, error) {
	resp := &Response{Name: msg.Name}
	for _, p := range msg.Params {
		f := Field{Name: p.Name}
		if p.IsBytes() {
			b, err := protocol.DecodeVLQBytes(payload)
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", msg.Name, p.Name, err)
			}
			f.Bytes = append([]byte{}, b...)
		} else {
			v, err := protocol.DecodeVLQInt(payload)
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", msg.Name, p.Name, err)
			}
			if p.IsSigned() {
				f.Int = int64(v)
			} else {
				f.Int = int64(uint32(v))
			}
		}
		resp.Fields = append(resp.Fields, f)
	}
	return resp, nil
}
