package mcu

import (
	"bufio"
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Param is one argument of a command or response.
type Param struct {
	Name string
	Type string // printf-style conversion, e.g. "%u", "%.*s"
}

// IsBytes reports whether the parameter is a length-prefixed byte string.
func (p Param) IsBytes() bool {
	return strings.HasSuffix(p.Type, "s")
}

// IsSigned reports whether the parameter decodes as a signed integer.
func (p Param) IsSigned() bool {
	return strings.HasSuffix(p.Type, "i")
}

// Message describes a command or response from the firmware dictionary.
type Message struct {
	ID       int
	Name     string
	Params   []Param
	Response bool
}

// Format rebuilds the dictionary format string.
func (m *Message) Format() string {
	parts := make([]string, len(m.Params))
	for i, p := range m.Params {
		parts[i] = p.Name + "=" + p.Type
	}
	return strings.Join(parts, " ")
}

// Dictionary is the parsed identify data.
type Dictionary struct {
	Version   string
	Constants map[string]string
	Commands  map[string]*Message
	Responses map[int]*Message
}

// ParseDictionary parses the text served by the identify command.
func ParseDictionary(data []byte) (*Dictionary, error) {
	d := &Dictionary{
		Constants: make(map[string]string),
		Commands:  make(map[string]*Message),
		Responses: make(map[int]*Message),
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "version":
			if len(fields) != 2 {
				return nil, fmt.Errorf("line %d: malformed version", lineNo)
			}
			d.Version = fields[1]
		case "const":
			if len(fields) != 3 {
				return nil, fmt.Errorf("line %d: malformed constant", lineNo)
			}
			d.Constants[fields[1]] = fields[2]
		case "cmd", "resp":
			msg, err := parseMessage(fields)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if msg.Response {
				d.Responses[msg.ID] = msg
			} else {
				d.Commands[msg.Name] = msg
			}
		default:
			return nil, fmt.Errorf("line %d: unknown entry %q", lineNo, fields[0])
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if d.Version == "" {
		return nil, fmt.Errorf("dictionary has no version")
	}
	return d, nil
}

func parseMessage(fields []string) (*Message, error) {
	if len(fields) < 3 {
		return nil, fmt.Errorf("malformed %s entry", fields[0])
	}
	id, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, fmt.Errorf("bad id %q: %w", fields[1], err)
	}
	msg := &Message{ID: id, Name: fields[2], Response: fields[0] == "resp"}
	for _, f := range fields[3:] {
		name, typ, ok := strings.Cut(f, "=")
		if !ok || !strings.HasPrefix(typ, "%") {
			return nil, fmt.Errorf("bad parameter %q in %s", f, msg.Name)
		}
		msg.Params = append(msg.Params, Param{Name: name, Type: typ})
	}
	return msg, nil
}

// CommandNames returns the command names in alphabetical order.
func (d *Dictionary) CommandNames() []string {
	names := make([]string, 0, len(d.Commands))
	for name := range d.Commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Constant returns a dictionary constant as an integer.
func (d *Dictionary) Constant(name string) (int64, bool) {
	v, ok := d.Constants[name]
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
