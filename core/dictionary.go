package core

import (
	"sync"

	"heatsense/tinycompress"
)

// Constant represents a firmware constant exposed to the host
type Constant struct {
	Name  string
	Value string
}

// Dictionary is the text description of the command set served to the host
// through identify. One entry per line:
//
//	version <version>
//	const <NAME> <value>
//	cmd <id> <name> [format]
//	resp <id> <name> [format]
//
// identify serves the text zlib-wrapped.
type Dictionary struct {
	mu         sync.Mutex
	commandReg *CommandRegistry
	version    string
	constants  []Constant
	cached     []byte
	compressed []byte
}

// NewDictionary creates a new dictionary
func NewDictionary(cmdReg *CommandRegistry, version string) *Dictionary {
	return &Dictionary{commandReg: cmdReg, version: version}
}

// AddConstant adds or replaces a constant.
func (d *Dictionary) AddConstant(name string, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := valueToString(value)
	for i := range d.constants {
		if d.constants[i].Name == name {
			d.constants[i].Value = s
			d.cached = nil
			d.compressed = nil
			return
		}
	}
	d.constants = append(d.constants, Constant{Name: name, Value: s})
	d.cached = nil
	d.compressed = nil
}

// Generate returns the dictionary text, building it on first use.
func (d *Dictionary) Generate() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.generate()
}

func (d *Dictionary) generate() []byte {
	if d.cached != nil {
		return d.cached
	}

	buf := make([]byte, 0, 1024)
	buf = append(buf, "version "+d.version+"\n"...)
	for _, c := range d.constants {
		buf = append(buf, "const "+c.Name+" "+c.Value+"\n"...)
	}
	for _, cmd := range d.commandReg.Ordered() {
		kind := "cmd "
		if cmd.IsResponse() {
			kind = "resp "
		}
		line := kind + itoa(int(cmd.ID)) + " " + cmd.Name
		if cmd.Format != "" {
			line += " " + cmd.Format
		}
		buf = append(buf, line+"\n"...)
	}
	d.cached = buf
	return buf
}

// Compressed returns the zlib stream of the dictionary text.
func (d *Dictionary) Compressed() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.compressed == nil {
		text := d.generate()
		d.compressed = tinycompress.AppendZlib(make([]byte, 0, tinycompress.Size(len(text))), text)
	}
	return d.compressed
}

// GetChunk returns up to count bytes of the compressed dictionary starting
// at offset.
func (d *Dictionary) GetChunk(offset uint32, count uint8) []byte {
	data := d.Compressed()
	if offset >= uint32(len(data)) {
		return nil
	}
	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}
	chunk := make([]byte, end-offset)
	copy(chunk, data[offset:end])
	return chunk
}

func valueToString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case int:
		return itoa(val)
	case int32:
		return itoa(int(val))
	case uint8:
		return utoa(uint32(val))
	case uint16:
		return utoa(uint32(val))
	case uint32:
		return utoa(val)
	case float32:
		return ftoa(val, 6)
	}
	return ""
}
