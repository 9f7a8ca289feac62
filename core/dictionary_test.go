package core

import (
	"bytes"
	"compress/zlib"
	"io"
	"testing"
)

func TestDictionaryGenerate(t *testing.T) {
	r := NewCommandRegistry()
	r.RegisterResponse("temperature", "heater=%c temp_mc=%i")
	r.Register("query_probe", "", func(*[]byte) error { return nil })

	d := NewDictionary(r, "test-1")
	d.AddConstant("ADC_MAX", 4095)
	d.AddConstant("NAME", "bench")
	d.AddConstant("RATIO", float32(0.5))

	want := "version test-1\n" +
		"const ADC_MAX 4095\n" +
		"const NAME bench\n" +
		"const RATIO 0.500000\n" +
		"resp 0 temperature heater=%c temp_mc=%i\n" +
		"cmd 1 query_probe\n"
	if got := string(d.Generate()); got != want {
		t.Errorf("dictionary:\n%s\nwant:\n%s", got, want)
	}
}

func TestDictionaryConstantReplaced(t *testing.T) {
	d := NewDictionary(NewCommandRegistry(), "v")
	d.AddConstant("HEATERS", 2)
	first := string(d.Generate())
	d.AddConstant("HEATERS", uint32(3))
	if got := string(d.Generate()); got == first || got != "version v\nconst HEATERS 3\n" {
		t.Errorf("after replace: %q", got)
	}
}

func TestDictionaryGetChunk(t *testing.T) {
	d := NewDictionary(NewCommandRegistry(), "abc")
	full := d.Compressed() // stored block around "version abc\n"

	tests := []struct {
		offset uint32
		count  uint8
		want   string
	}{
		{0, 2, "\x78\x01"},
		{7, 7, "version"},
		{15, 4, "abc\n"},
		{uint32(len(full)), 10, ""},
		{100, 10, ""},
	}
	for _, tt := range tests {
		if got := string(d.GetChunk(tt.offset, tt.count)); got != tt.want {
			t.Errorf("GetChunk(%d, %d) = %q, want %q", tt.offset, tt.count, got, tt.want)
		}
	}
}

func TestDictionaryCompressedInflates(t *testing.T) {
	d := NewDictionary(NewCommandRegistry(), "abc")
	d.AddConstant("HEATERS", 2)
	before := d.Compressed()
	d.AddConstant("HEATERS", 3)

	zr, err := zlib.NewReader(bytes.NewReader(d.Compressed()))
	if err != nil {
		t.Fatal(err)
	}
	text, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	if string(text) != string(d.Generate()) {
		t.Errorf("inflated %q, want %q", text, d.Generate())
	}
	if bytes.Equal(before, d.Compressed()) {
		t.Errorf("compressed dictionary not rebuilt after constant change")
	}
}
