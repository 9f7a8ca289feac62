package main

import (
	"bufio"
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heatsense/host/mcu"
)

func TestParseLine(t *testing.T) {
	name, args, err := ParseLine(`set_thermistor heater=1 r25=100000 beta="4388"`)
	require.NoError(t, err)
	assert.Equal(t, "set_thermistor", name)
	assert.Equal(t, map[string]string{"heater": "1", "r25": "100000", "beta": "4388"}, args)

	name, args, err = ParseLine("   ")
	require.NoError(t, err)
	assert.Empty(t, name)
	assert.Nil(t, args)

	_, _, err = ParseLine("set_pid heater")
	assert.ErrorContains(t, err, "not key=value")
	_, _, err = ParseLine(`query "unterminated`)
	assert.Error(t, err)
}

type call struct {
	name string
	args map[string]string
	want string
}

type fakeConn struct {
	dict  *mcu.Dictionary
	calls []call
	resps []*mcu.Response
	err   error
}

func (f *fakeConn) Dictionary() *mcu.Dictionary { return f.dict }
func (f *fakeConn) DictionaryRaw() []byte       { return []byte("version 1\n") }

func (f *fakeConn) Call(name string, args map[string]string, want string, settle time.Duration) ([]*mcu.Response, error) {
	f.calls = append(f.calls, call{name, args, want})
	return f.resps, f.err
}

func newFake(t *testing.T) *fakeConn {
	d, err := mcu.ParseDictionary([]byte("version 1\ncmd 1 query_temperature heater=%c\ncmd 2 set_pid heater=%c kp_m=%i\n"))
	require.NoError(t, err)
	return &fakeConn{dict: d}
}

func TestExecRoutesCommands(t *testing.T) {
	conn := newFake(t)
	conn.resps = []*mcu.Response{{Name: "temperature", Fields: []mcu.Field{{Name: "heater", Int: 0}}}}
	var out bytes.Buffer
	r := &REPL{conn: conn, out: &out}

	assert.True(t, r.Exec("query_temperature heater=0"))
	assert.True(t, r.Exec("set_pid heater=1 kp_m=5000"))
	require.Len(t, conn.calls, 2)
	assert.Equal(t, "temperature", conn.calls[0].want)
	assert.Equal(t, "", conn.calls[1].want)
	assert.Contains(t, out.String(), "temperature heater=0")
}

func TestExecPrintsErrors(t *testing.T) {
	conn := newFake(t)
	conn.err = errors.New("boom")
	var out bytes.Buffer
	r := &REPL{conn: conn, out: &out}

	r.Exec("query_temperature heater=9")
	assert.Contains(t, out.String(), "Error: boom")
}

func TestRunHelpAndQuit(t *testing.T) {
	conn := newFake(t)
	var out bytes.Buffer
	r := &REPL{conn: conn, out: &out}

	err := r.Run(bufio.NewScanner(strings.NewReader("help\nraw\nquit\nquery_temperature\n")))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "query_temperature  heater=%c")
	assert.Contains(t, out.String(), "Raw dictionary data (10 bytes)")
	assert.Contains(t, out.String(), "Goodbye!")
	assert.Empty(t, conn.calls, "lines after quit are not run")
}
