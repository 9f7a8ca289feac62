package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/shlex"

	"heatsense/host/mcu"
)

// expected maps commands to the response that completes them. Commands not
// listed are answered only on error.
var expected = map[string]string{
	"query_temperature": "temperature",
	"clear_fault":       "temperature",
	"set_thermistor":    "temperature",
	"set_probe_type":    "probe_state",
	"query_probe":       "probe_state",
}

// settle is how long to wait for responses to commands without one.
const settle = 100 * time.Millisecond

// caller is the part of *mcu.MCU the REPL needs.
type caller interface {
	Dictionary() *mcu.Dictionary
	DictionaryRaw() []byte
	Call(name string, args map[string]string, want string, settle time.Duration) ([]*mcu.Response, error)
}

// REPL reads command lines and prints decoded responses.
type REPL struct {
	conn caller
	out  io.Writer
}

// ParseLine splits a command line into a command name and key=value
// arguments. Values may be quoted.
func ParseLine(line string) (string, map[string]string, error) {
	words, err := shlex.Split(line)
	if err != nil {
		return "", nil, err
	}
	if len(words) == 0 {
		return "", nil, nil
	}
	args := make(map[string]string, len(words)-1)
	for _, w := range words[1:] {
		key, value, ok := strings.Cut(w, "=")
		if !ok || key == "" {
			return "", nil, fmt.Errorf("argument %q is not key=value", w)
		}
		args[key] = value
	}
	return words[0], args, nil
}

// Run processes lines until quit or end of input.
func (r *REPL) Run(scanner *bufio.Scanner) error {
	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			break
		}
		if !r.Exec(scanner.Text()) {
			return nil
		}
	}
	return scanner.Err()
}

// Exec runs one line and reports whether to keep going.
func (r *REPL) Exec(line string) bool {
	name, args, err := ParseLine(line)
	if err != nil {
		fmt.Fprintf(r.out, "Error: %v\n", err)
		return true
	}

	switch name {
	case "":
	case "quit", "exit", "q":
		fmt.Fprintln(r.out, "Goodbye!")
		return false
	case "help", "?":
		r.printHelp()
	case "raw":
		raw := r.conn.DictionaryRaw()
		fmt.Fprintf(r.out, "Raw dictionary data (%d bytes):\n%s\n", len(raw), raw)
	default:
		resps, err := r.conn.Call(name, args, expected[name], settle)
		for _, resp := range resps {
			fmt.Fprintln(r.out, resp)
		}
		if err != nil {
			fmt.Fprintf(r.out, "Error: %v\n", err)
		}
	}
	return true
}

func (r *REPL) printHelp() {
	d := r.conn.Dictionary()
	fmt.Fprintln(r.out, "\nAvailable commands:")
	for _, name := range d.CommandNames() {
		fmt.Fprintf(r.out, "  %-18s %s\n", name, d.Commands[name].Format())
	}
	fmt.Fprintln(r.out, "  raw                print the raw dictionary")
	fmt.Fprintln(r.out, "  quit/exit/q        exit the program")
	fmt.Fprintln(r.out)
}
