package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"heatsense/host/mcu"
	"heatsense/host/serial"
	"heatsense/host/sim"
)

var (
	device   = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud     = flag.Int("baud", serial.DefaultBaud, "Baud rate (ignored for USB CDC)")
	list     = flag.Bool("list", false, "List serial ports and exit")
	simulate = flag.String("sim", "", "Connect to a simulated board running this scenario file (\"default\" for built-in)")
	timeout  = flag.Duration("timeout", time.Second, "Response timeout")
	verbose  = flag.Bool("verbose", false, "Log raw frames")
)

func main() {
	flag.Parse()

	if *list {
		if err := listPorts(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	conn, stop, err := connect()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer stop()
	defer conn.Close()
	conn.Timeout = *timeout
	conn.Verbose = *verbose

	if err := conn.RetrieveDictionary(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to retrieve dictionary: %v\n", err)
		os.Exit(1)
	}
	printDictionary(os.Stdout, conn.Dictionary())

	fmt.Println("Enter commands as 'name key=value ...' ('help' lists them, 'quit' exits):")
	repl := &REPL{conn: conn, out: os.Stdout}
	if err := repl.Run(bufio.NewScanner(os.Stdin)); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

// connect opens the serial device, or starts a simulated board serving in
// real time when -sim is given.
func connect() (*mcu.MCU, func(), error) {
	if *simulate == "" {
		fmt.Printf("Connecting to %s...\n", *device)
		cfg := serial.DefaultConfig(*device)
		cfg.Baud = *baud
		conn, err := mcu.ConnectWithConfig(cfg)
		return conn, func() {}, err
	}

	sc := sim.Default()
	if *simulate != "default" {
		var err error
		if sc, err = sim.Load(*simulate); err != nil {
			return nil, nil, err
		}
	}
	board, err := sim.New(sc)
	if err != nil {
		return nil, nil, err
	}
	if err := board.Init(); err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	go board.Serve(ctx)
	fmt.Printf("Connected to simulated board (%s)\n", sc.Name)
	return mcu.New(board.Open()), cancel, nil
}

func listPorts(w io.Writer) error {
	ports, err := serial.List()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(w, "No serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Fprintln(w, p)
	}
	return nil
}

func printDictionary(w io.Writer, d *mcu.Dictionary) {
	fmt.Fprintf(w, "Firmware %s, %d commands, %d responses\n", d.Version, len(d.Commands), len(d.Responses))
	for name, v := range d.Constants {
		fmt.Fprintf(w, "  %s = %s\n", name, v)
	}
	fmt.Fprintln(w)
}
