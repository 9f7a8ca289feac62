package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"heatsense/core"
	"heatsense/host/sim"
)

var (
	scenario = flag.String("scenario", "scenario.yaml", "Scenario file (defaults are used if it does not exist)")
	duration = flag.Duration("duration", 0, "Override the scenario duration")
	nvFile   = flag.String("nv", "", "Persist the configuration record in this file")
	save     = flag.String("save", "", "Write the effective scenario to this file and exit")
	debug    = flag.Bool("debug", false, "Print firmware debug messages")
)

func main() {
	flag.Parse()

	sc, err := sim.Load(*scenario)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *duration > 0 {
		sc.Duration = *duration
	}
	if *nvFile != "" {
		sc.NvFile = *nvFile
	}
	if *save != "" {
		if err := sc.Save(*save); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *debug {
		core.SetDebugWriter(func(s string) { fmt.Fprintln(os.Stderr, s) })
		core.SetDebugEnabled(true)
		core.InitAsyncDebug()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Running scenario %q for %s\n", sc.Name, sc.Duration)
	start := time.Now()
	res, err := sim.Run(ctx, sc, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Finished in %s: faults=%b nv_writes=%d defaulted=%t\n",
		time.Since(start).Round(time.Millisecond), res.Final.Faults, res.Writes, res.Defaulted)
	if res.Final.ProbeHit {
		fmt.Printf("Probe triggered at z=%.3f mm\n", res.Final.HitHeight)
	}
}
