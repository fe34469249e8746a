// Command fluxemu loads a TOML machine definition, builds it via
// internal/config and internal/machine, and drives it for a configured
// number of ticks. It is deliberately thin: no machine-specific logic of
// its own, grounded on cmd/emulator/main.go's role in the teacher as the
// one CLI that turns a file on disk into a running emulator.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"fluxemu/internal/config"
	"fluxemu/internal/debug"
	"fluxemu/internal/timeval"
)

func main() {
	machinePath := flag.String("machine", "", "Path to a machine definition (.toml)")
	ticks := flag.Uint64("ticks", 1_000_000, "Number of virtual ticks to run")
	verbose := flag.Bool("verbose", false, "Enable debug-level logging")
	flag.Parse()

	if *machinePath == "" {
		fmt.Println("Usage: fluxemu -machine <path-to-machine.toml>")
		fmt.Println("  -machine <path>   Path to a machine definition (.toml)")
		fmt.Println("  -ticks <n>        Number of virtual ticks to run (default 1000000)")
		fmt.Println("  -verbose          Enable debug-level logging")
		os.Exit(1)
	}

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	logger := debug.New(level)

	f, err := config.Load(*machinePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading machine definition: %v\n", err)
		os.Exit(1)
	}

	m, err := config.Build(f, filepath.Dir(*machinePath), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building machine: %v\n", err)
		os.Exit(1)
	}

	logger.Infof("machine built from %s, running %d ticks", *machinePath, *ticks)

	delta := timeval.FromInt(*ticks)
	m.Run(delta)

	logger.Infof("run complete, now=%d", m.Now().ToInt())
}
