// Package config loads a fluxemu machine definition from a TOML file and
// turns it into calls against machine.Builder. It generalizes the
// teacher's per-console "factory" wiring (a fixed Go function constructing
// one hard-coded component graph) into data: any machine describable in
// this file's vocabulary is buildable without writing Go.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"fluxemu/internal/audiotimer"
	"fluxemu/internal/component"
	"fluxemu/internal/cpu6502"
	"fluxemu/internal/debug"
	"fluxemu/internal/irq"
	"fluxemu/internal/machine"
	"fluxemu/internal/memmap"
	"fluxemu/internal/timeval"
)

// File is the root of a machine-definition TOML document.
//
//	[[space]]
//	id = "main"
//	width_bits = 16
//
//	[[space.buffer]]
//	name = "ram"
//	size = 0x0800
//	writable = true
//
//	[[space.mirror]]
//	buffer = "ram"
//	low = 0x0000
//	high = 0x07FF
//
//	[[space.buffer]]
//	name = "prg"
//	size = 0x8000
//
//	[[space.rom]]
//	buffer = "prg"
//	file = "game.bin"
//	low = 0x8000
//	high = 0xFFFF
//
//	[[cpu]]
//	name = "cpu0"
//	space = "main"
//	kind = "mos6502"
//	frequency_hz = 1789773
//
//	[[audiotimer]]
//	name = "timer0"
type File struct {
	Space      []Space      `toml:"space"`
	CPU        []CPU        `toml:"cpu"`
	AudioTimer []AudioTimer `toml:"audiotimer"`
}

// Space describes one address space and the storage mapped into it.
type Space struct {
	ID        string   `toml:"id"`
	WidthBits uint     `toml:"width_bits"`
	Buffer    []Buffer `toml:"buffer"`
	Mirror    []Region `toml:"mirror"`
	ROM       []ROM    `toml:"rom"`
}

// Buffer declares a named backing store, later referenced by a Region or
// ROM mapping by name.
type Buffer struct {
	Name     string `toml:"name"`
	Size     int    `toml:"size"`
	Writable bool   `toml:"writable"`
}

// Region maps an already-declared buffer into an address range for
// read/write access.
type Region struct {
	Buffer string `toml:"buffer"`
	Low    uint32 `toml:"low"`
	High   uint32 `toml:"high"`
}

// ROM maps a buffer as read-only storage, optionally loading its initial
// contents from file (relative to the machine file's own directory).
type ROM struct {
	Buffer string `toml:"buffer"`
	File   string `toml:"file"`
	Low    uint32 `toml:"low"`
	High   uint32 `toml:"high"`
}

// CPU declares one 6502-family processor component.
type CPU struct {
	Name        string  `toml:"name"`
	Space       string  `toml:"space"`
	Kind        string  `toml:"kind"`
	FrequencyHz float32 `toml:"frequency_hz"`
	BrokenRor   bool    `toml:"broken_ror"`
}

// AudioTimer declares one CHIP-8-style audio timer component.
type AudioTimer struct {
	Name string `toml:"name"`
}

// kindByName maps a TOML kind string onto cpu6502.Kind, case-sensitively,
// in the vocabulary the spec names.
var kindByName = map[string]cpu6502.Kind{
	"mos6507":   cpu6502.Mos6507,
	"ricoh2a0x": cpu6502.Ricoh2A0x,
	"mos6502":   cpu6502.Mos6502,
	"wdc65c02":  cpu6502.Wdc65C02,
}

// Load reads and parses a machine definition from path.
func Load(path string) (*File, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return &f, nil
}

// Build turns a parsed File into a runnable machine.Machine, loading any
// ROM file contents relative to baseDir.
func Build(f *File, baseDir string, logger *debug.Logger) (*machine.Machine, error) {
	b := machine.NewBuilder(logger)

	spaceIndex := make(map[string]int, len(f.Space))
	bufferPath := make(map[string]memmap.BufferPath)

	for _, sp := range f.Space {
		idx := b.InsertAddressSpace(sp.WidthBits)
		spaceIndex[sp.ID] = idx

		for _, buf := range sp.Buffer {
			bufferPath[sp.ID+"/"+buf.Name] = b.MemoryRegisterBuffer(idx, buf.Name, buf.Size, buf.Writable)
		}
		for _, mirror := range sp.Mirror {
			path, ok := bufferPath[sp.ID+"/"+mirror.Buffer]
			if !ok {
				return nil, fmt.Errorf("config: space %q: mirror references unknown buffer %q", sp.ID, mirror.Buffer)
			}
			b.MemoryMapBufferWrite(idx, memmap.Range{Low: mirror.Low, High: mirror.High}, path)
		}
		for _, rom := range sp.ROM {
			path, ok := bufferPath[sp.ID+"/"+rom.Buffer]
			if !ok {
				return nil, fmt.Errorf("config: space %q: rom references unknown buffer %q", sp.ID, rom.Buffer)
			}
			if rom.File != "" {
				full := rom.File
				if baseDir != "" && !filepath.IsAbs(full) {
					full = filepath.Join(baseDir, full)
				}
				data, err := os.ReadFile(full)
				if err != nil {
					return nil, fmt.Errorf("config: reading rom file %s: %w", full, err)
				}
				if err := b.SeedBuffer(path, data); err != nil {
					return nil, fmt.Errorf("config: space %q: %w", sp.ID, err)
				}
			}
			b.MemoryMapBufferRead(idx, memmap.Range{Low: rom.Low, High: rom.High}, path)
		}
	}

	for _, cpuDef := range f.CPU {
		spaceIdx, ok := spaceIndex[cpuDef.Space]
		if !ok {
			return nil, fmt.Errorf("config: cpu %q references unknown space %q", cpuDef.Name, cpuDef.Space)
		}
		kind, ok := kindByName[cpuDef.Kind]
		if !ok {
			return nil, fmt.Errorf("config: cpu %q has unknown kind %q", cpuDef.Name, cpuDef.Kind)
		}
		as, err := b.AddressSpace(spaceIdx)
		if err != nil {
			return nil, fmt.Errorf("config: cpu %q: %w", cpuDef.Name, err)
		}
		cfg := cpu6502.Config{
			Kind:      kind,
			Frequency: cpuDef.FrequencyHz,
			Rdy:       irq.NewRdyFlag(),
			Irq:       irq.NewIrqFlag(),
			Nmi:       irq.NewNmiFlag(),
			BrokenRor: cpuDef.BrokenRor,
		}
		core := cpu6502.New(cfg, as)
		if logger != nil {
			core.SetLogf(logger.For(cpuDef.Name).Debugf)
		}
		b.InsertComponent(cpuDef.Name, component.SchedulerDriven, core)
	}

	for _, timerDef := range f.AudioTimer {
		b.InsertComponent(timerDef.Name, component.OnDemand, audiotimer.New())
	}

	return b.Build(timeval.Zero)
}
