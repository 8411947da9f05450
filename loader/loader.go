// Package loader installs an assembled ProcessorInfo image into main memory
// and builds the Mic1Config a fresh machine needs to start executing it.
package loader

import (
	"fmt"

	"github.com/mic1lab/mic1ijvm/config"
	"github.com/mic1lab/mic1ijvm/encoder"
	"github.com/mic1lab/mic1ijvm/vm"
)

// Options controls where the three image regions land in main memory.
// Constants always start at 0; StackStart and ProgramStart are caller
// choices that must agree with whatever ProgramStart the assembler was
// given (label addresses are baked in absolute).
type Options struct {
	StackStart   uint32
	ProgramStart uint32
	InitialStack []vm.Word
}

// OptionsFromConfig sources the layout offsets from a loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		StackStart:   cfg.Execution.StackStart,
		ProgramStart: cfg.Execution.ProgramStart,
	}
}

// DefaultOptions returns the conventional layout (initial stack at 10,
// program at 100), the same values config.DefaultConfig carries.
func DefaultOptions() Options {
	return OptionsFromConfig(config.DefaultConfig())
}

// Load installs info's constant pool and program bytes into mem, installs
// any initial stack contents above the constant pool, and returns the
// Mic1Config a fresh Mic1 should be built with.
func Load(mem *vm.MainMemory, info *encoder.ProcessorInfo, opts Options) (vm.Mic1Config, error) {
	for i, c := range info.Constants {
		if err := mem.LoadWord(uint32(i), vm.Word(c)); err != nil {
			return vm.Mic1Config{}, fmt.Errorf("loading constant pool entry %d: %w", i, err)
		}
	}

	if opts.StackStart < uint32(len(info.Constants)) {
		return vm.Mic1Config{}, fmt.Errorf("stack start %d overlaps constant pool of %d entries", opts.StackStart, len(info.Constants))
	}
	for i, w := range opts.InitialStack {
		addr := opts.StackStart + uint32(i)
		if err := mem.LoadWord(addr, w); err != nil {
			return vm.Mic1Config{}, fmt.Errorf("loading initial stack entry %d: %w", i, err)
		}
	}

	if opts.ProgramStart < opts.StackStart+uint32(len(opts.InitialStack)) {
		return vm.Mic1Config{}, fmt.Errorf("program start %d overlaps initial stack", opts.ProgramStart)
	}
	for i, w := range info.MainProgram {
		addr := opts.ProgramStart + uint32(i)
		if err := mem.LoadWord(addr, vm.Word(w)); err != nil {
			return vm.Mic1Config{}, fmt.Errorf("loading program byte %d: %w", i, err)
		}
	}

	return vm.Mic1Config{
		ProgramStart: opts.ProgramStart,
		StackStart:   opts.StackStart,
		CPP:          0,
		InitialStack: opts.InitialStack,
	}, nil
}

// NewMachine is the common case: a fresh MainMemory and ControlStore, an
// image loaded at opts, and the resulting Mic1 ready to step.
func NewMachine(info *encoder.ProcessorInfo, opts Options) (*vm.Mic1, *vm.MainMemory, error) {
	mem := vm.NewMainMemory()
	cfg, err := Load(mem, info, opts)
	if err != nil {
		return nil, nil, err
	}
	cs := vm.NewControlStore()
	return vm.NewMic1(mem, cs, cfg), mem, nil
}
