package vm

import "io"

// Mic1 is the complete microarchitected machine: the ten 32-bit
// registers, the 9-bit micro-program counter, the 36-bit micro-instruction
// register, the fixed control store, and main memory.
type Mic1 struct {
	MAR, MDR, PC, MBR, SP, LV, CPP, TOS, OPC, H Register32
	MPC                                         Register9
	MIR                                         Register36

	Control *ControlStore
	Memory  *MainMemory

	Cycles uint64
	Halted bool

	// Trace, when non-nil, receives one line per executed cycle.
	Trace io.Writer
}

// Mic1Config carries the handful of initial register values the loader
// computes from an assembled image.
type Mic1Config struct {
	ProgramStart uint32
	StackStart   uint32
	CPP          uint32
	InitialStack []Word
}

// NewMic1 builds a machine wired to the given memory and control store,
// with registers set to their boot values: PC sits
// one byte before the first opcode (every fetch issuing row advances PC
// before using it), SP/TOS mirror whatever initial stack the loader
// installed, and LV starts at the stack's base.
func NewMic1(mem *MainMemory, cs *ControlStore, cfg Mic1Config) *Mic1 {
	m := &Mic1{
		Control: cs,
		Memory:  mem,
	}
	m.PC.Set(Word(cfg.ProgramStart - 1))
	m.LV.Set(Word(cfg.StackStart))
	m.CPP.Set(Word(cfg.CPP))
	m.MPC.Write(mainEntry)

	sp := cfg.StackStart
	var tos Word
	if n := len(cfg.InitialStack); n > 0 {
		sp = cfg.StackStart + uint32(n) - 1
		tos = cfg.InitialStack[n-1]
	} else {
		sp--
	}
	m.SP.Set(Word(sp))
	m.TOS.Set(tos)

	return m
}

// Reset returns every register, memory cell, and pending read to its
// zero value and reinstalls cfg's lifecycle values.
func (m *Mic1) Reset(cfg Mic1Config) {
	m.Memory.Reset()
	*m = *NewMic1(m.Memory, m.Control, cfg)
}
