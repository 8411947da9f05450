// Package encoder flattens a resolved parser.Program into the ProcessorInfo
// image a loader installs into main memory: a constant-pool vector and a
// main_program byte vector, both addressed from zero and concatenated in
// the order the assembler laid the source out.
package encoder

import (
	"fmt"

	"github.com/mic1lab/mic1ijvm/parser"
	"github.com/mic1lab/mic1ijvm/vm"
)

// ProcessorInfo is the assembler's sole output: two vectors of signed
// 32-bit words ready for a loader to place at fixed memory offsets.
type ProcessorInfo struct {
	Constants   []int32
	MainProgram []int32
}

// StopByte is the sentinel opcode value Mic1.RunUntilStop watches for; it
// is not a real IJVM opcode, only a driver convention for ending a run.
const StopByte = 0xFF

// Encoder walks a parsed Program and serializes it into a ProcessorInfo.
type Encoder struct {
	prog *parser.Program
}

// NewEncoder creates an encoder for prog, which must already be fully
// parsed and address-resolved (parser.Parser.Parse does both).
func NewEncoder(prog *parser.Program) *Encoder {
	return &Encoder{prog: prog}
}

// Encode serializes the program. appendStopByte controls whether the
// terminator byte StopByte is appended after the last instruction, for use
// with Mic1.RunUntilStop.
func (e *Encoder) Encode(appendStopByte bool) (*ProcessorInfo, error) {
	info := &ProcessorInfo{}

	for _, c := range e.prog.Constants {
		info.Constants = append(info.Constants, c.Value)
	}
	for _, m := range e.prog.Methods {
		// A method's constant-pool entry holds its byte-code entry address
		// (the start of its 4-byte prologue), not an index of any kind:
		// INVOKEVIRTUAL's operand is the pool index that, once dereferenced,
		// tells the callee where to jump.
		info.Constants = append(info.Constants, int32(m.PrologueAddress))
	}

	if err := e.appendBlock(info, e.prog.Main); err != nil {
		return nil, err
	}
	if len(e.prog.Methods) > 0 {
		// Fill the one-byte slot the parser reserved after .main (see
		// Parser.Parse): the stop byte when requested, a NOP otherwise, so
		// .main never falls through into the first method's prologue.
		if appendStopByte {
			info.MainProgram = append(info.MainProgram, StopByte)
		} else {
			info.MainProgram = append(info.MainProgram, vm.OpNOP)
		}
	}
	for _, m := range e.prog.Methods {
		for _, b := range prologueBytes(m) {
			info.MainProgram = append(info.MainProgram, int32(b))
		}
		if err := e.appendBlock(info, m.Block); err != nil {
			return nil, fmt.Errorf("method %q: %w", m.Name, err)
		}
	}

	if appendStopByte && len(e.prog.Methods) == 0 {
		info.MainProgram = append(info.MainProgram, StopByte)
	}

	return info, nil
}

// prologueBytes is a method's 4-byte entry header: a big-endian 16-bit
// parameter count (including the implicit objref) followed by a big-endian
// 16-bit count of the method's own declared .var locals.
// buildINVOKEVIRTUAL (vm/microcode.go) reads this count to place the
// callee's new SP past its locals, so it must reflect len(m.Block.Vars),
// not a placeholder.
func prologueBytes(m *parser.Method) []byte {
	paramCount := len(m.Params) + 1
	localCount := len(m.Block.Vars)
	return []byte{
		byte(paramCount >> 8), byte(paramCount),
		byte(localCount >> 8), byte(localCount),
	}
}

// appendBlock emits one block's already-resolved instruction bytes in
// order, verifying each survived address assignment.
func (e *Encoder) appendBlock(info *ProcessorInfo, block *parser.Block) error {
	for _, inst := range block.Instructions {
		if inst.ResolvedBytes == nil {
			return WrapEncodingError(inst, fmt.Errorf("instruction %s has no resolved encoding", inst.Mnemonic))
		}
		for _, b := range inst.ResolvedBytes {
			info.MainProgram = append(info.MainProgram, int32(b))
		}
	}
	return nil
}
