package parser

import (
	"fmt"

	"github.com/mic1lab/mic1ijvm/vm"
)

// assignBlockAddresses lays out a block's instructions starting at
// baseAddress. Every operand except a branch target is resolvable
// immediately (constants, methods, parameters and locals are all known
// before any block is laid out); branch targets may name a label defined
// later in the same block, so they are patched in a second pass once the
// whole block's labels have addresses.
func assignBlockAddresses(block *Block, globals *SymbolTable, baseAddress uint32) error {
	block.BaseAddress = baseAddress
	cursor := baseAddress

	type pendingBranch struct {
		inst  *Instruction
		label string
	}
	var pending []pendingBranch

	for _, inst := range block.Instructions {
		inst.Address = cursor

		info, ok := mnemonics[inst.Mnemonic]
		if !ok {
			return fmt.Errorf("%s: unknown mnemonic %q", inst.Pos, inst.Mnemonic)
		}

		var body []byte
		switch info.Kind {
		case operandNone:
			body = []byte{info.Opcode}

		case operandConstByte:
			v, err := resolveByteOperand(inst.Operands[0], globals, inst.Pos)
			if err != nil {
				return err
			}
			body = []byte{info.Opcode, byte(v)}

		case operandConstPoolIndex16:
			idx, err := resolveConstantIndex(inst.Operands[0], globals, inst.Pos)
			if err != nil {
				return err
			}
			body = append([]byte{info.Opcode}, be16(idx)...)

		case operandMethodIndex16:
			idx, err := resolveMethodIndex(inst.Operands[0], globals, inst.Pos)
			if err != nil {
				return err
			}
			// High byte of a pool index is always zero.
			body = []byte{info.Opcode, 0x00, byte(idx)}

		case operandVarOffset:
			offset, err := resolveVarOffset(inst.Operands[0], block.Locals, inst.Pos)
			if err != nil {
				return err
			}
			if fitsSignedByte(offset) {
				body = []byte{info.Opcode, byte(int8(offset))}
			} else {
				body = append([]byte{vm.OpWIDE, info.Opcode}, be16(offset)...)
			}

		case operandIinc:
			offset, err := resolveVarOffset(inst.Operands[0], block.Locals, inst.Pos)
			if err != nil {
				return err
			}
			delta, err := resolveByteOperand(inst.Operands[1], globals, inst.Pos)
			if err != nil {
				return err
			}
			if fitsSignedByte(offset) && fitsSignedByte(delta) {
				body = []byte{info.Opcode, byte(int8(offset)), byte(int8(delta))}
			} else {
				body = append([]byte{vm.OpWIDE, info.Opcode}, be16(offset)...)
				body = append(body, be16(delta)...)
			}

		case operandBranchTarget16:
			// Reserve the bytes now; patched below once labels resolve.
			body = []byte{info.Opcode, 0x00, 0x00}
			pending = append(pending, pendingBranch{inst: inst, label: inst.Operands[0]})

		default:
			return fmt.Errorf("%s: %s has no operand-encoding rule", inst.Pos, inst.Mnemonic)
		}

		inst.ResolvedBytes = body
		inst.Length = uint32(len(body))

		if inst.Label != "" {
			if err := block.Locals.Define(inst.Label, SymbolLabel, int32(cursor), inst.Pos); err != nil {
				return err
			}
		}

		cursor += inst.Length
	}

	for _, pb := range pending {
		target, err := resolveBranchTarget(pb.label, block.Locals, pb.inst.Pos)
		if err != nil {
			return err
		}
		b := be16(target)
		pb.inst.ResolvedBytes[1] = b[0]
		pb.inst.ResolvedBytes[2] = b[1]
	}

	return nil
}

// blockByteLength is the total encoded length of every instruction in the
// block, valid only after assignBlockAddresses has run.
func blockByteLength(block *Block) uint32 {
	var total uint32
	for _, inst := range block.Instructions {
		total += inst.Length
	}
	return total
}

// isNumericLiteral reports whether a raw operand token is a numeric literal
// rather than an identifier; the lexer guarantees identifiers never start
// with a digit or '-', so this is unambiguous.
func isNumericLiteral(tok string) bool {
	if tok == "" {
		return false
	}
	c := tok[0]
	return (c >= '0' && c <= '9') || c == '-'
}

func fitsSignedByte(v int32) bool {
	return v >= -128 && v <= 127
}

func be16(v int32) []byte {
	return []byte{byte(v >> 8), byte(v)}
}

// resolveByteOperand resolves a BIPUSH value or an IINC constant: either a
// literal, or a named .constant whose value must fit in a signed byte.
func resolveByteOperand(tok string, globals *SymbolTable, pos Position) (int32, error) {
	if isNumericLiteral(tok) {
		v, err := parseNumber(tok)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", pos, err)
		}
		if !fitsSignedByte(v) {
			return 0, fmt.Errorf("%s: literal %d does not fit in a signed byte", pos, v)
		}
		return v, nil
	}
	sym, ok := globals.Lookup(tok)
	if !ok || sym.Type != SymbolConstant {
		return 0, fmt.Errorf("%s: %q is not a declared constant", pos, tok)
	}
	if !fitsSignedByte(sym.Value) {
		return 0, fmt.Errorf("%s: constant %q (%d) does not fit in a signed byte", pos, tok, sym.Value)
	}
	return sym.Value, nil
}

// resolveConstantIndex resolves an LDC_W operand to its constant-pool index.
func resolveConstantIndex(tok string, globals *SymbolTable, pos Position) (int32, error) {
	if isNumericLiteral(tok) {
		return parseNumber(tok)
	}
	sym, ok := globals.Lookup(tok)
	if !ok || sym.Type != SymbolConstant {
		return 0, fmt.Errorf("%s: %q is not a declared constant", pos, tok)
	}
	return findConstantIndex(globals, tok), nil
}

// findConstantIndex returns a constant's position among the SymbolConstant
// entries in declaration order, set on Symbol.PoolIndex by Parse when the
// constant pool is assigned.
func findConstantIndex(globals *SymbolTable, name string) int32 {
	sym, _ := globals.Lookup(name)
	return sym.PoolIndex
}

// resolveMethodIndex resolves an INVOKEVIRTUAL operand to its constant-pool
// index.
func resolveMethodIndex(tok string, globals *SymbolTable, pos Position) (int32, error) {
	if isNumericLiteral(tok) {
		return parseNumber(tok)
	}
	sym, ok := globals.Lookup(tok)
	if !ok || sym.Type != SymbolMethod {
		return 0, fmt.Errorf("%s: %q is not a declared method", pos, tok)
	}
	return sym.Value, nil
}

// resolveVarOffset resolves an ILOAD/ISTORE/IINC variable operand to an
// LV-relative offset: either a raw literal offset (ISTORE 0x01) or a
// declared parameter/local name.
func resolveVarOffset(tok string, locals *SymbolTable, pos Position) (int32, error) {
	if isNumericLiteral(tok) {
		return parseNumber(tok)
	}
	sym, ok := locals.Lookup(tok)
	if !ok || (sym.Type != SymbolParam && sym.Type != SymbolVar) {
		return 0, fmt.Errorf("%s: %q is not a declared parameter or local", pos, tok)
	}
	return sym.Value, nil
}

// resolveBranchTarget resolves a GOTO/IFEQ/IFLT/IF_ICMPEQ operand to the
// value the branch bytes carry: the labelled instruction's absolute byte
// address minus one, i.e. the PC value from which the dispatch loop's
// pre-increment fetch lands on the label. A numeric literal passes through
// verbatim (the programmer is writing a raw PC value).
func resolveBranchTarget(tok string, locals *SymbolTable, pos Position) (int32, error) {
	if isNumericLiteral(tok) {
		return parseNumber(tok)
	}
	sym, ok := locals.Lookup(tok)
	if !ok || sym.Type != SymbolLabel {
		return 0, fmt.Errorf("%s: undefined label %q", pos, tok)
	}
	return sym.Value - 1, nil
}
