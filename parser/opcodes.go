package parser

import "github.com/mic1lab/mic1ijvm/vm"

// operandKind classifies how a mnemonic's source operand(s) are resolved and
// how many bytes they occupy once encoded.
type operandKind int

const (
	operandNone      operandKind = iota
	operandConstByte             // BIPUSH: literal or named .constant, one signed byte
	operandConstPoolIndex16      // LDC_W: named .constant, two-byte pool index
	operandVarOffset             // ILOAD/ISTORE: literal or named variable, offset (width resolved later)
	operandIinc                  // IINC: variable operand + signed byte constant
	operandBranchTarget16        // GOTO/IFEQ/IFLT/IF_ICMPEQ: named label, two-byte (label address - 1)
	operandMethodIndex16         // INVOKEVIRTUAL: named method, two-byte pool index (high byte always 0)
)

type opcodeInfo struct {
	Opcode byte
	Kind   operandKind
}

// mnemonics is the JAS assembler's opcode table. WIDE is deliberately absent
// as a source-level mnemonic: assignBlockAddresses (resolve.go) inserts it
// automatically when an ILOAD/ISTORE/IINC variable offset doesn't fit in a
// signed byte (an IINC constant that doesn't fit is rejected), rather than
// requiring the programmer to spell it out (the WIDE prefix exists
// precisely for that case).
var mnemonics = map[string]opcodeInfo{
	"NOP":           {vm.OpNOP, operandNone},
	"BIPUSH":        {vm.OpBIPUSH, operandConstByte},
	"LDC_W":         {vm.OpLDC_W, operandConstPoolIndex16},
	"ILOAD":         {vm.OpILOAD, operandVarOffset},
	"ISTORE":        {vm.OpISTORE, operandVarOffset},
	"POP":           {vm.OpPOP, operandNone},
	"DUP":           {vm.OpDUP, operandNone},
	"SWAP":          {vm.OpSWAP, operandNone},
	"IADD":          {vm.OpIADD, operandNone},
	"ISUB":          {vm.OpISUB, operandNone},
	"IAND":          {vm.OpIAND, operandNone},
	"IOR":           {vm.OpIOR, operandNone},
	"IINC":          {vm.OpIINC, operandIinc},
	"IFEQ":          {vm.OpIFEQ, operandBranchTarget16},
	"IFLT":          {vm.OpIFLT, operandBranchTarget16},
	"IF_ICMPEQ":     {vm.OpIF_ICMPEQ, operandBranchTarget16},
	"GOTO":          {vm.OpGOTO, operandBranchTarget16},
	"IRETURN":       {vm.OpIRETURN, operandNone},
	"INVOKEVIRTUAL": {vm.OpINVOKEVIRTUAL, operandMethodIndex16},
}

// operandCount returns how many source operand tokens a mnemonic expects.
func operandCount(kind operandKind) int {
	if kind == operandIinc {
		return 2
	}
	if kind == operandNone {
		return 0
	}
	return 1
}
