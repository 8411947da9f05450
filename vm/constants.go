package vm

// IJVM opcode bytes. Untyped so each doubles as the byte emitted into the
// program stream and as the control-store micro-address of the opcode's
// first micro-step.
const (
	OpNOP           = 0x00
	OpBIPUSH        = 0x10
	OpLDC_W         = 0x13
	OpILOAD         = 0x15
	OpISTORE        = 0x36
	OpPOP           = 0x57
	OpDUP           = 0x59
	OpSWAP          = 0x5F
	OpIADD          = 0x60
	OpISUB          = 0x64
	OpIAND          = 0x7E
	OpIOR           = 0x80
	OpIINC          = 0x84
	OpIFEQ          = 0x99
	OpIFLT          = 0x9B
	OpIF_ICMPEQ     = 0x9F
	OpGOTO          = 0xA7
	OpIRETURN       = 0xAC
	OpINVOKEVIRTUAL = 0xB6
	OpWIDE          = 0xC4
)

// mainEntry is the fixed micro-address of Main1, the fetch/dispatch loop.
const mainEntry uint16 = 1

// MainEntry exports mainEntry for callers outside this package (the
// debugger) that need to recognize a Main1 dispatch boundary.
const MainEntry = mainEntry

// wideOffset is added to an opcode's entry slot to reach its WIDE-prefixed
// continuation.
const wideOffset uint16 = 0x100

// Fixed low-half landing pads for the three conditional branches. Each pad
// address p must sit below 0x100 and be paired with p+wideOffset: JAMZ/JAMN
// can only OR a 1 into bit 8 of NEXT_ADDR, so the not-taken continuation
// (bit 8 clear) and the taken continuation (bit 8 set) must be exactly
// 0x100 apart. None of these three bytes collide with any opcode value.
const (
	padIFEQ     uint16 = 0x02
	padIFLT     uint16 = 0x03
	padIFICMPEQ uint16 = 0x04
)
