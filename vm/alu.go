package vm

// ALUControl bundles the six control lines that select the ALU's function
// and gate its two operand paths, per the bit layout of the ALU field in a
// micro-instruction (see microinstr.go).
type ALUControl struct {
	F0, F1     bool // function select
	ENA, ENB   bool // operand-path enables
	INVA       bool // invert the A path after gating
	INC        bool // force carry-in on the adder path
}

// Flags carries the two status bits the ALU produces alongside its result.
// Mic-1 has no carry or overflow flags; only N (negative) and Z (zero) feed
// the next-address generator's JAMN/JAMZ overrides.
type Flags struct {
	N bool
	Z bool
}

// Named ALU modes used by the microcode table. Each is a fixed setting of
// the six control lines; ALUExec(mode, a, b) is the convenience wrapper
// microcode construction reaches for instead of spelling out six bools.
//
// F0/F1 select the function class (AND, OR, NOT-B, SUM); every arithmetic
// mode lives in the SUM class and is distinguished only by which operand
// path is gated in and whether it is inverted or incremented, the same
// convention the Mic-1 ALU itself uses.
var (
	aluModeA    = ALUControl{F0: true, F1: true, ENA: true, ENB: false, INVA: false, INC: false} // A
	aluModeB    = ALUControl{F0: true, F1: true, ENA: false, ENB: true, INVA: false, INC: false}  // B
	aluModeBp1  = ALUControl{F0: true, F1: true, ENA: false, ENB: true, INVA: false, INC: true}   // B+1
	aluModeBm1  = ALUControl{F0: true, F1: true, ENA: false, ENB: true, INVA: true, INC: false}   // B-1
	aluModeApB  = ALUControl{F0: true, F1: true, ENA: true, ENB: true, INVA: false, INC: false}   // A+B
	aluModeApB1 = ALUControl{F0: true, F1: true, ENA: true, ENB: true, INVA: false, INC: true}     // A+B+1
	aluModeBmA  = ALUControl{F0: true, F1: true, ENA: true, ENB: true, INVA: true, INC: true}      // B-A = ~A+B+1
	aluModeAndB = ALUControl{F0: false, F1: false, ENA: true, ENB: true, INVA: false, INC: false}  // A AND B
	aluModeOrB  = ALUControl{F0: false, F1: true, ENA: true, ENB: true, INVA: false, INC: false}   // A OR B
)

// ALUNamedMode identifies one of the named modes microcode rows are built
// from; it is the symbolic form the micro-instruction builder accepts.
type ALUNamedMode int

const (
	ModeA ALUNamedMode = iota
	ModeB
	ModeBPlus1
	ModeBMinus1
	ModeAPlusB
	ModeAPlusBPlus1
	ModeBMinusA
	ModeAAndB
	ModeAOrB
)

func aluControlFor(mode ALUNamedMode) ALUControl {
	switch mode {
	case ModeA:
		return aluModeA
	case ModeB:
		return aluModeB
	case ModeBPlus1:
		return aluModeBp1
	case ModeBMinus1:
		return aluModeBm1
	case ModeAPlusB:
		return aluModeApB
	case ModeAPlusBPlus1:
		return aluModeApB1
	case ModeBMinusA:
		return aluModeBmA
	case ModeAAndB:
		return aluModeAndB
	case ModeAOrB:
		return aluModeOrB
	default:
		return aluModeA
	}
}

// aluCompute is the bit-sliced evaluation: each
// bit computes a' = (A[i] & ENA) XOR INVA, b' = B[i] & ENB, then a 2->4
// decoder on (F1,F0) (arguments swapped relative to decoder2x4's own
// canonical ordering, to match the Mic-1 function-select convention) picks
// one of AND, OR, NOT-b, or ripple-carry SUM per bit.
func aluCompute(ctl ALUControl, a, b Word) (Word, Flags) {
	abits := EncodeWord(a)
	bbits := EncodeWord(b)

	var aPrime, bPrime [32]bool
	for i := 0; i < 32; i++ {
		aPrime[i] = (abits[i] && ctl.ENA) != ctl.INVA
		bPrime[i] = bbits[i] && ctl.ENB
	}

	sel := decoder2x4(ctl.F1, ctl.F0)

	var result [32]bool
	carry := ctl.INC
	for i := 0; i < 32; i++ {
		sum, cout := fullAdder(aPrime[i], bPrime[i], carry)
		carry = cout

		switch {
		case sel[0]:
			result[i] = aPrime[i] && bPrime[i]
		case sel[1]:
			result[i] = aPrime[i] || bPrime[i]
		case sel[2]:
			result[i] = !bPrime[i]
		case sel[3]:
			result[i] = sum
		}
	}

	word := DecodeWord(result)
	flags := Flags{
		N: result[31],
		Z: word == 0,
	}
	return word, flags
}

// ALUExec evaluates the ALU for a named mode, the entry point microcode
// construction and the cycle engine both use.
func ALUExec(mode ALUNamedMode, a, b Word) (Word, Flags) {
	return aluCompute(aluControlFor(mode), a, b)
}
