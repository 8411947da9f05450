package vm

import "testing"

// newTestMachine wires a fresh Mic1 over a blank 512-word memory with the
// real microcode table, ready for a test to install a program via
// mem.LoadWord and run it.
func newTestMachine(programStart, stackStart, cpp uint32) (*Mic1, *MainMemory) {
	mem := NewMainMemory()
	cs := NewControlStore()
	m := NewMic1(mem, cs, Mic1Config{
		ProgramStart: programStart,
		StackStart:   stackStart,
		CPP:          cpp,
	})
	return m, mem
}

// loadBytes installs a sequence of small (byte-range) values starting at
// addr, one per memory cell, mirroring how the loader places a bytecode
// stream.
func loadBytes(t *testing.T, mem *MainMemory, addr uint32, values ...Word) {
	t.Helper()
	for i, v := range values {
		if err := mem.LoadWord(addr+uint32(i), v); err != nil {
			t.Fatalf("LoadWord(%d, %d): %v", addr+uint32(i), v, err)
		}
	}
}

func TestBIPUSHPushesImmediate(t *testing.T) {
	m, mem := newTestMachine(64, 300, 0)
	// 64: BIPUSH 5; 66: GOTO self (operand is the target address minus one)
	loadBytes(t, mem, 64,
		Word(OpBIPUSH), 5,
		Word(OpGOTO), 0, 65,
	)
	if err := m.RunCycles(500); err != nil {
		t.Fatal(err)
	}
	if m.TOS.Peek() != 5 {
		t.Errorf("TOS = %d, want 5", m.TOS.Peek())
	}
}

func TestIADDAddsTopTwo(t *testing.T) {
	m, mem := newTestMachine(64, 300, 0)
	loadBytes(t, mem, 64,
		Word(OpBIPUSH), 2,
		Word(OpBIPUSH), 3,
		Word(OpIADD),
		Word(OpGOTO), 0, 68,
	)
	if err := m.RunCycles(500); err != nil {
		t.Fatal(err)
	}
	if m.TOS.Peek() != 5 {
		t.Errorf("TOS = %d, want 5", m.TOS.Peek())
	}
}

func TestISUBIsSecondMinusTop(t *testing.T) {
	m, mem := newTestMachine(64, 300, 0)
	loadBytes(t, mem, 64,
		Word(OpBIPUSH), 10,
		Word(OpBIPUSH), 3,
		Word(OpISUB),
		Word(OpGOTO), 0, 68,
	)
	if err := m.RunCycles(500); err != nil {
		t.Fatal(err)
	}
	if m.TOS.Peek() != 7 {
		t.Errorf("TOS = %d, want 7 (10-3)", m.TOS.Peek())
	}
}

func TestIFEQTakenOnZero(t *testing.T) {
	m, mem := newTestMachine(64, 300, 0)
	loadBytes(t, mem, 64,
		Word(OpBIPUSH), 0,
		Word(OpIFEQ), 0, 79, // taken branch lands on 80
		Word(OpBIPUSH), 42, // not-taken path (unreachable here)
		Word(OpGOTO), 0, 70,
	)
	loadBytes(t, mem, 80,
		Word(OpBIPUSH), 99,
		Word(OpGOTO), 0, 81,
	)
	if err := m.RunCycles(500); err != nil {
		t.Fatal(err)
	}
	if m.TOS.Peek() != 99 {
		t.Errorf("TOS = %d, want 99 (branch taken)", m.TOS.Peek())
	}
}

func TestIFEQNotTakenOnNonzero(t *testing.T) {
	m, mem := newTestMachine(64, 300, 0)
	loadBytes(t, mem, 64,
		Word(OpBIPUSH), 7,
		Word(OpIFEQ), 0, 79,
		Word(OpBIPUSH), 42,
		Word(OpGOTO), 0, 70,
	)
	loadBytes(t, mem, 80,
		Word(OpBIPUSH), 99,
		Word(OpGOTO), 0, 81,
	)
	if err := m.RunCycles(500); err != nil {
		t.Fatal(err)
	}
	if m.TOS.Peek() != 42 {
		t.Errorf("TOS = %d, want 42 (fall-through)", m.TOS.Peek())
	}
}

func TestIFLTTakenOnNegative(t *testing.T) {
	m, mem := newTestMachine(64, 300, 0)
	loadBytes(t, mem, 64,
		Word(OpBIPUSH), Word(-5),
		Word(OpIFLT), 0, 79,
		Word(OpBIPUSH), 42,
		Word(OpGOTO), 0, 70,
	)
	loadBytes(t, mem, 80,
		Word(OpBIPUSH), 99,
		Word(OpGOTO), 0, 81,
	)
	if err := m.RunCycles(500); err != nil {
		t.Fatal(err)
	}
	if m.TOS.Peek() != 99 {
		t.Errorf("TOS = %d, want 99 (branch taken)", m.TOS.Peek())
	}
}

func TestSWAPExchangesTopTwo(t *testing.T) {
	m, mem := newTestMachine(64, 300, 0)
	loadBytes(t, mem, 64,
		Word(OpBIPUSH), 1,
		Word(OpBIPUSH), 2,
		Word(OpSWAP),
		Word(OpGOTO), 0, 68,
	)
	if err := m.RunCycles(500); err != nil {
		t.Fatal(err)
	}
	if m.TOS.Peek() != 1 {
		t.Errorf("TOS after SWAP = %d, want 1", m.TOS.Peek())
	}
	below, err := mem.PeekWord(uint32(m.SP.Peek()) - 1)
	if err != nil {
		t.Fatal(err)
	}
	if below != 2 {
		t.Errorf("slot below TOS = %d, want 2", below)
	}
}

// TestInvokevirtualAndIreturn exercises the full call/return frame
// discipline: sum(first, second) is called with first=1, second=2 and must
// return 1+2=3 with the stack left holding exactly that one value.
func TestInvokevirtualAndIreturn(t *testing.T) {
	m, mem := newTestMachine(64, 300, 0)

	// Constant pool: idx16=0 resolves to the method's entry address.
	loadBytes(t, mem, 0, 200)

	// Method prologue at 200..203: paramCount=3 (objref+first+second),
	// localsCount=0.
	loadBytes(t, mem, 200, 0, 3, 0, 0)
	// Method body at 204: ILOAD first (offset -2), ILOAD second (offset
	// -1), IADD, IRETURN.
	loadBytes(t, mem, 204,
		Word(OpILOAD), Word(-2),
		Word(OpILOAD), Word(-1),
		Word(OpIADD),
		Word(OpIRETURN),
	)

	// Caller at 64: push objref, first, second; invoke; self-loop.
	loadBytes(t, mem, 64,
		Word(OpBIPUSH), 1, // objref (unused by the callee body)
		Word(OpBIPUSH), 1, // first
		Word(OpBIPUSH), 2, // second
		Word(OpINVOKEVIRTUAL), 0, 0,
		Word(OpGOTO), 0, 72,
	)

	if err := m.RunCycles(2000); err != nil {
		t.Fatal(err)
	}
	if m.TOS.Peek() != 3 {
		t.Errorf("TOS = %d, want 3 (1+2)", m.TOS.Peek())
	}
	// SP should sit one word above where the call sequence began
	// (stackStart-1, since InitialStack was empty): the call consumes the
	// three BIPUSHed words and IRETURN leaves its one result in the objref
	// slot.
	if uint32(m.SP.Peek()) != 300 {
		t.Errorf("SP = %d, want 300 (one value above the empty stack base)", m.SP.Peek())
	}
}
