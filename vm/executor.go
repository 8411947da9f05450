package vm

import "fmt"

// bBusValue resolves the currently selected B-bus source: every register
// drives its enable-gated read onto a wired-OR bus, with the 4-bit selector
// decoded into the one-hot enables, so at most one source carries nonzero
// lines. MBR drives two taps, a sign-extended and a zero-extended view of
// the low byte a fetch last latched into it; a disabled tap extends zero to
// zero, so both may connect unconditionally. Unused selector codes enable
// nothing and the bus reads all-zeros.
func (m *Mic1) bBusValue(src BBusSource) Word {
	var bus Bus32
	bus.Connect(m.MDR.Read(src == BMDR))
	bus.Connect(m.PC.Read(src == BPC))
	bus.Connect(Word(int32(int8(byte(m.MBR.Read(src == BMBRSigned))))))
	bus.Connect(Word(uint32(byte(m.MBR.Read(src == BMBRUnsigned)))))
	bus.Connect(m.SP.Read(src == BSP))
	bus.Connect(m.LV.Read(src == BLV))
	bus.Connect(m.CPP.Read(src == BCPP))
	bus.Connect(m.TOS.Read(src == BTOS))
	bus.Connect(m.OPC.Read(src == BOPC))
	return bus.Value()
}

// Step executes exactly one clock cycle: latch any memory results due this
// cycle, run the micro-instruction at MPC, and compute the next MPC. Every
// higher-level driver is built from repeated Step calls; this is the only
// place cycle-level semantics live.
func (m *Mic1) Step() error {
	dataWord, dataReady, fetchWord, fetchReady, err := m.Memory.LatchReadResults()
	if err != nil {
		return fmt.Errorf("cycle %d: %w", m.Cycles, err)
	}
	if dataReady {
		m.MDR.Set(dataWord)
	}
	if fetchReady {
		m.MBR.Set(fetchWord)
	}

	mi := m.Control.Lookup(m.MPC.Read())
	m.MIR.Write(mi.Encode())

	bVal := m.bBusValue(mi.BBus)
	aVal := m.H.Peek()

	result, flags := aluCompute(mi.ALU, aVal, bVal)
	if mi.SLL8 {
		result = shiftLeft8(result, true)
	}
	if mi.SRA1 {
		result = shiftRightArith1(result, true)
	}

	// The C-bus fans out to every register; each one's clocked write is
	// gated by its own enable bit.
	m.H.Write(result, mi.CBus[CH])
	m.OPC.Write(result, mi.CBus[COPC])
	m.TOS.Write(result, mi.CBus[CTOS])
	m.CPP.Write(result, mi.CBus[CCPP])
	m.LV.Write(result, mi.CBus[CLV])
	m.SP.Write(result, mi.CBus[CSP])
	m.PC.Write(result, mi.CBus[CPC])
	m.MDR.Write(result, mi.CBus[CMDR])
	m.MAR.Write(result, mi.CBus[CMAR])

	// Memory requests are posted using register values as they stand after
	// this cycle's C-bus writes (FETCH uses PC after any C-bus write).
	if mi.Fetch {
		if err := m.Memory.RequestFetchRead(uint32(m.PC.Peek()), true); err != nil {
			return fmt.Errorf("cycle %d: %w", m.Cycles, err)
		}
	}
	if mi.Read {
		if err := m.Memory.RequestDataRead(uint32(m.MAR.Peek()), true); err != nil {
			return fmt.Errorf("cycle %d: %w", m.Cycles, err)
		}
	}
	if mi.Write {
		if err := m.Memory.Write(uint32(m.MAR.Peek()), m.MDR.Peek(), true); err != nil {
			return fmt.Errorf("cycle %d: %w", m.Cycles, err)
		}
	}

	next := mi.NextAddr
	if mi.JMPC {
		next |= uint16(byte(m.MBR.Peek()))
	}
	if mi.JAMZ && flags.Z {
		next |= 0x100
	}
	if mi.JAMN && flags.N {
		next |= 0x100
	}
	m.MPC.Write(next)

	if m.Trace != nil {
		fmt.Fprintf(m.Trace, "cycle %d: mpc=%#x pc=%d sp=%d lv=%d tos=%d h=%d opc=%d\n",
			m.Cycles, m.MPC.Read(), m.PC.Peek(), m.SP.Peek(), m.LV.Peek(), m.TOS.Peek(), m.H.Peek(), m.OPC.Peek())
	}

	m.Cycles++
	return nil
}

// RunCycles executes exactly n cycles.
func (m *Mic1) RunCycles(n int) error {
	for i := 0; i < n; i++ {
		if err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}

// RunUntilPC steps until PC is at or past target or maxCycles is exceeded,
// whichever comes first. Used
// to drive a program to a known halting point (e.g. an infinite GOTO-to-self
// a test program ends on).
func (m *Mic1) RunUntilPC(target uint32, maxCycles int) error {
	for i := 0; i < maxCycles; i++ {
		if uint32(m.PC.Peek()) >= target {
			return nil
		}
		if err := m.Step(); err != nil {
			return err
		}
	}
	return fmt.Errorf("did not reach pc=%d within %d cycles", target, maxCycles)
}

// RunUntilMPC steps until MPC equals target or maxCycles is exceeded. Used
// by tests that want to stop exactly at Main1 (i.e. between instructions)
// rather than at a particular byte address.
func (m *Mic1) RunUntilMPC(target uint16, maxCycles int) error {
	for i := 0; i < maxCycles; i++ {
		if m.MPC.Read() == target {
			return nil
		}
		if err := m.Step(); err != nil {
			return err
		}
	}
	return fmt.Errorf("did not reach mpc=%#x within %d cycles", target, maxCycles)
}

// RunUntilStop steps until the most recently fetched byte-code equals
// stopByte and dispatch has returned to Main1; every macro-instruction
// before that point has completed, so it returns without running further
// cycles. A driver convention for the assembler's terminator byte, not an
// IJVM opcode in its own right.
func (m *Mic1) RunUntilStop(stopByte byte, maxCycles int) error {
	for i := 0; i < maxCycles; i++ {
		if m.MPC.Read() == mainEntry && byte(m.MBR.Peek()) == stopByte {
			return nil
		}
		if err := m.Step(); err != nil {
			return err
		}
	}
	return fmt.Errorf("did not reach stop byte %#x within %d cycles", stopByte, maxCycles)
}
