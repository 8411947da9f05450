package vm

// This file builds the fixed 512-row control store implementing the IJVM
// instruction set on top of the Mic-1 datapath.
//
// An opcode's first micro-step lives at the slot equal to its own byte
// value, so dispatch out of Main1 is a plain JMPC. Every opcode chain
// relocates into the free upper region of the store after that first step:
// rather than trying to keep each chain contiguous from opcode+1 and
// displacing it only on collision, every chain is relocated
// unconditionally. This is simpler to get right by hand and satisfies the
// same constraint (no two chains ever share a row) without needing a
// collision table. WIDE's parallel ILOAD/ISTORE chains keep their fixed
// entry points at opcode+0x100; the three conditional branches keep fixed
// entry pads so JAMZ/JAMN's single-bit OR can select between the not-taken
// and taken halves.

// mcBuilder installs rows into a ControlStore. Its bump allocator starts at
// 0x140, clear of every fixed address used below (opcodes, WIDE's
// 0x115/0x136, and the branch pads and their +0x100 counterparts all sit
// below 0x140).
type mcBuilder struct {
	cs   *ControlStore
	next uint16
}

func newMcBuilder(cs *ControlStore) *mcBuilder {
	return &mcBuilder{cs: cs, next: 0x140}
}

func (b *mcBuilder) alloc() uint16 {
	a := b.next
	b.next++
	return a
}

func (b *mcBuilder) inst(addr uint16, m *cb) {
	b.cs.Load(addr, m.build())
}

// emitChainAt installs a straight-line sequence of rows starting at a fixed
// address, wiring each row's next field to the following row's address (or
// to exit after the last row). Rows must not call .next themselves.
func (b *mcBuilder) emitChainAt(addr uint16, rows []*cb, exit uint16) {
	addrs := make([]uint16, len(rows))
	addrs[0] = addr
	for i := 1; i < len(rows); i++ {
		addrs[i] = b.alloc()
	}
	for i, r := range rows {
		next := exit
		if i+1 < len(rows) {
			next = addrs[i+1]
		}
		b.inst(addrs[i], r.next(next))
	}
}

func (b *mcBuilder) emitChain(rows []*cb, exit uint16) uint16 {
	addr := b.alloc()
	b.emitChainAt(addr, rows, exit)
	return addr
}

// emitFetchAt issues an instruction-fetch read (advancing PC) and, after the
// one-row filler the two-cycle read latency demands, jumps to after with
// MBR holding the fetched byte.
func (b *mcBuilder) emitFetchAt(addr, after uint16) {
	b.emitChainAt(addr, []*cb{
		newCb().bBus(BPC).aluBInc().writePC().fetch(),
		newCb(),
	}, after)
}

func (b *mcBuilder) emitFetch(after uint16) uint16 {
	addr := b.alloc()
	b.emitFetchAt(addr, after)
	return addr
}

// emit16At fetches two successive program bytes and combines them
// big-endian (unsigned) into H, then jumps to after.
func (b *mcBuilder) emit16At(addr, after uint16) {
	combine2 := b.alloc()
	b.inst(combine2, newCb().bBus(BMBRUnsigned).aluSum().writeH().next(after))
	fetch2 := b.alloc()
	b.emitFetchAt(fetch2, combine2)
	combine1 := b.alloc()
	b.inst(combine1, newCb().bBus(BMBRUnsigned).aluB().sll8().writeH().next(fetch2))
	b.emitFetchAt(addr, combine1)
}

func (b *mcBuilder) emit16(after uint16) uint16 {
	addr := b.alloc()
	b.emit16At(addr, after)
	return addr
}

// emitPushAt installs SP=MAR=SP+1; mem[SP]=TOS, then jumps to after. The
// caller must have TOS already holding the value to push.
func (b *mcBuilder) emitPushAt(addr, after uint16) {
	b.emitChainAt(addr, []*cb{
		newCb().bBus(BSP).aluBInc().writeSP().writeMAR(),
		newCb().bBus(BTOS).aluB().writeMDR().memWrite(),
	}, after)
}

func (b *mcBuilder) emitPush(after uint16) uint16 {
	addr := b.alloc()
	b.emitPushAt(addr, after)
	return addr
}

// emitPopAt installs SP=MAR=SP-1, read, TOS:=new top, then jumps to after.
// The discarded value is not preserved.
func (b *mcBuilder) emitPopAt(addr, after uint16) {
	b.emitChainAt(addr, []*cb{
		newCb().bBus(BSP).aluBDec().writeSP().writeMAR().memRead(),
		newCb(),
		newCb().bBus(BMDR).aluB().writeTOS(),
	}, after)
}

func (b *mcBuilder) emitPop(after uint16) uint16 {
	addr := b.alloc()
	b.emitPopAt(addr, after)
	return addr
}

// emitAbsoluteJumpAt reads a two-byte big-endian branch operand and loads it
// straight into PC. The assembler bakes GOTO/IFEQ/IFLT/IF_ICMPEQ operands as
// the target's byte address minus one, so the next Main1 fetch, which
// pre-increments PC, lands exactly on the labelled instruction.
func (b *mcBuilder) emitAbsoluteJumpAt(addr, after uint16) {
	finalRow := b.alloc()
	b.inst(finalRow, newCb().aluA().writePC().next(after))
	b.emit16At(addr, finalRow)
}

func (b *mcBuilder) emitAbsoluteJump(after uint16) uint16 {
	addr := b.alloc()
	b.emitAbsoluteJumpAt(addr, after)
	return addr
}

// emitSkip2At advances PC by two without touching memory: the not-taken
// path of a conditional branch still has to step over its two operand
// bytes, but never needs their value.
func (b *mcBuilder) emitSkip2At(addr, after uint16) {
	b.emitChainAt(addr, []*cb{
		newCb().bBus(BPC).aluBInc().writePC(),
		newCb().bBus(BPC).aluBInc().writePC(),
	}, after)
}

func (b *mcBuilder) emitSkip2(after uint16) uint16 {
	addr := b.alloc()
	b.emitSkip2At(addr, after)
	return addr
}

// emitStackCleanup2At drops the top two stack slots and refreshes TOS from
// the new top (IF_ICMPEQ's two popped operands), then jumps to after.
func (b *mcBuilder) emitStackCleanup2At(addr, after uint16) {
	b.emitChainAt(addr, []*cb{
		newCb().bBus(BSP).aluBDec().writeSP().writeMAR(),
		newCb().bBus(BSP).aluBDec().writeSP().writeMAR().memRead(),
		newCb(),
		newCb().bBus(BMDR).aluB().writeTOS(),
	}, after)
}

func (b *mcBuilder) emitStackCleanup2(after uint16) uint16 {
	addr := b.alloc()
	b.emitStackCleanup2At(addr, after)
	return addr
}

// populateMicrocode is the single entry point ControlStore.NewControlStore
// calls to fill every row.
func populateMicrocode(cs *ControlStore) {
	b := newMcBuilder(cs)

	// Main1: fetch the next opcode byte and dispatch on it. The dispatch
	// itself must wait one filler row for the fetch's two-cycle latency.
	// The textbook single-row description of Main1 ("PC<-PC+1; fetch; JMPC")
	// is the steady-state summary of this three-row internal chain, which
	// only works out to one opcode dispatched per pass through Main1
	// because every opcode chain ends by jumping back to mainEntry, not
	// because the fetch and the JMPC that consumes it share a row.
	mainFiller := b.alloc()
	mainDispatch := b.alloc()
	b.inst(mainEntry, newCb().bBus(BPC).aluBInc().writePC().fetch().next(mainFiller))
	b.inst(mainFiller, newCb().next(mainDispatch))
	b.inst(mainDispatch, newCb().jmpc().next(0))

	b.inst(OpNOP, newCb().next(mainEntry))

	b.buildBIPUSH()
	b.buildLDC_W()
	b.buildILOAD()
	b.buildWideILOAD()
	b.buildISTORE()
	b.buildWideISTORE()

	b.emitPopAt(OpPOP, mainEntry)
	b.emitPushAt(OpDUP, mainEntry)
	b.buildSWAP()

	b.buildBinOp(OpIADD, ModeAPlusB)
	b.buildBinOp(OpISUB, ModeBMinusA)
	b.buildBinOp(OpIAND, ModeAAndB)
	b.buildBinOp(OpIOR, ModeAOrB)

	b.buildIINC()

	b.buildCondBranch(OpIFEQ, padIFEQ, true)
	b.buildCondBranch(OpIFLT, padIFLT, false)
	b.buildIFICMPEQ()
	b.buildGOTO()

	b.buildIRETURN()
	b.buildINVOKEVIRTUAL()

	b.buildWIDE()
}

// BIPUSH: push a one-byte signed immediate.
func (b *mcBuilder) buildBIPUSH() {
	push := b.emitPush(mainEntry)
	consume := b.alloc()
	b.inst(consume, newCb().bBus(BMBRSigned).aluB().writeTOS().next(push))
	b.emitFetchAt(OpBIPUSH, consume)
}

// LDC_W: push the constant-pool entry at CPP+idx16.
func (b *mcBuilder) buildLDC_W() {
	push := b.emitPush(mainEntry)
	setTOS := b.alloc()
	b.inst(setTOS, newCb().bBus(BMDR).aluB().writeTOS().next(push))
	filler := b.alloc()
	b.inst(filler, newCb().next(setTOS))
	readRow := b.alloc()
	b.inst(readRow, newCb().bBus(BCPP).aluSum().writeMAR().memRead().next(filler))
	b.emit16At(OpLDC_W, readRow)
}

// ILOAD: push the local variable at LV+idx8 (signed: a negative idx8
// addresses a declared parameter, per the assembler's offset scheme).
func (b *mcBuilder) buildILOAD() {
	push := b.emitPush(mainEntry)
	setTOS := b.alloc()
	b.inst(setTOS, newCb().bBus(BMDR).aluB().writeTOS().next(push))
	filler := b.alloc()
	b.inst(filler, newCb().next(setTOS))
	readRow := b.alloc()
	b.inst(readRow, newCb().bBus(BLV).aluSum().writeMAR().memRead().next(filler))
	consumeIdx := b.alloc()
	b.inst(consumeIdx, newCb().bBus(BMBRSigned).aluB().writeH().next(readRow))
	b.emitFetchAt(OpILOAD, consumeIdx)
}

// WIDE ILOAD: same, with a 16-bit index.
func (b *mcBuilder) buildWideILOAD() {
	push := b.emitPush(mainEntry)
	setTOS := b.alloc()
	b.inst(setTOS, newCb().bBus(BMDR).aluB().writeTOS().next(push))
	filler := b.alloc()
	b.inst(filler, newCb().next(setTOS))
	readRow := b.alloc()
	b.inst(readRow, newCb().bBus(BLV).aluSum().writeMAR().memRead().next(filler))
	b.emit16At(OpILOAD+wideOffset, readRow)
}

// ISTORE: pop TOS and store it at LV+idx8.
func (b *mcBuilder) buildISTORE() {
	popChain := b.emitPop(mainEntry)
	writeRow := b.alloc()
	b.inst(writeRow, newCb().bBus(BOPC).aluB().writeMDR().memWrite().next(popChain))
	addrRow := b.alloc()
	b.inst(addrRow, newCb().bBus(BLV).aluSum().writeMAR().next(writeRow))
	stashRow := b.alloc()
	b.inst(stashRow, newCb().bBus(BTOS).aluB().writeOPC().next(addrRow))
	consumeIdx := b.alloc()
	b.inst(consumeIdx, newCb().bBus(BMBRSigned).aluB().writeH().next(stashRow))
	b.emitFetchAt(OpISTORE, consumeIdx)
}

// WIDE ISTORE: same, with a 16-bit index.
func (b *mcBuilder) buildWideISTORE() {
	popChain := b.emitPop(mainEntry)
	writeRow := b.alloc()
	b.inst(writeRow, newCb().bBus(BOPC).aluB().writeMDR().memWrite().next(popChain))
	addrRow := b.alloc()
	b.inst(addrRow, newCb().bBus(BLV).aluSum().writeMAR().next(writeRow))
	stashRow := b.alloc()
	b.inst(stashRow, newCb().bBus(BTOS).aluB().writeOPC().next(addrRow))
	b.emit16At(OpISTORE+wideOffset, stashRow)
}

// SWAP: exchange the top two stack slots without moving SP.
func (b *mcBuilder) buildSWAP() {
	b.emitChainAt(OpSWAP, []*cb{
		newCb().bBus(BSP).aluBDec().writeMAR().memRead(), // s1: MAR=SP-1; read second
		newCb(),                                          // s2 filler
		newCb().bBus(BMDR).aluB().writeH(),               // s3: H=second
		newCb().bBus(BTOS).aluB().writeMDR().memWrite(),  // s4: mem[SP-1]=old TOS
		newCb().bBus(BSP).aluB().writeMAR(),              // s5: MAR=SP
		newCb().aluA().writeMDR().memWrite(),             // s6: mem[SP]=H
		newCb().aluA().writeTOS(),                        // s7: TOS=H
	}, mainEntry)
}

// buildBinOp wires IADD/ISUB/IAND/IOR from a single pattern: pop the value
// below TOS, combine it with the current TOS under mode, replace the top.
// H always carries the current TOS (b); the popped value (a) rides the
// B-bus straight out of MDR. ISUB's only available subtraction shape is
// B-A, so it is wired with H=TOS(top) and B=MDR(second), giving
// second-top, exactly the stack convention (first pushed minus last
// pushed is never required; this is simply "the value below minus the
// value on top").
func (b *mcBuilder) buildBinOp(opcode uint16, mode ALUNamedMode) {
	r6 := b.alloc()
	b.inst(r6, newCb().bBus(BTOS).aluB().writeMDR().memWrite().next(mainEntry))
	r5 := b.alloc()
	b.inst(r5, newCb().bBus(BSP).aluBDec().writeSP().writeMAR().next(r6))
	r4 := b.alloc()
	b.inst(r4, newCb().bBus(BMDR).alu(mode).writeTOS().next(r5))
	filler := b.alloc()
	b.inst(filler, newCb().next(r4))
	r2 := b.alloc()
	b.inst(r2, newCb().bBus(BSP).aluBDec().writeMAR().memRead().next(filler))
	b.inst(opcode, newCb().bBus(BTOS).aluB().writeH().next(r2))
}

// IINC: add a signed byte constant to a local variable in place.
func (b *mcBuilder) buildIINC() {
	finalRow := b.alloc()
	b.inst(finalRow, newCb().bBus(BMBRSigned).aluSum().writeMDR().memWrite().next(mainEntry))
	fetchConst := b.emitFetch(finalRow)
	stashOld := b.alloc()
	b.inst(stashOld, newCb().bBus(BMDR).aluB().writeH().next(fetchConst))
	filler2 := b.alloc()
	b.inst(filler2, newCb().next(stashOld))
	readOld := b.alloc()
	b.inst(readOld, newCb().bBus(BLV).aluSum().writeMAR().memRead().next(filler2))
	consumeIdx := b.alloc()
	b.inst(consumeIdx, newCb().bBus(BMBRSigned).aluB().writeH().next(readOld))
	b.emitFetchAt(OpIINC, consumeIdx)
}

// buildCondBranch wires IFEQ/IFLT. Both pop one operand and test it against
// zero; the test and the pop's SP-decrement need different B-bus sources,
// so the test is done from H (a copy of TOS taken before the pop) rather
// than the B-bus, freeing the B-bus for the pop in the same row that sets
// JAMZ/JAMN and dispatches to the pad pair.
func (b *mcBuilder) buildCondBranch(opcode uint16, pad uint16, useZ bool) {
	ntSkip := b.emitSkip2(mainEntry)
	b.inst(pad, newCb().bBus(BMDR).aluB().writeTOS().next(ntSkip))

	jmpChain := b.emitAbsoluteJump(mainEntry)
	b.inst(pad+wideOffset, newCb().bBus(BMDR).aluB().writeTOS().next(jmpChain))

	row4 := b.alloc()
	dispatch := newCb().aluA()
	if useZ {
		dispatch = dispatch.jamz()
	} else {
		dispatch = dispatch.jamn()
	}
	b.inst(row4, dispatch.next(pad))
	filler := b.alloc()
	b.inst(filler, newCb().next(row4))
	row2 := b.alloc()
	b.inst(row2, newCb().bBus(BSP).aluBDec().writeSP().writeMAR().memRead().next(filler))
	b.inst(opcode, newCb().bBus(BTOS).aluB().writeH().next(row2))
}

// IF_ICMPEQ: pop two operands, compare for equality.
func (b *mcBuilder) buildIFICMPEQ() {
	ntSkip := b.emitSkip2(mainEntry)
	b.emitStackCleanup2At(padIFICMPEQ, ntSkip)

	jmpChain := b.emitAbsoluteJump(mainEntry)
	b.emitStackCleanup2At(padIFICMPEQ+wideOffset, jmpChain)

	row4 := b.alloc()
	b.inst(row4, newCb().bBus(BMDR).aluSub().jamz().next(padIFICMPEQ))
	filler := b.alloc()
	b.inst(filler, newCb().next(row4))
	row2 := b.alloc()
	b.inst(row2, newCb().bBus(BSP).aluBDec().writeMAR().memRead().next(filler))
	b.inst(OpIF_ICMPEQ, newCb().bBus(BTOS).aluB().writeH().next(row2))
}

// GOTO: unconditional absolute jump, no operand popped.
func (b *mcBuilder) buildGOTO() {
	b.emitAbsoluteJumpAt(OpGOTO, mainEntry)
}

// IRETURN restores the caller's frame from the three metadata words a prior
// INVOKEVIRTUAL wrote just above the call's argument slots (link at LV+1,
// old LV at LV+0, old SP at LV+2; see buildINVOKEVIRTUAL), writes the
// return value at the restored stack top, and resumes the caller.
func (b *mcBuilder) buildIRETURN() {
	b.emitChainAt(OpIRETURN, []*cb{
		newCb().bBus(BLV).aluBInc().writeMAR().memRead(), // read link (LV+1)
		newCb(),
		newCb().bBus(BMDR).aluB().writeOPC(), // OPC = link
		newCb().bBus(BLV).aluB().writeMAR().memRead(), // read old LV (LV+0)
		newCb(),
		newCb().bBus(BMDR).aluB().writeH(),    // H = old LV
		newCb().bBus(BLV).aluBInc().writeMDR(), // MDR = LV+1
		newCb().bBus(BMDR).aluBInc().writeMAR().memRead(), // MAR = LV+2; read old SP
		newCb(),
		newCb().bBus(BMDR).aluBInc().writeSP().writeMAR(), // SP = MAR = old SP+1
		newCb().bBus(BTOS).aluB().writeMDR().memWrite(),   // mem[new SP] = return value
		newCb().aluA().writeLV(),                           // LV = old LV
		newCb().bBus(BOPC).aluB().writePC(),                // PC = link
	}, mainEntry)
}

// INVOKEVIRTUAL resolves idx16 against the constant pool to a method entry
// address, reads that method's four-byte (paramCount, localsCount) prologue,
// and opens a new frame immediately above the call's argument slots: three
// metadata words (old LV, link, old SP, in that order) followed by
// localsCount uninitialized extra locals. newLV always equals the caller's
// SP+1 regardless of paramCount, since the metadata block sits directly
// above the topmost argument; the assembler is responsible for addressing
// declared parameters with negative LV-relative offsets that land below
// newLV, inside the argument slots this frame never touches.
func (b *mcBuilder) buildINVOKEVIRTUAL() {
	rows := []*cb{
		newCb().bBus(BPC).aluBInc().writePC().fetch(), // A1: fetch idx byte 1
		newCb(),
		newCb().bBus(BMBRUnsigned).aluB().sll8().writeH(), // A3: H = byte1<<8
		newCb().bBus(BPC).aluBInc().writePC().fetch(),     // A4: fetch idx byte 2
		newCb(),
		newCb().bBus(BMBRUnsigned).aluSum().writeH(), // A6: H = idx16
		newCb().bBus(BCPP).aluSum().writeMAR().memRead(), // A7: read method entry addr
		newCb(),
		newCb().bBus(BMDR).aluB().writeOPC(), // A9: OPC = method entry addr
		newCb().bBus(BOPC).aluB().writeMAR().memRead(), // A10: read paramCountHi
		newCb(),
		newCb().bBus(BMDR).aluB().sll8().writeH(), // A12: H = paramCountHi<<8
		newCb().bBus(BOPC).aluBInc().writeOPC().writeMAR().memRead(), // A13: read paramCountLo
		newCb(),
		newCb().bBus(BMDR).aluSum().writeH(), // A15: H = paramCount
		newCb().bBus(BSP).aluSub().writeTOS(), // A16: TOS = SP - paramCount = old SP (stashed)
		newCb().bBus(BOPC).aluBInc().writeOPC().writeMAR().memRead(), // A17: read localsCountHi
		newCb(),
		newCb().bBus(BMDR).aluB().sll8().writeH(), // A19: H = localsCountHi<<8
		newCb().bBus(BOPC).aluBInc().writeOPC().writeMAR().memRead(), // A20: read localsCountLo
		newCb(),
		newCb().bBus(BMDR).aluSum().writeH(), // A22: H = localsCount; OPC = method entry+3

		newCb().bBus(BSP).aluBInc().writeMDR(), // B1: MDR = newLV = SP+1
		newCb().bBus(BMDR).aluB().writeMAR(),   // B2: MAR = newLV
		newCb().bBus(BLV).aluB().writeMDR().memWrite(), // B3: mem[newLV+0] = old LV
		newCb().bBus(BSP).aluBInc().writeMDR(),         // B4: MDR = newLV
		newCb().bBus(BMDR).aluBInc().writeMAR(),        // B5: MAR = newLV+1
		newCb().bBus(BPC).aluB().writeMDR().memWrite(), // B6: mem[newLV+1] = link (caller PC)
		newCb().bBus(BSP).aluBInc().writeMDR(),         // B7: MDR = newLV
		newCb().bBus(BMDR).aluBInc().writeMDR(),        // B8: MDR = newLV+1
		newCb().bBus(BMDR).aluBInc().writeMAR(),        // B9: MAR = newLV+2
		newCb().bBus(BTOS).aluB().writeMDR().memWrite(), // B10: mem[newLV+2] = old SP

		newCb().bBus(BSP).aluBInc().writeLV(), // C1: LV = newLV
		newCb().bBus(BLV).aluSum().writeMDR(), // C2: MDR = LV + localsCount
		newCb().bBus(BMDR).aluBInc().writeMDR(), // C3: MDR += 1
		newCb().bBus(BMDR).aluBInc().writeSP().writeMAR().memRead(), // C4: SP = MAR = newSP
		newCb(),
		newCb().bBus(BMDR).aluB().writeTOS(), // C6: TOS = mem[newSP]
		newCb().bBus(BOPC).aluB().writePC(),  // C7: PC = method entry+3
	}
	b.emitChainAt(OpINVOKEVIRTUAL, rows, mainEntry)
}

// WIDE: advance past the prefix, fetch the real opcode, and redispatch into
// that opcode's 0x100-offset chain (only ILOAD and ISTORE have one). The
// fetch needs the same filler row every other two-cycle read in this file
// uses (see emitFetchAt) before MBR holds the fetched opcode and jmpc() can
// safely OR it into NEXT_ADDR; without it the redispatch reads the stale
// MBR from WIDE's own opcode byte one cycle too early.
func (b *mcBuilder) buildWIDE() {
	b.emitChainAt(OpWIDE, []*cb{
		newCb().bBus(BPC).aluBInc().writePC().fetch(),
		newCb(),
		newCb().jmpc(),
	}, wideOffset)
}
