package vm

import "testing"

// The 36-bit row format is an external contract: a loader or dump tool that
// walks the control store sees these exact bit positions.
func TestMicroInstructionBitLayout(t *testing.T) {
	mi := newCb().bBus(BOPC).aluBInc().sll8().writeMAR().writePC().memRead().fetch().jmpc().next(0x1A5).build()
	v := mi.Encode()

	if got := v & 0x1FF; got != 0x1A5 {
		t.Errorf("NEXT_ADDR bits = %#x, want 0x1a5", got)
	}
	if v&(1<<9) == 0 {
		t.Error("JMPC should be bit 9")
	}
	if v&(1<<12) == 0 {
		t.Error("SLL8 should be bit 12")
	}
	// B+1 is the SUM function with only the B path enabled and carry-in
	// forced: F0, F1, ENB, INC set; ENA, INVA clear.
	for _, bit := range []uint{14, 15, 17, 19} {
		if v&(1<<bit) == 0 {
			t.Errorf("ALU bit %d should be set for B+1", bit)
		}
	}
	if v&(1<<16) != 0 || v&(1<<18) != 0 {
		t.Error("ENA/INVA should be clear for B+1")
	}
	if v&(1<<26) == 0 {
		t.Error("PC enable should be bit 26")
	}
	if v&(1<<28) == 0 {
		t.Error("MAR enable should be bit 28")
	}
	if v&(1<<30) == 0 || v&(1<<31) == 0 {
		t.Error("READ and FETCH should be bits 30 and 31")
	}
	if got := (v >> 32) & 0xF; got != uint64(BOPC) {
		t.Errorf("B-bus selector = %d, want %d (OPC)", got, BOPC)
	}
}

func TestMicroInstructionRoundTripThroughControlStore(t *testing.T) {
	cs := NewControlStore()
	for addr := uint16(0); addr < 512; addr++ {
		mi := cs.Lookup(addr)
		if got := DecodeMicroInstruction(mi.Encode()); got != mi {
			t.Fatalf("row %#x does not survive Encode/Decode:\n got %+v\nwant %+v", addr, got, mi)
		}
	}
}

func TestControlStoreMain1IssuesFetch(t *testing.T) {
	cs := NewControlStore()
	main1 := cs.Lookup(MainEntry)
	if !main1.Fetch {
		t.Error("Main1 must issue an instruction fetch")
	}
	if !main1.CBus[CPC] {
		t.Error("Main1 must advance PC")
	}
	if main1.JMPC {
		t.Error("Main1 itself must not dispatch; the dispatch row two cycles later does")
	}
}
