package vm

import "testing"

func TestRegister32GatedReadWrite(t *testing.T) {
	var r Register32
	r.Write(42, false)
	if r.Peek() != 0 {
		t.Error("write with enable clear must not latch")
	}
	r.Write(42, true)
	if got := r.Read(true); got != 42 {
		t.Errorf("Read(true) = %d, want 42", got)
	}
	if got := r.Read(false); got != 0 {
		t.Errorf("Read(false) = %d, want all-zeros for bus merging", got)
	}
}

func TestRegister9MasksTo9Bits(t *testing.T) {
	var r Register9
	r.Write(0x3FF)
	if got := r.Read(); got != 0x1FF {
		t.Errorf("Read() = %#x, want %#x", got, 0x1FF)
	}
}

func TestBus32WiredORMerge(t *testing.T) {
	var b Bus32
	b.Connect(0) // a disabled source contributes all-zeros
	b.Connect(0x0F0)
	b.Connect(0)
	if b.Value() != 0x0F0 {
		t.Errorf("bus = %#x, want 0xf0", uint32(b.Value()))
	}
	b.Clear()
	if b.Value() != 0 {
		t.Error("Clear must drop all driven lines")
	}
}

func TestControlStoreLookupMasksAddress(t *testing.T) {
	cs := NewControlStore()
	if cs.Lookup(0x3FF) != cs.Lookup(0x1FF) {
		t.Error("lookup must use only the low 9 address bits")
	}
}
