package vm

import "testing"

func TestWordRoundTrip(t *testing.T) {
	cases := []Word{0, 1, -1, 42, -42, 1 << 30, -(1 << 30), 2147483647, -2147483648}
	for _, w := range cases {
		bits := EncodeWord(w)
		if got := DecodeWord(bits); got != w {
			t.Errorf("DecodeWord(EncodeWord(%d)) = %d", w, got)
		}
	}
}

func TestEncodeWordBitOrder(t *testing.T) {
	bits := EncodeWord(1)
	if !bits[0] {
		t.Fatal("bit 0 should be set for value 1")
	}
	for i := 1; i < 32; i++ {
		if bits[i] {
			t.Fatalf("bit %d should be clear for value 1", i)
		}
	}
}

func TestDecodeWordAllBits(t *testing.T) {
	var bits WordBits
	for i := range bits {
		bits[i] = true
	}
	if got := DecodeWord(bits); got != -1 {
		t.Errorf("all-ones vector should decode to -1, got %d", got)
	}
}
