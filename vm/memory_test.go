package vm

import "testing"

func TestMainMemoryWriteImmediate(t *testing.T) {
	m := NewMainMemory()
	if err := m.Write(5, 99, true); err != nil {
		t.Fatal(err)
	}
	got, err := m.PeekWord(5)
	if err != nil {
		t.Fatal(err)
	}
	if got != 99 {
		t.Errorf("got %d, want 99", got)
	}
}

func TestMainMemoryReadTwoCycleLatency(t *testing.T) {
	m := NewMainMemory()
	if err := m.LoadWord(10, 123); err != nil {
		t.Fatal(err)
	}

	if err := m.RequestDataRead(10, true); err != nil {
		t.Fatal(err)
	}

	// Cycle 1: request moves Initialized -> InProgress, nothing ready yet.
	_, ready, _, _, err := m.LatchReadResults()
	if err != nil {
		t.Fatal(err)
	}
	if ready {
		t.Fatal("data should not be ready after only one LatchReadResults call")
	}

	// Cycle 2: the word retires.
	word, ready, _, _, err := m.LatchReadResults()
	if err != nil {
		t.Fatal(err)
	}
	if !ready {
		t.Fatal("data should be ready on the second call")
	}
	if word != 123 {
		t.Errorf("got %d, want 123", word)
	}
}

func TestMainMemoryDataAndFetchQueuesIndependent(t *testing.T) {
	m := NewMainMemory()
	m.LoadWord(0, 11)
	m.LoadWord(1, 22)

	if err := m.RequestDataRead(0, true); err != nil {
		t.Fatal(err)
	}
	m.LatchReadResults() // data -> InProgress

	if err := m.RequestFetchRead(1, true); err != nil {
		t.Fatal(err)
	}
	// data retires this cycle, fetch moves to InProgress
	dataWord, dataReady, _, fetchReady, err := m.LatchReadResults()
	if err != nil {
		t.Fatal(err)
	}
	if !dataReady || dataWord != 11 {
		t.Fatalf("data: ready=%v word=%d, want ready word=11", dataReady, dataWord)
	}
	if fetchReady {
		t.Fatal("fetch should not be ready yet")
	}

	_, _, fetchWord, fetchReady, err := m.LatchReadResults()
	if err != nil {
		t.Fatal(err)
	}
	if !fetchReady || fetchWord != 22 {
		t.Fatalf("fetch: ready=%v word=%d, want ready word=22", fetchReady, fetchWord)
	}
}

func TestMainMemoryOutOfRange(t *testing.T) {
	m := NewMainMemory()
	if err := m.Write(MainMemorySize, 1, true); err == nil {
		t.Fatal("expected out-of-range error")
	}
	if _, err := m.PeekWord(MainMemorySize); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestMainMemoryReset(t *testing.T) {
	m := NewMainMemory()
	m.LoadWord(0, 7)
	m.RequestDataRead(0, true)
	m.Reset()
	v, _ := m.PeekWord(0)
	if v != 0 {
		t.Errorf("cell not cleared: %d", v)
	}
	_, ready, _, _, _ := m.LatchReadResults()
	if ready {
		t.Fatal("pending reads should be cleared by Reset")
	}
}
