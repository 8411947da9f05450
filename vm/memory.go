package vm

import "fmt"

// MainMemorySize is the word count of main memory. The 9->512 one-hot
// decoder is first-class in this architecture, so this size is
// architecturally visible, not an implementation convenience.
const MainMemorySize = 512

// ReadState tracks the lifecycle of a single pending read request through
// the two-cycle-latent pipeline: a request Initialized this cycle becomes
// InProgress next cycle, and the cycle after that its word is latched onto
// the output port and the request retires (state reverts to NoRead).
type ReadState int

const (
	NoRead ReadState = iota
	ReadInitialized
	ReadInProgress
)

// pendingRead is one entry in a read-request queue (data or fetch).
type pendingRead struct {
	state   ReadState
	address uint32
}

// MainMemory is the 512-word store with the two-phase asynchronous read
// contract: a read is requested in one cycle and its data
// becomes available in MDR/MBR two cycles later. Two independent queues
// (data and fetch) let a data read and an instruction fetch overlap. Writes
// are immediate and unbuffered.
type MainMemory struct {
	cells [MainMemorySize]Word

	dataReads  []pendingRead
	fetchReads []pendingRead

	AccessCount uint64
}

// NewMainMemory creates a zeroed 512-word memory.
func NewMainMemory() *MainMemory {
	return &MainMemory{}
}

func (m *MainMemory) checkAddress(address uint32) error {
	if address >= MainMemorySize {
		return fmt.Errorf("memory access out of range: address %d >= %d", address, MainMemorySize)
	}
	return nil
}

// LoadWord sets a cell directly, bypassing the read/write pipeline. Used by
// the loader to install the constant pool, initial stack, and program image
// before a run begins.
func (m *MainMemory) LoadWord(address uint32, value Word) error {
	if err := m.checkAddress(address); err != nil {
		return err
	}
	m.cells[address] = value
	return nil
}

// PeekWord reads a cell directly, bypassing the read pipeline. Used by tests
// and the debugger to inspect memory without advancing the simulated clock.
func (m *MainMemory) PeekWord(address uint32) (Word, error) {
	if err := m.checkAddress(address); err != nil {
		return 0, err
	}
	return m.cells[address], nil
}

// Write performs an immediate, unbuffered write (MDR -> MAR) when enable is
// set.
func (m *MainMemory) Write(address uint32, value Word, enable bool) error {
	if !enable {
		return nil
	}
	if err := m.checkAddress(address); err != nil {
		return err
	}
	m.cells[address] = value
	m.AccessCount++
	return nil
}

// RequestDataRead enqueues a data-path read (MAR -> MDR) when enable is set.
func (m *MainMemory) RequestDataRead(address uint32, enable bool) error {
	if !enable {
		return nil
	}
	if err := m.checkAddress(address); err != nil {
		return err
	}
	m.dataReads = append(m.dataReads, pendingRead{state: ReadInitialized, address: address})
	return nil
}

// RequestFetchRead enqueues an instruction-fetch read (PC -> MBR) when
// enable is set.
func (m *MainMemory) RequestFetchRead(address uint32, enable bool) error {
	if !enable {
		return nil
	}
	if err := m.checkAddress(address); err != nil {
		return err
	}
	m.fetchReads = append(m.fetchReads, pendingRead{state: ReadInitialized, address: address})
	return nil
}

// LatchReadResults advances every pending request by one cycle: requests
// InProgress produce a word on their output port and retire; requests
// Initialized this cycle advance to InProgress. It must run first in
// step(), before new requests are posted for the current cycle, so that a
// word requested in cycle k is visible in cycle k+2, not k+1.
func (m *MainMemory) LatchReadResults() (dataWord Word, dataReady bool, fetchWord Word, fetchReady bool, err error) {
	m.dataReads, dataWord, dataReady, err = advanceQueue(m, m.dataReads)
	if err != nil {
		return
	}
	m.fetchReads, fetchWord, fetchReady, err = advanceQueue(m, m.fetchReads)
	return
}

func advanceQueue(m *MainMemory, queue []pendingRead) ([]pendingRead, Word, bool, error) {
	var word Word
	var ready bool

	next := queue[:0]
	for _, r := range queue {
		switch r.state {
		case ReadInProgress:
			v, err := m.PeekWord(r.address)
			if err != nil {
				return nil, 0, false, err
			}
			word = v
			ready = true
			m.AccessCount++
			// retires: not re-appended
		case ReadInitialized:
			r.state = ReadInProgress
			next = append(next, r)
		}
	}
	return next, word, ready, nil
}

// Reset clears all memory cells and pending read state.
func (m *MainMemory) Reset() {
	for i := range m.cells {
		m.cells[i] = 0
	}
	m.dataReads = nil
	m.fetchReads = nil
	m.AccessCount = 0
}
