package debugger

// Memory Display Constants
const (
	// MemoryDisplayRows is the number of rows to show in the memory hex dump view
	MemoryDisplayRows = 16

	// MemoryDisplayBytesPerRow is the number of memory cells (32-bit words,
	// one per IJVM byte loaded) displayed per row
	MemoryDisplayBytesPerRow = 8
)

// Stack Display Constants
const (
	// StackDisplayWords is the number of 32-bit words to show in the stack view
	StackDisplayWords = 16

	// StackInspectionMaxOffset is the number of words below SP the "stack"
	// debugger command dumps
	StackInspectionMaxOffset = 8
)
