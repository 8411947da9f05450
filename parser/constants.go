package parser

// Assembler limits
const (
	// MaxParams is the largest parameter list a .method block may declare.
	// IJVM's signed-byte local-variable offsets (1+j-(paramCount+1))
	// only stay in range for modestly sized methods; this is a generous
	// ceiling rather than a hard architectural limit.
	MaxParams = 64
)
