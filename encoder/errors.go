package encoder

import (
	"fmt"

	"github.com/mic1lab/mic1ijvm/parser"
)

// EncodingError provides detailed context for encoding failures: the
// instruction's source location plus the underlying error message.
type EncodingError struct {
	Instruction *parser.Instruction
	Message     string
	Wrapped     error
}

func (e *EncodingError) Error() string {
	if e.Instruction == nil {
		if e.Wrapped != nil {
			return fmt.Sprintf("encoding error: %s: %v", e.Message, e.Wrapped)
		}
		return fmt.Sprintf("encoding error: %s", e.Message)
	}

	pos := e.Instruction.Pos
	location := ""
	if pos.Filename != "" {
		location = fmt.Sprintf("%s:%d:%d: ", pos.Filename, pos.Line, pos.Column)
	}

	if e.Wrapped != nil {
		return fmt.Sprintf("%s%s: %v", location, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s%s", location, e.Message)
}

// Unwrap supports errors.Is/As.
func (e *EncodingError) Unwrap() error {
	return e.Wrapped
}

// NewEncodingError creates a new EncodingError with instruction context.
func NewEncodingError(inst *parser.Instruction, message string) *EncodingError {
	return &EncodingError{Instruction: inst, Message: message}
}

// WrapEncodingError wraps err with instruction context, leaving an existing
// EncodingError untouched and passing nil through unchanged.
func WrapEncodingError(inst *parser.Instruction, err error) error {
	if err == nil {
		return nil
	}
	if ee, ok := err.(*EncodingError); ok {
		return ee
	}
	return &EncodingError{Instruction: inst, Message: "failed to encode instruction", Wrapped: err}
}
