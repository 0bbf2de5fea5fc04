package convert

import (
	"context"
	"fmt"
)

// CodeConversionFailed is surfaced when the PDF library cannot process a
// document that passed the earlier size and magic-byte checks.
const CodeConversionFailed = "CONVERSION_FAILED"

// Result is a completed PDF to Markdown conversion.
type Result struct {
	Markdown  string
	PageCount int
}

// Converter turns PDF bytes into Markdown.
type Converter interface {
	Convert(ctx context.Context, pdf []byte) (*Result, error)
}

// Error is a conversion failure with a stable machine code.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", CodeConversionFailed, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", CodeConversionFailed, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorCode returns the machine-readable code for the API error envelope.
func (e *Error) ErrorCode() string { return CodeConversionFailed }
