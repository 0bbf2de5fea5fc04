package fetch

import "fmt"

// Error codes surfaced to API clients when document acquisition fails.
const (
	CodeInvalidURL    = "INVALID_URL"
	CodeSSRFBlocked   = "SSRF_BLOCKED"
	CodeFileTooLarge  = "FILE_TOO_LARGE"
	CodeInvalidPDF    = "INVALID_PDF"
	CodeInvalidBase64 = "INVALID_BASE64"
	CodeFetchTimeout  = "URL_FETCH_TIMEOUT"
	CodeFetchFailed   = "URL_FETCH_FAILED"
)

// Error is a client-facing acquisition failure with a stable machine code.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrorCode returns the machine-readable code for the API error envelope.
func (e *Error) ErrorCode() string { return e.Code }

func newError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func wrapError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}
