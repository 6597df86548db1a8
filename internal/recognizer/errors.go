package recognizer

import (
	"errors"
	"fmt"
)

// Code classifies recognizer and transport failures.
type Code string

const (
	CodeConnectionTimeout   Code = "connection_timeout"
	CodeConnectionRejected  Code = "connection_rejected"
	CodeTokenUnavailable    Code = "token_unavailable"
	CodeTransportSendFailed Code = "transport_send_failed"
	CodeQuotaExceeded       Code = "quota_exceeded"
	CodeMalformedMessage    Code = "malformed_message"
	CodeUnknown             Code = "unknown"
)

// Error is a classified recognizer failure. Quota errors are recoverable:
// live transcription is disabled but audio capture may continue.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds a classified error.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Recoverable reports whether the session can stay alive after this error.
func (e *Error) Recoverable() bool {
	return e.Code == CodeQuotaExceeded
}

// CodeOf extracts the classification from any error chain, defaulting to
// CodeUnknown for unclassified errors.
func CodeOf(err error) Code {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return CodeUnknown
}
