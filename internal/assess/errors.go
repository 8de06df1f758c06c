package assess

import (
	"errors"
	"fmt"
)

// ErrorCode partitions failures by how callers may react to them: validation
// and auth errors are surfaced locally, network errors are safe to retry,
// business rejections (attempts exhausted, already submitted) are terminal
// for the attempt.
type ErrorCode string

const (
	CodeValidation        ErrorCode = "validation"
	CodeAuth              ErrorCode = "auth"
	CodeNotFound          ErrorCode = "not_found"
	CodeNetwork           ErrorCode = "network"
	CodeAttemptsExhausted ErrorCode = "attempts_exhausted"
	CodeAlreadySubmitted  ErrorCode = "already_submitted"
	CodeInternal          ErrorCode = "internal"
)

type Error struct {
	Code    ErrorCode
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

func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func WrapError(code ErrorCode, err error, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf extracts the taxonomy code from err, or CodeInternal when err is
// not a taxonomy error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

func IsCode(err error, code ErrorCode) bool { return CodeOf(err) == code }

// Retryable reports whether a failed operation may be safely re-issued.
// Only transport failures qualify; business rejections must not be retried.
func Retryable(err error) bool { return CodeOf(err) == CodeNetwork }
