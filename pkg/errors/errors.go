package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// OptionError reports a command-line option that failed validation.
type OptionError struct {
	Code    string
	Option  string
	Value   string
	Message string
	Valid   []string
}

func (e *OptionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "invalid value for --%s", e.Option)
	if e.Value != "" {
		fmt.Fprintf(&b, ": %q", e.Value)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Valid) > 0 {
		fmt.Fprintf(&b, " (valid: %s)", strings.Join(e.Valid, ", "))
	}
	return b.String()
}

const (
	ErrCodeUnknownValue   = "UNKNOWN_VALUE"
	ErrCodeMalformedValue = "MALFORMED_VALUE"
	ErrCodeOutOfRange     = "OUT_OF_RANGE"
	ErrCodeInconsistent   = "INCONSISTENT_OPTIONS"
)

func ErrUnknownValue(option, value, what string, valid []string) *OptionError {
	return &OptionError{
		Code:    ErrCodeUnknownValue,
		Option:  option,
		Value:   value,
		Message: "unknown " + what,
		Valid:   valid,
	}
}

func ErrMalformedValue(option, value, msg string) *OptionError {
	return &OptionError{
		Code:    ErrCodeMalformedValue,
		Option:  option,
		Value:   value,
		Message: msg,
	}
}

func ErrOutOfRange(option, value, msg string, valid []string) *OptionError {
	return &OptionError{
		Code:    ErrCodeOutOfRange,
		Option:  option,
		Value:   value,
		Message: msg,
		Valid:   valid,
	}
}

func ErrInconsistent(option, value, msg string) *OptionError {
	return &OptionError{
		Code:    ErrCodeInconsistent,
		Option:  option,
		Value:   value,
		Message: msg,
	}
}

// FetchError reports a failure after validation: retrieval or writing the result.
type FetchError struct {
	Code    string
	Message string
	Cause   error
}

func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *FetchError) Unwrap() error { return e.Cause }

const (
	ErrCodeFetchFailed     = "FETCH_FAILED"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeInvalidDocument = "INVALID_DOCUMENT"
	ErrCodeWriteFailed     = "WRITE_FAILED"
	ErrCodeTimeout         = "TIMEOUT"
	ErrCodeCancelled       = "CANCELLED"
)

func ErrFetchFailed(msg string, cause error) *FetchError {
	if IsContextError(cause) {
		code := ErrCodeCancelled
		if errors.Is(cause, context.DeadlineExceeded) {
			code = ErrCodeTimeout
		}
		return &FetchError{Code: code, Message: msg, Cause: cause}
	}
	return &FetchError{
		Code:    ErrCodeFetchFailed,
		Message: msg,
		Cause:   cause,
	}
}

func ErrNotFound(msg string) *FetchError {
	return &FetchError{
		Code:    ErrCodeNotFound,
		Message: msg,
	}
}

func ErrInvalidDocument(msg string, cause error) *FetchError {
	return &FetchError{
		Code:    ErrCodeInvalidDocument,
		Message: msg,
		Cause:   cause,
	}
}

func ErrWriteFailed(path string, cause error) *FetchError {
	return &FetchError{
		Code:    ErrCodeWriteFailed,
		Message: "write " + path,
		Cause:   cause,
	}
}

// IsOptionError reports whether err is, or wraps, an *OptionError.
func IsOptionError(err error) bool {
	var oe *OptionError
	return errors.As(err, &oe)
}

// CodeOf returns the code of the first OptionError or FetchError in err's chain.
func CodeOf(err error) string {
	var oe *OptionError
	if errors.As(err, &oe) {
		return oe.Code
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
