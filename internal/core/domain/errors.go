package domain

import (
	"errors"
	"fmt"
)

// DomainError is an error with a stable code.
//
// Codes take the form WS-<AREA>-<NNNN>. Two DomainErrors match under
// errors.Is when their codes are equal, so sentinel values below can be
// compared against wrapped, detailed copies.
type DomainError struct {
	Code    string
	Message string
	Details string
	Cause   error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches DomainErrors by code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a DomainError.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// WithDetails returns a copy carrying details.
func (e *DomainError) WithDetails(format string, args ...any) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: fmt.Sprintf(format, args...),
		Cause:   e.Cause,
	}
}

// Wrap returns a copy wrapping cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError reports whether err is a DomainError with the given code.
// An empty code matches any DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if !errors.As(err, &de) {
		return false
	}
	return code == "" || de.Code == code
}

// GetErrorCode returns the code of the first DomainError in err's chain.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// Archive errors (ARCH).
var (
	ErrIncompatibleVersion = NewDomainError("WS-ARCH-4001", "incompatible archive version")
	ErrMalformedArchive    = NewDomainError("WS-ARCH-4002", "malformed archive data")
	ErrUnsupportedField    = NewDomainError("WS-ARCH-4003", "unsupported persisted field type")
	ErrUnknownClass        = NewDomainError("WS-ARCH-4040", "no decoder registered for class")
)

// Slot errors (SLOT).
var (
	ErrSlotNotFound  = NewDomainError("WS-SLOT-4040", "slot not found")
	ErrSlotCorrupted = NewDomainError("WS-SLOT-4220", "slot file corrupted")
	ErrInvalidSlot   = NewDomainError("WS-SLOT-4000", "invalid slot name")
)

// Request errors (REQ).
var (
	ErrNoOwner      = NewDomainError("WS-REQ-4000", "request has no owning context")
	ErrInvalidShard = NewDomainError("WS-REQ-4001", "invalid shard range")
	ErrRateLimited  = NewDomainError("WS-REQ-4290", "save request throttled")
	ErrClosed       = NewDomainError("WS-REQ-5030", "manager closed")
)
