// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for tsnet.

package api

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeInvalidState
	ErrCodeResourceExhausted
	ErrCodeDuplicateKey
	ErrCodeNotFound
	ErrCodeSyscall
	ErrCodeProtocolViolation
	ErrCodeNotSupported
)

var codeNames = map[ErrorCode]string{
	ErrCodeOK:                "ok",
	ErrCodeInvalidArgument:   "invalid argument",
	ErrCodeInvalidState:      "invalid state",
	ErrCodeResourceExhausted: "resource exhausted",
	ErrCodeDuplicateKey:      "duplicate key",
	ErrCodeNotFound:          "not found",
	ErrCodeSyscall:           "syscall failure",
	ErrCodeProtocolViolation: "protocol invariant violation",
	ErrCodeNotSupported:      "not supported",
}

func (c ErrorCode) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Common errors used across the library. They match any *Error with the same
// code under errors.Is.
var (
	ErrInvalidArgument   = &Error{Code: ErrCodeInvalidArgument, Message: "invalid argument"}
	ErrInvalidState      = &Error{Code: ErrCodeInvalidState, Message: "invalid state"}
	ErrResourceExhausted = &Error{Code: ErrCodeResourceExhausted, Message: "resource exhausted"}
	ErrDuplicateKey      = &Error{Code: ErrCodeDuplicateKey, Message: "duplicate key"}
	ErrNotFound          = &Error{Code: ErrCodeNotFound, Message: "resource not found"}
	ErrProtocolViolation = &Error{Code: ErrCodeProtocolViolation, Message: "protocol invariant violation"}
	ErrNotSupported      = &Error{Code: ErrCodeNotSupported, Message: "operation not supported"}
)

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Op      string
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Message != "" {
		b.WriteString(e.Message)
	} else {
		b.WriteString(e.Code.String())
	}
	if len(e.Context) > 0 {
		fmt.Fprintf(&b, " (context: %+v)", e.Context)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes the underlying cause, usually a syscall errno.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports code equality so callers can match against the sentinels above.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new structured error.
func NewError(code ErrorCode, op, message string) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		Message: message,
	}
}

// SyscallError wraps an errno returned by name while performing op.
func SyscallError(op, name string, err error) *Error {
	return &Error{
		Code:    ErrCodeSyscall,
		Op:      op,
		Message: name + " failed",
		Context: map[string]any{"syscall": name},
		Err:     err,
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Wrap attaches a cause.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// CodeOf extracts the code of the first *Error in err's chain.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrCodeOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeSyscall
}
