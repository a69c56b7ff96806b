// Package routererr defines the error taxonomy shared by every component:
// a fixed set of Kind values plus a RouterError wrapper that carries one of
// them alongside a message and an optional cause.
package routererr

import (
	"errors"
	"fmt"
)

// Kind is one of the fixed error categories every component-facing API
// reports through. Callers branch on Kind, never on message text.
type Kind string

const (
	InvalidArgument Kind = "INVALID_ARGUMENT"
	NotFound        Kind = "NOT_FOUND"
	AlreadyExists   Kind = "ALREADY_EXISTS"
	CompileError    Kind = "COMPILE_ERROR"
	RuntimeFailure  Kind = "RUNTIME_FAILURE"
	IOError         Kind = "IO_ERROR"
	Timeout         Kind = "TIMEOUT"
	ShuttingDown    Kind = "SHUTTING_DOWN"
)

// RouterError is the concrete error type returned by admin-facing APIs
// (IRouterAPI, ITesterAPI, Store). Kind lets callers branch without string
// matching; Err, when present, is the underlying cause and is reachable via
// errors.Unwrap/errors.Is/errors.As.
type RouterError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *RouterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *RouterError) Unwrap() error { return e.Err }

// New builds a RouterError with no wrapped cause.
func New(kind Kind, message string) *RouterError {
	return &RouterError{Kind: kind, Message: message}
}

// Wrap builds a RouterError carrying err as its cause.
func Wrap(kind Kind, message string, err error) *RouterError {
	return &RouterError{Kind: kind, Message: message, Err: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(kind Kind, err error, format string, args ...any) *RouterError {
	return &RouterError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *RouterError, otherwise returns RuntimeFailure as the conservative default.
func KindOf(err error) Kind {
	var re *RouterError
	if errors.As(err, &re) {
		return re.Kind
	}
	return RuntimeFailure
}

// Is reports whether err's Kind matches k.
func Is(err error, k Kind) bool {
	var re *RouterError
	if errors.As(err, &re) {
		return re.Kind == k
	}
	return false
}

var (
	ErrNotFound      = New(NotFound, "resource not found")
	ErrAlreadyExists = New(AlreadyExists, "resource already exists")
	ErrShuttingDown  = New(ShuttingDown, "orchestrator is shutting down")
	ErrTimeout       = New(Timeout, "operation timed out")
)
