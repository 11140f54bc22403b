package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in the dispatch pipeline the error occurred
type Phase string

const (
	PhaseRegister Phase = "register" // identity registration
	PhaseDispatch Phase = "dispatch" // multiplexer invocation
	PhaseMarshal  Phase = "marshal"  // boundary value conversion
	PhaseGlue     Phase = "glue"     // trampoline module synthesis
	PhaseRuntime  Phase = "runtime"  // guest loading and calls
)

// Kind categorizes the error
type Kind string

const (
	KindExhausted         Kind = "exhausted"          // identity space full
	KindClosed            Kind = "closed"             // registry or bridge closed
	KindInvalidInput      Kind = "invalid_input"      // bad argument from the host side
	KindSignatureMismatch Kind = "signature_mismatch" // slot shape disagrees with bound signature
	KindNotFound          Kind = "not_found"          // missing export or signature code
	KindProtocol          Kind = "protocol"           // boundary contract violation
	KindInstantiation     Kind = "instantiation"      // wazero module instantiation failed
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Cause  error
	Phase  Phase
	Kind   Kind
	Code   string // signature code, when relevant
	Slot   string // trampoline slot name, when relevant
	Detail string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Slot != "" {
		b.WriteString(" in slot ")
		b.WriteString(e.Slot)
	}
	if e.Code != "" {
		b.WriteString(" (signature ")
		b.WriteString(e.Code)
		b.WriteByte(')')
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by phase and kind
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// IsKind reports whether err is (or wraps) an *Error of the given kind
func IsKind(err error, kind Kind) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Convenience constructors for common error patterns

// Exhausted creates an identity-space exhaustion error
func Exhausted(capacity int) *Error {
	return &Error{
		Phase:  PhaseRegister,
		Kind:   KindExhausted,
		Detail: fmt.Sprintf("identity space exhausted (capacity %d)", capacity),
	}
}

// Closed creates an error for operations against a closed component
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: what + " is closed",
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// SignatureMismatch creates an error for a slot whose packed shape does not
// equal its bound signature
func SignatureMismatch(slot, code, want, got string) *Error {
	return &Error{
		Phase:  PhaseGlue,
		Kind:   KindSignatureMismatch,
		Slot:   slot,
		Code:   code,
		Detail: fmt.Sprintf("packed params %q do not match signature params %q", got, want),
	}
}

// NotFound creates a missing export or signature error
func NotFound(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: what + " not found",
	}
}

// Protocol creates a boundary contract violation error.
// These are programming errors, never recoverable conditions.
func Protocol(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindProtocol,
		Detail: detail,
	}
}

// Instantiation wraps a wazero instantiation failure
func Instantiation(cause error, what string) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindInstantiation,
		Cause:  cause,
		Detail: what,
	}
}

// Wrap attaches phase and kind to an underlying error
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Cause:  cause,
		Detail: detail,
	}
}
