// Package vmerr implements the error taxonomy of spec §7, grounded on the
// teacher's pkg/errors: a common interface (there PaseratiError, here
// Error) implemented by one concrete type per kind, each giving its own
// Kind() and formatted Error() string.
package vmerr

import (
	"fmt"

	"luacore/pkg/value"
)

// Error is implemented by every VM error kind (§7). Unlike the teacher's
// PaseratiError (which carries a lexer/parser Position), VM-core errors
// carry a Value — per §3.1/§7 "errors are values" — since `error()` can
// raise any Lua value, not just strings.
type Error interface {
	error
	Kind() string
	Recoverable() bool
	// AsValue returns the Lua value this error should appear as to
	// pcall/xpcall (§4.G protected call).
	AsValue() value.Value
}

type baseError struct {
	kind        string
	msg         string
	recoverable bool
	asValue     value.Value
	hasValue    bool
}

func (e *baseError) Error() string     { return e.msg }
func (e *baseError) Kind() string      { return e.kind }
func (e *baseError) Recoverable() bool { return e.recoverable }
func (e *baseError) AsValue() value.Value {
	if e.hasValue {
		return e.asValue
	}
	return value.Nil
}

func newKind(kind, msg string, recoverable bool) *baseError {
	return &baseError{kind: kind, msg: msg, recoverable: recoverable}
}

// TypeError: arithmetic, indexing, or calling a non-callable (§7).
type TypeError struct{ *baseError }

func NewTypeError(format string, args ...any) *TypeError {
	return &TypeError{newKind("TypeError", fmt.Sprintf(format, args...), true)}
}

// ArityError: host function argument-count check failure.
type ArityError struct{ *baseError }

func NewArityError(format string, args ...any) *ArityError {
	return &ArityError{newKind("ArityError", fmt.Sprintf(format, args...), true)}
}

// StackOverflowError: stack growth beyond max, or frame count beyond max.
type StackOverflowError struct{ *baseError }

func NewStackOverflowError(msg string) *StackOverflowError {
	return &StackOverflowError{newKind("StackOverflow", msg, true)}
}

// StackUnderflowError: pop past the bottom of the current frame (§4.B).
type StackUnderflowError struct{ *baseError }

func NewStackUnderflowError(msg string) *StackUnderflowError {
	return &StackUnderflowError{newKind("StackUnderflow", msg, true)}
}

// OutOfMemoryError: allocator failure after a full GC cycle.
type OutOfMemoryError struct{ *baseError }

func NewOutOfMemoryError() *OutOfMemoryError {
	return &OutOfMemoryError{newKind("OutOfMemory", "not enough memory", true)}
}

// RuntimeError: user-raised via error().
type RuntimeError struct{ *baseError }

func NewRuntimeError(v value.Value, msg string) *RuntimeError {
	e := &RuntimeError{newKind("RuntimeError", msg, true)}
	e.asValue = v
	e.hasValue = true
	return e
}

// CannotYieldAcrossHostBoundaryError: yield attempted from inside a host
// (native) call frame (§4.G, the "C-call boundary" rule).
type CannotYieldAcrossHostBoundaryError struct{ *baseError }

func NewCannotYieldAcrossHostBoundaryError() *CannotYieldAcrossHostBoundaryError {
	return &CannotYieldAcrossHostBoundaryError{newKind(
		"CannotYieldAcrossHostBoundary",
		"attempt to yield across a C-call boundary",
		true,
	)}
}

// InstructionBudgetExceededError: optional sandboxing hook (§4.F).
type InstructionBudgetExceededError struct{ *baseError }

func NewInstructionBudgetExceededError(budget int64) *InstructionBudgetExceededError {
	return &InstructionBudgetExceededError{newKind(
		"InstructionBudgetExceeded",
		fmt.Sprintf("instruction budget of %d exceeded", budget),
		true,
	)}
}

// InternalInvariantViolationError: a bug in the runtime; not recoverable
// by pcall, terminates the state (§7).
type InternalInvariantViolationError struct{ *baseError }

func NewInternalInvariantViolationError(format string, args ...any) *InternalInvariantViolationError {
	return &InternalInvariantViolationError{newKind(
		"InternalInvariantViolation",
		fmt.Sprintf(format, args...),
		false,
	)}
}
