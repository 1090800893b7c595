// Package dberr implements the error taxonomy every layer of the page
// store reports through. It is named dberr rather than error so it doesn't
// shadow the builtin error identifier in every file that imports it, and is
// grounded on the teacher's pkg/error/error.go (DBError + Category +
// captured stack + Wrap), generalized to the four kinds the error handling
// design names instead of the teacher's original category set.
package dberr

import (
	"fmt"
	"runtime"
	"strings"
)

// Kind classifies a DBError by how the caller must respond to it.
type Kind int

const (
	// TxnAborted is raised on lock timeout. Always recoverable from the
	// caller's perspective: retry the transaction.
	TxnAborted Kind = iota

	// StorageFault is an I/O failure reading or writing a page or the log.
	// It is returned to the caller like the other kinds; no component exits
	// the process or switches the database to read-only on it.
	StorageFault

	// SchemaViolation covers mismatched tuple descriptors and similar
	// collaborator-side errors. Reported to the caller; does not itself
	// change transaction state.
	SchemaViolation

	// InvalidRequest is a programmer error: wrong tableId for a page, a
	// read beyond EOF, use of a closed iterator. Always surfaced.
	InvalidRequest
)

func (k Kind) String() string {
	switch k {
	case TxnAborted:
		return "TxnAborted"
	case StorageFault:
		return "StorageFault"
	case SchemaViolation:
		return "SchemaViolation"
	case InvalidRequest:
		return "InvalidRequest"
	default:
		return "Unknown"
	}
}

// DBError is a structured error carrying the kind that determines handling,
// the operation/component that raised it, an optional wrapped cause, and
// the stack captured at the point of creation.
type DBError struct {
	Kind      Kind
	Message   string
	Operation string
	Component string
	Cause     error
	Stack     []uintptr
}

// New creates a DBError of the given kind.
func New(kind Kind, operation, component, message string) *DBError {
	return &DBError{
		Kind:      kind,
		Message:   message,
		Operation: operation,
		Component: component,
		Stack:     captureStack(),
	}
}

// Wrap wraps an existing error as a DBError of the given kind. If err is
// already a DBError, it is enriched with operation/component (only where
// unset) and returned as-is rather than double-wrapped.
func Wrap(kind Kind, err error, operation, component string) *DBError {
	if err == nil {
		return nil
	}

	if dbErr, ok := err.(*DBError); ok {
		if dbErr.Operation == "" {
			dbErr.Operation = operation
		}
		if dbErr.Component == "" {
			dbErr.Component = component
		}
		return dbErr
	}

	return &DBError{
		Kind:      kind,
		Message:   err.Error(),
		Operation: operation,
		Component: component,
		Cause:     err,
		Stack:     captureStack(),
	}
}

// captureStack captures the current call stack, skipping the frames for
// captureStack itself and its caller (New/Wrap).
func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[0:n]
}

func (e *DBError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("[%s] %s", e.Kind, e.Message))

	if e.Operation != "" {
		b.WriteString(fmt.Sprintf(" (operation: %s", e.Operation))
		if e.Component != "" {
			b.WriteString(fmt.Sprintf(", component: %s", e.Component))
		}
		b.WriteString(")")
	}

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(" caused by: %v", e.Cause))
	}

	return b.String()
}

func (e *DBError) Unwrap() error {
	return e.Cause
}

// FormatStack returns a human-readable stack trace of the point where the
// error was created.
func (e *DBError) FormatStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var b strings.Builder
	frames := runtime.CallersFrames(e.Stack)

	b.WriteString("Stack trace:\n")
	for {
		f, more := frames.Next()
		b.WriteString(fmt.Sprintf("  %s\n    %s:%d\n", f.Function, f.File, f.Line))
		if !more {
			break
		}
	}

	return b.String()
}

// Is reports whether err is a DBError of the given kind.
func Is(err error, kind Kind) bool {
	dbErr, ok := err.(*DBError)
	return ok && dbErr.Kind == kind
}
