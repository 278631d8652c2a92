// Package errors defines the error taxonomy shared across the frame-graph
// engine: construction errors (surfaced synchronously to the caller that
// built a node), runtime errors (propagated through the scheduler to every
// waiter on a frame), and a panic helper (ProgrammerError) for the
// programmer-error contract violations.
package errors

import (
	stdErrors "errors"
	"fmt"
)

// graphMarker is implemented by every error type native to this taxonomy so
// IsGraphError can classify wrapped errors regardless of their concrete type.
type graphMarker interface {
	error
	isGraphError()
}

// ConstructionError reports an invalid filter argument or incompatible clip
// format discovered while building a node. Construction errors are returned
// synchronously; the caller must release any upstream references it had
// already acquired.
type ConstructionError struct {
	Filter string // filter name being constructed, e.g. "Expr", "BoxBlur"
	Op     string // the specific check that failed, e.g. "format.subsampling"
	Err    error
}

func (e *ConstructionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: construction error: %s", e.Filter, e.Op)
	}
	return fmt.Sprintf("%s: construction error: %s: %v", e.Filter, e.Op, e.Err)
}
func (e *ConstructionError) Unwrap() error { return e.Err }
func (e *ConstructionError) isGraphError() {}

// RuntimeError reports a failure discovered while evaluating a node's
// getter: an upstream error propagated through, or an expected invariant
// violated at request time. Carries enough context (frame index, plane) to
// locate the fault per spec §7.
type RuntimeError struct {
	Filter string
	Frame  int
	Plane  int // -1 if not plane-specific
	Op     string
	Err    error
}

func (e *RuntimeError) Error() string {
	loc := fmt.Sprintf("frame %d", e.Frame)
	if e.Plane >= 0 {
		loc = fmt.Sprintf("frame %d plane %d", e.Frame, e.Plane)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: runtime error at %s: %s", e.Filter, loc, e.Op)
	}
	return fmt.Sprintf("%s: runtime error at %s: %s: %v", e.Filter, loc, e.Op, e.Err)
}
func (e *RuntimeError) Unwrap() error { return e.Err }
func (e *RuntimeError) isGraphError() {}

// GraphError reports a structural problem with the node graph itself, such
// as a cycle detected at construction. The frame indices a consumer
// requests are not checked against its declared dependency modes.
type GraphError struct {
	Op  string
	Err error
}

func (e *GraphError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("graph error: %s", e.Op)
	}
	return fmt.Sprintf("graph error: %s: %v", e.Op, e.Err)
}
func (e *GraphError) Unwrap() error { return e.Err }
func (e *GraphError) isGraphError() {}

// TypeMismatch is returned by the property map when Append targets a key
// whose existing element type differs from the value being appended.
type TypeMismatch struct {
	Key      string
	Existing string
	Got      string
}

func (e *TypeMismatch) Error() string {
	return fmt.Sprintf("property %q: type mismatch: existing=%s got=%s", e.Key, e.Existing, e.Got)
}
func (e *TypeMismatch) isGraphError() {}

// OutOfRange is returned by the property map when an index passed to Get is
// outside [0, num_elements(key)).
type OutOfRange struct {
	Key   string
	Index int
	Len   int
}

func (e *OutOfRange) Error() string {
	return fmt.Sprintf("property %q: index %d out of range [0,%d)", e.Key, e.Index, e.Len)
}
func (e *OutOfRange) isGraphError() {}

// IsGraphError returns true if err is (or wraps) any error type native to
// this taxonomy.
func IsGraphError(err error) bool {
	if err == nil {
		return false
	}
	var gm graphMarker
	return stdErrors.As(err, &gm)
}

// IsConstructionError reports whether err is (or wraps) a ConstructionError.
func IsConstructionError(err error) bool {
	var ce *ConstructionError
	return stdErrors.As(err, &ce)
}

// IsRuntimeError reports whether err is (or wraps) a RuntimeError.
func IsRuntimeError(err error) bool {
	var re *RuntimeError
	return stdErrors.As(err, &re)
}

// Constructors (encourage contextual wrapping with %w when used by callers).
func NewConstructionError(filter, op string, cause error) error {
	return &ConstructionError{Filter: filter, Op: op, Err: cause}
}

func NewRuntimeError(filter string, frame, plane int, op string, cause error) error {
	return &RuntimeError{Filter: filter, Frame: frame, Plane: plane, Op: op, Err: cause}
}

func NewGraphError(op string, cause error) error { return &GraphError{Op: op, Err: cause} }

func NewTypeMismatch(key, existing, got string) error {
	return &TypeMismatch{Key: key, Existing: existing, Got: got}
}

func NewOutOfRange(key string, index, length int) error {
	return &OutOfRange{Key: key, Index: index, Len: length}
}

// ProgrammerError panics to signal a contract violation the spec classifies
// as undefined-behavior-in-release / abort-in-debug: writing to a frame held
// shared, requesting a frame from an undeclared dependency, or calling
// fetch for a node that was never requested. The core always builds in
// "debug" mode for these — there is no release-mode silent-UB path here.
func ProgrammerError(op string, detail string) {
	panic(fmt.Sprintf("frame-graph contract violation: %s: %s", op, detail))
}

// Usage pattern example:
//
//	if err := checkFormat(fmt); err != nil {
//	    return nil, NewConstructionError("Expr", "format.match", err)
//	}
//
// Keep layering context with fmt.Errorf("...: %w", err) before wrapping.
