package topk

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/born-ml/topk/internal/tensor"
)

// Sentinel errors. Typed errors below match them with errors.Is.
var (
	ErrShape = errors.New("topk: shape error")
	ErrIndex = errors.New("topk: index error")
	ErrDType = errors.New("topk: unsupported dtype")
)

// ShapeError reports malformed or inconsistent tensor shapes. It is raised
// before any data is touched, so a failed call performs no partial work.
type ShapeError struct {
	Op     string       // Operation that rejected the shape ("reshape", "forward", "backward")
	Arg    string       // Argument name ("input", "scores", ...)
	Shape  tensor.Shape // Offending shape
	Reason string
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("topk %s: %s shape %v: %s", e.Op, e.Arg, e.Shape, e.Reason)
}

// Is matches ErrShape.
func (e *ShapeError) Is(target error) bool {
	return target == ErrShape
}

// IndexError reports a recorded index outside [0, Bound) during backward.
// It means forward and backward were not paired correctly upstream.
type IndexError struct {
	Rank  int     // Position in the index tensor
	Value float64 // Offending value as read from the index tensor
	Bound int     // Candidate count N0
}

// Error implements the error interface.
func (e *IndexError) Error() string {
	return fmt.Sprintf("topk backward: index %v at rank %d out of range [0, %d)", e.Value, e.Rank, e.Bound)
}

// Is matches ErrIndex.
func (e *IndexError) Is(target error) bool {
	return target == ErrIndex
}

// newShapeError wraps a ShapeError with a stack trace.
func newShapeError(op, arg string, shape tensor.Shape, format string, args ...any) error {
	return errors.WithStack(&ShapeError{
		Op:     op,
		Arg:    arg,
		Shape:  shape.Clone(),
		Reason: fmt.Sprintf(format, args...),
	})
}

// dtypeError reports an unsupported dtype as a shape-time failure that also
// matches ErrDType.
func dtypeError(op, arg string, shape tensor.Shape, dtype tensor.DataType) error {
	return newDTypeError(op, arg, shape, "unsupported dtype %s", dtype)
}

func newDTypeError(op, arg string, shape tensor.Shape, format string, args ...any) error {
	return errors.WithStack(&dtypeShapeError{ShapeError{
		Op:     op,
		Arg:    arg,
		Shape:  shape.Clone(),
		Reason: fmt.Sprintf(format, args...),
	}})
}

type dtypeShapeError struct {
	ShapeError
}

// Is matches both ErrShape and ErrDType.
func (e *dtypeShapeError) Is(target error) bool {
	return target == ErrShape || target == ErrDType
}

// As exposes the embedded ShapeError to errors.As.
func (e *dtypeShapeError) As(target any) bool {
	if p, ok := target.(**ShapeError); ok {
		*p = &e.ShapeError
		return true
	}
	return false
}
