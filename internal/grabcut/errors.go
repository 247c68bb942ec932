package grabcut

import (
	"errors"
	"fmt"
)

// ErrorKind classifies segmentation failures.
type ErrorKind int

const (
	// InvalidInput covers bad dimensions, labels, rectangles and modes.
	InvalidInput ErrorKind = iota + 1
	// DegenerateModel means a colour model could not be fitted at all.
	DegenerateModel
	// SolverFailure means the min-cut solver rejected the network or failed.
	SolverFailure
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidInput:
		return "invalid input"
	case DegenerateModel:
		return "degenerate model"
	case SolverFailure:
		return "solver failure"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is returned by Engine.Run. Err carries the underlying cause so
// errors.Is works against the sentinels of the lower packages.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("grabcut %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
