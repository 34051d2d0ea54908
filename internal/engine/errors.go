package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrUnavailable means the engine is absent or failed to initialise.
var ErrUnavailable = errors.New("media engine unavailable")

// Kind classifies a boundary failure.
type Kind int

const (
	// KindTransient is a single failed call; local state stays authoritative.
	KindTransient Kind = iota
	// KindUnavailable means the engine cannot be reached at all.
	KindUnavailable
	// KindTimeout is a call that did not settle in time; handled as transient.
	KindTimeout
	// KindRejected is an explicit refusal by the engine.
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindUnavailable:
		return "unavailable"
	case KindTimeout:
		return "timeout"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Error is the failure half of every boundary call.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("engine %s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap classifies err for op. Nil stays nil and an existing *Error keeps its kind.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var ee *Error
	if errors.As(err, &ee) {
		return err
	}
	return &Error{Op: op, Kind: classify(err), Err: err}
}

// Errorf builds an *Error of the given kind.
func Errorf(op string, kind Kind, format string, args ...any) error {
	return &Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the kind of err, classifying foreign errors on the way.
func KindOf(err error) Kind {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return classify(err)
}

// IsEngineError reports whether err came from the engine boundary.
func IsEngineError(err error) bool {
	var ee *Error
	return errors.As(err, &ee) || errors.Is(err, ErrUnavailable)
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return KindTimeout
	default:
		return KindTransient
	}
}
