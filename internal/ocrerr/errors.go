// Package ocrerr defines the error taxonomy shared by the engine packages.
//
// Internal packages return plain wrapped errors. Errors that cross into the
// engine are tagged with a Kind so the boundary package can translate them
// into a status code without string matching.
package ocrerr

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	ErrEmptyDictionary    = errors.New("dictionary has no entries")
	ErrInvalidModel       = errors.New("invalid model document")
	ErrClassMismatch      = errors.New("recognition classes do not match dictionary")
	ErrImageDecode        = errors.New("image could not be decoded")
	ErrEngineClosed       = errors.New("engine is closed")
	ErrBackendUnavailable = errors.New("recognition backend unavailable")
)

// Kind classifies where in the pipeline a failure happened.
type Kind int

const (
	KindUnknown Kind = iota
	KindEngineCreation
	KindImageLoad
	KindDetection
	KindRecognition
	KindHandle
	KindDestroy
)

func (k Kind) String() string {
	switch k {
	case KindEngineCreation:
		return "engine_creation"
	case KindImageLoad:
		return "image_load"
	case KindDetection:
		return "detection"
	case KindRecognition:
		return "recognition"
	case KindHandle:
		return "handle"
	case KindDestroy:
		return "destroy"
	default:
		return "unknown"
	}
}

// Error represents an OCR pipeline failure with context
type Error struct {
	Op      string // operation that failed
	Kind    Kind
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports a match against another *Error of the same Kind, so callers can
// test with errors.Is(err, &ocrerr.Error{Kind: ocrerr.KindDetection}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// New creates a new Error
func New(op string, kind Kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Wrap wraps an error with a kind and additional details. A nil err yields nil.
func Wrap(err error, op string, kind Kind, details string) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err, Details: details}
}

// KindOf returns the Kind of the outermost *Error in err's chain, or
// KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
