// Package apperr classifies pipeline failures so callers can decide between
// surfacing, retrying and falling back.
package apperr

import (
	"errors"
	"fmt"
)

// Kind represents the classification of a pipeline error.
type Kind int

const (
	Unknown Kind = iota
	PermissionDenied
	DeviceUnavailable
	CaptureFailed
	UnsupportedEncoding
	StorageError
	FilterEngineFatal
	Busy
	NotReady
	NotFound
	InvalidArgument
)

// String returns a human-readable representation of the kind.
func (k Kind) String() string {
	switch k {
	case PermissionDenied:
		return "permission_denied"
	case DeviceUnavailable:
		return "device_unavailable"
	case CaptureFailed:
		return "capture_failed"
	case UnsupportedEncoding:
		return "unsupported_encoding"
	case StorageError:
		return "storage_error"
	case FilterEngineFatal:
		return "filter_engine_fatal"
	case Busy:
		return "busy"
	case NotReady:
		return "not_ready"
	case NotFound:
		return "not_found"
	case InvalidArgument:
		return "invalid_argument"
	default:
		return "unknown"
	}
}

// Error is a classified error. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, apperr.E(apperr.Busy)) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New wraps err with a kind and operation name.
func New(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// E returns a bare sentinel of the given kind, for errors.Is comparisons.
func E(kind Kind) error {
	return &Error{Kind: kind}
}

// KindOf returns the kind of the outermost classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
