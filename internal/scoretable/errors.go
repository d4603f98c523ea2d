package scoretable

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a Load failure, surfaced to callers as
// a distinct identifier rather than an opaque error string.
type Kind int

const (
	KindFileNotFound Kind = iota
	KindFormatInvalid
	KindEmpty
)

func (k Kind) String() string {
	switch k {
	case KindFileNotFound:
		return "FileNotFound"
	case KindFormatInvalid:
		return "FormatInvalid"
	case KindEmpty:
		return "Empty"
	default:
		return "Unknown"
	}
}

// LoadError wraps a Load failure with its Kind so callers can branch on
// the error kind without string matching.
type LoadError struct {
	Kind Kind
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scoretable: %s: %s: %v", e.Kind, e.Path, e.Err)
	}
	return fmt.Sprintf("scoretable: %s: %s", e.Kind, e.Path)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func newLoadError(kind Kind, path string, err error) *LoadError {
	return &LoadError{Kind: kind, Path: path, Err: err}
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *LoadError, reporting ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Kind, true
	}
	return 0, false
}
