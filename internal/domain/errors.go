package domain

import (
	"errors"
	"fmt"
)

// ErrNoGenerationData means the usable denominator of an intensity
// computation was zero or near zero; intensity for that cycle is
// unavailable, not zero.
var ErrNoGenerationData = errors.New("no usable generation data")

// ErrInvalidArgument means a caller violated a precondition, e.g. an
// empty history window passed to the stats engine. Wrap with context:
// fmt.Errorf("%w: …", ErrInvalidArgument).
var ErrInvalidArgument = errors.New("invalid argument")

// FormatError reports malformed feed or configuration input. It fails
// the current parse or load step only; the pipeline recovers.
type FormatError struct {
	Source string // which input was malformed (feed name, config file)
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format error in %s: %s", e.Source, e.Reason)
}

// NewFormatError builds a FormatError with a formatted reason
func NewFormatError(source, format string, args ...any) *FormatError {
	return &FormatError{Source: source, Reason: fmt.Sprintf(format, args...)}
}

// IsFormatError reports whether any error in err's chain is a FormatError
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// FetchError wraps a transport failure (network error, timeout,
// non-2xx response). It triggers the cache fallback, never a pipeline
// abort.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError reports whether any error in err's chain is a FetchError
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
