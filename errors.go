package imagegs

import (
	"errors"
	"fmt"
)

// ErrorKind classifies encode failures for per-frame reporting. Every error
// escaping a pipeline stage is tagged with exactly one kind at the
// EncodeFrame boundary.
type ErrorKind string

// Error kinds reported in EncodeResult.
const (
	// KindInputError: the frame file is missing or cannot be decoded.
	// Fails before any Gaussian is created.
	KindInputError ErrorKind = "InputError"

	// KindNumericDivergence: the optimizer loop reached the Diverged state.
	// Recoverable per-frame; never fatal to a batch.
	KindNumericDivergence ErrorKind = "NumericDivergence"

	// KindResourceError: temporary workspace allocation or cleanup failed.
	KindResourceError ErrorKind = "ResourceError"

	// KindConfigError: a configuration field is out of the supported range.
	KindConfigError ErrorKind = "ConfigError"

	// KindInternalError: a panic from a lower layer was converted at the
	// encoder boundary. Indicates a bug, but still honors the no-crash
	// contract toward the batch driver.
	KindInternalError ErrorKind = "InternalError"
)

// EncodeError carries an error kind across the pipeline so the Frame Encoder
// can map failures onto the result record without string matching.
type EncodeError struct {
	Kind ErrorKind
	Err  error
}

// Error implements the error interface.
func (e *EncodeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *EncodeError) Unwrap() error { return e.Err }

// newError wraps err with a kind.
func newError(kind ErrorKind, err error) *EncodeError {
	return &EncodeError{Kind: kind, Err: err}
}

// errorf wraps a formatted error with a kind.
func errorf(kind ErrorKind, format string, args ...any) *EncodeError {
	return &EncodeError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// kindOf extracts the ErrorKind from err, defaulting to KindInternalError
// for errors that were never classified.
func kindOf(err error) ErrorKind {
	var ee *EncodeError
	if errors.As(err, &ee) {
		return ee.Kind
	}
	return KindInternalError
}
