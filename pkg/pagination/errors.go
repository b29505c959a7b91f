package pagination

import (
	"errors"
	"fmt"
)

var (
	// ErrBoundsExceeded is matched by BoundsExceededError via errors.Is.
	ErrBoundsExceeded = errors.New("pagination bounds exceeded")

	// ErrUnsupportedMode is returned for a mode with no interpreter.
	ErrUnsupportedMode = errors.New("unsupported pagination mode")
)

// BoundsExceededError is returned when page*size is above MaxTotalResults.
// Callers recover by lowering page or size.
type BoundsExceededError struct {
	Page            int
	Size            int
	MaxTotalResults int
}

// Error implements the error interface.
func (e *BoundsExceededError) Error() string {
	return fmt.Sprintf("%s: page %d * size %d > max_total_results %d",
		ErrBoundsExceeded, e.Page, e.Size, e.MaxTotalResults)
}

// Is reports whether target is ErrBoundsExceeded.
func (e *BoundsExceededError) Is(target error) bool {
	return target == ErrBoundsExceeded
}

// DecodeError is returned when an item in the container does not decode
// into the requested item type.
type DecodeError struct {
	Path  string
	Index int
	Err   error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode item %d of %s: %v", e.Index, e.Path, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *DecodeError) Unwrap() error {
	return e.Err
}
