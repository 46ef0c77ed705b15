package nn

import "fmt"

// ShapeMismatchError reports a batch/length bookkeeping violation: a length
// vector that does not match the batch size, or a convolution configuration
// that produces a non-positive output length.
type ShapeMismatchError struct {
	Reason string
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("shape mismatch: %s", e.Reason)
}

func shapeErrf(format string, args ...any) error {
	return &ShapeMismatchError{Reason: fmt.Sprintf(format, args...)}
}
