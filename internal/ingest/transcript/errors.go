package transcript

import (
	"errors"
	"fmt"
)

// Common errors for transcript input
var (
	ErrMalformedDocument = errors.New("malformed transcript document")
	ErrInvalidSegment    = errors.New("invalid transcript segment")
	ErrMissingStyle      = errors.New("style profile missing analysis")
)

// InputError reports malformed transcript or style data. Segment is -1 when the
// failure concerns the whole document.
type InputError struct {
	Document string
	Segment  int
	Err      error
}

func (e *InputError) Error() string {
	if e.Segment < 0 {
		return fmt.Sprintf("input %s: %v", e.Document, e.Err)
	}
	return fmt.Sprintf("input %s segment %d: %v", e.Document, e.Segment, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

func documentError(doc string, err error) *InputError {
	return &InputError{Document: doc, Segment: -1, Err: err}
}
