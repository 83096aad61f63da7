package extract

import (
	"errors"
	"fmt"
)

// ErrorMarker prefixes text that a link resolver returned in place of
// content to signal a soft failure.
const ErrorMarker = "Error:"

var (
	// ErrUnsupportedFormat is returned for files no converter handles.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrTranscriptionUnavailable is returned when no transcription backend is configured.
	ErrTranscriptionUnavailable = errors.New("transcription unavailable")
	// ErrEmptyContent is returned when extraction produced no text.
	ErrEmptyContent = errors.New("no text extracted")
	// ErrSoftFailure wraps error-marked resolver output.
	ErrSoftFailure = errors.New("resolver reported failure")
)

// ExtractionError records which item could not be turned into text.
type ExtractionError struct {
	Source string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Source, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}
