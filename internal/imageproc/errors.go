// Package imageproc contains the image operations shared by the capture loop
// and the recognizers: decoding uploads, bounding sizes, contrast and gain
// adjustment, and the binarization passes that precede local recognition.
package imageproc

import "fmt"

// ProcessingError represents errors that can occur during image processing.
type ProcessingError struct {
	Operation string
	Err       error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }
