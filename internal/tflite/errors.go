package tflite

import (
	"errors"
	"fmt"
)

// FormatError reports that a buffer is not a well-formed TFLite model.
type FormatError struct {
	// Path is the model file, empty when decoding an in-memory buffer.
	Path string

	// Reason describes what failed to decode.
	Reason string
}

func (e *FormatError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("invalid TFLite model %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("invalid TFLite model: %s", e.Reason)
}

// IsFormatError returns true if err is or wraps a *FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}
