package convert

import (
	"errors"
	"fmt"
)

// ErrorKind categorizes conversion failures.
type ErrorKind string

const (
	// KindConfiguration indicates the reference resolver header is missing.
	KindConfiguration ErrorKind = "CONFIGURATION"

	// KindInputValidation indicates the model path is not a .tflite file.
	KindInputValidation ErrorKind = "INPUT_VALIDATION"

	// KindFormat indicates the model is not a well-formed TFLite container.
	KindFormat ErrorKind = "FORMAT"

	// KindCapability indicates the model uses operators TFLM cannot register.
	KindCapability ErrorKind = "CAPABILITY"

	// KindIO indicates reading the model or writing the header failed.
	KindIO ErrorKind = "IO"

	// KindHistory indicates the header was written but could not be recorded.
	KindHistory ErrorKind = "HISTORY"
)

// Error is returned by Convert and Analyze. Every failure is fatal for the
// run; none is retried.
type Error struct {
	Kind    ErrorKind
	Message string
	// Path is the file the failure relates to, if any.
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Path != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Path)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a conversion error, or "" if err is not one.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsConfigurationError returns true if the reference header is missing.
func IsConfigurationError(err error) bool {
	return KindOf(err) == KindConfiguration
}

// IsInputValidationError returns true if the model path was rejected.
func IsInputValidationError(err error) bool {
	return KindOf(err) == KindInputValidation
}

// IsFormatError returns true if the model could not be decoded.
func IsFormatError(err error) bool {
	return KindOf(err) == KindFormat
}

// IsCapabilityError returns true if an operator is not supported.
func IsCapabilityError(err error) bool {
	return KindOf(err) == KindCapability
}
