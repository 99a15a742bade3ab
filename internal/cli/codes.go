package cli

import (
	"github.com/tflm-esp32/tflmconv/internal/convert"
)

// Error codes reported in CLI responses.
const (
	ErrCodeGeneric          = "E001" // Generic/unknown error
	ErrCodeConfigInvalid    = "E002" // Config file unreadable or invalid
	ErrCodeReferenceMissing = "E003" // Reference resolver header missing
	ErrCodeInvalidInput     = "E004" // Model path is not a .tflite file
	ErrCodeFormat           = "E005" // Model is not a valid TFLite container
	ErrCodeUnsupportedOps   = "E006" // Operators not supported by TFLM
	ErrCodeWriteFailed      = "E007" // Model read or header write failed
	ErrCodeHistoryFailed    = "E008" // Conversion history unavailable
)

// codeForKind maps a conversion error kind to its CLI error code.
func codeForKind(kind convert.ErrorKind) string {
	switch kind {
	case convert.KindConfiguration:
		return ErrCodeReferenceMissing
	case convert.KindInputValidation:
		return ErrCodeInvalidInput
	case convert.KindFormat:
		return ErrCodeFormat
	case convert.KindCapability:
		return ErrCodeUnsupportedOps
	case convert.KindIO:
		return ErrCodeWriteFailed
	case convert.KindHistory:
		return ErrCodeHistoryFailed
	default:
		return ErrCodeGeneric
	}
}

// exitCodeForKind returns ExitFailure for unsupported operators and
// ExitCommandError for everything else.
func exitCodeForKind(kind convert.ErrorKind) int {
	if kind == convert.KindCapability {
		return ExitFailure
	}
	return ExitCommandError
}

// outputError reports a failure outside the pipeline and returns the
// matching ExitError.
func outputError(formatter *OutputFormatter, exitCode int, code, message string) error {
	_ = formatter.Fail(code, message, nil)
	return exitError(exitCode, code+": "+message, nil)
}

// outputConvertError reports a pipeline error.
func outputConvertError(formatter *OutputFormatter, err error) error {
	kind := convert.KindOf(err)
	_ = formatter.Fail(codeForKind(kind), err.Error(), detailsFor(err))
	return exitError(exitCodeForKind(kind), codeForKind(kind), err)
}
