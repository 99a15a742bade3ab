package harness

import (
	"github.com/tflm-esp32/tflmconv/internal/convert"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if the expect clause and all assertions match.
	Pass bool `json:"pass"`

	// Outcome is OutcomeConverted or OutcomeError.
	Outcome string `json:"outcome"`

	// ErrorKind is set when Outcome is OutcomeError.
	ErrorKind convert.ErrorKind `json:"error_kind,omitempty"`

	// Operators lists each canonical operator with its registration and
	// support status. Empty if the model could not be read.
	Operators []convert.OperatorStatus `json:"operators"`

	// Header is the generated header text, empty unless converted.
	Header string `json:"header,omitempty"`

	// HeaderWritten reports whether a header file exists after the run.
	HeaderWritten bool `json:"header_written"`

	// RunToken is the history token of a recorded conversion.
	RunToken string `json:"run_token,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:      true,
		Operators: []convert.OperatorStatus{},
		Errors:    []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Identifiers returns the registration identifiers in order.
func (r *Result) Identifiers() []string {
	ids := make([]string, len(r.Operators))
	for i, op := range r.Operators {
		ids[i] = op.Identifier
	}
	return ids
}

// Unsupported returns the identifiers the reference does not declare.
func (r *Result) Unsupported() []string {
	var ids []string
	for _, op := range r.Operators {
		if !op.Supported {
			ids = append(ids, op.Identifier)
		}
	}
	return ids
}
