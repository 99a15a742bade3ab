package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/tflm-esp32/tflmconv/internal/capability"
	"github.com/tflm-esp32/tflmconv/internal/convert"
	"github.com/tflm-esp32/tflmconv/internal/history"
	"github.com/tflm-esp32/tflmconv/internal/tflite"
)

// Process exit codes.
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the model needs registrations the resolver lacks
	ExitCommandError = 2
)

// ExitError ends a command with Code after its output has been written.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func exitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode maps a command error to the process exit code. Errors that
// never reached the formatter, such as flag parsing failures, are command
// errors.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// Response is the JSON envelope written to stdout with --format json.
type Response struct {
	Status string         `json:"status"` // "ok" or "error"
	Data   any            `json:"data,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

// ResponseError reports a failed command.
type ResponseError struct {
	Code    string        `json:"code"`
	Message string        `json:"message"`
	Details *ErrorDetails `json:"details,omitempty"`
}

// ErrorDetails names the model a conversion failed on and, for capability
// failures, the registrations the resolver does not declare.
type ErrorDetails struct {
	Path        string   `json:"path,omitempty"`
	Unsupported []string `json:"unsupported,omitempty"`
}

// detailsFor collects ErrorDetails from a pipeline error. It returns nil
// when err carries neither a path nor missing registrations.
func detailsFor(err error) *ErrorDetails {
	d := &ErrorDetails{Unsupported: unsupportedOperators(err)}

	var ce *convert.Error
	if errors.As(err, &ce) {
		d.Path = ce.Path
	}
	var fe *tflite.FormatError
	if d.Path == "" && errors.As(err, &fe) {
		d.Path = fe.Path
	}

	if d.Path == "" && len(d.Unsupported) == 0 {
		return nil
	}
	return d
}

// unsupportedOperators returns the missing registrations carried by err.
func unsupportedOperators(err error) []string {
	var capErr *capability.Error
	if errors.As(err, &capErr) {
		return capErr.Missing
	}
	return nil
}

// Report is a command result. JSON output encodes it as the response data,
// text output calls WriteText.
type Report interface {
	WriteText(w io.Writer)
}

// conversionReport renders a written header.
type conversionReport struct {
	*convert.Result
}

func (r conversionReport) WriteText(w io.Writer) {
	fmt.Fprintf(w, "✓ %s has been converted and saved to %s\n\n", r.ModelName, r.HeaderPath)
	fmt.Fprintf(w, "Operators (%d):\n", len(r.Operators))
	for i, op := range r.Operators {
		fmt.Fprintf(w, "  %s → %s\n", op, r.Identifiers[i])
	}
	fmt.Fprintf(w, "\nModel: %d bytes, arena: %d bytes\n", r.ModelLength, r.ArenaSize)
	if r.RunToken != "" {
		fmt.Fprintf(w, "Recorded as %s\n", r.RunToken)
	}
}

// analysisReport renders the ops listing. The exit code carries the
// verdict, so JSON output is the analysis either way.
type analysisReport struct {
	*convert.Analysis
}

func (r analysisReport) WriteText(w io.Writer) {
	fmt.Fprintf(w, "%s (schema v%d, %d bytes)\n", r.ModelName, r.Version, r.ModelLength)
	if r.Description != "" {
		fmt.Fprintf(w, "  %s\n", r.Description)
	}
	fmt.Fprintln(w)

	for _, op := range r.Operators {
		mark := "✓"
		if !op.Supported {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s → %s\n", mark, op.Name, op.Identifier)
	}

	if unsupported := r.Unsupported(); len(unsupported) > 0 {
		fmt.Fprintf(w, "\n%d of %d operator(s) not supported by TFLM\n", len(unsupported), len(r.Operators))
		return
	}
	fmt.Fprintf(w, "\nAll %d operator(s) supported\n", len(r.Operators))
}

// historyReport renders recorded conversions, oldest first.
type historyReport []history.Record

func (r historyReport) WriteText(w io.Writer) {
	if len(r) == 0 {
		fmt.Fprintln(w, "No conversions recorded")
		return
	}
	for _, rec := range r {
		fmt.Fprintf(w, "%d  %s  %s  %s\n", rec.Seq, rec.RunToken, rec.ModelName, rec.HeaderPath)
		fmt.Fprintf(w, "   model %s (%d bytes)\n", shortDigest(rec.ModelDigest), rec.ModelLength)
		fmt.Fprintf(w, "   ops   %s\n", strings.Join(rec.Operators, ", "))
	}
}

// shortDigest abbreviates a hex digest for display.
func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}

// OutputFormatter writes command results and failures as text or JSON.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics; Writer when nil
	Verbose   bool
}

// Emit writes a successful result.
func (f *OutputFormatter) Emit(r Report) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: r})
	}
	r.WriteText(f.Writer)
	return nil
}

// Fail writes a failure. Text output always lists unsupported
// registrations; the model path is shown in verbose mode.
func (f *OutputFormatter) Fail(code, message string, details *ErrorDetails) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{
			Status: "error",
			Error:  &ResponseError{Code: code, Message: message, Details: details},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if details == nil {
		return nil
	}
	for _, id := range details.Unsupported {
		fmt.Fprintf(f.Writer, "  ✗ %s\n", id)
	}
	if f.Verbose && details.Path != "" {
		fmt.Fprintf(f.Writer, "Model: %s\n", details.Path)
	}
	return nil
}

// VerboseLog writes a progress line to the diagnostic writer in verbose mode.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.diag(), format+"\n", args...)
}

func (f *OutputFormatter) diag() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// Logger returns the structured logger handed to the conversion pipeline.
// Pipeline logs are only shown in verbose mode, on the diagnostic writer.
func (f *OutputFormatter) Logger() *slog.Logger {
	if !f.Verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(f.diag(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}
