package harness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/tflm-esp32/tflmconv/internal/codegen"
	"github.com/tflm-esp32/tflmconv/internal/convert"
	"github.com/tflm-esp32/tflmconv/internal/history"
	"github.com/tflm-esp32/tflmconv/internal/mangle"
	"github.com/tflm-esp32/tflmconv/internal/testutil"
)

// Harness runs scenarios against a reference resolver header.
type Harness struct {
	reference string
	logger    *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger handed to the conversion pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// New creates a harness verifying against the reference header at
// referencePath unless a scenario names its own.
func New(referencePath string, opts ...Option) *Harness {
	h := &Harness{
		reference: referencePath,
		logger:    slog.New(slog.DiscardHandler), // Suppress logs in tests
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Write the scenario model into a fresh temporary directory
// 2. Analyze the model (dry run) to capture operator support
// 3. Convert it, recording into an in-memory history store
// 4. Compare against the expect clause and evaluate assertions
//
// The returned error reports harness failures, not conversion failures;
// those are part of the result.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "tflmconv-harness-")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(dir)

	modelPath, err := writeScenarioModel(dir, scenario)
	if err != nil {
		return nil, err
	}

	st, err := history.Open(":memory:", history.WithTokenGenerator(testutil.NewFixedTokenGenerator(scenario.RunToken)))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory history: %w", err)
	}
	defer st.Close()

	reference := h.reference
	if scenario.Reference != "" {
		reference = scenario.Reference
	}

	var manglerOpts []mangle.Option
	if len(scenario.Options.VendorPrefixes) > 0 {
		manglerOpts = append(manglerOpts, mangle.WithVendorPrefixes(scenario.Options.VendorPrefixes...))
	}
	if len(scenario.Options.CasingCorrections) > 0 {
		manglerOpts = append(manglerOpts, mangle.WithCorrections(scenario.Options.CasingCorrections))
	}

	opts := convert.Options{
		ModelPath:     modelPath,
		ReferencePath: reference,
		OutputDir:     filepath.Join(dir, "out"),
		ArenaSize:     scenario.Options.ArenaSize,
		BytesPerLine:  scenario.Options.BytesPerLine,
		Mangler:       mangle.New(manglerOpts...),
		Recorder:      st,
		Logger:        h.logger,
	}

	result := NewResult()
	if analysis, err := convert.Analyze(opts); err == nil {
		result.Operators = analysis.Operators
	}

	converted, err := convert.Convert(ctx, opts)
	if err != nil {
		result.Outcome = OutcomeError
		result.ErrorKind = convert.KindOf(err)
		if result.ErrorKind == "" {
			return nil, fmt.Errorf("conversion failed outside the pipeline: %w", err)
		}
	} else {
		result.Outcome = OutcomeConverted
		result.RunToken = converted.RunToken
		header, err := os.ReadFile(converted.HeaderPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read generated header: %w", err)
		}
		result.Header = string(header)
	}

	headerPath := filepath.Join(opts.OutputDir, codegen.HeaderFileName(scenarioModelName(scenario)))
	if _, err := os.Stat(headerPath); err == nil {
		result.HeaderWritten = true
	}

	checkExpect(result, scenario.Expect)
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

// checkExpect compares the result against the scenario's expect clause.
func checkExpect(result *Result, expect Expect) {
	if result.Outcome != expect.Outcome {
		result.AddError(fmt.Sprintf("outcome: expected %s, got %s (%s)", expect.Outcome, result.Outcome, result.ErrorKind))
		return
	}
	if expect.ErrorKind != "" && string(result.ErrorKind) != expect.ErrorKind {
		result.AddError(fmt.Sprintf("error_kind: expected %s, got %s", expect.ErrorKind, result.ErrorKind))
	}
	if expect.Identifiers != nil {
		if diff := cmp.Diff(expect.Identifiers, result.Identifiers(), cmpopts.EquateEmpty()); diff != "" {
			result.AddError(fmt.Sprintf("identifiers mismatch (-want +got):\n%s", diff))
		}
	}
	if expect.Unsupported != nil {
		if diff := cmp.Diff(expect.Unsupported, result.Unsupported(), cmpopts.EquateEmpty()); diff != "" {
			result.AddError(fmt.Sprintf("unsupported mismatch (-want +got):\n%s", diff))
		}
	}
}

func scenarioModelName(s *Scenario) string {
	if s.Model.Name != "" {
		return s.Model.Name
	}
	return s.Name
}

// writeScenarioModel writes the scenario's model file into dir.
func writeScenarioModel(dir string, s *Scenario) (string, error) {
	ext := s.Model.Extension
	if ext == "" {
		ext = codegen.ModelExtension
	}
	path := filepath.Join(dir, scenarioModelName(s)+ext)

	var data []byte
	if s.Model.Raw != "" {
		data = []byte(s.Model.Raw)
	} else {
		data = buildScenarioModel(s.Model)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write model: %w", err)
	}
	return path, nil
}

// buildScenarioModel converts a ScenarioModel into FlatBuffers bytes.
func buildScenarioModel(m ScenarioModel) []byte {
	codes := make([]testutil.OpCode, len(m.OperatorCodes))
	for i, c := range m.OperatorCodes {
		var code testutil.OpCode
		if c.Custom != "" {
			code = testutil.Custom(c.Custom)
		} else {
			code = testutil.Builtin(c.Builtin)
		}
		if c.Deprecated != nil {
			code.Deprecated = *c.Deprecated
		}
		codes[i] = code
	}

	version := m.Version
	if version == 0 {
		version = 3
	}
	return testutil.BuildModelWithOptions(testutil.ModelOptions{
		Version:     version,
		Description: m.Description,
		Identifier:  m.Identifier,
	}, codes...)
}
