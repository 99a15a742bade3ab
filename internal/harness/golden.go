package harness

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Summary renders the parts of a result that must stay stable across runs:
// outcome, registrations with support status, and the run token. Header
// bytes are left out since they embed the model.
func Summary(scenarioName string, result *Result) []byte {
	var buf strings.Builder
	fmt.Fprintf(&buf, "scenario: %s\n", scenarioName)
	fmt.Fprintf(&buf, "outcome: %s\n", result.Outcome)
	if result.ErrorKind != "" {
		fmt.Fprintf(&buf, "error_kind: %s\n", result.ErrorKind)
	}
	fmt.Fprintf(&buf, "header_written: %t\n", result.HeaderWritten)
	if result.RunToken != "" {
		fmt.Fprintf(&buf, "run_token: %s\n", result.RunToken)
	}
	fmt.Fprintf(&buf, "operators: %d\n", len(result.Operators))
	for _, op := range result.Operators {
		mark := "+"
		if !op.Supported {
			mark = "-"
		}
		fmt.Fprintf(&buf, "  %s %s %s\n", mark, op.Name, op.Identifier)
	}
	return []byte(buf.String())
}

// RunWithGolden executes a scenario and compares its summary against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the summary doesn't match.
func (h *Harness) RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := h.Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}

	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result's summary against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, Summary(scenarioName, result))
}
