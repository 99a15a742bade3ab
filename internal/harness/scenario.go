package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/tflm-esp32/tflmconv/internal/convert"
	"github.com/tflm-esp32/tflmconv/internal/mangle"
)

// Scenario defines one conversion scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Reference overrides the harness reference header.
	// Relative paths are resolved against the scenario file's directory.
	Reference string `yaml:"reference,omitempty"`

	Model   ScenarioModel   `yaml:"model"`
	Options ScenarioOptions `yaml:"options,omitempty"`
	Expect  Expect      `yaml:"expect"`

	// Assertions validate the generated header.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// RunToken is the history token recorded for a successful conversion.
	// Defaults to "test-run-default".
	RunToken string `yaml:"run_token,omitempty"`
}

// ScenarioModel describes the model file a scenario converts.
type ScenarioModel struct {
	// Name is the model file name without extension. Defaults to the
	// scenario name.
	Name string `yaml:"name,omitempty"`

	// Extension defaults to ".tflite".
	Extension string `yaml:"extension,omitempty"`

	Version     uint32 `yaml:"version,omitempty"`
	Description string `yaml:"description,omitempty"`

	// Identifier overrides the FlatBuffers file identifier.
	Identifier string `yaml:"identifier,omitempty"`

	OperatorCodes []CodeEntry `yaml:"operator_codes,omitempty"`

	// Raw, when set, is written as the model file instead of a built model.
	Raw string `yaml:"raw,omitempty"`
}

// CodeEntry is one operator-code table entry.
type CodeEntry struct {
	// Builtin is builtin_code.
	Builtin int32 `yaml:"builtin"`

	// Deprecated is deprecated_builtin_code. When nil it is derived from
	// Builtin the way current converters write it.
	Deprecated *int8 `yaml:"deprecated,omitempty"`

	// Custom marks a custom operator with this name.
	Custom string `yaml:"custom,omitempty"`
}

// ScenarioOptions overrides conversion options.
type ScenarioOptions struct {
	ArenaSize         int                `yaml:"arena_size,omitempty"`
	BytesPerLine      int                `yaml:"bytes_per_line,omitempty"`
	VendorPrefixes    []string           `yaml:"vendor_prefixes,omitempty"`
	CasingCorrections mangle.Corrections `yaml:"casing_corrections,omitempty"`
}

// Expect specifies the expected conversion outcome.
type Expect struct {
	// Outcome is "converted" or "error".
	Outcome string `yaml:"outcome"`

	// ErrorKind is the expected convert.ErrorKind when Outcome is "error".
	ErrorKind string `yaml:"error_kind,omitempty"`

	// Identifiers are the expected registrations, in order.
	Identifiers []string `yaml:"identifiers,omitempty"`

	// Unsupported are the identifiers the reference must lack.
	Unsupported []string `yaml:"unsupported,omitempty"`
}

// Assertion validates the generated header.
type Assertion struct {
	// Type specifies the assertion type:
	// - "header_contains": Text appears in the header
	// - "header_omits": Text does not appear in the header
	// - "registration_order": Identifiers are registered in order
	// - "no_header": No header file was written
	Type string `yaml:"type"`

	// Text is the substring checked by header_contains and header_omits.
	Text string `yaml:"text,omitempty"`

	// Identifiers is the expected order (used by registration_order).
	Identifiers []string `yaml:"identifiers,omitempty"`
}

// Outcome constants.
const (
	OutcomeConverted = "converted"
	OutcomeError     = "error"
)

// Assertion type constants.
const (
	AssertHeaderContains    = "header_contains"
	AssertHeaderOmits       = "header_omits"
	AssertRegistrationOrder = "registration_order"
	AssertNoHeader          = "no_header"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving a relative reference path against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Reference != "" && !filepath.IsAbs(scenario.Reference) && basePath != "" {
		scenario.Reference = filepath.Join(basePath, scenario.Reference)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml scenario in dir, ordered by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Model.Raw != "" && len(s.Model.OperatorCodes) > 0 {
		return fmt.Errorf("model: raw and operator_codes are mutually exclusive")
	}

	for i, code := range s.Model.OperatorCodes {
		if code.Builtin < 0 {
			return fmt.Errorf("model.operator_codes[%d]: builtin must be non-negative", i)
		}
	}

	switch s.Expect.Outcome {
	case OutcomeConverted:
		if s.Expect.ErrorKind != "" {
			return fmt.Errorf("expect: error_kind requires outcome %q", OutcomeError)
		}
	case OutcomeError:
		if s.Expect.ErrorKind == "" {
			return fmt.Errorf("expect: error_kind is required for outcome %q", OutcomeError)
		}
		if !knownKind(convert.ErrorKind(s.Expect.ErrorKind)) {
			return fmt.Errorf("expect: unknown error_kind %q", s.Expect.ErrorKind)
		}
	case "":
		return fmt.Errorf("expect: outcome is required")
	default:
		return fmt.Errorf("expect: unknown outcome %q", s.Expect.Outcome)
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func knownKind(kind convert.ErrorKind) bool {
	switch kind {
	case convert.KindConfiguration, convert.KindInputValidation, convert.KindFormat,
		convert.KindCapability, convert.KindIO, convert.KindHistory:
		return true
	}
	return false
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertHeaderContains, AssertHeaderOmits:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for %s", index, a.Type)
		}
	case AssertRegistrationOrder:
		if len(a.Identifiers) == 0 {
			return fmt.Errorf("assertions[%d]: identifiers list is required for registration_order", index)
		}
	case AssertNoHeader:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
