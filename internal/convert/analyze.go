package convert

import (
	"github.com/tflm-esp32/tflmconv/internal/tflite"
)

// OperatorStatus pairs a canonical operator with its registration method.
type OperatorStatus struct {
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
	Supported  bool   `json:"supported"`
}

// Analysis is a dry run of Convert: what would be registered, and whether
// the reference resolver supports it.
type Analysis struct {
	ModelName   string                `json:"model_name"`
	Version     uint32                `json:"schema_version"`
	Description string                `json:"description,omitempty"`
	ModelLength int                   `json:"model_length"`
	Codes       []tflite.ResolvedCode `json:"codes"`
	Operators   []OperatorStatus      `json:"operators"`
}

// Supported reports whether every operator is supported.
func (a *Analysis) Supported() bool {
	for _, op := range a.Operators {
		if !op.Supported {
			return false
		}
	}
	return true
}

// Unsupported returns the identifiers the reference does not declare.
func (a *Analysis) Unsupported() []string {
	var out []string
	for _, op := range a.Operators {
		if !op.Supported {
			out = append(out, op.Identifier)
		}
	}
	return out
}

// Analyze runs every Convert stage up to and including verification
// without failing on unsupported operators, and writes nothing.
func Analyze(opts Options) (*Analysis, error) {
	opts = opts.withDefaults()

	supported, err := loadReference(opts.ReferencePath)
	if err != nil {
		return nil, err
	}
	name, err := ModelName(opts.ModelPath)
	if err != nil {
		return nil, err
	}
	data, summary, err := readModel(opts.ModelPath)
	if err != nil {
		return nil, err
	}

	analysis := &Analysis{
		ModelName:   name,
		Version:     summary.Version,
		Description: summary.Description,
		ModelLength: len(data),
		Codes:       summary.Codes,
	}
	for _, op := range summary.Operators.Sorted() {
		id := opts.Mangler.Mangle(op)
		analysis.Operators = append(analysis.Operators, OperatorStatus{
			Name:       op,
			Identifier: id,
			Supported:  supported.Contains(id),
		})
	}
	return analysis, nil
}
