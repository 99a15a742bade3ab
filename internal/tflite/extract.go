package tflite

import (
	"errors"
	"fmt"
	"os"
	"sort"

	flatbuffers "github.com/google/flatbuffers/go"
	"golang.org/x/text/unicode/norm"
)

// OperatorSet is the canonical set of operator names declared by a model.
// The zero value is an empty set.
type OperatorSet struct {
	names map[string]struct{}
}

func (s *OperatorSet) add(name string) {
	if s.names == nil {
		s.names = make(map[string]struct{})
	}
	s.names[name] = struct{}{}
}

// Len returns the number of distinct operators.
func (s OperatorSet) Len() int {
	return len(s.names)
}

// Contains reports whether name is in the set.
func (s OperatorSet) Contains(name string) bool {
	_, ok := s.names[name]
	return ok
}

// Sorted returns the operator names in byte order.
func (s OperatorSet) Sorted() []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// ResolvedCode is one entry of the operator-code table after resolution.
type ResolvedCode struct {
	Name      string `json:"name"`
	Custom    bool   `json:"custom"`
	BuiltinID int32  `json:"builtin_id"`
	Version   int32  `json:"version"`
}

// Summary describes the decoded parts of a model.
type Summary struct {
	Version     uint32         `json:"version"`
	Description string         `json:"description,omitempty"`
	Codes       []ResolvedCode `json:"codes"`
	Operators   OperatorSet    `json:"-"`
}

// ReadModel reads the model at path and decodes it with Inspect.
// A *FormatError carries path; read failures wrap the os error.
func ReadModel(path string) ([]byte, *Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading model: %w", err)
	}
	summary, err := Inspect(data)
	if err != nil {
		var fe *FormatError
		if errors.As(err, &fe) {
			fe.Path = path
		}
		return nil, nil, err
	}
	return data, summary, nil
}

// Inspect decodes data as a TFLite model and resolves its operator codes.
//
// Malformed offsets make the FlatBuffers accessors panic; those panics are
// returned as a *FormatError.
func Inspect(data []byte) (summary *Summary, err error) {
	if err := checkContainer(data); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			summary = nil
			err = &FormatError{Reason: fmt.Sprintf("corrupt flatbuffer: %v", r)}
		}
	}()

	model := GetRootAsModel(data, 0)
	if !model.operatorCodesInBounds() {
		return nil, &FormatError{Reason: fmt.Sprintf("operator_codes length %d exceeds buffer of %d bytes",
			model.OperatorCodesLength(), len(data))}
	}

	summary = &Summary{
		Version:     model.Version(),
		Description: string(model.Description()),
	}

	customFound := false
	n := model.OperatorCodesLength()
	summary.Codes = make([]ResolvedCode, 0, n)
	var oc OperatorCode
	for i := 0; i < n; i++ {
		model.OperatorCodes(&oc, i)
		code, err := resolve(&oc)
		if err != nil {
			return nil, err
		}
		if code.Custom {
			customFound = true
		}
		summary.Codes = append(summary.Codes, code)
	}

	for _, code := range summary.Codes {
		if customFound && !code.Custom && code.Name == CustomOperatorName {
			continue
		}
		summary.Operators.add(code.Name)
	}

	return summary, nil
}

// resolve turns one operator-code entry into its canonical name.
func resolve(oc *OperatorCode) (ResolvedCode, error) {
	if oc.HasCustomCode() {
		return ResolvedCode{
			Name:      norm.NFC.String(string(oc.CustomCode())),
			Custom:    true,
			BuiltinID: BuiltinCustom,
			Version:   oc.Version(),
		}, nil
	}

	id := ResolveBuiltinID(oc.BuiltinCode(), oc.DeprecatedBuiltinCode())
	if id < 0 {
		return ResolvedCode{}, &FormatError{Reason: fmt.Sprintf("negative builtin operator id %d", id)}
	}
	name, ok := BuiltinName(id)
	if !ok {
		// Newer schemas than this table: keep the model readable and let
		// verification reject the operator.
		name = fmt.Sprintf("%s%d", UnknownBuiltinPrefix, id)
	}
	return ResolvedCode{Name: name, BuiltinID: id, Version: oc.Version()}, nil
}

// ResolveBuiltinID returns the effective builtin id of an operator code.
// Models written before schema 3a carry the id only in the deprecated int8
// field; newer models carry it in both, or use 127 as a placeholder in the
// deprecated field for ids that do not fit.
func ResolveBuiltinID(builtin int32, deprecated int8) int32 {
	return max(builtin, int32(deprecated))
}

func checkContainer(data []byte) error {
	if len(data) < flatbuffers.SizeUOffsetT+len(FileIdentifier) {
		return &FormatError{Reason: fmt.Sprintf("buffer too short (%d bytes)", len(data))}
	}
	id := string(data[flatbuffers.SizeUOffsetT : flatbuffers.SizeUOffsetT+len(FileIdentifier)])
	if id != FileIdentifier {
		return &FormatError{Reason: fmt.Sprintf("file identifier %q, want %q", id, FileIdentifier)}
	}
	root := flatbuffers.GetUOffsetT(data)
	if int(root) >= len(data) {
		return &FormatError{Reason: fmt.Sprintf("root offset %d outside buffer of %d bytes", root, len(data))}
	}
	return nil
}
