package testutil

import (
	"os"
	"path/filepath"
	"testing"

	flatbuffers "github.com/google/flatbuffers/go"
)

// OpCode describes one operator-code entry of a test model.
//
// Builtin and Deprecated map to builtin_code and deprecated_builtin_code.
// A non-nil Custom writes custom_code, including the empty string.
type OpCode struct {
	Builtin    int32
	Deprecated int8
	Custom     *string
	Version    int32
}

// Builtin returns an operator code using the current schema layout:
// the id in builtin_code and, when it fits, in deprecated_builtin_code.
func Builtin(id int32) OpCode {
	dep := int8(127)
	if id < 127 {
		dep = int8(id)
	}
	return OpCode{Builtin: id, Deprecated: dep, Version: 1}
}

// Custom returns a custom operator code named name.
func Custom(name string) OpCode {
	return OpCode{Builtin: 32, Deprecated: 32, Custom: &name, Version: 1}
}

// ModelOptions controls the root table of a test model.
type ModelOptions struct {
	Version     uint32
	Description string
	// Identifier overrides the file identifier. Empty means "TFL3".
	Identifier string
}

// BuildModel returns a FlatBuffers TFLite model declaring codes.
// Subgraphs and buffers are left empty; only the operator-code table
// and root metadata are written.
func BuildModel(codes ...OpCode) []byte {
	return BuildModelWithOptions(ModelOptions{Version: 3, Description: "tflmconv test model"}, codes...)
}

// BuildModelWithOptions is BuildModel with control over the root table.
func BuildModelWithOptions(opts ModelOptions, codes ...OpCode) []byte {
	b := flatbuffers.NewBuilder(256)

	customs := make([]flatbuffers.UOffsetT, len(codes))
	for i, c := range codes {
		if c.Custom != nil {
			customs[i] = b.CreateString(*c.Custom)
		}
	}

	offsets := make([]flatbuffers.UOffsetT, len(codes))
	for i, c := range codes {
		b.StartObject(4)
		b.PrependInt8Slot(0, c.Deprecated, 0)
		if c.Custom != nil {
			b.PrependUOffsetTSlot(1, customs[i], 0)
		}
		b.PrependInt32Slot(2, c.Version, 1)
		b.PrependInt32Slot(3, c.Builtin, 0)
		offsets[i] = b.EndObject()
	}

	b.StartVector(4, len(offsets), 4)
	for i := len(offsets) - 1; i >= 0; i-- {
		b.PrependUOffsetT(offsets[i])
	}
	codesVec := b.EndVector(len(offsets))

	var desc flatbuffers.UOffsetT
	if opts.Description != "" {
		desc = b.CreateString(opts.Description)
	}

	b.StartObject(8)
	b.PrependUint32Slot(0, opts.Version, 0)
	b.PrependUOffsetTSlot(1, codesVec, 0)
	if desc != 0 {
		b.PrependUOffsetTSlot(3, desc, 0)
	}
	root := b.EndObject()

	id := opts.Identifier
	if id == "" {
		id = "TFL3"
	}
	b.FinishWithFileIdentifier(root, []byte(id))
	return b.FinishedBytes()
}

// WriteModel writes a test model named name (without extension) into dir
// and returns its path.
func WriteModel(t testing.TB, dir, name string, codes ...OpCode) string {
	t.Helper()
	path := filepath.Join(dir, name+".tflite")
	if err := os.WriteFile(path, BuildModel(codes...), 0644); err != nil {
		t.Fatalf("writing test model: %v", err)
	}
	return path
}

// ReferencePath returns the repository's reference resolver header.
// rel is the path from the calling package directory to the repository root.
func ReferencePath(rel string) string {
	return filepath.Join(rel, "testdata", "reference", "micro_mutable_op_resolver.h")
}
