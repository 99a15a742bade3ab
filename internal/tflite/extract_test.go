package tflite

import (
	"os"
	"path/filepath"
	"testing"

	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tflm-esp32/tflmconv/internal/testutil"
)

func TestInspect_BuiltinOperators(t *testing.T) {
	data := testutil.BuildModel(
		testutil.Builtin(BuiltinFullyConnected),
		testutil.Builtin(BuiltinConv2D),
		testutil.Builtin(BuiltinFullyConnected),
	)

	summary, err := Inspect(data)
	require.NoError(t, err)

	assert.Equal(t, uint32(3), summary.Version)
	assert.Equal(t, "tflmconv test model", summary.Description)
	assert.Len(t, summary.Codes, 3)
	if diff := cmp.Diff([]string{"CONV_2D", "FULLY_CONNECTED"}, summary.Operators.Sorted()); diff != "" {
		t.Errorf("operators mismatch (-want +got):\n%s", diff)
	}
}

func TestInspect_DeprecatedFieldWins(t *testing.T) {
	// builtin_code=0, deprecated_builtin_code=5: resolves to 5 (DEPTH_TO_SPACE)
	data := testutil.BuildModel(testutil.OpCode{Builtin: 0, Deprecated: 5, Version: 1})

	summary, err := Inspect(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"DEPTH_TO_SPACE"}, summary.Operators.Sorted())
	assert.Equal(t, int32(5), summary.Codes[0].BuiltinID)
}

func TestInspect_CurrentFieldWins(t *testing.T) {
	// ids above 127 only fit in builtin_code
	data := testutil.BuildModel(testutil.Builtin(150))

	summary, err := Inspect(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"GELU"}, summary.Operators.Sorted())
}

func TestInspect_ZeroIsAdd(t *testing.T) {
	data := testutil.BuildModel(testutil.OpCode{Version: 1})

	summary, err := Inspect(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"ADD"}, summary.Operators.Sorted())
}

func TestInspect_CustomSupersedesGenericCustom(t *testing.T) {
	data := testutil.BuildModel(
		testutil.Builtin(BuiltinCustom),
		testutil.Custom("TFLite_Detection_PostProcess"),
		testutil.Builtin(BuiltinConv2D),
	)

	summary, err := Inspect(data)
	require.NoError(t, err)

	ops := summary.Operators.Sorted()
	assert.Equal(t, []string{"CONV_2D", "TFLite_Detection_PostProcess"}, ops)
	assert.False(t, summary.Operators.Contains(CustomOperatorName))
}

func TestInspect_GenericCustomKeptWithoutNamedCustom(t *testing.T) {
	data := testutil.BuildModel(testutil.Builtin(BuiltinCustom))

	summary, err := Inspect(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"CUSTOM"}, summary.Operators.Sorted())
}

func TestInspect_CustomNameNormalized(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9
	data := testutil.BuildModel(
		testutil.Custom("Cafe\u0301"),
		testutil.Custom("Caf\u00e9"),
	)

	summary, err := Inspect(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"Caf\u00e9"}, summary.Operators.Sorted())
}

func TestInspect_EmptyCustomCodeIsCustom(t *testing.T) {
	data := testutil.BuildModel(testutil.Custom(""), testutil.Builtin(BuiltinCustom))

	summary, err := Inspect(data)
	require.NoError(t, err)
	assert.True(t, summary.Codes[0].Custom)
	assert.False(t, summary.Operators.Contains(CustomOperatorName))
}

func TestInspect_NoOperatorCodes(t *testing.T) {
	summary, err := Inspect(testutil.BuildModel())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Operators.Len())
}

func TestInspect_FormatErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"too short", []byte{1, 2, 3}},
		{"wrong identifier", testutil.BuildModelWithOptions(testutil.ModelOptions{Identifier: "ABCD"}, testutil.Builtin(0))},
		{"root outside buffer", []byte{0xff, 0x00, 0x00, 0x00, 'T', 'F', 'L', '3'}},
		{"negative builtin", testutil.BuildModel(testutil.OpCode{Builtin: -3, Deprecated: -3, Version: 1})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Inspect(tt.data)
			require.Error(t, err)
			assert.True(t, IsFormatError(err), "expected FormatError, got %T: %v", err, err)
		})
	}
}

func TestInspect_OperatorCodesLengthBeyondBuffer(t *testing.T) {
	data := testutil.BuildModelWithOptions(testutil.ModelOptions{Version: 3})

	model := GetRootAsModel(data, 0)
	o := flatbuffers.UOffsetT(model._tab.Offset(modelOperatorCodes))
	require.NotZero(t, o)
	lenAt := model._tab.Vector(o) - flatbuffers.SizeUOffsetT
	require.Equal(t, []byte{0, 0, 0, 0}, data[lenAt:lenAt+4])
	copy(data[lenAt:], []byte{0xff, 0xff, 0xff, 0x7f})

	assert.NotPanics(t, func() {
		summary, err := Inspect(data)
		assert.Error(t, err)
		assert.Nil(t, summary)
		assert.True(t, IsFormatError(err), "expected FormatError, got %T: %v", err, err)
		assert.Contains(t, err.Error(), "operator_codes length 2147483647")
	})
}

func TestInspect_NewerSchemaBuiltin(t *testing.T) {
	data := testutil.BuildModel(testutil.Builtin(170), testutil.Builtin(BuiltinConv2D))

	summary, err := Inspect(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"CONV_2D", "STABLEHLO_BROADCAST_IN_DIM"}, summary.Operators.Sorted())
	assert.Equal(t, int32(170), summary.Codes[0].BuiltinID)
}

func TestInspect_BuiltinBeyondTableGetsPlaceholderName(t *testing.T) {
	data := testutil.BuildModel(testutil.OpCode{Builtin: 5000, Deprecated: 127, Version: 1})

	summary, err := Inspect(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"BUILTIN_5000"}, summary.Operators.Sorted())
	assert.False(t, summary.Codes[0].Custom)
	assert.Equal(t, int32(5000), summary.Codes[0].BuiltinID)
}

func TestInspect_TruncatedModelDoesNotPanic(t *testing.T) {
	data := testutil.BuildModel(testutil.Builtin(BuiltinConv2D), testutil.Custom("MyOp"))
	truncated := append([]byte(nil), data[:12]...)

	assert.NotPanics(t, func() {
		_, err := Inspect(truncated)
		assert.Error(t, err)
	})
}

func TestReadModel_ReadsFile(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteModel(t, dir, "sine", testutil.Builtin(BuiltinFullyConnected))

	data, summary, err := ReadModel(path)
	require.NoError(t, err)
	assert.Equal(t, testutil.BuildModel(testutil.Builtin(BuiltinFullyConnected)), data)
	assert.Equal(t, []string{"FULLY_CONNECTED"}, summary.Operators.Sorted())
}

func TestReadModel_FormatErrorCarriesPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "garbage.tflite")
	require.NoError(t, os.WriteFile(path, []byte("not a flatbuffer at all"), 0644))

	data, summary, err := ReadModel(path)
	require.Error(t, err)
	assert.Nil(t, data)
	assert.Nil(t, summary)

	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, path, fe.Path)
	assert.Contains(t, err.Error(), path)
}

func TestReadModel_MissingFile(t *testing.T) {
	_, _, err := ReadModel(filepath.Join(t.TempDir(), "missing.tflite"))
	require.Error(t, err)
	assert.False(t, IsFormatError(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
