package convert

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tflm-esp32/tflmconv/internal/capability"
	"github.com/tflm-esp32/tflmconv/internal/history"
	"github.com/tflm-esp32/tflmconv/internal/mangle"
	"github.com/tflm-esp32/tflmconv/internal/testutil"
	"github.com/tflm-esp32/tflmconv/internal/tflite"
)

var referencePath = testutil.ReferencePath(filepath.Join("..", ".."))

var hexByte = regexp.MustCompile(`0x([0-9a-f]{2})`)

// arrayBytes decodes the model array literal of a generated header.
func arrayBytes(t *testing.T, header string) []byte {
	t.Helper()
	_, literal, ok := strings.Cut(header, "DATA_ALIGN_ATTRIBUTE = {")
	require.True(t, ok, "header has no model array")

	var out []byte
	for _, m := range hexByte.FindAllStringSubmatch(literal, -1) {
		b, err := hex.DecodeString(m[1])
		require.NoError(t, err)
		out = append(out, b...)
	}
	return out
}

func TestConvert_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	modelPath := testutil.WriteModel(t, dir, "sine",
		testutil.Builtin(tflite.BuiltinFullyConnected),
		testutil.Builtin(tflite.BuiltinConv2D),
	)
	outDir := filepath.Join(dir, "out")

	result, err := Convert(context.Background(), Options{
		ModelPath:     modelPath,
		ReferencePath: referencePath,
		OutputDir:     outDir,
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(outDir, "sine_model.h"), result.HeaderPath)
	assert.Equal(t, "sine", result.ModelName)
	assert.Equal(t, []string{"CONV_2D", "FULLY_CONNECTED"}, result.Operators)
	assert.Equal(t, []string{"AddConv2D", "AddFullyConnected"}, result.Identifiers)
	assert.Equal(t, 45000, result.ArenaSize)

	header, err := os.ReadFile(result.HeaderPath)
	require.NoError(t, err)
	text := string(header)

	model, err := os.ReadFile(modelPath)
	require.NoError(t, err)

	assert.Equal(t, 2, strings.Count(text, "micro_op_resolver.Add"))
	assert.Contains(t, text, "micro_op_resolver.AddConv2D();")
	assert.Contains(t, text, "micro_op_resolver.AddFullyConnected();")
	assert.Contains(t, text, "constexpr int TFLMnumberOperators = 2;")
	assert.Contains(t, text, "unsigned int TFLMmodelLength = "+strconv.Itoa(len(model))+";")
	assert.Contains(t, text, "const unsigned char TFLM_sine_model[]")
	assert.Equal(t, model, arrayBytes(t, text))
	assert.Equal(t, len(model), result.ModelLength)
	assert.Equal(t, history.ModelDigest(model), result.ModelDigest)
	assert.Equal(t, history.HeaderDigest(text), result.HeaderDigest)
}

func TestConvert_Deterministic(t *testing.T) {
	dir := t.TempDir()
	modelPath := testutil.WriteModel(t, dir, "mnist_lstm",
		testutil.Builtin(44), // UNIDIRECTIONAL_SEQUENCE_LSTM
		testutil.Builtin(tflite.BuiltinFullyConnected),
		testutil.Builtin(25), // SOFTMAX
		testutil.Builtin(22), // RESHAPE
	)

	first, err := Convert(context.Background(), Options{
		ModelPath: modelPath, ReferencePath: referencePath, OutputDir: filepath.Join(dir, "a"),
	})
	require.NoError(t, err)
	second, err := Convert(context.Background(), Options{
		ModelPath: modelPath, ReferencePath: referencePath, OutputDir: filepath.Join(dir, "b"),
	})
	require.NoError(t, err)

	a, err := os.ReadFile(first.HeaderPath)
	require.NoError(t, err)
	b, err := os.ReadFile(second.HeaderPath)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, first.HeaderDigest, second.HeaderDigest)

	assert.Equal(t, []string{
		"AddFullyConnected",
		"AddReshape",
		"AddSoftmax",
		"AddUnidirectionalSequenceLSTM",
	}, first.Identifiers)
}

func TestConvert_UnsupportedOperator(t *testing.T) {
	dir := t.TempDir()
	modelPath := testutil.WriteModel(t, dir, "rnn",
		testutil.Builtin(tflite.BuiltinFullyConnected),
		testutil.Builtin(16), // LSTM -> AddLSTM, not declared by TFLM
	)
	outDir := filepath.Join(dir, "out")

	var logs bytes.Buffer
	result, err := Convert(context.Background(), Options{
		ModelPath:     modelPath,
		ReferencePath: referencePath,
		OutputDir:     outDir,
		Logger:        slog.New(slog.NewTextHandler(&logs, nil)),
	})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, IsCapabilityError(err))
	assert.True(t, capability.IsError(err))
	assert.Contains(t, logs.String(), "operator=AddLSTM")

	_, statErr := os.Stat(filepath.Join(outDir, "rnn_model.h"))
	assert.True(t, os.IsNotExist(statErr), "no header may be written")
}

func TestConvert_FailureLeavesPriorHeader(t *testing.T) {
	dir := t.TempDir()
	headerPath := filepath.Join(dir, "rnn_model.h")
	require.NoError(t, os.WriteFile(headerPath, []byte("previous"), 0644))

	modelPath := testutil.WriteModel(t, dir, "rnn", testutil.Builtin(16))
	_, err := Convert(context.Background(), Options{
		ModelPath: modelPath, ReferencePath: referencePath, OutputDir: dir,
	})
	require.Error(t, err)

	data, err := os.ReadFile(headerPath)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
}

func TestConvert_OverwritesPriorHeaderOnSuccess(t *testing.T) {
	dir := t.TempDir()
	headerPath := filepath.Join(dir, "sine_model.h")
	require.NoError(t, os.WriteFile(headerPath, []byte("previous"), 0644))

	modelPath := testutil.WriteModel(t, dir, "sine", testutil.Builtin(tflite.BuiltinFullyConnected))
	_, err := Convert(context.Background(), Options{
		ModelPath: modelPath, ReferencePath: referencePath, OutputDir: dir,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(headerPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "micro_op_resolver.AddFullyConnected();")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "temporary file left behind: %s", e.Name())
	}
}

func TestConvert_MissingReference(t *testing.T) {
	dir := t.TempDir()

	// the model does not exist either; the reference is checked first
	_, err := Convert(context.Background(), Options{
		ModelPath:     filepath.Join(dir, "missing.tflite"),
		ReferencePath: filepath.Join(dir, "micro_mutable_op_resolver.h"),
	})
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
}

func TestConvert_ReferenceIsDirectory(t *testing.T) {
	dir := t.TempDir()
	_, err := Convert(context.Background(), Options{
		ModelPath:     filepath.Join(dir, "m.tflite"),
		ReferencePath: dir,
	})
	assert.True(t, IsConfigurationError(err))
}

func TestConvert_NoReferenceConfigured(t *testing.T) {
	_, err := Convert(context.Background(), Options{ModelPath: "m.tflite"})
	assert.True(t, IsConfigurationError(err))
}

func TestConvert_WrongExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.onnx")
	require.NoError(t, os.WriteFile(path, testutil.BuildModel(testutil.Builtin(0)), 0644))

	_, err := Convert(context.Background(), Options{ModelPath: path, ReferencePath: referencePath, OutputDir: dir})
	require.Error(t, err)
	assert.True(t, IsInputValidationError(err))
}

func TestConvert_NotAFlatbuffer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.tflite")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a model"), 0644))

	_, err := Convert(context.Background(), Options{ModelPath: path, ReferencePath: referencePath, OutputDir: dir})
	require.Error(t, err)
	assert.True(t, IsFormatError(err))
	assert.True(t, tflite.IsFormatError(err))
	assert.Contains(t, err.Error(), path)
}

func TestConvert_NewerSchemaOperatorRejected(t *testing.T) {
	dir := t.TempDir()
	modelPath := testutil.WriteModel(t, dir, "hlo",
		testutil.Builtin(tflite.BuiltinFullyConnected),
		testutil.Builtin(170),
		testutil.OpCode{Builtin: 5000, Deprecated: 127, Version: 1},
	)

	result, err := Convert(context.Background(), Options{
		ModelPath:     modelPath,
		ReferencePath: referencePath,
		OutputDir:     dir,
	})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, IsCapabilityError(err))

	var ce *capability.Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"AddBuiltin5000", "AddStablehloBroadcastInDim"}, ce.Missing)
}

func TestConvert_MissingModel(t *testing.T) {
	dir := t.TempDir()
	_, err := Convert(context.Background(), Options{
		ModelPath:     filepath.Join(dir, "missing.tflite"),
		ReferencePath: referencePath,
	})
	require.Error(t, err)
	assert.Equal(t, KindIO, KindOf(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConvert_CustomOperator(t *testing.T) {
	dir := t.TempDir()
	modelPath := testutil.WriteModel(t, dir, "ssd",
		testutil.Builtin(tflite.BuiltinConv2D),
		testutil.Builtin(tflite.BuiltinCustom),
		testutil.Custom("TFLite_Detection_PostProcess"),
	)

	result, err := Convert(context.Background(), Options{ModelPath: modelPath, ReferencePath: referencePath, OutputDir: dir})
	require.NoError(t, err)
	assert.Equal(t, []string{"AddConv2D", "AddDetectionPostprocess"}, result.Identifiers)
}

func TestConvert_CustomMangler(t *testing.T) {
	dir := t.TempDir()
	ref := filepath.Join(dir, "micro_mutable_op_resolver.h")
	require.NoError(t, os.WriteFile(ref, []byte("  TfLiteStatus AddAcmeGRU() {\n"), 0644))
	modelPath := testutil.WriteModel(t, dir, "acme", testutil.Custom("ACME_GRU"))

	_, err := Convert(context.Background(), Options{ModelPath: modelPath, ReferencePath: ref, OutputDir: dir})
	require.Error(t, err)
	assert.True(t, IsCapabilityError(err))

	m := mangle.New(mangle.WithCorrections(mangle.Corrections{{From: "Gru", To: "GRU"}}))
	result, err := Convert(context.Background(), Options{ModelPath: modelPath, ReferencePath: ref, OutputDir: dir, Mangler: m})
	require.NoError(t, err)
	assert.Equal(t, []string{"AddAcmeGRU"}, result.Identifiers)
}

func TestConvert_ArenaAndWidth(t *testing.T) {
	dir := t.TempDir()
	modelPath := testutil.WriteModel(t, dir, "sine", testutil.Builtin(tflite.BuiltinFullyConnected))

	result, err := Convert(context.Background(), Options{
		ModelPath:     modelPath,
		ReferencePath: referencePath,
		OutputDir:     dir,
		ArenaSize:     60000,
		BytesPerLine:  4,
	})
	require.NoError(t, err)

	header, err := os.ReadFile(result.HeaderPath)
	require.NoError(t, err)
	assert.Contains(t, string(header), "TFLMsetupModel<TFLMnumberOperators, 60000>")
	assert.Contains(t, string(header), ",\n     0x")
	_, literal, _ := strings.Cut(string(header), "DATA_ALIGN_ATTRIBUTE = {\n")
	firstRow, _, _ := strings.Cut(literal, "\n")
	assert.Equal(t, 4, strings.Count(firstRow, "0x"))
}

type fakeRecorder struct {
	records []history.Record
	err     error
}

func (f *fakeRecorder) Record(_ context.Context, rec history.Record) (history.Record, error) {
	if f.err != nil {
		return history.Record{}, f.err
	}
	rec.Seq = int64(len(f.records) + 1)
	rec.RunToken = fmt.Sprintf("run-%d", rec.Seq)
	f.records = append(f.records, rec)
	return rec, nil
}

func TestConvert_Records(t *testing.T) {
	dir := t.TempDir()
	modelPath := testutil.WriteModel(t, dir, "sine", testutil.Builtin(tflite.BuiltinFullyConnected))
	rec := &fakeRecorder{}

	result, err := Convert(context.Background(), Options{
		ModelPath: modelPath, ReferencePath: referencePath, OutputDir: dir, Recorder: rec,
	})
	require.NoError(t, err)

	require.Len(t, rec.records, 1)
	assert.Equal(t, "sine", rec.records[0].ModelName)
	assert.Equal(t, []string{"AddFullyConnected"}, rec.records[0].Operators)
	assert.Equal(t, 1, rec.records[0].OperatorCount)
	assert.Equal(t, result.HeaderDigest, rec.records[0].HeaderDigest)
	assert.Equal(t, "run-1", result.RunToken)
}

func TestConvert_NotRecordedOnFailure(t *testing.T) {
	dir := t.TempDir()
	modelPath := testutil.WriteModel(t, dir, "rnn", testutil.Builtin(16))
	rec := &fakeRecorder{}

	_, err := Convert(context.Background(), Options{
		ModelPath: modelPath, ReferencePath: referencePath, OutputDir: dir, Recorder: rec,
	})
	require.Error(t, err)
	assert.Empty(t, rec.records)
}

func TestConvert_RecorderFailure(t *testing.T) {
	dir := t.TempDir()
	modelPath := testutil.WriteModel(t, dir, "sine", testutil.Builtin(tflite.BuiltinFullyConnected))
	recErr := errors.New("disk full")

	result, err := Convert(context.Background(), Options{
		ModelPath: modelPath, ReferencePath: referencePath, OutputDir: dir, Recorder: &fakeRecorder{err: recErr},
	})
	require.Error(t, err)
	assert.Equal(t, KindHistory, KindOf(err))
	assert.ErrorIs(t, err, recErr)
	require.NotNil(t, result)

	_, statErr := os.Stat(result.HeaderPath)
	assert.NoError(t, statErr)
}

func TestConvert_HistoryStore(t *testing.T) {
	dir := t.TempDir()
	store, err := history.Open(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	defer store.Close()

	modelPath := testutil.WriteModel(t, dir, "sine", testutil.Builtin(tflite.BuiltinFullyConnected))
	for i := 0; i < 2; i++ {
		_, err := Convert(context.Background(), Options{
			ModelPath: modelPath, ReferencePath: referencePath, OutputDir: dir, Recorder: store,
		})
		require.NoError(t, err)
	}

	records, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, records[0].HeaderDigest, records[1].HeaderDigest)
	assert.NotEqual(t, records[0].RunToken, records[1].RunToken)
}

func TestModelName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"model.tflite", "model"},
		{"/tmp/models/sine.tflite", "sine"},
		{"out/mnist_lstm.quant.tflite", "mnist_lstm"},
	}
	for _, tt := range tests {
		got, err := ModelName(tt.path)
		require.NoError(t, err, tt.path)
		assert.Equal(t, tt.want, got)
	}

	for _, bad := range []string{"model.tfl", "model.TFLITE", "model", "dir/.tflite"} {
		_, err := ModelName(bad)
		assert.True(t, IsInputValidationError(err), bad)
	}
}

func TestError_Format(t *testing.T) {
	err := &Error{Kind: KindIO, Message: "writing header", Path: "x.h", Err: errors.New("boom")}
	assert.Equal(t, "IO: writing header (x.h): boom", err.Error())
	assert.Equal(t, "CAPABILITY: nope", (&Error{Kind: KindCapability, Message: "nope"}).Error())
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
}
