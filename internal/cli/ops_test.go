package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tflm-esp32/tflmconv/internal/testutil"
	"github.com/tflm-esp32/tflmconv/internal/tflite"
)

func runOpsCommand(t *testing.T, rootOpts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewOpsCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestOpsCommand_AllSupported(t *testing.T) {
	dir := t.TempDir()
	modelPath := testutil.WriteModel(t, dir, "sine",
		testutil.Builtin(tflite.BuiltinFullyConnected),
		testutil.Builtin(tflite.BuiltinConv2D),
	)

	out, err := runOpsCommand(t, &RootOptions{Format: "text"}, "--reference", referencePath, modelPath)
	require.NoError(t, err)
	assert.Contains(t, out, "sine (schema v3,")
	assert.Contains(t, out, "✓ CONV_2D → AddConv2D")
	assert.Contains(t, out, "✓ FULLY_CONNECTED → AddFullyConnected")
	assert.Contains(t, out, "All 2 operator(s) supported")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "ops must not write anything")
}

func TestOpsCommand_Unsupported(t *testing.T) {
	dir := t.TempDir()
	modelPath := testutil.WriteModel(t, dir, "mnist_lstm",
		testutil.Builtin(tflite.BuiltinFullyConnected),
		testutil.Builtin(lstmBuiltin),
	)

	out, err := runOpsCommand(t, &RootOptions{Format: "text"}, "--reference", referencePath, modelPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "AddLSTM")
	assert.Contains(t, out, "✗ LSTM → AddLSTM")
	assert.Contains(t, out, "1 of 2 operator(s) not supported by TFLM")
}

func TestOpsCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	modelPath := testutil.WriteModel(t, dir, "detector",
		testutil.Custom("TFLite_Detection_PostProcess"),
	)

	out, err := runOpsCommand(t, &RootOptions{Format: "json"}, "--reference", referencePath, modelPath)
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			ModelName string `json:"model_name"`
			Operators []struct {
				Name       string `json:"name"`
				Identifier string `json:"identifier"`
				Supported  bool   `json:"supported"`
			} `json:"operators"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "detector", resp.Data.ModelName)
	require.Len(t, resp.Data.Operators, 1)
	assert.Equal(t, "TFLite_Detection_PostProcess", resp.Data.Operators[0].Name)
	assert.Equal(t, "AddDetectionPostprocess", resp.Data.Operators[0].Identifier)
	assert.True(t, resp.Data.Operators[0].Supported)
}

func TestOpsCommand_MissingModel(t *testing.T) {
	out, err := runOpsCommand(t, &RootOptions{Format: "text"},
		"--reference", referencePath, filepath.Join(t.TempDir(), "absent.tflite"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeWriteFailed+"]")
}
