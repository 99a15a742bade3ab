// Package convert runs the TFLite to TFLM header conversion.
//
// The pipeline is strictly sequential:
//
//	reference check -> extension check -> read model -> extract operators
//	-> mangle -> verify (gate) -> render header -> atomic write -> record
//
// Nothing is written unless every operator is supported, and a previous
// header at the output path is only replaced by a complete new one.
package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tflm-esp32/tflmconv/internal/capability"
	"github.com/tflm-esp32/tflmconv/internal/codegen"
	"github.com/tflm-esp32/tflmconv/internal/history"
	"github.com/tflm-esp32/tflmconv/internal/mangle"
	"github.com/tflm-esp32/tflmconv/internal/tflite"
)

// Recorder stores a successful conversion. *history.Store implements it.
type Recorder interface {
	Record(ctx context.Context, rec history.Record) (history.Record, error)
}

// Options configures one conversion.
type Options struct {
	// ModelPath is the .tflite model to convert.
	ModelPath string
	// ReferencePath is TFLM's micro_mutable_op_resolver.h.
	ReferencePath string
	// OutputDir receives <name>_model.h. Created if missing. Defaults to ".".
	OutputDir string
	// ArenaSize defaults to codegen.ArenaSize(codegen.DefaultArenaEstimate).
	ArenaSize int
	// BytesPerLine defaults to codegen.DefaultBytesPerLine.
	BytesPerLine int
	// Mangler defaults to mangle.New().
	Mangler *mangle.Mangler
	// Recorder, when set, receives a record of the finished conversion.
	Recorder Recorder
	// Logger defaults to a discarding logger.
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.OutputDir == "" {
		o.OutputDir = "."
	}
	if o.ArenaSize <= 0 {
		o.ArenaSize = codegen.ArenaSize(codegen.DefaultArenaEstimate)
	}
	if o.BytesPerLine <= 0 {
		o.BytesPerLine = codegen.DefaultBytesPerLine
	}
	if o.Mangler == nil {
		o.Mangler = mangle.New()
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Result describes a written header.
type Result struct {
	HeaderPath   string   `json:"header_path"`
	ModelName    string   `json:"model_name"`
	Operators    []string `json:"operators"`
	Identifiers  []string `json:"identifiers"`
	ModelLength  int      `json:"model_length"`
	ArenaSize    int      `json:"arena_size"`
	ModelDigest  string   `json:"model_digest"`
	HeaderDigest string   `json:"header_digest"`
	RunToken     string   `json:"run_token,omitempty"`
}

// Convert converts the model at opts.ModelPath into a TFLM header and
// returns where it was written.
func Convert(ctx context.Context, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	logger := opts.Logger

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

	operators := summary.Operators.Sorted()
	identifiers := opts.Mangler.MangleAll(operators)
	logger.Debug("extracted operators",
		slog.String("model", name),
		slog.Any("operators", operators),
		slog.Any("identifiers", identifiers))

	if err := capability.Verify(identifiers, supported, logger); err != nil {
		return nil, &Error{
			Kind:    KindCapability,
			Message: "not all operations could be added to TFLM, aborting conversion",
			Path:    opts.ModelPath,
			Err:     err,
		}
	}
	if len(identifiers) == 0 {
		logger.Warn("model declares no operators", slog.String("model", name))
	}

	text, err := codegen.Render(codegen.NewContext(name, identifiers, data, opts.ArenaSize, opts.BytesPerLine))
	if err != nil {
		return nil, err
	}

	headerPath := filepath.Join(opts.OutputDir, codegen.HeaderFileName(name))
	if err := writeFileAtomic(headerPath, []byte(text)); err != nil {
		return nil, &Error{Kind: KindIO, Message: "writing header", Path: headerPath, Err: err}
	}

	result := &Result{
		HeaderPath:   headerPath,
		ModelName:    name,
		Operators:    operators,
		Identifiers:  identifiers,
		ModelLength:  len(data),
		ArenaSize:    opts.ArenaSize,
		ModelDigest:  history.ModelDigest(data),
		HeaderDigest: history.HeaderDigest(text),
	}
	logger.Info("model converted",
		slog.String("model", name),
		slog.String("header", headerPath),
		slog.Int("operators", len(identifiers)),
		slog.Int("bytes", len(data)))

	if opts.Recorder != nil {
		rec, err := opts.Recorder.Record(ctx, history.Record{
			ModelName:     name,
			ModelDigest:   result.ModelDigest,
			ModelLength:   result.ModelLength,
			Operators:     identifiers,
			OperatorCount: len(identifiers),
			HeaderPath:    headerPath,
			HeaderDigest:  result.HeaderDigest,
		})
		if err != nil {
			return result, &Error{Kind: KindHistory, Message: "recording conversion", Path: headerPath, Err: err}
		}
		result.RunToken = rec.RunToken
	}

	return result, nil
}

// ModelName returns the model name used for the header and array names:
// the base name up to its first dot. The path must end in ".tflite".
func ModelName(modelPath string) (string, error) {
	if !strings.HasSuffix(modelPath, codegen.ModelExtension) {
		return "", &Error{
			Kind:    KindInputValidation,
			Message: "the provided file is (probably) not a TFLite model",
			Path:    modelPath,
		}
	}
	name, _, _ := strings.Cut(filepath.Base(modelPath), ".")
	if name == "" {
		return "", &Error{
			Kind:    KindInputValidation,
			Message: "cannot derive a model name from the file name",
			Path:    modelPath,
		}
	}
	return name, nil
}

func loadReference(path string) (capability.Set, error) {
	if path == "" {
		return capability.Set{}, &Error{
			Kind:    KindConfiguration,
			Message: "no reference header (micro_mutable_op_resolver.h) configured",
		}
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return capability.Set{}, &Error{
			Kind:    KindConfiguration,
			Message: "the required base file (micro_mutable_op_resolver.h) is not present",
			Path:    path,
			Err:     err,
		}
	}
	set, err := capability.Load(path)
	if err != nil {
		return capability.Set{}, &Error{Kind: KindIO, Message: "reading reference header", Path: path, Err: err}
	}
	return set, nil
}

func readModel(path string) ([]byte, *tflite.Summary, error) {
	data, summary, err := tflite.ReadModel(path)
	if err != nil {
		// The tflite errors already name the path.
		if tflite.IsFormatError(err) {
			return nil, nil, &Error{Kind: KindFormat, Message: "decoding model", Err: err}
		}
		return nil, nil, &Error{Kind: KindIO, Message: "model not loaded", Err: err}
	}
	return data, summary, nil
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it into place, creating the directory if needed.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
