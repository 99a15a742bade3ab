package cli

import (
	"github.com/spf13/cobra"

	"github.com/tflm-esp32/tflmconv/internal/config"
	"github.com/tflm-esp32/tflmconv/internal/convert"
	"github.com/tflm-esp32/tflmconv/internal/history"
)

// ConvertOptions holds flags for the convert command.
type ConvertOptions struct {
	*RootOptions
	OutputDir    string
	Reference    string
	ArenaSize    int
	BytesPerLine int
	History      string

	// TokenGenerator overrides history run tokens (for testing).
	TokenGenerator history.TokenGenerator
}

// NewConvertCommand creates the convert command.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	return newConvertCommand(&ConvertOptions{RootOptions: rootOpts})
}

func newConvertCommand(opts *ConvertOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert <model.tflite>",
		Short: "Convert a TFLite model to a TFLM header",
		Long: `Convert a TFLite model into <name>_model.h for TensorFlow Lite Micro.

Every operator the model uses must be declared by the reference
micro_mutable_op_resolver.h, otherwise nothing is written.

Example:
  tflmconv convert sine.tflite -o include/
  tflmconv convert mnist_lstm.tflite --reference third_party/micro_mutable_op_resolver.h`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.OutputDir, "output-dir", "o", ".", "directory receiving the header")
	cmd.Flags().StringVar(&opts.Reference, "reference", "", "path to micro_mutable_op_resolver.h")
	cmd.Flags().IntVar(&opts.ArenaSize, "arena-size", 0, "tensor arena size cited in the header")
	cmd.Flags().IntVar(&opts.BytesPerLine, "bytes-per-line", 0, "model bytes per header line")
	cmd.Flags().StringVar(&opts.History, "history", "", "SQLite database recording conversions")

	return cmd
}

// applyFlags overrides cfg with the flags set on the command line.
func (o *ConvertOptions) applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("output-dir") {
		cfg.OutputDir = o.OutputDir
	}
	if flags.Changed("reference") {
		cfg.Reference = o.Reference
	}
	if flags.Changed("arena-size") {
		cfg.ArenaSize = o.ArenaSize
	}
	if flags.Changed("bytes-per-line") {
		cfg.BytesPerLine = o.BytesPerLine
	}
	if flags.Changed("history") {
		cfg.History = o.History
	}
	return cfg.Validate()
}

func runConvert(opts *ConvertOptions, modelPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return outputError(formatter, ExitCommandError, ErrCodeConfigInvalid, err.Error())
	}
	if err := opts.applyFlags(cmd, cfg); err != nil {
		return outputError(formatter, ExitCommandError, ErrCodeConfigInvalid, err.Error())
	}

	convOpts := convert.Options{
		ModelPath:     modelPath,
		ReferencePath: cfg.Reference,
		OutputDir:     cfg.OutputDir,
		ArenaSize:     cfg.ArenaSize,
		BytesPerLine:  cfg.BytesPerLine,
		Mangler:       cfg.Mangler(),
		Logger:        formatter.Logger(),
	}

	if cfg.History != "" {
		formatter.VerboseLog("Recording conversion in %s", cfg.History)
		var storeOpts []history.Option
		if opts.TokenGenerator != nil {
			storeOpts = append(storeOpts, history.WithTokenGenerator(opts.TokenGenerator))
		}
		st, err := history.Open(cfg.History, storeOpts...)
		if err != nil {
			return outputError(formatter, ExitCommandError, ErrCodeHistoryFailed, err.Error())
		}
		defer st.Close()
		convOpts.Recorder = st
	}

	formatter.VerboseLog("Converting %s with reference %s", modelPath, cfg.Reference)
	result, err := convert.Convert(cmd.Context(), convOpts)
	if err != nil {
		return outputConvertError(formatter, err)
	}

	return formatter.Emit(conversionReport{result})
}
