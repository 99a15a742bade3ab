package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tflm-esp32/tflmconv/internal/convert"
)

// OpsOptions holds flags for the ops command.
type OpsOptions struct {
	*RootOptions
	Reference string
}

// NewOpsCommand creates the ops command.
func NewOpsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OpsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ops <model.tflite>",
		Short: "List the operators a model needs",
		Long: `List the operators a TFLite model uses, their TFLM registration
methods, and whether the reference resolver supports them.

Nothing is written. Exits 1 if any operator is unsupported.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOps(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Reference, "reference", "", "path to micro_mutable_op_resolver.h")

	return cmd
}

func runOps(opts *OpsOptions, modelPath string, cmd *cobra.Command) error {
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
	if cmd.Flags().Changed("reference") {
		cfg.Reference = opts.Reference
	}

	analysis, err := convert.Analyze(convert.Options{
		ModelPath:     modelPath,
		ReferencePath: cfg.Reference,
		Mangler:       cfg.Mangler(),
		Logger:        formatter.Logger(),
	})
	if err != nil {
		return outputConvertError(formatter, err)
	}

	if err := formatter.Emit(analysisReport{analysis}); err != nil {
		return err
	}
	if !analysis.Supported() {
		return exitError(ExitFailure, fmt.Sprintf("%s: unsupported operators: %s",
			ErrCodeUnsupportedOps, strings.Join(analysis.Unsupported(), ", ")), nil)
	}
	return nil
}
