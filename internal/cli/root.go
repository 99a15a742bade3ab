package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tflm-esp32/tflmconv/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the tflmconv CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "tflmconv",
		Short: "tflmconv - TFLite to TFLM header converter",
		Long: `Convert TensorFlow Lite models into C headers for TensorFlow Lite Micro.

The generated header embeds the model bytes and the operator registrations
the model needs, checked against TFLM's micro_mutable_op_resolver.h.`,
		SilenceErrors: true, // main prints errors commands did not report
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")

	cmd.AddCommand(NewConvertCommand(opts))
	cmd.AddCommand(NewOpsCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// loadConfig returns the built-in defaults, or the --config file over them.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	if o.ConfigPath == "" {
		return config.Default(), nil
	}
	return config.Load(o.ConfigPath)
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
