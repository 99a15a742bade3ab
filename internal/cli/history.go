package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tflm-esp32/tflmconv/internal/history"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Digest   string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded conversions",
		Long: `List the conversions recorded in a history database, oldest first.

Example:
  tflmconv history --db conversions.db
  tflmconv history --db conversions.db --digest 3f2a...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Digest, "digest", "", "only list conversions of the model with this digest")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	// Open would create an empty database at a mistyped path.
	if _, err := os.Stat(opts.Database); err != nil {
		return outputError(formatter, ExitCommandError, ErrCodeHistoryFailed,
			fmt.Sprintf("history database %s: %v", opts.Database, err))
	}

	formatter.VerboseLog("Opening %s", opts.Database)
	st, err := history.Open(opts.Database)
	if err != nil {
		return outputError(formatter, ExitCommandError, ErrCodeHistoryFailed, err.Error())
	}
	defer st.Close()

	var records []history.Record
	if opts.Digest != "" {
		records, err = st.FindByModelDigest(cmd.Context(), opts.Digest)
	} else {
		records, err = st.List(cmd.Context())
	}
	if err != nil {
		return outputError(formatter, ExitCommandError, ErrCodeHistoryFailed, err.Error())
	}

	return formatter.Emit(historyReport(records))
}
