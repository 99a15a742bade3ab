package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/tflm-esp32/tflmconv/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Commands report their own errors; flag and argument errors
		// come back from cobra unprinted.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(cli.ExitCommandError)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
