// Package main is the entry point for the strata CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/opmodel/strata/internal/cmd"
	oerrors "github.com/opmodel/strata/internal/errors"
	"github.com/opmodel/strata/internal/output"
)

func main() {
	rootCmd := cmd.NewRootCmd()

	if err := rootCmd.Execute(); err != nil {
		code := oerrors.ExitCode(err)
		var exitErr *oerrors.ExitError
		// Only print if the command layer hasn't already printed it
		if !errors.As(err, &exitErr) || !exitErr.Printed {
			fmt.Fprintln(os.Stderr, err)
		}
		output.Debug("exiting", "code", code, "reason", cmd.ExitCodeName(code))
		os.Exit(code)
	}
}
