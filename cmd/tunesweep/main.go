// Package main provides the CLI entry point for tunesweep, a parameter
// sweep benchmark for externally built encrypt/decrypt executables.
package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/weiihann/tunesweep/sweep"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	root := newRootCmd(logger, level)
	if err := root.Execute(); err != nil {
		logFailure(logger, err)
		os.Exit(1)
	}
}

func newRootCmd(logger *slog.Logger, level *slog.LevelVar) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "tunesweep",
		Short: "Sweep a compile-time tuning constant and benchmark encryption",
		Long: `Tunesweep rebuilds an encrypt/decrypt executable once per candidate value
of a compile-time tuning constant, runs a verified encrypt/decrypt round trip
for every candidate input size, and logs the encryption time of each cell
to a CSV file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if verbose {
				level.Set(slog.LevelDebug)
			}
		},
	}

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")

	root.AddCommand(newRunCmd(logger))
	root.AddCommand(newReportCmd())

	return root
}

// logFailure reports err, naming the failure kind and cell when the sweep
// stopped on one.
func logFailure(logger *slog.Logger, err error) {
	var cellErr *sweep.CellError
	if !errors.As(err, &cellErr) {
		logger.Error("tunesweep failed", slog.String("error", err.Error()))

		return
	}

	attrs := []any{slog.String("kind", cellErr.Kind.Error())}

	if cellErr.Cell.Constant > 0 {
		attrs = append(attrs, slog.Int("constant", cellErr.Cell.Constant))
	}

	if cellErr.Cell.Size >= 0 {
		attrs = append(attrs, slog.Int64("size", cellErr.Cell.Size))
	}

	attrs = append(attrs, slog.String("error", err.Error()))

	logger.Error("sweep aborted", attrs...)
}
