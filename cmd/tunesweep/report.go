package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weiihann/tunesweep/report"
)

func newReportCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "report <log.csv>",
		Short: "Summarize an existing result log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open log: %w", err)
			}
			defer f.Close()

			results, err := report.ReadLog(f)
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			if outputJSON {
				return report.GenerateJSON(cmd.OutOrStdout(), results)
			}

			return report.Generate(cmd.OutOrStdout(), results)
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false,
		"Output results as JSON instead of table")

	return cmd
}
