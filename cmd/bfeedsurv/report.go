package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kshedden/bfeedsurv/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Run the full analysis and write the report",
	Long: `Run every stage of the analysis and write the Markdown report with its
plots to the output directory. Key tables are printed to stdout.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}

		if err := a.Run(); err != nil {
			return err
		}

		dir := a.Config().OutputDir
		if err := report.Write(a, dir); err != nil {
			return err
		}

		for _, t := range report.Summary(a) {
			fmt.Printf("\n%s\n", t.Text())
		}

		fmt.Printf("%s %s\n", good("Report written to"), filepath.Join(dir, report.ReportFile))
		return nil
	},
}
