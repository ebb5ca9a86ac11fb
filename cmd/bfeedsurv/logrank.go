package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kshedden/bfeedsurv/report"
)

var logrankCmd = &cobra.Command{
	Use:   "logrank",
	Short: "Print log-rank tests for every grouping",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}

		if err := a.CompareGroups(); err != nil {
			return err
		}

		alpha := a.Config().Alpha
		fmt.Printf("\n%s\n", heading("Log-rank tests"))
		for _, lr := range a.LogRank {
			mark := good("no difference")
			if lr.PValue < alpha {
				mark = warn("differ")
			}
			fmt.Printf("  %-12s chi-square %8.2f on %d DF  P %.4f  %s\n", lr.Grouping, lr.Chisq, lr.DF, lr.PValue, mark)
		}

		for _, t := range []*report.Table{report.LogRankTable(a.LogRank), report.PairwiseTable(a.LogRank)} {
			fmt.Printf("\n%s", t.Text())
		}

		return nil
	},
}
