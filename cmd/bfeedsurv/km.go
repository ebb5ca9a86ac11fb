package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kshedden/bfeedsurv/report"
)

var kmCmd = &cobra.Command{
	Use:   "km",
	Short: "Print Kaplan-Meier estimates",
	Long: `Print the overall Kaplan-Meier estimates at the checkpoint weeks, the
quartiles of the duration and the median duration by group.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}

		if err := a.EstimateSurvival(); err != nil {
			return err
		}

		cfg := a.Config()
		med := a.Survival.Overall.Median()
		fmt.Printf("\n%s %v weeks\n", heading("Median duration:"), med.Time)
		for _, t := range []*report.Table{
			report.SurvivalTable(a.Survival, cfg.ConfLevel, cfg.ConfType),
			report.QuantileTable(a.Survival.Overall, cfg.ConfLevel),
			report.StrataTable(a.Survival, cfg.ConfLevel),
		} {
			fmt.Printf("\n%s", t.Text())
		}

		return nil
	},
}
