package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kshedden/bfeedsurv/report"
)

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Print descriptive summaries of the data",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}

		if err := a.Describe(); err != nil {
			return err
		}

		d := a.Description
		fmt.Printf("\n%s\n", heading(fmt.Sprintf("%d records, %d censored", d.N, d.Censored)))
		for _, t := range []*report.Table{
			report.VariableTable(d),
			report.CategoricalTable("Categorical covariates", d.Categorical),
			report.CategoricalTable("Grouped continuous covariates", d.Binned),
			report.ContinuousTable(d.Continuous),
		} {
			fmt.Printf("\n%s", t.Text())
		}

		return nil
	},
}
