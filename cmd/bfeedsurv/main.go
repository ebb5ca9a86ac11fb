// Command bfeedsurv runs the survival analysis of the breastfeeding
// duration data and writes the report.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kshedden/bfeedsurv/analysis"
	"github.com/kshedden/bfeedsurv/bfeed"
	"github.com/kshedden/bfeedsurv/config"
)

var (
	configPath string
	dataPath   string
	outputDir  string
)

var rootCmd = &cobra.Command{
	Use:   "bfeedsurv",
	Short: "Survival analysis of breastfeeding duration",
	Long: `Analyze the duration of breastfeeding of first-born children: descriptive
summaries, Kaplan-Meier curves, log-rank tests and Cox regression with
proportional hazards checks, spline terms and stepwise selection.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "", "CSV data file (overrides the configuration)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "out", "o", "", "report directory (overrides the configuration)")

	rootCmd.AddCommand(reportCmd, describeCmd, kmCmd, logrankCmd)
}

// setup loads the configuration and the data.
func setup() (*analysis.Analysis, error) {

	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return nil, err
		}
	}
	if dataPath != "" {
		cfg.Data = dataPath
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))

	data, err := bfeed.Load(cfg.Data)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("no data at %s, pass --data or see testdata/README.md: %w", cfg.Data, err)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("loaded", "file", cfg.Data, "records", data.Len())

	return analysis.New(data, cfg, logger), nil
}

var (
	heading = color.New(color.FgCyan, color.Bold).SprintFunc()
	good    = color.New(color.FgGreen).SprintFunc()
	warn    = color.New(color.FgYellow).SprintFunc()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
		os.Exit(1)
	}
}
