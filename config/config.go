// Package config holds the settings of the breastfeeding report,
// loaded from an optional YAML file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kshedden/bfeedsurv/duration"
)

// Config represents the report configuration loaded from YAML.
type Config struct {
	// Data is the path of the CSV data file
	Data string `yaml:"data"`

	// OutputDir receives the report and its plots
	OutputDir string `yaml:"output_dir"`

	// Checkpoints are the weeks at which survival is tabulated
	Checkpoints []float64 `yaml:"checkpoints"`

	// ConfLevel is the coverage of all confidence intervals
	ConfLevel float64 `yaml:"conf_level"`

	// ConfType: "log", "log-log" or "plain"
	ConfType string `yaml:"conf_type"`

	// Ties: "efron" or "breslow"
	Ties string `yaml:"ties"`

	// ZPHTransform: "km", "rank", "identity" or "log"
	ZPHTransform string `yaml:"zph_transform"`

	// Alpha is the significance level
	Alpha float64 `yaml:"alpha"`

	// Borderline is the proportional hazards p-value below which a
	// continuous covariate is refit with a spline
	Borderline float64 `yaml:"borderline"`

	// SplineDF is the target effective degrees of freedom of splines
	SplineDF float64 `yaml:"spline_df"`

	// Plot size in inches
	PlotWidth  float64 `yaml:"plot_width"`
	PlotHeight float64 `yaml:"plot_height"`

	// LogLevel: "debug", "info", "warn" or "error"
	LogLevel string `yaml:"log_level"`
}

// DefaultCheckpoints are the weeks of the survival estimate table.
var DefaultCheckpoints = []float64{1, 4, 8, 12, 16, 20, 24, 32, 40, 48, 72, 96, 144, 192}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Data:         "testdata/bfeed.csv",
		OutputDir:    "out",
		Checkpoints:  append([]float64(nil), DefaultCheckpoints...),
		ConfLevel:    0.95,
		ConfType:     "log",
		Ties:         "efron",
		ZPHTransform: "km",
		Alpha:        0.05,
		Borderline:   0.10,
		SplineDF:     4,
		PlotWidth:    5,
		PlotHeight:   4,
		LogLevel:     "info",
	}
}

// Load reads a YAML configuration file.  Fields missing from the file
// keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML configuration and validates it.
func Parse(data []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.Data == "" {
		return fmt.Errorf("data: no file given")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir: no directory given")
	}
	if len(c.Checkpoints) == 0 {
		return fmt.Errorf("checkpoints: empty")
	}
	if !sort.Float64sAreSorted(c.Checkpoints) || c.Checkpoints[0] < 0 {
		return fmt.Errorf("checkpoints: must be non-negative and increasing, got %v", c.Checkpoints)
	}
	if !(c.ConfLevel > 0 && c.ConfLevel < 1) {
		return fmt.Errorf("conf_level: must be in (0, 1), got %v", c.ConfLevel)
	}
	if _, err := duration.ParseConfType(c.ConfType); err != nil {
		return fmt.Errorf("conf_type: %w", err)
	}
	if _, err := duration.ParseTies(c.Ties); err != nil {
		return fmt.Errorf("ties: %w", err)
	}
	if _, err := duration.ParseTimeTransform(c.ZPHTransform); err != nil {
		return fmt.Errorf("zph_transform: %w", err)
	}
	if !(c.Alpha > 0 && c.Alpha < 1) {
		return fmt.Errorf("alpha: must be in (0, 1), got %v", c.Alpha)
	}
	if !(c.Borderline > 0 && c.Borderline < 1) {
		return fmt.Errorf("borderline: must be in (0, 1), got %v", c.Borderline)
	}
	if !(c.SplineDF > 1) {
		return fmt.Errorf("spline_df: must exceed 1, got %v", c.SplineDF)
	}
	if !(c.PlotWidth > 0 && c.PlotHeight > 0) {
		return fmt.Errorf("plot_width, plot_height: must be positive")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// ConfidenceType returns the parsed confidence interval type.
func (c *Config) ConfidenceType() duration.ConfType {
	ct, err := duration.ParseConfType(c.ConfType)
	if err != nil {
		panic(err)
	}
	return ct
}

// TieMethod returns the parsed tie handling method.
func (c *Config) TieMethod() duration.Ties {
	t, err := duration.ParseTies(c.Ties)
	if err != nil {
		panic(err)
	}
	return t
}

// TimeTransform returns the parsed ZPH time transform.
func (c *Config) TimeTransform() duration.TimeTransform {
	tt, err := duration.ParseTimeTransform(c.ZPHTransform)
	if err != nil {
		panic(err)
	}
	return tt
}

// Level returns the parsed log level.
func (c *Config) Level() slog.Level {
	l, err := parseLevel(c.LogLevel)
	if err != nil {
		panic(err)
	}
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return l, fmt.Errorf("unknown level %q", s)
	}
	return l, nil
}
