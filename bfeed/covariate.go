package bfeed

import (
	"fmt"
	"strconv"
)

// Kind distinguishes categorical from continuous covariates.
type Kind int

// The kinds of covariates.
const (
	Categorical Kind = iota
	Continuous
)

// Covariate describes one variable of the data, either a measured
// covariate or a grouping derived from one.
type Covariate struct {

	// Name is used for model terms and file names.
	Name string

	// Description is used in the variable description table.
	Description string

	Kind Kind

	// Levels of a categorical covariate, in declared order.
	Levels []string

	// Source is the covariate a derived grouping is computed from,
	// empty for measured covariates.
	Source string

	level func(Observation) string
	value func(Observation) float64
}

// Level returns the level of a categorical covariate for an observation.
func (c *Covariate) Level(o Observation) string {
	if c.level == nil {
		return strconv.FormatFloat(c.value(o), 'g', -1, 64)
	}
	return c.level(o)
}

// Value returns the value of a continuous covariate for an observation.
func (c *Covariate) Value(o Observation) float64 {
	if c.value == nil {
		msg := fmt.Sprintf("Covariate %s is not continuous\n", c.Name)
		panic(msg)
	}
	return c.value(o)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

var yesNoLevels = []string{"no", "yes"}

// The measured covariates, in the column order of the data file.
var covariates = []*Covariate{
	{
		Name:        "race",
		Description: "race of mother",
		Kind:        Categorical,
		Levels:      raceNames,
		level:       func(o Observation) string { return o.Race.String() },
	},
	{
		Name:        "poverty",
		Description: "mother in poverty at birth",
		Kind:        Categorical,
		Levels:      yesNoLevels,
		level:       func(o Observation) string { return yesNo(o.Poverty) },
	},
	{
		Name:        "smoke",
		Description: "mother smoked at birth of child",
		Kind:        Categorical,
		Levels:      yesNoLevels,
		level:       func(o Observation) string { return yesNo(o.Smoke) },
	},
	{
		Name:        "alcohol",
		Description: "mother used alcohol at birth of child",
		Kind:        Categorical,
		Levels:      yesNoLevels,
		level:       func(o Observation) string { return yesNo(o.Alcohol) },
	},
	{
		Name:        "agemth",
		Description: "age of mother at birth of child (years)",
		Kind:        Continuous,
		value:       func(o Observation) float64 { return o.AgeMth },
	},
	{
		Name:        "ybirth",
		Description: "year of birth",
		Kind:        Continuous,
		value:       func(o Observation) float64 { return o.YBirth },
	},
	{
		Name:        "yschool",
		Description: "education of mother (years of school)",
		Kind:        Continuous,
		value:       func(o Observation) float64 { return o.YSchool },
	},
	{
		Name:        "pc3mth",
		Description: "prenatal care after third month",
		Kind:        Categorical,
		Levels:      yesNoLevels,
		level:       func(o Observation) string { return yesNo(o.PC3Mth) },
	},
}

// The groupings derived from continuous covariates.
var bins = []*Covariate{
	{
		Name:        "agegrp",
		Description: "age of mother, grouped",
		Kind:        Categorical,
		Levels:      ageLevels,
		Source:      "agemth",
		level:       func(o Observation) string { return AgeGroup(o.AgeMth) },
	},
	{
		Name:        "ybirthgrp",
		Description: "year of birth, grouped",
		Kind:        Categorical,
		Levels:      birthLevels,
		Source:      "ybirth",
		level:       func(o Observation) string { return BirthGroup(o.YBirth) },
	},
	{
		Name:        "yschoolgrp",
		Description: "education of mother, grouped",
		Kind:        Categorical,
		Levels:      schoolLevels,
		Source:      "yschool",
		level:       func(o Observation) string { return SchoolGroup(o.YSchool) },
	},
}

// Covariates returns the measured covariates in data file order.
func Covariates() []*Covariate {
	return append([]*Covariate(nil), covariates...)
}

// Groupings returns every categorical covariate followed by the binned
// continuous covariates.  These are the groupings used for stratified
// survival curves and log-rank tests.
func Groupings() []*Covariate {
	var g []*Covariate
	for _, c := range covariates {
		if c.Kind == Categorical {
			g = append(g, c)
		}
	}
	return append(g, bins...)
}

// Lookup returns the covariate or grouping with the given name.
func Lookup(name string) (*Covariate, error) {
	for _, c := range covariates {
		if c.Name == name {
			return c, nil
		}
	}
	for _, c := range bins {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("unknown covariate %q", name)
}

// Labels returns the level of a categorical covariate for every
// observation.
func (d *Data) Labels(c *Covariate) []string {
	x := make([]string, len(d.obs))
	for i, o := range d.obs {
		x[i] = c.Level(o)
	}
	return x
}

// Values returns a continuous covariate for every observation.
func (d *Data) Values(c *Covariate) []float64 {
	x := make([]float64, len(d.obs))
	for i, o := range d.obs {
		x[i] = c.Value(o)
	}
	return x
}

// LevelCounts returns the number of observations at each level of a
// categorical covariate, in declared level order.
func (d *Data) LevelCounts(c *Covariate) []int {
	pos := make(map[string]int)
	for j, l := range c.Levels {
		pos[l] = j
	}
	counts := make([]int, len(c.Levels))
	for _, o := range d.obs {
		if j, ok := pos[c.Level(o)]; ok {
			counts[j]++
		}
	}
	return counts
}

// ReferenceLevel returns the level with the strictly largest count.
// When several levels share the largest count the first declared of
// them is returned.
func ReferenceLevel(levels []string, counts []int) string {
	if len(levels) != len(counts) {
		msg := fmt.Sprintf("ReferenceLevel: %d levels but %d counts\n", len(levels), len(counts))
		panic(msg)
	}
	best := 0
	for j := 1; j < len(counts); j++ {
		if counts[j] > counts[best] {
			best = j
		}
	}
	return levels[best]
}

// Reference returns the reference level of a categorical covariate.
// Two-level covariates use their first declared level ("no"); covariates
// with more levels use the most frequent level, see ReferenceLevel.
func (d *Data) Reference(c *Covariate) string {
	if len(c.Levels) <= 2 {
		return c.Levels[0]
	}
	return ReferenceLevel(c.Levels, d.LevelCounts(c))
}
