package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kshedden/bfeedsurv/analysis"
)

// Section is a titled part of the document.
type Section struct {
	Title      string
	Paragraphs []string
	Tables     []*Table
	Figures    []Figure
}

// Document is the rendered report.
type Document struct {
	Title    string
	Sections []*Section
}

// Build composes the document from a completed analysis.
func Build(a *analysis.Analysis) (*Document, error) {

	if a.State() != analysis.StepwiseReduced {
		return nil, fmt.Errorf("report: the analysis is incomplete (%s)", a.State())
	}

	cfg := a.Config()
	level := cfg.ConfLevel
	figs := figures(a)

	doc := &Document{Title: "Duration of breastfeeding"}

	doc.Sections = append(doc.Sections,
		&Section{
			Title:      "Data",
			Paragraphs: []string{dataText(a)},
			Tables: []*Table{
				VariableTable(a.Description),
				CategoricalTable("Table 2. Categorical covariates", a.Description.Categorical),
				CategoricalTable("Table 3. Grouped continuous covariates", a.Description.Binned),
				ContinuousTable(a.Description.Continuous),
			},
		},
		&Section{
			Title:      "Survival",
			Paragraphs: []string{survivalText(a)},
			Tables: []*Table{
				SurvivalTable(a.Survival, level, cfg.ConfType),
				QuantileTable(a.Survival.Overall, level),
				StrataTable(a.Survival, level),
			},
			Figures: figs[0:4],
		},
		&Section{
			Title:      "Group comparisons",
			Paragraphs: []string{logRankText(a)},
			Tables:     []*Table{LogRankTable(a.LogRank), PairwiseTable(a.LogRank)},
		},
		&Section{
			Title:      "Cox regression",
			Paragraphs: []string{univariateText(a), assumptionText(a)},
			Tables: []*Table{
				UnivariateTable(a.Univariate, level),
				AssumptionTable(a.Assumptions, cfg.Alpha, cfg.ZPHTransform),
				NonlinearTable(a.Nonlinear),
			},
			Figures: figs[4:],
		},
		&Section{
			Title:      "Multivariate model",
			Paragraphs: []string{stepwiseText(a)},
			Tables: []*Table{
				ModelTable("Table 13. Full multivariate Cox model", a.Multivariate, level),
				ZPHTable("Table 14. Proportional hazards tests, full model", a.Multivariate),
				StepwiseTable(a.Selection),
				AddBackTable(a.Selection),
				ModelTable("Table 17. Final multivariate Cox model", a.Selection.Final, level),
				ZPHTable("Table 18. Proportional hazards tests, final model", a.Selection.Final),
			},
		},
	)

	return doc, nil
}

// Markdown renders the document.
func (doc *Document) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", doc.Title)
	for _, s := range doc.Sections {
		fmt.Fprintf(&b, "\n## %s\n", s.Title)
		for _, p := range s.Paragraphs {
			fmt.Fprintf(&b, "\n%s\n", p)
		}
		for _, t := range s.Tables {
			fmt.Fprintf(&b, "\n%s", t.Markdown())
		}
		for _, f := range s.Figures {
			fmt.Fprintf(&b, "\n![%s](%s)\n\n*%s*\n", f.File, f.File, f.Caption)
		}
	}
	return b.String()
}

// ReportFile is the name of the Markdown file written to the output
// directory.
const ReportFile = "report.md"

// Write renders the report and its plots into dir, which is created
// if needed.
func Write(a *analysis.Analysis, dir string) error {

	doc, err := Build(a)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}

	if _, err := WritePlots(a, dir); err != nil {
		return fmt.Errorf("writing plots: %w", err)
	}

	fname := filepath.Join(dir, ReportFile)
	if err := os.WriteFile(fname, []byte(doc.Markdown()), 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	return nil
}

// Summary returns the key tables as plain text.
func Summary(a *analysis.Analysis) []*Table {
	level := a.Config().ConfLevel
	return []*Table{
		SurvivalTable(a.Survival, level, a.Config().ConfType),
		LogRankTable(a.LogRank),
		UnivariateTable(a.Univariate, level),
		ModelTable("Final multivariate Cox model", a.Selection.Final, level),
	}
}
