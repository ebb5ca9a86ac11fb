package duration

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// StepPoints returns the vertices of a right-continuous step function
// that starts at (0, 1) and jumps to y[i] at x[i].
func StepPoints(x, y []float64) plotter.XYs {

	pts := make(plotter.XYs, 2*len(x)+1)

	j := 0
	pts[j].X = 0
	pts[j].Y = 1
	j++

	for i := range x {
		pts[j].X = x[i]
		pts[j].Y = pts[j-1].Y
		j++
		pts[j].X = x[i]
		pts[j].Y = y[i]
		j++
	}

	return pts
}

// SurvfuncRightPlotter is used to plot a survival function.
type SurvfuncRightPlotter struct {
	plt *plot.Plot

	labels []string

	lines []*plotter.Line

	// Confidence bands, drawn without legend entries
	bands []*plotter.Line

	width  vg.Length
	height vg.Length

	title  string
	xlabel string
	ylabel string
}

// NewSurvfuncRightPlotter returns a default SurvfuncRightPlotter.
func NewSurvfuncRightPlotter() *SurvfuncRightPlotter {

	return &SurvfuncRightPlotter{
		plt:    plot.New(),
		width:  4,
		height: 4,
		xlabel: "Time",
		ylabel: "Proportion alive",
	}
}

// Width sets the width of the survival function plot.
func (sp *SurvfuncRightPlotter) Width(w float64) *SurvfuncRightPlotter {
	sp.width = vg.Length(w)
	return sp
}

// Height sets the height of the survival function plot.
func (sp *SurvfuncRightPlotter) Height(h float64) *SurvfuncRightPlotter {
	sp.height = vg.Length(h)
	return sp
}

// Title sets the title of the plot.
func (sp *SurvfuncRightPlotter) Title(title string) *SurvfuncRightPlotter {
	sp.title = title
	return sp
}

// Labels sets the axis labels.
func (sp *SurvfuncRightPlotter) Labels(xlabel, ylabel string) *SurvfuncRightPlotter {
	sp.xlabel = xlabel
	sp.ylabel = ylabel
	return sp
}

// Add plots a given survival function to the plot.
func (sp *SurvfuncRightPlotter) Add(sf *SurvfuncRight, label string) *SurvfuncRightPlotter {

	line, err := plotter.NewLine(StepPoints(sf.Time(), sf.SurvProb()))
	if err != nil {
		panic(err)
	}
	line.Color = plotutil.Color(len(sp.lines))
	sp.lines = append(sp.lines, line)
	sp.labels = append(sp.labels, label)

	return sp
}

// AddConfBand draws dashed pointwise confidence limits for the most
// recently added survival function.
func (sp *SurvfuncRightPlotter) AddConfBand(sf *SurvfuncRight, level float64, ct ConfType) *SurvfuncRightPlotter {

	if len(sp.lines) == 0 {
		panic("AddConfBand: no survival function has been added")
	}
	col := sp.lines[len(sp.lines)-1].Color

	lcb, ucb := sf.ConfInt(level, ct)
	for _, y := range [][]float64{lcb, ucb} {
		// Undefined limits are carried forward from the previous step
		z := make([]float64, len(y))
		for i := range y {
			switch {
			case !math.IsNaN(y[i]):
				z[i] = y[i]
			case i > 0:
				z[i] = z[i-1]
			default:
				z[i] = 1
			}
		}
		band, err := plotter.NewLine(StepPoints(sf.Time(), z))
		if err != nil {
			panic(err)
		}
		band.Color = col
		band.Dashes = []vg.Length{vg.Points(3), vg.Points(2)}
		sp.bands = append(sp.bands, band)
	}

	return sp
}

// Plot constructs the plot.
func (sp *SurvfuncRightPlotter) Plot() *SurvfuncRightPlotter {

	sp.plt.Y.Min = 0
	sp.plt.Y.Max = 1

	sp.plt.Title.Text = sp.title
	sp.plt.X.Label.Text = sp.xlabel
	sp.plt.Y.Label.Text = sp.ylabel

	for _, b := range sp.bands {
		sp.plt.Add(b)
	}

	leg := plot.NewLegend()
	for i := range sp.lines {
		sp.plt.Add(sp.lines[i])
		leg.Add(sp.labels[i], sp.lines[i])
	}

	if len(sp.lines) > 1 {
		leg.Top = true
		leg.Left = false
		sp.plt.Legend = leg
	}

	return sp
}

// GetPlotStruct returns the plotting structure for this plot.
func (sp *SurvfuncRightPlotter) GetPlotStruct() *plot.Plot {
	return sp.plt
}

// Save writes the plot to the given file.  The file format is
// determined by the extension.
func (sp *SurvfuncRightPlotter) Save(fname string) error {

	if err := sp.plt.Save(sp.width*vg.Inch, sp.height*vg.Inch, fname); err != nil {
		return fmt.Errorf("saving survival plot: %w", err)
	}
	return nil
}

// TermPlotter plots the estimated contribution of one model term to
// the log hazard, with pointwise confidence limits.
type TermPlotter struct {
	plt    *plot.Plot
	width  vg.Length
	height vg.Length
}

// NewTermPlotter plots the term effect te.
func NewTermPlotter(te *TermEffect, xlabel string) (*TermPlotter, error) {

	plt := plot.New()
	plt.Title.Text = fmt.Sprintf("Term effect: %s", te.Term)
	plt.X.Label.Text = xlabel
	plt.Y.Label.Text = "Partial log hazard"

	mk := func(y []float64) plotter.XYs {
		pts := make(plotter.XYs, len(te.X))
		for i := range te.X {
			pts[i].X = te.X[i]
			pts[i].Y = y[i]
		}
		return pts
	}

	est, err := plotter.NewLine(mk(te.Effect))
	if err != nil {
		return nil, err
	}
	est.Color = plotutil.Color(0)
	plt.Add(est)

	for _, y := range [][]float64{te.LCB, te.UCB} {
		band, err := plotter.NewLine(mk(y))
		if err != nil {
			return nil, err
		}
		band.Color = plotutil.Color(0)
		band.Dashes = []vg.Length{vg.Points(3), vg.Points(2)}
		plt.Add(band)
	}

	plt.Add(plotter.NewGrid())

	return &TermPlotter{
		plt:    plt,
		width:  4,
		height: 4,
	}, nil
}

// Size sets the plot dimensions in inches.
func (tp *TermPlotter) Size(w, h float64) *TermPlotter {
	tp.width = vg.Length(w)
	tp.height = vg.Length(h)
	return tp
}

// Save writes the plot to the given file.
func (tp *TermPlotter) Save(fname string) error {
	if err := tp.plt.Save(tp.width*vg.Inch, tp.height*vg.Inch, fname); err != nil {
		return fmt.Errorf("saving term plot: %w", err)
	}
	return nil
}
