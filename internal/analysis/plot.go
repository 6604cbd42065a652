package analysis

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// ScatterPlot renders the inner-joined mean scores of two metric folders
// as a scatter plot, one colored series per T60, and saves it to outPath
// (format chosen from the file extension, typically .png).
func ScatterPlot(xFolder, yFolder, xLabel, yLabel, outPath string, t60Range *T60Range) error {
	a, err := LoadMeanScores(xFolder, t60Range)
	if err != nil {
		return err
	}
	b, err := LoadMeanScores(yFolder, t60Range)
	if err != nil {
		return err
	}

	x, y, t60s := joinScores(a, b)
	if len(x) == 0 {
		return ErrNoCommonPairs
	}

	p := plot.New()
	p.X.Label.Text = fmt.Sprintf("%s (scores)", xLabel)
	p.Y.Label.Text = fmt.Sprintf("%s (scores)", yLabel)
	p.Add(plotter.NewGrid())

	// One series per T60 so reverberation levels are distinguishable.
	unique := uniqueSorted(t60s)
	for i, t60 := range unique {
		var pts plotter.XYs
		for k := range x {
			if t60s[k] == t60 {
				pts = append(pts, plotter.XY{X: x[k], Y: y[k]})
			}
		}

		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("building scatter series: %w", err)
		}
		scatter.GlyphStyle.Color = plotutil.Color(i)
		scatter.GlyphStyle.Radius = vg.Points(2.5)
		p.Add(scatter)
		p.Legend.Add(fmt.Sprintf("T60=%g", t60), scatter)
	}

	if err := p.Save(6*vg.Inch, 5*vg.Inch, outPath); err != nil {
		return fmt.Errorf("saving scatter plot: %w", err)
	}
	return nil
}

// PlotSeries names one mean-scores folder for a comparison plot.
type PlotSeries struct {
	Folder string
	Label  string
}

// MeanStdPlot renders, for each series, the per-T60 mean of the RIR mean
// scores with the standard deviation as error bars. T60 values are spread
// at equal spacing along the x axis.
func MeanStdPlot(series []PlotSeries, outPath string) error {
	type stats struct {
		mean, std float64
	}
	perSeries := make([]map[float64]stats, len(series))
	allT60 := make(map[float64]bool)

	for i, s := range series {
		scores, err := LoadMeanScores(s.Folder, nil)
		if err != nil {
			return err
		}
		groups := make(map[float64][]float64)
		for _, ms := range scores {
			groups[ms.T60] = append(groups[ms.T60], ms.Score)
			allT60[ms.T60] = true
		}

		perSeries[i] = make(map[float64]stats)
		for t60, vals := range groups {
			m := mean(vals)
			var variance float64
			for _, v := range vals {
				variance += (v - m) * (v - m)
			}
			if len(vals) > 1 {
				variance /= float64(len(vals) - 1)
			}
			perSeries[i][t60] = stats{mean: m, std: math.Sqrt(variance)}
		}
	}

	t60s := make([]float64, 0, len(allT60))
	for t60 := range allT60 {
		t60s = append(t60s, t60)
	}
	sort.Float64s(t60s)
	if len(t60s) == 0 {
		return ErrNoCommonPairs
	}

	p := plot.New()
	p.X.Label.Text = "T60 (s)"
	p.Y.Label.Text = "Score"
	p.Add(plotter.NewGrid())

	labels := make([]string, len(t60s))
	for i, t60 := range t60s {
		labels[i] = fmt.Sprintf("%.2f", t60)
	}
	p.NominalX(labels...)

	for i, s := range series {
		var pts plotter.XYs
		var errs plotter.YErrors
		for xi, t60 := range t60s {
			st, ok := perSeries[i][t60]
			if !ok {
				continue
			}
			pts = append(pts, plotter.XY{X: float64(xi), Y: st.mean})
			errs = append(errs, struct{ Low, High float64 }{st.std, st.std})
		}

		line, points, err := plotter.NewLinePoints(pts)
		if err != nil {
			return fmt.Errorf("building line series: %w", err)
		}
		line.Color = plotutil.Color(i)
		points.Color = plotutil.Color(i)

		bars, err := plotter.NewYErrorBars(struct {
			plotter.XYs
			plotter.YErrors
		}{pts, errs})
		if err != nil {
			return fmt.Errorf("building error bars: %w", err)
		}
		bars.Color = plotutil.Color(i)

		p.Add(line, points, bars)
		p.Legend.Add(s.Label, line, points)
	}

	if err := p.Save(6*vg.Inch, 5*vg.Inch, outPath); err != nil {
		return fmt.Errorf("saving mean/std plot: %w", err)
	}
	return nil
}

func uniqueSorted(vals []float64) []float64 {
	seen := make(map[float64]bool)
	var out []float64
	for _, v := range vals {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}
