// Package report renders diagnostic artefacts from a completed run, the
// "downstream visualisation" mentioned as an optional CMP export.
// It reuses the teacher's own plotting dependency (gonum.org/v1/plot)
// rather than introducing a new one, trading its line-plot idiom for the
// heatmap plotter the same library ships.
package report

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// cmpGrid adapts a K x K contextual matrix profile (diagonal already NaN,
// per CMP.Export) to plotter.GridXYZ.
type cmpGrid struct {
	values [][]float64
}

func (g cmpGrid) Dims() (c, r int) {
	return len(g.values), len(g.values)
}

func (g cmpGrid) Z(c, r int) float64 {
	return g.values[r][c]
}

func (g cmpGrid) X(c int) float64 { return float64(c) }
func (g cmpGrid) Y(r int) float64 { return float64(r) }

// WriteCMPHeatmap renders an exported K x K contextual matrix profile
// (NaN diagonal) as a heatmap PNG at path, with dayLabels (length K) used
// only for the axis title, not per-tick labelling, to keep the plot
// legible for larger K.
func WriteCMPHeatmap(exported [][]float64, dayLabels []string, path string) error {
	k := len(exported)
	if k == 0 {
		return fmt.Errorf("report: cannot render an empty CMP")
	}
	if len(dayLabels) != k {
		return fmt.Errorf("report: dayLabels length %d does not match CMP size %d", len(dayLabels), k)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("contextual matrix profile (%s .. %s)", dayLabels[0], dayLabels[k-1])
	p.X.Label.Text = "context (column)"
	p.Y.Label.Text = "context (row)"

	pal := moreland.SmoothBlueRed()
	h := plotter.NewHeatMap(cmpGrid{values: exported}, pal)
	p.Add(h)

	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("report: saving heatmap to %s: %w", path, err)
	}
	return nil
}
