package chart

import (
	"errors"
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/goldensig/goldensig/server/internal/compute"
)

// maxNominalLabels is the largest dataset that gets one x tick per batch.
const maxNominalLabels = 40

// Default image size.
var (
	Width  = 12 * vg.Inch
	Height = 5 * vg.Inch
)

// ErrNoPoints is returned when there is nothing to draw.
var ErrNoPoints = errors.New("chart: no points")

// Point is one sample of the optimization trend.
type Point struct {
	BatchID           string  `json:"batch_id"`
	OptimizationScore float64 `json:"optimization_score"`
}

// Trend returns the optimization score of every batch in dataset order.
func Trend(ds *compute.Dataset) []Point {
	batches := ds.Batches()
	out := make([]Point, len(batches))
	for i, b := range batches {
		out[i] = Point{BatchID: b.BatchID, OptimizationScore: b.OptimizationScore}
	}
	return out
}

// WritePNG draws the trend as a line chart and writes it as PNG. The point
// whose BatchID equals highlight (usually the golden) is marked.
func WritePNG(w io.Writer, points []Point, highlight string) error {
	if len(points) == 0 {
		return ErrNoPoints
	}

	p := plot.New()
	p.Title.Text = "Optimization Score Trend"
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = "Batch"
	p.Y.Label.Text = "Optimization Score"
	p.Y.Min = 0
	p.Y.Max = 1

	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		xys[i].X = float64(i)
		xys[i].Y = pt.OptimizationScore
	}

	line, dots, err := plotter.NewLinePoints(xys)
	if err != nil {
		return fmt.Errorf("chart: line: %w", err)
	}
	line.Color = color.RGBA{R: 0, G: 100, B: 180, A: 255}
	line.Width = vg.Points(1.5)
	dots.Shape = draw.CircleGlyph{}
	dots.Radius = vg.Points(2)
	dots.Color = line.Color

	p.Add(line, dots)
	p.Add(plotter.NewGrid())

	for i, pt := range points {
		if pt.BatchID != highlight || highlight == "" {
			continue
		}
		mark, err := plotter.NewScatter(plotter.XYs{xys[i]})
		if err != nil {
			return fmt.Errorf("chart: golden marker: %w", err)
		}
		mark.Shape = draw.PyramidGlyph{}
		mark.Radius = vg.Points(6)
		mark.Color = color.RGBA{R: 212, G: 160, B: 23, A: 255}
		p.Add(mark)
		p.Legend.Add("Golden "+pt.BatchID, mark)
		break
	}

	if len(points) <= maxNominalLabels {
		labels := make([]string, len(points))
		for i, pt := range points {
			labels[i] = pt.BatchID
		}
		p.NominalX(labels...)
	}

	wt, err := p.WriterTo(Width, Height, "png")
	if err != nil {
		return fmt.Errorf("chart: render: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("chart: write: %w", err)
	}
	return nil
}
