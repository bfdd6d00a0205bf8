// Package plots renders the fit scatter plot and the rate histograms as image files.
package plots

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sodankyla/phrates/internal/rhovrhog"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Size is the canvas size of a saved figure.
type Size struct {
	Width  vg.Length
	Height vg.Length
}

// SizeCm returns a Size given in centimetres.
func SizeCm(width, height float64) Size {
	return Size{Width: vg.Length(width) * vg.Centimeter, Height: vg.Length(height) * vg.Centimeter}
}

// DefaultSize matches a 4 by 3.5 inch figure.
var DefaultSize = Size{Width: 4 * vg.Inch, Height: 3.5 * vg.Inch}

// FitScatter plots every fitted track's segments together with its fitted line,
// one colour per track, on equal axes starting at the origin. The image format
// follows the extension of path.
func FitScatter(res *rhovrhog.Result, path string, size Size) error {
	if res == nil || len(res.Rows) == 0 {
		return errors.New("no fitted tracks to plot")
	}
	if len(res.Tracks) != len(res.Rows) {
		return fmt.Errorf("result has %d tracks but %d rows", len(res.Tracks), len(res.Rows))
	}

	p := plot.New()
	p.X.Label.Text = "ρgc (shot⁻¹)"
	p.Y.Label.Text = "ρvc (shot⁻¹)"

	cmap := moreland.SmoothBlueRed()
	cmap.SetMax(1)
	cmap.SetMin(0)

	n := float64(len(res.Rows))
	var maxX, maxY float64
	for t, row := range res.Rows {
		c, err := cmap.At(float64(t) / (1.1 * n))
		if err != nil {
			return fmt.Errorf("colour for track %s: %w", row.Track, err)
		}

		ms := res.Tracks[t].Measurements
		pts := make(plotter.XYs, len(ms))
		for i, m := range ms {
			pts[i].X = m.GroundRate
			pts[i].Y = m.CanopyRate
			maxX = math.Max(maxX, m.GroundRate)
			maxY = math.Max(maxY, m.CanopyRate)
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("segments of track %s: %w", row.Track, err)
		}
		sc.GlyphStyle.Color = c
		sc.GlyphStyle.Radius = vg.Points(1)
		sc.GlyphStyle.Shape = draw.CircleGlyph{}

		line, err := plotter.NewLine(plotter.XYs{
			{X: 0, Y: row.CanopyIntercept},
			{X: row.GroundIntercept, Y: 0},
		})
		if err != nil {
			return fmt.Errorf("fit line of track %s: %w", row.Track, err)
		}
		line.Color = c
		line.Width = vg.Points(1)
		maxX = math.Max(maxX, row.GroundIntercept)
		maxY = math.Max(maxY, row.CanopyIntercept)

		p.Add(sc, line)
	}

	axMax := axisMax(maxX, maxY)
	ticks := unitTicks(axMax)
	p.X.Min, p.X.Max = 0, axMax
	p.Y.Min, p.Y.Max = 0, axMax
	p.X.Tick.Marker = ticks
	p.Y.Tick.Marker = ticks

	// Equal aspect: draw on a square canvas.
	side := size.Width
	if size.Height < side {
		side = size.Height
	}
	return save(p, side, side, path)
}

// axisMax is the larger axis maximum rounded up to a whole number, at least 1.
func axisMax(maxX, maxY float64) float64 {
	m := math.Ceil(math.Max(maxX, maxY))
	if m < 1 || math.IsNaN(m) || math.IsInf(m, 0) {
		return 1
	}
	return m
}

// maxUnitTicks bounds the one-tick-per-unit axis. Wider axes, such as a
// near-flat slope pushing ρg far out, fall back to the default ticker.
const maxUnitTicks = 20

func unitTicks(max float64) plot.Ticker {
	if max > maxUnitTicks {
		return plot.DefaultTicks{}
	}
	var ticks plot.ConstantTicks
	for v := 0.0; v <= max+0.1; v++ {
		ticks = append(ticks, plot.Tick{Value: v, Label: strconv.FormatFloat(v, 'f', -1, 64)})
	}
	return ticks
}

// Series is one labelled sample drawn into a histogram.
type Series struct {
	Label  string
	Values []float64
	Color  color.Color // nil picks a default colour
}

// HistogramSpec describes a histogram figure. Nil limits are left to autoscaling.
type HistogramSpec struct {
	Title   string
	XLabel  string
	Bins    int
	Density bool
	XMin    *float64
	XMax    *float64
	YMin    *float64
	YMax    *float64
}

// Histogram overlays one half-transparent histogram per series and saves the
// figure to path.
func Histogram(spec HistogramSpec, series []Series, path string, size Size) error {
	bins := spec.Bins
	if bins <= 0 {
		bins = 25
	}

	p := plot.New()
	p.Title.Text = spec.Title
	p.X.Label.Text = spec.XLabel
	if spec.Density {
		p.Y.Label.Text = "density"
	} else {
		p.Y.Label.Text = "count"
	}
	p.Legend.Top = true
	p.Legend.Left = false

	drawn := 0
	for i, s := range series {
		if len(s.Values) == 0 {
			continue
		}
		h, err := plotter.NewHist(plotter.Values(s.Values), bins)
		if err != nil {
			return fmt.Errorf("histogram of %s: %w", s.Label, err)
		}
		if spec.Density {
			h.Normalize(1)
		}

		c := s.Color
		if c == nil {
			c = plotutil.Color(i)
		}
		h.FillColor = withAlpha(c, 128)
		h.LineStyle.Color = color.Gray{Y: 128}
		h.LineStyle.Width = vg.Points(0.5)

		p.Add(h)
		p.Legend.Add(s.Label, h)
		drawn++
	}
	if drawn == 0 {
		return errors.New("no values to plot")
	}

	if spec.XMin != nil {
		p.X.Min = *spec.XMin
	}
	if spec.XMax != nil {
		p.X.Max = *spec.XMax
	}
	if spec.YMin != nil {
		p.Y.Min = *spec.YMin
	}
	if spec.YMax != nil {
		p.Y.Max = *spec.YMax
	}

	return save(p, size.Width, size.Height, path)
}

// ParseColor parses "#rrggbb" or "#rrggbbaa". An empty string yields nil.
func ParseColor(s string) (color.Color, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 && len(hex) != 8 {
		return nil, fmt.Errorf("invalid colour %q", s)
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func withAlpha(c color.Color, a uint8) color.Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = a
	return n
}

func save(p *plot.Plot, w, h vg.Length, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}
