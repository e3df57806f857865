package figure

import (
	"image/color"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/liveplot/internal/protocol"
)

const (
	defaultLineWidth  = 2
	defaultMarkerSize = 10
)

// Primitive is the drawable built for a series when it is added. Lines and
// scatters differ only here; the render loop never inspects the kind again.
type Primitive interface {
	// SetData replaces the point buffers. colors may be nil.
	SetData(x, y, colors []float64)

	item() plot.Plotter
	thumbnail() plot.Thumbnailer
	label() string
	bounds() (xr, yr protocol.Range, ok bool)
}

type extent struct {
	xr, yr protocol.Range
	ok     bool
}

// measure returns the finite extent of the points.
func measure(x, y []float64) extent {
	e := extent{
		xr: protocol.Range{Min: math.Inf(1), Max: math.Inf(-1)},
		yr: protocol.Range{Min: math.Inf(1), Max: math.Inf(-1)},
	}
	for i := range x {
		if !finite(x[i]) || !finite(y[i]) {
			continue
		}
		e.xr.Min = math.Min(e.xr.Min, x[i])
		e.xr.Max = math.Max(e.xr.Max, x[i])
		e.yr.Min = math.Min(e.yr.Min, y[i])
		e.yr.Max = math.Max(e.yr.Max, y[i])
		e.ok = true
	}
	return e
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func toXYs(x, y []float64) plotter.XYs {
	xys := make(plotter.XYs, len(x))
	for i := range x {
		xys[i] = plotter.XY{X: x[i], Y: y[i]}
	}
	return xys
}

type linePrimitive struct {
	name string
	line *plotter.Line
	ext  extent
}

func newLine(style protocol.Style, fallback color.Color) *linePrimitive {
	l := &plotter.Line{}
	l.Color = fallback
	if c, err := ParseColor(style.Color); err == nil {
		l.Color = c
	}
	l.Width = vg.Points(defaultLineWidth)
	if style.Width > 0 {
		l.Width = vg.Points(style.Width)
	}
	return &linePrimitive{name: style.Name, line: l}
}

func (p *linePrimitive) SetData(x, y, _ []float64) {
	p.line.XYs = toXYs(x, y)
	p.ext = measure(x, y)
}

func (p *linePrimitive) item() plot.Plotter          { return p.line }
func (p *linePrimitive) thumbnail() plot.Thumbnailer { return p.line }
func (p *linePrimitive) label() string               { return p.name }
func (p *linePrimitive) bounds() (protocol.Range, protocol.Range, bool) {
	return p.ext.xr, p.ext.yr, p.ext.ok
}

type scatterPrimitive struct {
	name     string
	scatter  *plotter.Scatter
	colormap palette.ColorMap
	brushes  []color.Color
	ext      extent
}

func newScatter(style protocol.Style, fallback color.Color, cm palette.ColorMap) *scatterPrimitive {
	s := &plotter.Scatter{}
	s.GlyphStyle = draw.GlyphStyle{
		Color:  fallback,
		Radius: vg.Points(defaultMarkerSize / 2),
		Shape:  draw.CircleGlyph{},
	}
	if c, err := ParseColor(style.Color); err == nil {
		s.GlyphStyle.Color = c
	}
	if style.Size > 0 {
		s.GlyphStyle.Radius = vg.Points(style.Size / 2)
	}
	p := &scatterPrimitive{name: style.Name, scatter: s, colormap: cm}
	s.GlyphStyleFunc = p.glyph
	return p
}

func (p *scatterPrimitive) SetData(x, y, colors []float64) {
	p.scatter.XYs = toXYs(x, y)
	p.ext = measure(x, y)
	p.brushes = p.brushes[:0]
	if len(colors) > 0 && len(colors) == len(x) {
		p.brushes = mapColors(p.colormap, colors, p.scatter.GlyphStyle.Color, p.brushes)
	}
}

func (p *scatterPrimitive) glyph(i int) draw.GlyphStyle {
	gs := p.scatter.GlyphStyle
	if i < len(p.brushes) {
		gs.Color = p.brushes[i]
	}
	return gs
}

func (p *scatterPrimitive) item() plot.Plotter          { return p.scatter }
func (p *scatterPrimitive) thumbnail() plot.Thumbnailer { return p.scatter }
func (p *scatterPrimitive) label() string               { return p.name }
func (p *scatterPrimitive) bounds() (protocol.Range, protocol.Range, bool) {
	return p.ext.xr, p.ext.yr, p.ext.ok
}

// mapColors normalizes values onto [0, 1] and looks each one up in cm, which
// must span [0, 1]. A constant input maps every point to the low end; values
// the colormap rejects (NaN) get the fallback color.
func mapColors(cm palette.ColorMap, values []float64, fallback color.Color, dst []color.Color) []color.Color {
	lo, hi := floats.Min(values), floats.Max(values)
	span := hi - lo
	for _, v := range values {
		z := 0.0
		if span > 0 && finite(span) {
			z = (v - lo) / span
		}
		c, err := cm.At(z)
		if err != nil {
			c = fallback
		}
		dst = append(dst, c)
	}
	return dst
}
