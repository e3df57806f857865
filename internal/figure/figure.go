// Package figure rasterizes the renderer's plot series with gonum/plot.
package figure

import (
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/banshee-data/liveplot/internal/protocol"
)

// DPI is the rasterization resolution. Text sizes are in points, so this
// sets how large labels appear on screen.
const DPI = 96

var (
	background = color.RGBA{R: 0x19, G: 0x19, B: 0x19, A: 0xff}
	foreground = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// Axis is the persistent axis configuration. Fields only change through
// Apply and are never reset by data updates.
type Axis struct {
	XLabel, YLabel string
	XRange, YRange *protocol.Range
}

// Apply overwrites the fields set in cmd.
func (a *Axis) Apply(cmd protocol.SetAxis) {
	if cmd.XLabel != nil {
		a.XLabel = *cmd.XLabel
	}
	if cmd.YLabel != nil {
		a.YLabel = *cmd.YLabel
	}
	if cmd.XRange != nil {
		r := *cmd.XRange
		a.XRange = &r
	}
	if cmd.YRange != nil {
		r := *cmd.YRange
		a.YRange = &r
	}
}

// Figure owns the colormap, the frame buffer and the mapping between frame
// pixels and data coordinates of the last render.
type Figure struct {
	width, height int
	colormap      palette.ColorMap
	img           *image.RGBA

	// Last render, for cursor readout.
	data   draw.Canvas
	xr, yr protocol.Range
	drawn  bool
}

// New returns a figure rendering into a width x height pixel frame.
func New(width, height int) (*Figure, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid figure size %dx%d", width, height)
	}
	cm := moreland.Kindlmann()
	cm.SetMax(1)
	cm.SetMin(0)
	return &Figure{
		width:    width,
		height:   height,
		colormap: cm,
		img:      image.NewRGBA(image.Rect(0, 0, width, height)),
	}, nil
}

// Size returns the frame size in pixels.
func (f *Figure) Size() (int, int) {
	return f.width, f.height
}

// NewPrimitive builds the drawable for a series of the given kind.
func (f *Figure) NewPrimitive(kind protocol.Kind, style protocol.Style) (Primitive, error) {
	switch kind {
	case protocol.KindLine:
		return newLine(style, foreground), nil
	case protocol.KindScatter:
		return newScatter(style, foreground, f.colormap), nil
	default:
		return nil, fmt.Errorf("unsupported plot kind %v", kind)
	}
}

// Render draws the primitives with the axis configuration into the frame and
// returns it. The returned image is reused by the next Render.
func (f *Figure) Render(axis Axis, prims []Primitive) (*image.RGBA, error) {
	p := plot.New()
	applyTheme(p)

	grid := plotter.NewGrid()
	gridColor := withAlpha(foreground, 0.3)
	grid.Vertical.Color = gridColor
	grid.Horizontal.Color = gridColor
	p.Add(grid)

	for _, prim := range prims {
		if _, _, ok := prim.bounds(); ok {
			p.Add(prim.item())
		}
		if name := prim.label(); name != "" {
			p.Legend.Add(name, prim.thumbnail())
		}
	}

	xr, yr := dataRanges(prims)
	if axis.XRange != nil {
		xr = *axis.XRange
	}
	if axis.YRange != nil {
		yr = *axis.YRange
	}
	xr, yr = sanitize(xr), sanitize(yr)
	p.X.Min, p.X.Max = xr.Min, xr.Max
	p.Y.Min, p.Y.Max = yr.Min, yr.Max
	p.X.Label.Text = axis.XLabel
	p.Y.Label.Text = axis.YLabel

	w := vg.Length(f.width) * vg.Inch / DPI
	h := vg.Length(f.height) * vg.Inch / DPI
	c := vgimg.NewWith(vgimg.UseWH(w, h), vgimg.UseDPI(DPI), vgimg.UseBackgroundColor(background))
	dc := draw.New(c)
	p.Draw(dc)
	imagedraw.Draw(f.img, f.img.Bounds(), c.Image(), image.Point{}, imagedraw.Src)

	f.data = p.DataCanvas(dc)
	f.xr, f.yr = xr, yr
	f.drawn = true
	return f.img, nil
}

// Ranges returns the effective axis ranges of the last render.
func (f *Figure) Ranges() (xr, yr protocol.Range) {
	return f.xr, f.yr
}

// DataAt maps a frame pixel (origin top left) to data coordinates. ok is
// false before the first render or when the pixel lies outside the data area.
func (f *Figure) DataAt(px, py int) (x, y float64, ok bool) {
	if !f.drawn {
		return 0, 0, false
	}
	scale := vg.Length(72.0 / DPI)
	ptX := vg.Length(px) * scale
	ptY := vg.Length(f.height-py) * scale

	r := f.data.Rectangle
	w, h := r.Max.X-r.Min.X, r.Max.Y-r.Min.Y
	if w <= 0 || h <= 0 {
		return 0, 0, false
	}
	fx := float64((ptX - r.Min.X) / w)
	fy := float64((ptY - r.Min.Y) / h)
	if fx < 0 || fx > 1 || fy < 0 || fy > 1 {
		return 0, 0, false
	}
	x = f.xr.Min + fx*(f.xr.Max-f.xr.Min)
	y = f.yr.Min + fy*(f.yr.Max-f.yr.Min)
	return x, y, true
}

// Readout formats the cursor position the way the window label shows it.
func Readout(x, y float64) string {
	return fmt.Sprintf("x %.2f, y %.2f", x, y)
}

func applyTheme(p *plot.Plot) {
	p.BackgroundColor = background
	p.Title.TextStyle.Color = foreground
	p.Legend.TextStyle.Color = foreground
	p.Legend.Top = true
	for _, a := range []*plot.Axis{&p.X, &p.Y} {
		a.Color = foreground
		a.Label.TextStyle.Color = foreground
		a.Tick.Color = foreground
		a.Tick.Label.Color = foreground
	}
}

// dataRanges returns the union extent of all primitives, or [0, 1] on both
// axes when nothing has finite data yet.
func dataRanges(prims []Primitive) (xr, yr protocol.Range) {
	xr = protocol.Range{Min: math.Inf(1), Max: math.Inf(-1)}
	yr = xr
	found := false
	for _, prim := range prims {
		pxr, pyr, ok := prim.bounds()
		if !ok {
			continue
		}
		found = true
		xr.Min, xr.Max = math.Min(xr.Min, pxr.Min), math.Max(xr.Max, pxr.Max)
		yr.Min, yr.Max = math.Min(yr.Min, pyr.Min), math.Max(yr.Max, pyr.Max)
	}
	if !found {
		return protocol.Range{Min: 0, Max: 1}, protocol.Range{Min: 0, Max: 1}
	}
	return xr, yr
}

// rangeLimit bounds axis limits so that Max-Min stays finite.
const rangeLimit = math.MaxFloat64 / 4

// resolution is the smallest span, relative to the magnitude of the bounds,
// an axis may have. Narrower spans give tick steps below float precision.
const resolution = 1e-9

// sanitize orders the bounds, clamps them to +-rangeLimit and widens an
// interval too narrow to tick. An empty interval near the origin grows by one
// unit each side, as gonum/plot does for its own autoscaling.
func sanitize(r protocol.Range) protocol.Range {
	if !finite(r.Min) || !finite(r.Max) {
		return protocol.Range{Min: 0, Max: 1}
	}
	if r.Min > r.Max {
		r.Min, r.Max = r.Max, r.Min
	}
	r.Min = clamp(r.Min, -rangeLimit, rangeLimit)
	r.Max = clamp(r.Max, -rangeLimit, rangeLimit)

	mag := math.Max(math.Abs(r.Min), math.Abs(r.Max))
	if r.Min == r.Max {
		pad := math.Max(1, mag*resolution)
		return protocol.Range{Min: r.Min - pad, Max: r.Max + pad}
	}
	if span := mag * resolution; r.Max-r.Min < span {
		mid := r.Min + (r.Max-r.Min)/2
		return protocol.Range{Min: mid - span/2, Max: mid + span/2}
	}
	return r
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
