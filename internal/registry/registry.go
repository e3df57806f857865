// Package registry tracks the plot series owned by a renderer.
package registry

import (
	"errors"
	"fmt"

	"github.com/banshee-data/liveplot/internal/protocol"
)

var (
	// ErrUnknownPlot is returned for an update naming an id never added.
	ErrUnknownPlot = errors.New("unknown plot id")
	// ErrLengthMismatch is returned when x, y and colors disagree in length.
	ErrLengthMismatch = errors.New("buffer length mismatch")
)

// Drawable is the primitive a series pushes its buffers to. It is built once,
// when the series is added, for the series kind.
type Drawable interface {
	SetData(x, y, colors []float64)
}

// Series is one plot series.
type Series struct {
	ID    int
	Kind  protocol.Kind
	Style protocol.Style

	X, Y   []float64
	Colors []float64

	Drawable Drawable
}

// Registry assigns dense ids from 0 and never reuses them. It is owned by the
// render loop and is not safe for concurrent use.
type Registry struct {
	series []*Series
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// Add registers a series and returns it with the next id.
func (r *Registry) Add(kind protocol.Kind, style protocol.Style, d Drawable) *Series {
	s := &Series{
		ID:       len(r.series),
		Kind:     kind,
		Style:    style,
		X:        []float64{},
		Y:        []float64{},
		Drawable: d,
	}
	r.series = append(r.series, s)
	return s
}

// Update replaces the buffers of series id. Buffers are taken over by the
// registry; callers must not modify them afterwards. Nil colors keep the
// previous per-point colors.
func (r *Registry) Update(id int, x, y, colors []float64) error {
	s, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("%w: %d (have %d)", ErrUnknownPlot, id, len(r.series))
	}
	if len(x) != len(y) {
		return fmt.Errorf("%w: plot %d has %d x and %d y values", ErrLengthMismatch, id, len(x), len(y))
	}
	if colors != nil && len(colors) != len(y) {
		return fmt.Errorf("%w: plot %d has %d colors for %d points", ErrLengthMismatch, id, len(colors), len(y))
	}

	s.X, s.Y = x, y
	if colors != nil {
		s.Colors = colors
	} else if len(s.Colors) != len(y) {
		s.Colors = nil
	}
	if s.Drawable != nil {
		s.Drawable.SetData(s.X, s.Y, s.Colors)
	}
	return nil
}

// Get returns series id.
func (r *Registry) Get(id int) (*Series, bool) {
	if id < 0 || id >= len(r.series) {
		return nil, false
	}
	return r.series[id], true
}

// Len returns the number of series ever added.
func (r *Registry) Len() int {
	return len(r.series)
}

// All returns the series in id order. The slice must not be modified.
func (r *Registry) All() []*Series {
	return r.series
}
