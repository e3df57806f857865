// Package renderer implements the render loop of the renderer process: it
// drains plot commands, applies them to the series registry and redraws the
// figure once per tick.
//
// All Renderer methods except State, Stats and Key must be called from the
// goroutine that drives Tick (the window's game loop or the headless
// ticker).
package renderer

import (
	"errors"
	"fmt"
	"image"
	"sync/atomic"

	"github.com/banshee-data/liveplot/internal/config"
	"github.com/banshee-data/liveplot/internal/figure"
	"github.com/banshee-data/liveplot/internal/monitoring"
	"github.com/banshee-data/liveplot/internal/protocol"
	"github.com/banshee-data/liveplot/internal/queue"
	"github.com/banshee-data/liveplot/internal/registry"
	"github.com/banshee-data/liveplot/internal/timeutil"
)

var logf = monitoring.Prefixed("Renderer")

// ErrState is returned by Start when the renderer was already started.
var ErrState = errors.New("renderer: invalid state")

// EmitFunc delivers an event to the session.
type EmitFunc func(protocol.Event) error

// Renderer owns the registry, the figure and the frame buffer.
type Renderer struct {
	cfg   config.Renderer
	queue *queue.Queue[protocol.Command]
	emit  EmitFunc
	clock timeutil.Clock

	state atomic.Int32

	// Built by Start.
	fig   *figure.Figure
	reg   *registry.Registry
	axis  figure.Axis
	prims []figure.Primitive
	fps   *FPSCounter

	batch []protocol.Command
	frame *image.RGBA
	dirty bool

	// Stats
	ticks          atomic.Uint64
	rasterizations atomic.Uint64
	applied        atomic.Uint64
	dropped        atomic.Uint64
}

// New returns a renderer consuming q. emit may be nil when nobody listens
// for events.
func New(cfg config.Renderer, q *queue.Queue[protocol.Command], emit EmitFunc, clock timeutil.Clock) *Renderer {
	if emit == nil {
		emit = func(protocol.Event) error { return nil }
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Renderer{cfg: cfg, queue: q, emit: emit, clock: clock}
}

// Start builds the figure and an empty registry. The readiness event is sent
// by the first Tick, once the loop that applies commands is running.
func (r *Renderer) Start() error {
	if !r.state.CompareAndSwap(int32(StateUninitialized), int32(StateStarting)) {
		return fmt.Errorf("%w: start in %v", ErrState, r.State())
	}
	logf("session %s starting %dx%d tick=%v headless=%v", r.cfg.SessionID, r.cfg.Width, r.cfg.Height, r.cfg.TickInterval, r.cfg.Headless)

	fig, err := figure.New(r.cfg.Width, r.cfg.Height)
	if err != nil {
		r.state.Store(int32(StateTerminated))
		return fmt.Errorf("failed to build figure: %w", err)
	}
	r.fig = fig
	r.reg = registry.New()
	r.fps = NewFPSCounter(r.clock)
	r.dirty = true

	r.state.Store(int32(StateReady))
	return nil
}

// State returns the lifecycle state. Safe for concurrent use.
func (r *Renderer) State() State {
	return State(r.state.Load())
}

// Tick runs one pass of the loop: drain every queued command, apply axis
// changes, then plot changes in order, then redraw once. It reports true
// when the renderer has terminated and the caller should stop ticking.
func (r *Renderer) Tick() bool {
	switch r.State() {
	case StateTerminated:
		return true
	case StateReady:
		r.state.Store(int32(StateRunning))
		if err := r.emit(protocol.Ready{}); err != nil {
			logf("failed to send ready: %v", err)
		}
	case StateRunning:
	default:
		logf("tick before start")
		return false
	}

	var closed bool
	r.batch, closed = r.queue.Drain(r.batch[:0])
	r.apply(r.batch)
	clear(r.batch)

	r.redraw()
	r.ticks.Add(1)
	if r.fps.Frame() && r.cfg.ShowFPS && r.cfg.Headless {
		logf("%s", r.fps)
	}

	if closed {
		logf("command stream closed")
		r.Terminate()
		return true
	}
	return false
}

// apply applies every SetAxis in the batch before any plot command, keeping
// plot commands in their queued order.
func (r *Renderer) apply(batch []protocol.Command) {
	for _, c := range batch {
		if ax, ok := c.(protocol.SetAxis); ok {
			r.axis.Apply(ax)
			r.dirty = true
			r.applied.Add(1)
		}
	}
	for _, c := range batch {
		switch c := c.(type) {
		case protocol.SetAxis:
		case protocol.AddPlot:
			r.addPlot(c)
		case protocol.UpdateData:
			r.updateData(c)
		default:
			logf("dropping unexpected command %T", c)
			r.dropped.Add(1)
		}
	}
}

func (r *Renderer) addPlot(c protocol.AddPlot) {
	prim, err := r.fig.NewPrimitive(c.Kind, c.Style)
	if err != nil {
		// The id is still consumed so later ids agree with the session.
		logf("plot %d: %v", r.reg.Len(), err)
		r.reg.Add(c.Kind, c.Style, nil)
		r.dropped.Add(1)
		return
	}
	s := r.reg.Add(c.Kind, c.Style, prim)
	r.prims = append(r.prims, prim)
	r.applied.Add(1)
	r.dirty = true
	logf("added %v plot %d %q", c.Kind, s.ID, c.Style.Name)
}

func (r *Renderer) updateData(c protocol.UpdateData) {
	if err := r.reg.Update(c.PlotID, c.X, c.Y, c.Colors); err != nil {
		logf("dropping update: %v", err)
		r.dropped.Add(1)
		return
	}
	r.applied.Add(1)
	r.dirty = true
}

// redraw rasterizes the figure when something changed since the last frame.
func (r *Renderer) redraw() {
	if !r.dirty && r.frame != nil {
		return
	}
	img, err := r.fig.Render(r.axis, r.prims)
	if err != nil {
		logf("render failed: %v", err)
		return
	}
	r.frame = img
	r.dirty = false
	r.rasterizations.Add(1)
}

// Terminate stops the renderer. Later ticks do nothing. Safe for concurrent
// use.
func (r *Renderer) Terminate() {
	if State(r.state.Swap(int32(StateTerminated))) == StateTerminated {
		return
	}
	s := r.Stats()
	logf("terminated: ticks=%d rasterizations=%d applied=%d dropped=%d", s.Ticks, s.Rasterizations, s.Applied, s.Dropped)
}

// Key forwards a window key press to the session. Safe for concurrent use
// with the tick goroutine as long as emit is.
func (r *Renderer) Key(code protocol.KeyCode) {
	if err := r.emit(protocol.Key{Code: code}); err != nil {
		logf("failed to send key %v: %v", code, err)
	}
}

// Frame returns the last rasterized frame, or nil before the first tick.
// The image is overwritten by later ticks.
func (r *Renderer) Frame() *image.RGBA {
	return r.frame
}

// Axis returns the current axis configuration.
func (r *Renderer) Axis() figure.Axis {
	return r.axis
}

// Series returns series id as last applied.
func (r *Renderer) Series(id int) (*registry.Series, bool) {
	if r.reg == nil {
		return nil, false
	}
	return r.reg.Get(id)
}

// SeriesCount returns the number of series added so far.
func (r *Renderer) SeriesCount() int {
	if r.reg == nil {
		return 0
	}
	return r.reg.Len()
}

// Readout returns the data coordinates under frame pixel (px, py), or "" when
// the pixel is outside the data area.
func (r *Renderer) Readout(px, py int) string {
	if r.fig == nil {
		return ""
	}
	x, y, ok := r.fig.DataAt(px, py)
	if !ok {
		return ""
	}
	return figure.Readout(x, y)
}

// FPS returns the frame-rate counter text.
func (r *Renderer) FPS() string {
	if r.fps == nil {
		return ""
	}
	return r.fps.String()
}

// Config returns the renderer configuration.
func (r *Renderer) Config() config.Renderer {
	return r.cfg
}

// Stats returns current renderer statistics. Safe for concurrent use.
func (r *Renderer) Stats() Stats {
	return Stats{
		Ticks:          r.ticks.Load(),
		Rasterizations: r.rasterizations.Load(),
		Applied:        r.applied.Load(),
		Dropped:        r.dropped.Load(),
	}
}

// Stats contains renderer statistics.
type Stats struct {
	Ticks          uint64
	Rasterizations uint64
	Applied        uint64
	Dropped        uint64
}
