package liveplot

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/liveplot/internal/config"
)

// DefaultRendererPath is the renderer binary looked up on PATH.
const DefaultRendererPath = "liveplot-renderer"

// Options configures a Session and the renderer process it spawns.
type Options struct {
	// RendererPath is the renderer binary. A bare name is looked up on PATH.
	RendererPath string

	// Window
	Title         string
	Width, Height int
	ShowFPS       bool

	// TickInterval is the renderer's drain/redraw period.
	TickInterval time.Duration

	// Headless runs the renderer without a window, for tests and batch jobs.
	Headless bool
	// HeadlessTicks stops a headless renderer after that many ticks, standing
	// in for the user closing the window. Zero runs until Close.
	HeadlessTicks int

	// StartTimeout bounds the wait for the renderer's readiness signal.
	StartTimeout time.Duration

	// Spawner starts the renderer process. Nil uses ExecSpawner with
	// RendererPath.
	Spawner Spawner
}

// DefaultOptions returns the default session options.
func DefaultOptions() Options {
	cfg := config.DefaultRenderer()
	return Options{
		RendererPath: DefaultRendererPath,
		Title:        cfg.Title,
		Width:        cfg.Width,
		Height:       cfg.Height,
		TickInterval: cfg.TickInterval,
		StartTimeout: 10 * time.Second,
	}
}

// Validate checks the options without starting anything.
func (o Options) Validate() error {
	if o.StartTimeout <= 0 {
		return fmt.Errorf("start timeout must be positive, got %v", o.StartTimeout)
	}
	if o.Spawner == nil && o.RendererPath == "" {
		return fmt.Errorf("renderer path is empty")
	}
	return o.rendererConfig(uuid.Nil).Validate()
}

func (o Options) rendererConfig(id uuid.UUID) config.Renderer {
	return config.Renderer{
		SessionID:     id,
		Title:         o.Title,
		Width:         o.Width,
		Height:        o.Height,
		TickInterval:  o.TickInterval,
		ShowFPS:       o.ShowFPS,
		Headless:      o.Headless,
		HeadlessTicks: o.HeadlessTicks,
	}
}

func (o Options) spawner() Spawner {
	if o.Spawner != nil {
		return o.Spawner
	}
	return ExecSpawner{Path: o.RendererPath}
}

// PlotOption customizes one Plot or Scatter call.
type PlotOption func(*plotOptions)

type plotOptions struct {
	live  bool
	hasID bool
	id    int
	color string
	width float64
	size  float64
	name  string
}

// Live makes the call return as soon as the commands are queued.
func Live() PlotOption {
	return func(o *plotOptions) { o.live = true }
}

// PlotID targets an existing series, or the next free id to create one.
func PlotID(id int) PlotOption {
	return func(o *plotOptions) { o.hasID, o.id = true, id }
}

// Color sets the series color: a single-letter code, an SVG color name or
// "#rrggbb". Only used when the series is created.
func Color(c string) PlotOption {
	return func(o *plotOptions) { o.color = c }
}

// LineWidth sets the line width in points.
func LineWidth(w float64) PlotOption {
	return func(o *plotOptions) { o.width = w }
}

// Size sets the scatter marker size in points.
func Size(s float64) PlotOption {
	return func(o *plotOptions) { o.size = s }
}

// Name sets the legend label.
func Name(n string) PlotOption {
	return func(o *plotOptions) { o.name = n }
}

func buildPlotOptions(opts []PlotOption) plotOptions {
	var po plotOptions
	for _, opt := range opts {
		opt(&po)
	}
	return po
}
