// Package config holds the renderer process configuration and its
// command-line encoding.
//
// The session builds a Renderer from the caller's options and passes it to
// the renderer binary as flags; the binary parses the same flags back. Args
// and ParseRendererArgs are inverse operations.
package config

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Defaults for a renderer window.
const (
	DefaultTitle        = "liveplot"
	DefaultWidth        = 800
	DefaultHeight       = 600
	DefaultTickInterval = time.Millisecond

	// MaxDimension bounds the window size in pixels.
	MaxDimension = 8192
)

// Renderer configures one renderer process.
type Renderer struct {
	// SessionID ties renderer log lines to the session that spawned it.
	SessionID uuid.UUID
	Title     string
	Width     int
	Height    int

	// TickInterval is the period of the drain/redraw tick.
	TickInterval time.Duration
	// ShowFPS enables the frame-rate counter.
	ShowFPS bool

	// Headless runs the tick loop without a window.
	Headless bool
	// HeadlessTicks terminates a headless renderer after that many ticks.
	// Zero runs until the command stream ends.
	HeadlessTicks int
}

// DefaultRenderer returns the default configuration with a fresh session id.
func DefaultRenderer() Renderer {
	return Renderer{
		SessionID:    uuid.New(),
		Title:        DefaultTitle,
		Width:        DefaultWidth,
		Height:       DefaultHeight,
		TickInterval: DefaultTickInterval,
	}
}

// Validate checks that the configuration values are usable.
func (c Renderer) Validate() error {
	if c.Width <= 0 || c.Width > MaxDimension {
		return fmt.Errorf("width must be between 1 and %d, got %d", MaxDimension, c.Width)
	}
	if c.Height <= 0 || c.Height > MaxDimension {
		return fmt.Errorf("height must be between 1 and %d, got %d", MaxDimension, c.Height)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %v", c.TickInterval)
	}
	if c.HeadlessTicks < 0 {
		return fmt.Errorf("headless ticks must be non-negative, got %d", c.HeadlessTicks)
	}
	if c.HeadlessTicks > 0 && !c.Headless {
		return fmt.Errorf("headless ticks set without headless mode")
	}
	return nil
}

// Args encodes c as renderer command-line flags.
func (c Renderer) Args() []string {
	args := []string{
		"-session", c.SessionID.String(),
		"-title", c.Title,
		"-width", strconv.Itoa(c.Width),
		"-height", strconv.Itoa(c.Height),
		"-tick", c.TickInterval.String(),
	}
	if c.ShowFPS {
		args = append(args, "-fps")
	}
	if c.Headless {
		args = append(args, "-headless")
	}
	if c.HeadlessTicks > 0 {
		args = append(args, "-headless-ticks", strconv.Itoa(c.HeadlessTicks))
	}
	return args
}

// FlagSet returns a flag set that fills c, with the current values of c as
// defaults. Callers may register additional flags before parsing.
func (c *Renderer) FlagSet(name string, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Func("session", "session id (uuid)", func(s string) error {
		id, err := uuid.Parse(s)
		if err != nil {
			return fmt.Errorf("invalid session id %q: %w", s, err)
		}
		c.SessionID = id
		return nil
	})
	fs.StringVar(&c.Title, "title", c.Title, "window title")
	fs.IntVar(&c.Width, "width", c.Width, "window width in pixels")
	fs.IntVar(&c.Height, "height", c.Height, "window height in pixels")
	fs.DurationVar(&c.TickInterval, "tick", c.TickInterval, "redraw tick interval")
	fs.BoolVar(&c.ShowFPS, "fps", c.ShowFPS, "show the frame-rate counter")
	fs.BoolVar(&c.Headless, "headless", c.Headless, "run without a window")
	fs.IntVar(&c.HeadlessTicks, "headless-ticks", c.HeadlessTicks, "exit a headless renderer after this many ticks (0 = until stdin closes)")
	return fs
}

// ParseRendererArgs decodes flags produced by Args and validates the result.
// Flags that are absent keep their DefaultRenderer value.
func ParseRendererArgs(args []string) (Renderer, error) {
	c := DefaultRenderer()
	fs := c.FlagSet("liveplot-renderer", io.Discard)
	if err := fs.Parse(args); err != nil {
		return Renderer{}, fmt.Errorf("failed to parse renderer flags: %w", err)
	}
	if fs.NArg() > 0 {
		return Renderer{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if err := c.Validate(); err != nil {
		return Renderer{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}
