package renderer

import (
	"fmt"
	"time"

	"github.com/banshee-data/liveplot/internal/timeutil"
)

// FPSCounter measures redraws per second of wall-clock time. The rate is
// recomputed once at least a second has passed since the last computation,
// regardless of how fast frames arrive.
type FPSCounter struct {
	clock  timeutil.Clock
	start  time.Time
	frames int
	fps    float64
}

// NewFPSCounter starts a counter at the clock's current time.
func NewFPSCounter(clock timeutil.Clock) *FPSCounter {
	return &FPSCounter{clock: clock, start: clock.Now()}
}

// Frame records one redraw. It reports whether the rate was recomputed.
func (c *FPSCounter) Frame() bool {
	c.frames++
	elapsed := c.clock.Since(c.start)
	if elapsed < time.Second {
		return false
	}
	c.fps = float64(c.frames) / elapsed.Seconds()
	c.frames = 0
	c.start = c.clock.Now()
	return true
}

// FPS returns the last computed rate.
func (c *FPSCounter) FPS() float64 {
	return c.fps
}

func (c *FPSCounter) String() string {
	return fmt.Sprintf("FPS: %.1f", c.fps)
}
