package renderer

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/banshee-data/liveplot/internal/config"
	"github.com/banshee-data/liveplot/internal/protocol"
	"github.com/banshee-data/liveplot/internal/queue"
	"github.com/banshee-data/liveplot/internal/timeutil"
)

// ErrNoWindow is returned by Serve for a windowed configuration when no
// window runner is available.
var ErrNoWindow = errors.New("renderer: window mode unavailable")

// WindowFunc runs r in a window until it terminates. Window toolkits need
// the main thread, so Serve calls it on the calling goroutine.
type WindowFunc func(ctx context.Context, r *Renderer) error

// MaxTicksPerSecond caps the window's tick rate at a common display refresh
// rate. Headless runs tick at the configured interval.
const MaxTicksPerSecond = 60

// TicksPerSecond converts a tick interval to a window tick rate in
// [1, MaxTicksPerSecond].
func TicksPerSecond(interval time.Duration) int {
	if interval <= 0 {
		return MaxTicksPerSecond
	}
	tps := int(time.Second / interval)
	return max(1, min(tps, MaxTicksPerSecond))
}

// Serve runs a renderer reading commands from in and writing events to out.
// It returns once the renderer terminates: at end of input, when the window
// closes, or when a headless tick budget is spent. A pump goroutine does the
// blocking reads from in; it may outlive Serve until in is closed.
func Serve(ctx context.Context, cfg config.Renderer, in io.Reader, out io.Writer, window WindowFunc) error {
	if !cfg.Headless && window == nil {
		return ErrNoWindow
	}

	ew := protocol.NewWriter(out)
	var mu sync.Mutex
	emit := func(e protocol.Event) error {
		mu.Lock()
		defer mu.Unlock()
		if err := ew.WriteEvent(e); err != nil {
			return err
		}
		return ew.Flush()
	}

	q := queue.New[protocol.Command]()
	r := New(cfg, q, emit, timeutil.RealClock{})
	if err := r.Start(); err != nil {
		return err
	}

	go func() {
		if err := queue.Pump(in, q); err != nil {
			logf("command stream failed: %v", err)
		}
	}()

	if cfg.Headless {
		return RunHeadless(ctx, r)
	}
	return window(ctx, r)
}
