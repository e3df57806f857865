package renderer

import (
	"context"
)

// RunHeadless drives r from a ticker on clock until the command stream
// ends, the tick budget from the configuration is spent, or ctx is done.
// The renderer is terminated on return.
func RunHeadless(ctx context.Context, r *Renderer) error {
	cfg := r.Config()
	t := r.clock.NewTicker(cfg.TickInterval)
	defer t.Stop()

	var ticks int
	for {
		select {
		case <-ctx.Done():
			r.Terminate()
			return ctx.Err()
		case <-t.C():
			if r.Tick() {
				return nil
			}
			ticks++
			if cfg.HeadlessTicks > 0 && ticks >= cfg.HeadlessTicks {
				logf("tick budget of %d spent", cfg.HeadlessTicks)
				r.Terminate()
				return nil
			}
		}
	}
}
