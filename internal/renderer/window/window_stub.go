//go:build !cgo

package window

import (
	"context"
	"errors"

	"github.com/banshee-data/liveplot/internal/renderer"
)

// Run reports that window mode is unavailable in this build.
func Run(_ context.Context, r *renderer.Renderer) error {
	r.Terminate()
	return errors.New("window mode requires cgo (build with CGO_ENABLED=1, or run headless)")
}
