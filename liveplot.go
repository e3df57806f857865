// Package liveplot streams numeric data to a plot window running in a
// separate renderer process.
//
// A Session starts the renderer (the liveplot-renderer binary) on its first
// plotting call and sends it commands over a pipe. Calls made with Live
// return as soon as the commands are queued; other calls block until the
// window is closed:
//
//	s, err := liveplot.NewSession(liveplot.DefaultOptions())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer s.Close()
//
//	id, err := s.Plot(nil, ys, liveplot.Live(), liveplot.Name("signal"))
//	for range ticker.C {
//		s.Plot(xs, next(), liveplot.Live(), liveplot.PlotID(id))
//	}
//
// Once the user closes the window, later live calls are discarded and
// blocking calls return at once.
package liveplot

import "sync"

var (
	defaultOnce    sync.Once
	defaultSession *Session
)

// Default returns the package-level session used by Plot and Scatter,
// created with DefaultOptions on first use.
func Default() *Session {
	defaultOnce.Do(func() {
		defaultSession = newSession(DefaultOptions())
	})
	return defaultSession
}

// Plot calls Plot on the default session.
func Plot(x, y []float64, opts ...PlotOption) (int, error) {
	return Default().Plot(x, y, opts...)
}

// Scatter calls Scatter on the default session.
func Scatter(x, y, colors []float64, opts ...PlotOption) (int, error) {
	return Default().Scatter(x, y, colors, opts...)
}
