// Command liveplot-demo animates a sine wave in a liveplot window.
//
// In the window, digit keys set the wave frequency and Up/Down change the
// amplitude. Option 1 (press 1 or Right Alt) adds a scatter of samples
// colored by height.
package main

import (
	"flag"
	"log"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/liveplot"
)

func main() {
	points := flag.Int("points", 200, "Points per frame")
	rate := flag.Float64("rate", 30, "Frame rate in Hz")
	duration := flag.Duration("duration", 0, "Stop after this long (0 = until the window closes)")
	renderer := flag.String("renderer", liveplot.DefaultRendererPath, "Renderer binary")
	showFPS := flag.Bool("fps", false, "Show the renderer frame rate")
	flag.Parse()

	opts := liveplot.DefaultOptions()
	opts.RendererPath = *renderer
	opts.Title = "liveplot demo"
	opts.ShowFPS = *showFPS
	s, err := liveplot.NewSession(opts)
	if err != nil {
		log.Fatalf("Failed to create session: %v", err)
	}
	defer s.Close()

	must := func(err error) {
		if err != nil {
			log.Fatalf("Plot failed: %v", err)
		}
	}
	must(s.SetXLabel("phase [rad]"))
	must(s.SetYLabel("amplitude"))
	must(s.SetXRange(0, 2*math.Pi))
	must(s.SetYRange(-2, 2))

	xs := make([]float64, *points)
	floats.Span(xs, 0, 2*math.Pi)
	ys := make([]float64, *points)

	wave, err := s.Plot(xs, ys, liveplot.Live(), liveplot.Name("sine"), liveplot.Color("c"))
	must(err)
	dots := -1

	ticker := time.NewTicker(time.Duration(float64(time.Second) / *rate))
	defer ticker.Stop()
	start := time.Now()
	amp := 1.0

	log.Printf("Streaming %d points at %.0f Hz", *points, *rate)
	for now := range ticker.C {
		if !s.Alive() {
			log.Printf("Window closed")
			return
		}
		if *duration > 0 && now.Sub(start) > *duration {
			return
		}

		switch s.Keys().OptionOnce() {
		case 1:
			amp = math.Min(amp+0.25, 2)
		case 2:
			amp = math.Max(amp-0.25, 0.25)
		}
		freq := float64(s.Keys().Option() + 1)

		t := now.Sub(start).Seconds()
		for i, x := range xs {
			ys[i] = amp * math.Sin(freq*x-2*t)
		}
		_, err := s.Plot(xs, ys, liveplot.Live(), liveplot.PlotID(wave))
		must(err)

		// Every tenth point as a scatter, colored by height.
		if s.Keys().Option() == 1 || dots >= 0 {
			sx, sy := make([]float64, 0, len(xs)/10), make([]float64, 0, len(xs)/10)
			for i := 0; i < len(xs); i += 10 {
				sx = append(sx, xs[i])
				sy = append(sy, ys[i])
			}
			var popts []liveplot.PlotOption
			if dots >= 0 {
				popts = append(popts, liveplot.PlotID(dots))
			} else {
				popts = append(popts, liveplot.Name("samples"), liveplot.Size(8))
			}
			id, err := s.Scatter(sx, sy, sy, append(popts, liveplot.Live())...)
			must(err)
			dots = id
		}
	}
}
