package liveplot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/liveplot/internal/config"
	"github.com/banshee-data/liveplot/internal/monitoring"
	"github.com/banshee-data/liveplot/internal/protocol"
	"github.com/banshee-data/liveplot/internal/queue"
	"github.com/banshee-data/liveplot/internal/renderer"
)

func init() {
	monitoring.SetLogger(nil)
}

type serveFunc func(ctx context.Context, sp *pipeSpawner, cfg config.Renderer, in io.Reader, out io.Writer) error

// pipeSpawner runs a headless renderer in-process over io.Pipes and keeps a
// handle on it so tests can inspect the applied state once the session is
// closed.
type pipeSpawner struct {
	serve   serveFunc
	onStart func(*renderer.Renderer)

	mu       sync.Mutex
	spawns   int
	args     []string
	renderer *renderer.Renderer
}

func newPipeSpawner() *pipeSpawner {
	return &pipeSpawner{serve: serveHeadless}
}

func (sp *pipeSpawner) Spawn(args []string) (Process, error) {
	cfg, err := config.ParseRendererArgs(args)
	if err != nil {
		return nil, err
	}
	sp.mu.Lock()
	sp.spawns++
	sp.args = args
	sp.mu.Unlock()

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	p := &pipeProcess{stdin: inW, stdout: outR, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.err = sp.serve(ctx, sp, cfg, inR, outW)
		_ = outW.Close()
		_ = inR.CloseWithError(io.ErrClosedPipe)
	}()
	return p, nil
}

func (sp *pipeSpawner) spawnCount() int {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.spawns
}

func (sp *pipeSpawner) setRenderer(r *renderer.Renderer) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.renderer = r
}

func (sp *pipeSpawner) rendered() *renderer.Renderer {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.renderer
}

func serveHeadless(ctx context.Context, sp *pipeSpawner, cfg config.Renderer, in io.Reader, out io.Writer) error {
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
	r := renderer.New(cfg, q, emit, nil)
	if err := r.Start(); err != nil {
		return err
	}
	sp.setRenderer(r)
	if sp.onStart != nil {
		sp.onStart(r)
	}
	go func() { _ = queue.Pump(in, q) }()
	return renderer.RunHeadless(ctx, r)
}

type pipeProcess struct {
	stdin  *io.PipeWriter
	stdout *io.PipeReader
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func (p *pipeProcess) Stdin() io.WriteCloser { return p.stdin }
func (p *pipeProcess) Stdout() io.Reader     { return p.stdout }

func (p *pipeProcess) Wait() error {
	<-p.done
	return p.err
}

func (p *pipeProcess) Kill() error {
	p.cancel()
	return nil
}

func testOptions(sp Spawner) Options {
	opts := DefaultOptions()
	opts.Width, opts.Height = 320, 240
	opts.Headless = true
	opts.StartTimeout = 5 * time.Second
	opts.Spawner = sp
	return opts
}

func newTestSession(t *testing.T, opts Options) *Session {
	t.Helper()
	s, err := NewSession(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPlotAssignsSequentialIDs(t *testing.T) {
	sp := newPipeSpawner()
	s := newTestSession(t, testOptions(sp))

	for want := 0; want < 3; want++ {
		id, err := s.Plot(nil, []float64{1, 2, 3}, Live())
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}

	id, err := s.Plot([]float64{0, 1}, []float64{9, 8}, Live(), PlotID(1))
	require.NoError(t, err)
	assert.Equal(t, 1, id, "existing id is updated in place")

	id, err = s.Plot(nil, []float64{4}, Live())
	require.NoError(t, err)
	assert.Equal(t, 3, id)

	id, err = s.Plot(nil, []float64{5}, Live(), PlotID(4))
	require.NoError(t, err)
	assert.Equal(t, 4, id, "the next free id creates a series")

	require.NoError(t, s.Close())
	r := sp.rendered()
	require.NotNil(t, r)
	assert.Equal(t, 5, r.SeriesCount(), "resubmission never adds a series")
	series, ok := r.Series(1)
	require.True(t, ok)
	assert.Equal(t, []float64{9, 8}, series.Y)
	assert.Equal(t, 1, sp.spawnCount())
}

func TestPlotInvalidHandle(t *testing.T) {
	sp := newPipeSpawner()
	s := newTestSession(t, testOptions(sp))

	for _, id := range []int{-1, 1, 7} {
		_, err := s.Plot(nil, []float64{1}, Live(), PlotID(id))
		assert.ErrorIs(t, err, ErrInvalidHandle, "id %d", id)
	}
	assert.Zero(t, sp.spawnCount(), "rejected calls never start a renderer")

	_, err := s.Plot(nil, []float64{1}, Live())
	require.NoError(t, err)
	_, err = s.Scatter([]float64{1}, []float64{1}, nil, Live(), PlotID(2))
	assert.ErrorIs(t, err, ErrInvalidHandle)
}

func TestArgumentErrors(t *testing.T) {
	sp := newPipeSpawner()
	s := newTestSession(t, testOptions(sp))

	tests := []struct {
		name string
		call func() error
	}{
		{"plot without data", func() error { _, err := s.Plot(nil, nil, Live()); return err }},
		{"plot length mismatch", func() error { _, err := s.Plot([]float64{1, 2}, []float64{1}, Live()); return err }},
		{"scatter without x", func() error { _, err := s.Scatter(nil, []float64{1}, nil, Live()); return err }},
		{"scatter length mismatch", func() error { _, err := s.Scatter([]float64{1}, []float64{1, 2}, nil, Live()); return err }},
		{"scatter colors mismatch", func() error {
			_, err := s.Scatter([]float64{1, 2}, []float64{1, 2}, []float64{0}, Live())
			return err
		}},
		{"inverted x range", func() error { return s.SetXRange(2, 1) }},
		{"nan y range", func() error { return s.SetYRange(0, math.NaN()) }},
		{"infinite y range", func() error { return s.SetYRange(math.Inf(-1), 0) }},
		{"overflowing x range", func() error { return s.SetXRange(-1e308, 1e308) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), ErrArgument)
		})
	}
	assert.Zero(t, sp.spawnCount())
}

func TestPlotYOnlyUsesIndices(t *testing.T) {
	sp := newPipeSpawner()
	s := newTestSession(t, testOptions(sp))

	y := []float64{1, 2, 3}
	_, err := s.Plot(nil, y, Live())
	require.NoError(t, err)
	_, err = s.Plot([]float64{0, 1, 2}, y, Live())
	require.NoError(t, err)
	_, err = s.Plot(y, nil, Live())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	r := sp.rendered()
	want, _ := r.Series(1)
	for _, id := range []int{0, 2} {
		got, ok := r.Series(id)
		require.True(t, ok)
		if diff := cmp.Diff(want.X, got.X); diff != "" {
			t.Errorf("series %d x mismatch (-want +got):\n%s", id, diff)
		}
		if diff := cmp.Diff(want.Y, got.Y); diff != "" {
			t.Errorf("series %d y mismatch (-want +got):\n%s", id, diff)
		}
	}
}

func TestIndexSequence(t *testing.T) {
	assert.Equal(t, []float64{}, indexSequence(0))
	assert.Equal(t, []float64{0}, indexSequence(1))
	assert.Equal(t, []float64{0, 1, 2, 3}, indexSequence(4))
}

func TestLiveBuffersAreCopied(t *testing.T) {
	sp := newPipeSpawner()
	s := newTestSession(t, testOptions(sp))

	y := []float64{1, 2, 3}
	_, err := s.Plot(nil, y, Live())
	require.NoError(t, err)
	y[0] = 100
	require.NoError(t, s.Close())

	got, _ := sp.rendered().Series(0)
	assert.Equal(t, []float64{1, 2, 3}, got.Y)
}

func TestScatterAndAxis(t *testing.T) {
	sp := newPipeSpawner()
	s := newTestSession(t, testOptions(sp))

	require.NoError(t, s.SetXLabel("time"))
	require.NoError(t, s.SetYLabel("value"))
	require.NoError(t, s.SetXRange(0, 10))
	require.NoError(t, s.SetYRange(-1, 1))
	id, err := s.Scatter([]float64{1, 2}, []float64{0.5, -0.5}, []float64{0, 1}, Live(), Color("r"), Size(6), Name("pts"))
	require.NoError(t, err)
	assert.Equal(t, 0, id)
	require.NoError(t, s.Close())

	r := sp.rendered()
	ax := r.Axis()
	assert.Equal(t, "time", ax.XLabel)
	assert.Equal(t, "value", ax.YLabel)
	require.NotNil(t, ax.XRange)
	assert.Equal(t, protocol.Range{Min: 0, Max: 10}, *ax.XRange)
	require.NotNil(t, ax.YRange)
	assert.Equal(t, protocol.Range{Min: -1, Max: 1}, *ax.YRange)

	series, ok := r.Series(0)
	require.True(t, ok)
	assert.Equal(t, protocol.KindScatter, series.Kind)
	assert.Equal(t, protocol.Style{Name: "pts", Color: "r", Size: 6}, series.Style)
	assert.Equal(t, []float64{0, 1}, series.Colors)
}

func TestNonLiveWaitsForExit(t *testing.T) {
	sp := newPipeSpawner()
	opts := testOptions(sp)
	opts.HeadlessTicks = 30
	s := newTestSession(t, opts)

	_, err := s.Plot(nil, []float64{1, 2, 3})
	require.NoError(t, err)
	assert.False(t, s.Alive())
	assert.Equal(t, renderer.StateTerminated, sp.rendered().State())

	// The window is gone: blocking calls return at once, live calls are dropped.
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := s.Plot(nil, []float64{4})
		assert.NoError(t, err)
		_, err = s.Plot(nil, []float64{5}, Live())
		assert.NoError(t, err)
		assert.NoError(t, s.SetXLabel("late"))
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("calls after exit blocked")
	}
	assert.Equal(t, 1, sp.spawnCount(), "the renderer is spawned at most once")
}

func TestWait(t *testing.T) {
	sp := newPipeSpawner()
	opts := testOptions(sp)
	opts.HeadlessTicks = 20
	s := newTestSession(t, opts)

	require.NoError(t, s.Wait(context.Background()), "nothing to wait for before first use")

	_, err := s.Plot(nil, []float64{1}, Live())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
	assert.False(t, s.Alive())
}

func TestWaitContextDone(t *testing.T) {
	s := newTestSession(t, testOptions(newPipeSpawner()))
	_, err := s.Plot(nil, []float64{1}, Live())
	require.NoError(t, err)
	assert.True(t, s.Alive())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.Canceled)
}

func TestCloseEndsSession(t *testing.T) {
	sp := newPipeSpawner()
	s := newTestSession(t, testOptions(sp))

	_, err := s.Plot(nil, []float64{1}, Live())
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Plot(nil, []float64{1}, Live())
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.Scatter([]float64{1}, []float64{1}, nil, Live())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.SetXLabel("x"), ErrClosed)
	assert.False(t, s.Alive())
}

func TestCloseWithoutRenderer(t *testing.T) {
	sp := newPipeSpawner()
	s := newTestSession(t, testOptions(sp))
	require.NoError(t, s.Close())
	assert.Zero(t, sp.spawnCount())
}

func TestStartTimeout(t *testing.T) {
	sp := newPipeSpawner()
	sp.serve = func(ctx context.Context, _ *pipeSpawner, _ config.Renderer, _ io.Reader, _ io.Writer) error {
		<-ctx.Done()
		return ctx.Err()
	}
	opts := testOptions(sp)
	opts.StartTimeout = 50 * time.Millisecond
	s := newTestSession(t, opts)

	_, err := s.Plot(nil, []float64{1}, Live())
	assert.ErrorIs(t, err, ErrRendererStart)

	_, again := s.Plot(nil, []float64{1}, Live())
	assert.ErrorIs(t, again, ErrRendererStart)
	assert.Equal(t, 1, sp.spawnCount())
	assert.False(t, s.Alive())
}

func TestRendererExitsBeforeReady(t *testing.T) {
	sp := newPipeSpawner()
	sp.serve = func(context.Context, *pipeSpawner, config.Renderer, io.Reader, io.Writer) error {
		return errors.New("no display")
	}
	s := newTestSession(t, testOptions(sp))

	err := s.SetXLabel("x")
	assert.ErrorIs(t, err, ErrRendererStart)
	assert.Contains(t, err.Error(), "no display")
}

func TestMissingRendererBinary(t *testing.T) {
	opts := testOptions(nil)
	opts.RendererPath = "/nonexistent/liveplot-renderer"
	s := newTestSession(t, opts)

	_, err := s.Plot(nil, []float64{1}, Live())
	assert.ErrorIs(t, err, ErrRendererStart)
}

func TestKeysFollowRendererEvents(t *testing.T) {
	sp := newPipeSpawner()
	sp.onStart = func(r *renderer.Renderer) {
		r.Key(protocol.KeyDigit3)
		r.Key(protocol.KeyDown)
	}
	s := newTestSession(t, testOptions(sp))

	_, err := s.Plot(nil, []float64{1}, Live())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Equal(t, 3, s.Keys().Option())
	assert.Equal(t, 2, s.Keys().OptionOnce())
	assert.Equal(t, 0, s.Keys().OptionOnce())
}

func TestRendererFlags(t *testing.T) {
	sp := newPipeSpawner()
	opts := testOptions(sp)
	opts.Title = "flags"
	opts.ShowFPS = true
	s := newTestSession(t, opts)

	require.NoError(t, s.SetXLabel("x"))
	require.NoError(t, s.Close())

	cfg, err := config.ParseRendererArgs(sp.args)
	require.NoError(t, err)
	assert.Equal(t, s.ID(), cfg.SessionID)
	assert.Equal(t, "flags", cfg.Title)
	assert.True(t, cfg.ShowFPS)
	assert.True(t, cfg.Headless)
}

func TestOptionsValidate(t *testing.T) {
	require.NoError(t, DefaultOptions().Validate())

	tests := []struct {
		name string
		edit func(*Options)
	}{
		{"no timeout", func(o *Options) { o.StartTimeout = 0 }},
		{"no renderer", func(o *Options) { o.RendererPath = "" }},
		{"bad size", func(o *Options) { o.Width = -1 }},
		{"bad tick", func(o *Options) { o.TickInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.edit(&opts)
			assert.Error(t, opts.Validate())
			_, err := NewSession(opts)
			assert.ErrorIs(t, err, ErrArgument)
		})
	}
}

func TestDefaultSessionIsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
}

// TestExecRenderer drives a real child process: the test binary re-executed
// as a headless renderer by TestHelperRenderer.
func TestExecRenderer(t *testing.T) {
	opts := testOptions(ExecSpawner{
		Path:   os.Args[0],
		Prefix: []string{"-test.run=^TestHelperRenderer$", "--"},
	})
	s := newTestSession(t, opts)

	for want := 0; want < 3; want++ {
		id, err := s.Plot(nil, []float64{1, 2, 3}, Live())
		require.NoError(t, err)
		assert.Equal(t, want, id)
	}
	require.NoError(t, s.SetYRange(0, 5))
	assert.True(t, s.Alive())

	require.NoError(t, s.Close())
	assert.False(t, s.Alive())
}

func TestExecRendererNonLive(t *testing.T) {
	opts := testOptions(ExecSpawner{
		Path:   os.Args[0],
		Prefix: []string{"-test.run=^TestHelperRenderer$", "--"},
	})
	opts.HeadlessTicks = 50
	s := newTestSession(t, opts)

	_, err := s.Scatter([]float64{1, 2}, []float64{3, 4}, nil)
	require.NoError(t, err)
	assert.False(t, s.Alive(), "a blocking call returns only after the renderer exits")
}

// TestHelperRenderer is not a real test. It runs the renderer when the test
// binary is re-executed with "--" followed by renderer flags.
func TestHelperRenderer(t *testing.T) {
	args, ok := helperArgs()
	if !ok {
		return
	}
	monitoring.SetLogger(nil)
	cfg, err := config.ParseRendererArgs(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := renderer.Serve(context.Background(), cfg, os.Stdin, os.Stdout, nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(0)
}

func helperArgs() ([]string, bool) {
	for i, a := range os.Args {
		if a == "--" {
			return os.Args[i+1:], true
		}
	}
	return nil, false
}
