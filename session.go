package liveplot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/liveplot/internal/keymon"
	"github.com/banshee-data/liveplot/internal/monitoring"
	"github.com/banshee-data/liveplot/internal/protocol"
	"github.com/banshee-data/liveplot/internal/queue"
)

var logf = monitoring.Prefixed("Session")

// KeyState holds the key-press flags forwarded from the renderer window:
// Right Alt toggles Option between 0 and 1, digit keys set it, and Up/Down
// set the one-shot value read by OptionOnce to 1 or 2.
type KeyState = keymon.State

// SetLogger replaces the logger used by sessions. Nil silences them.
func SetLogger(f func(format string, v ...interface{})) {
	monitoring.SetLogger(f)
}

// Session owns one renderer process, started by the first call that needs
// it. It is safe for concurrent use.
type Session struct {
	opts Options
	id   uuid.UUID
	keys KeyState

	mu       sync.Mutex
	spawned  bool
	startErr error
	closed   bool
	nextID   int
	sender   *queue.Sender

	// done is closed once the renderer process has exited, or when it
	// could not be started. exitErr is set before.
	done    chan struct{}
	exitErr error
}

// NewSession returns a session that has not started its renderer yet.
func NewSession(opts Options) (*Session, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArgument, err)
	}
	return newSession(opts), nil
}

func newSession(opts Options) *Session {
	return &Session{opts: opts, id: uuid.New(), done: make(chan struct{})}
}

// ID returns the session id the renderer logs under.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Plot draws a line. If only one of x and y is given it is taken as the y
// data, plotted against its indices. It returns the plot id, which can be
// passed back with PlotID to replace the data of the same line.
//
// Without Live the call blocks until the renderer exits.
func (s *Session) Plot(x, y []float64, opts ...PlotOption) (int, error) {
	x, y, err := lineData(x, y)
	if err != nil {
		return -1, err
	}
	return s.submit(protocol.KindLine, buildPlotOptions(opts), x, y, nil)
}

// Scatter draws markers at x, y. colors, when not nil, holds one scalar per
// point mapped through the renderer's colormap.
func (s *Session) Scatter(x, y, colors []float64, opts ...PlotOption) (int, error) {
	if x == nil || y == nil {
		return -1, fmt.Errorf("%w: scatter needs both x and y", ErrArgument)
	}
	if len(x) != len(y) {
		return -1, fmt.Errorf("%w: %d x values for %d y values", ErrArgument, len(x), len(y))
	}
	if colors != nil && len(colors) != len(y) {
		return -1, fmt.Errorf("%w: %d colors for %d points", ErrArgument, len(colors), len(y))
	}
	return s.submit(protocol.KindScatter, buildPlotOptions(opts), slices.Clone(x), slices.Clone(y), slices.Clone(colors))
}

// SetXLabel sets the x axis label.
func (s *Session) SetXLabel(label string) error {
	return s.setAxis(protocol.SetAxis{XLabel: &label})
}

// SetYLabel sets the y axis label.
func (s *Session) SetYLabel(label string) error {
	return s.setAxis(protocol.SetAxis{YLabel: &label})
}

// SetXRange fixes the x axis to [lo, hi].
func (s *Session) SetXRange(lo, hi float64) error {
	r, err := axisRange(lo, hi)
	if err != nil {
		return err
	}
	return s.setAxis(protocol.SetAxis{XRange: &r})
}

// SetYRange fixes the y axis to [lo, hi].
func (s *Session) SetYRange(lo, hi float64) error {
	r, err := axisRange(lo, hi)
	if err != nil {
		return err
	}
	return s.setAxis(protocol.SetAxis{YRange: &r})
}

// Keys returns the key state updated by presses in the renderer window.
func (s *Session) Keys() *KeyState {
	return &s.keys
}

// Alive reports whether the renderer process is running.
func (s *Session) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spawned && s.startErr == nil && !s.exited()
}

// Wait blocks until the renderer exits or ctx is done. It returns at once if
// no renderer was started.
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	spawned := s.spawned
	s.mu.Unlock()
	if !spawned {
		return nil
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close ends the command stream, which makes the renderer exit, and waits for
// the process. Later calls on the session return ErrClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	spawned, sender := s.spawned, s.sender
	s.mu.Unlock()

	if !spawned {
		return nil
	}
	if sender != nil {
		if err := sender.Close(); err != nil {
			logf("closing command stream: %v", err)
		}
		st := sender.Stats()
		logf("session %s closed: sent=%d dropped=%d", s.id, st.Sent, st.Dropped)
	}
	<-s.done
	return nil
}

func (s *Session) submit(kind protocol.Kind, po plotOptions, x, y, colors []float64) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return -1, ErrClosed
	}
	id, create, err := s.resolve(po)
	if err != nil {
		s.mu.Unlock()
		return -1, err
	}
	if err := s.start(); err != nil {
		s.mu.Unlock()
		return -1, err
	}
	if s.exited() {
		// The window was closed; the session is over.
		s.mu.Unlock()
		return id, nil
	}

	if create {
		s.sender.Send(protocol.AddPlot{
			Kind: kind,
			Style: protocol.Style{
				Name:  po.name,
				Color: po.color,
				Width: po.width,
				Size:  po.size,
			},
		})
		s.nextID++
	}
	s.sender.Send(protocol.UpdateData{PlotID: id, X: x, Y: y, Colors: colors})
	s.mu.Unlock()

	if !po.live {
		<-s.done
	}
	return id, nil
}

func (s *Session) setAxis(cmd protocol.SetAxis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.start(); err != nil {
		return err
	}
	if !s.exited() {
		s.sender.Send(cmd)
	}
	return nil
}

// resolve maps the PlotID option to the series id. create is true when the
// call adds a new series.
func (s *Session) resolve(po plotOptions) (id int, create bool, err error) {
	if !po.hasID || po.id == s.nextID {
		return s.nextID, true, nil
	}
	if po.id >= 0 && po.id < s.nextID {
		return po.id, false, nil
	}
	return -1, false, fmt.Errorf("%w: %d (next id is %d)", ErrInvalidHandle, po.id, s.nextID)
}

// start spawns the renderer on first use and waits for its ready signal.
// Must be called with s.mu held.
func (s *Session) start() error {
	if s.spawned {
		return s.startErr
	}
	s.spawned = true
	s.startErr = s.spawn()
	if s.startErr != nil {
		logf("session %s: %v", s.id, s.startErr)
	}
	return s.startErr
}

func (s *Session) spawn() error {
	cfg := s.opts.rendererConfig(s.id)
	proc, err := s.opts.spawner().Spawn(cfg.Args())
	if err != nil {
		close(s.done)
		return fmt.Errorf("%w: %w", ErrRendererStart, err)
	}

	ready := make(chan struct{})
	go s.readEvents(proc, ready)

	timer := time.NewTimer(s.opts.StartTimeout)
	defer timer.Stop()

	select {
	case <-ready:
	case <-s.done:
		select {
		case <-ready:
			// Ready, then gone already. Commands will be discarded.
		default:
			_ = proc.Stdin().Close()
			return fmt.Errorf("%w: renderer exited before ready: %v", ErrRendererStart, s.exitErr)
		}
	case <-timer.C:
		_ = proc.Kill()
		_ = proc.Stdin().Close()
		<-s.done
		return fmt.Errorf("%w: no ready signal within %v", ErrRendererStart, s.opts.StartTimeout)
	}

	s.sender = queue.NewSender(proc.Stdin())
	logf("session %s renderer ready", s.id)
	return nil
}

// readEvents consumes the renderer's event stream, then reaps the process.
func (s *Session) readEvents(proc Process, ready chan struct{}) {
	defer close(s.done)

	r := protocol.NewReader(proc.Stdout())
	signalled := false
	for {
		ev, err := r.ReadEvent()
		if err != nil {
			if errors.Is(err, protocol.ErrMalformed) {
				logf("dropping malformed event: %v", err)
				continue
			}
			if !errors.Is(err, io.EOF) {
				logf("event stream: %v", err)
			}
			break
		}
		switch ev := ev.(type) {
		case protocol.Ready:
			if !signalled {
				signalled = true
				close(ready)
			}
		case protocol.Key:
			s.keys.Apply(ev.Code)
		}
	}
	_, _ = io.Copy(io.Discard, proc.Stdout())

	s.exitErr = proc.Wait()
	if s.exitErr != nil {
		logf("session %s renderer exited: %v", s.id, s.exitErr)
		return
	}
	logf("session %s renderer exited", s.id)
}

func (s *Session) exited() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// lineData applies the Plot argument rules and copies the buffers so the
// caller may reuse them once the call returns.
func lineData(x, y []float64) ([]float64, []float64, error) {
	switch {
	case x == nil && y == nil:
		return nil, nil, fmt.Errorf("%w: plot needs x or y", ErrArgument)
	case y == nil:
		x, y = nil, x
	}
	if x == nil {
		return indexSequence(len(y)), slices.Clone(y), nil
	}
	if len(x) != len(y) {
		return nil, nil, fmt.Errorf("%w: %d x values for %d y values", ErrArgument, len(x), len(y))
	}
	return slices.Clone(x), slices.Clone(y), nil
}

// indexSequence returns 0, 1, ..., n-1.
func indexSequence(n int) []float64 {
	xs := make([]float64, n)
	if n >= 2 {
		floats.Span(xs, 0, float64(n-1))
	}
	return xs
}

// axisRange rejects bounds that are unordered or not finite, and spans too
// wide to represent.
func axisRange(lo, hi float64) (protocol.Range, error) {
	if math.IsNaN(lo) || math.IsNaN(hi) || lo > hi || math.IsInf(hi-lo, 0) {
		return protocol.Range{}, fmt.Errorf("%w: range [%v, %v]", ErrArgument, lo, hi)
	}
	return protocol.Range{Min: lo, Max: hi}, nil
}
