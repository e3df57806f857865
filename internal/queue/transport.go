package queue

import (
	"errors"
	"io"
	"sync/atomic"

	"github.com/banshee-data/liveplot/internal/monitoring"
	"github.com/banshee-data/liveplot/internal/protocol"
)

var logf = monitoring.Prefixed("Queue")

// Sender moves commands from an in-memory queue onto the renderer's command
// stream. Send never blocks; a single goroutine performs the writes, so frames
// reach the stream in Send order.
type Sender struct {
	q  *Queue[protocol.Command]
	w  io.WriteCloser
	pw *protocol.Writer

	done     chan struct{}
	closeErr error

	sent    atomic.Uint64
	dropped atomic.Uint64
	broken  atomic.Bool
}

// SenderStats contains sender statistics.
type SenderStats struct {
	Sent    uint64
	Dropped uint64
	Broken  bool
}

// NewSender starts a Sender writing to w. Close must be called to release the
// goroutine and close w.
func NewSender(w io.WriteCloser) *Sender {
	s := &Sender{
		q:    New[protocol.Command](),
		w:    w,
		pw:   protocol.NewWriter(w),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

// Send enqueues c. It reports false if the sender has been closed.
func (s *Sender) Send(c protocol.Command) bool {
	if !s.q.Push(c) {
		s.dropped.Add(1)
		return false
	}
	return true
}

// Close flushes queued commands, closes the stream and waits for the writer
// goroutine to finish.
func (s *Sender) Close() error {
	s.q.Close()
	<-s.done
	return s.closeErr
}

// Stats returns current sender statistics.
func (s *Sender) Stats() SenderStats {
	return SenderStats{
		Sent:    s.sent.Load(),
		Dropped: s.dropped.Load(),
		Broken:  s.broken.Load(),
	}
}

func (s *Sender) run() {
	defer close(s.done)

	var batch []protocol.Command
	for {
		var closed bool
		batch, closed = s.q.Drain(batch[:0])
		if len(batch) > 0 {
			s.write(batch)
			clear(batch)
		}
		if closed {
			if err := s.w.Close(); err != nil && !s.broken.Load() {
				s.closeErr = err
			}
			return
		}
		if len(batch) == 0 {
			<-s.q.Ready()
		}
	}
}

// write sends one batch and flushes. After the first stream failure every
// later command is counted as dropped.
func (s *Sender) write(batch []protocol.Command) {
	if s.broken.Load() {
		s.dropped.Add(uint64(len(batch)))
		return
	}
	written := 0
	for i, c := range batch {
		err := s.pw.WriteCommand(c)
		if errors.Is(err, protocol.ErrUnsupported) {
			logf("dropping command: %v", err)
			s.dropped.Add(1)
			continue
		}
		if err != nil {
			s.fail(err, len(batch)-i)
			return
		}
		written++
	}
	if err := s.pw.Flush(); err != nil {
		s.fail(err, written)
		return
	}
	s.sent.Add(uint64(written))
}

func (s *Sender) fail(err error, lost int) {
	s.broken.Store(true)
	s.dropped.Add(uint64(lost))
	logf("renderer stream closed, discarding commands from now on: %v", err)
}

// Pump decodes commands from r into q until the stream ends, then closes q.
// Malformed frames are logged and skipped. A clean end of stream returns nil.
func Pump(r io.Reader, q *Queue[protocol.Command]) error {
	defer q.Close()

	pr := protocol.NewReader(r)
	for {
		c, err := pr.ReadCommand()
		switch {
		case err == nil:
			q.Push(c)
		case errors.Is(err, protocol.ErrMalformed):
			logf("dropping malformed command: %v", err)
		case errors.Is(err, io.EOF):
			return nil
		default:
			return err
		}
	}
}
