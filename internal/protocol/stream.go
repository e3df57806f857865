package protocol

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Preamble opens every stream. Readers discard anything before it.
const Preamble = "LVPL1\n"

// MaxFrameBytes bounds a single frame. Larger length prefixes mean the stream
// is corrupt and cannot be resynchronized.
const MaxFrameBytes = 64 << 20

// ErrFrameTooLarge is returned when a length prefix exceeds MaxFrameBytes.
var ErrFrameTooLarge = errors.New("frame too large")

// Writer frames commands or events onto an underlying byte stream.
// It is not safe for concurrent use.
type Writer struct {
	w       *bufio.Writer
	started bool
	payload []byte
	prefix  [binary.MaxVarintLen64]byte
}

// NewWriter returns a Writer on w. Nothing is written until the first frame.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteCommand buffers one command frame.
func (w *Writer) WriteCommand(c Command) error {
	payload, err := AppendCommand(w.payload[:0], c)
	if err != nil {
		return err
	}
	w.payload = payload
	return w.writeFrame(payload)
}

// WriteEvent buffers one event frame.
func (w *Writer) WriteEvent(e Event) error {
	payload, err := AppendEvent(w.payload[:0], e)
	if err != nil {
		return err
	}
	w.payload = payload
	return w.writeFrame(payload)
}

// Flush writes any buffered frames to the underlying stream.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

func (w *Writer) writeFrame(payload []byte) error {
	if !w.started {
		if _, err := w.w.WriteString(Preamble); err != nil {
			return err
		}
		w.started = true
	}
	n := binary.PutUvarint(w.prefix[:], uint64(len(payload)))
	if _, err := w.w.Write(w.prefix[:n]); err != nil {
		return err
	}
	_, err := w.w.Write(payload)
	return err
}

// Reader decodes frames written by Writer. It is not safe for concurrent use.
type Reader struct {
	r       *bufio.Reader
	synced  bool
	skipped int
	buf     []byte
}

// NewReader returns a Reader on r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Skipped reports how many bytes preceded the preamble.
func (r *Reader) Skipped() int {
	return r.skipped
}

// ReadCommand returns the next command. Errors wrapping ErrMalformed leave the
// stream aligned on the next frame; any other error is terminal. A clean end
// of stream is io.EOF.
func (r *Reader) ReadCommand() (Command, error) {
	payload, err := r.readFrame()
	if err != nil {
		return nil, err
	}
	return UnmarshalCommand(payload)
}

// ReadEvent returns the next event, with the same error contract as
// ReadCommand.
func (r *Reader) ReadEvent() (Event, error) {
	payload, err := r.readFrame()
	if err != nil {
		return nil, err
	}
	return UnmarshalEvent(payload)
}

func (r *Reader) readFrame() ([]byte, error) {
	if !r.synced {
		if err := r.sync(); err != nil {
			return nil, err
		}
	}
	n, err := binary.ReadUvarint(r.r)
	if err != nil {
		return nil, err
	}
	if n > MaxFrameBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
	}
	if uint64(cap(r.buf)) < n {
		r.buf = make([]byte, n)
	}
	r.buf = r.buf[:n]
	if _, err := io.ReadFull(r.r, r.buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return r.buf, nil
}

// sync consumes bytes up to and including the preamble.
func (r *Reader) sync() error {
	window := make([]byte, 0, len(Preamble))
	read := 0
	for {
		c, err := r.r.ReadByte()
		if err != nil {
			return err
		}
		read++
		if len(window) == len(Preamble) {
			copy(window, window[1:])
			window = window[:len(window)-1]
		}
		window = append(window, c)
		if string(window) == Preamble {
			r.synced = true
			r.skipped = read - len(Preamble)
			return nil
		}
	}
}
