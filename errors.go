package liveplot

import "errors"

var (
	// ErrArgument is returned for call arguments that cannot describe a plot:
	// no data, mismatched lengths, or an inverted range.
	ErrArgument = errors.New("liveplot: invalid argument")

	// ErrInvalidHandle is returned for a PlotID that is neither an existing
	// series nor the next free id.
	ErrInvalidHandle = errors.New("liveplot: invalid plot handle")

	// ErrRendererStart is returned when the renderer process could not be
	// started or did not become ready. It wraps the cause.
	ErrRendererStart = errors.New("liveplot: renderer failed to start")

	// ErrClosed is returned for calls on a closed session.
	ErrClosed = errors.New("liveplot: session closed")
)
