// Package protocol defines the messages exchanged between a plotting session
// and its renderer process, and their wire encoding.
//
// Commands flow from the session to the renderer over the renderer's stdin.
// Events flow back over its stdout. Both directions share the same framing:
// a preamble followed by length-prefixed protobuf-wire payloads.
package protocol

import "fmt"

// Kind selects the drawable primitive for a plot series.
type Kind uint8

const (
	KindLine Kind = iota + 1
	KindScatter
)

func (k Kind) String() string {
	switch k {
	case KindLine:
		return "line"
	case KindScatter:
		return "scatter"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k names a known primitive.
func (k Kind) Valid() bool {
	return k == KindLine || k == KindScatter
}

// Style carries the presentation attributes fixed when a series is added.
type Style struct {
	// Name is the legend label. Empty means no legend entry.
	Name string
	// Color is a single-letter code ("r", "k"), an SVG color name or "#rrggbb".
	Color string
	// Width is the line width in points (lines only).
	Width float64
	// Size is the marker diameter in points (scatter only).
	Size float64
}

// Range is a closed axis interval.
type Range struct {
	Min, Max float64
}

// Command is one of AddPlot, UpdateData or SetAxis.
type Command interface {
	command()
}

// AddPlot creates the next series. The renderer assigns ids densely from 0.
type AddPlot struct {
	Kind  Kind
	Style Style
}

// UpdateData replaces the buffers of an existing series.
type UpdateData struct {
	PlotID int
	X, Y   []float64
	// Colors holds one scalar per point for scatter series; nil leaves the
	// series brush unchanged.
	Colors []float64
}

// SetAxis overwrites the axis fields that are non-nil. Nil fields are left
// as they are.
type SetAxis struct {
	XLabel *string
	YLabel *string
	XRange *Range
	YRange *Range
}

func (AddPlot) command()    {}
func (UpdateData) command() {}
func (SetAxis) command()    {}

// Event is one of Ready or Key.
type Event interface {
	event()
}

// Ready is sent once, after the renderer has finished initializing.
type Ready struct{}

// Key reports a key press in the renderer window.
type Key struct {
	Code KeyCode
}

func (Ready) event() {}
func (Key) event()   {}

// KeyCode identifies the keys the renderer forwards.
type KeyCode uint8

const (
	KeyUnknown KeyCode = iota
	KeyAltRight
	KeyUp
	KeyDown
	KeyDigit0
	KeyDigit1
	KeyDigit2
	KeyDigit3
	KeyDigit4
	KeyDigit5
	KeyDigit6
	KeyDigit7
	KeyDigit8
	KeyDigit9
)

// Digit returns the digit for KeyDigit0..KeyDigit9.
func (k KeyCode) Digit() (int, bool) {
	if k >= KeyDigit0 && k <= KeyDigit9 {
		return int(k - KeyDigit0), true
	}
	return 0, false
}

func (k KeyCode) String() string {
	switch k {
	case KeyAltRight:
		return "alt_r"
	case KeyUp:
		return "up"
	case KeyDown:
		return "down"
	}
	if d, ok := k.Digit(); ok {
		return fmt.Sprintf("%d", d)
	}
	return "unknown"
}
