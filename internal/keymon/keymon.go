// Package keymon holds the key-press flags a host program polls while the
// renderer window has focus.
package keymon

import (
	"sync/atomic"

	"github.com/banshee-data/liveplot/internal/monitoring"
	"github.com/banshee-data/liveplot/internal/protocol"
)

var logf = monitoring.Prefixed("KeyMonitor")

// One-shot values set by the arrow keys.
const (
	OnceNone int32 = 0
	OnceUp   int32 = 1
	OnceDown int32 = 2
)

// State is a shared cell updated from renderer key events and read by the
// host. The zero value is ready to use and safe for concurrent use.
type State struct {
	option atomic.Int32
	once   atomic.Int32
}

// Apply folds a key press into the state:
//
//	Right Alt  toggle option between 0 and 1
//	0-9        set option to the digit
//	Up, Down   set the one-shot value to 1 or 2
func (s *State) Apply(code protocol.KeyCode) {
	switch code {
	case protocol.KeyAltRight:
		for {
			old := s.option.Load()
			next := int32(0)
			if old == 0 {
				next = 1
			}
			if s.option.CompareAndSwap(old, next) {
				logf("option=%d", next)
				return
			}
		}
	case protocol.KeyUp:
		s.once.Store(OnceUp)
		logf("once=%d", OnceUp)
	case protocol.KeyDown:
		s.once.Store(OnceDown)
		logf("once=%d", OnceDown)
	default:
		if d, ok := code.Digit(); ok {
			s.option.Store(int32(d))
			logf("option=%d", d)
		}
	}
}

// Option returns the current option value.
func (s *State) Option() int {
	return int(s.option.Load())
}

// OptionOnce returns the one-shot value and resets it, so each press is
// observed at most once.
func (s *State) OptionOnce() int {
	return int(s.once.Swap(OnceNone))
}
