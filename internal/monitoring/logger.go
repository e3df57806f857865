// Package monitoring holds the diagnostic logger shared by the session and
// renderer sides.
package monitoring

import (
	"fmt"
	"log"
	"sync/atomic"
)

type logFunc func(format string, v ...interface{})

var current atomic.Pointer[logFunc]

func init() {
	SetLogger(log.Printf)
}

// Logf writes a diagnostic line through the installed logger. It defaults to
// log.Printf.
func Logf(format string, v ...interface{}) {
	(*current.Load())(format, v...)
}

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
// Safe to call while the feeder and event goroutines are logging.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		f = func(string, ...interface{}) {}
	}
	lf := logFunc(f)
	current.Store(&lf)
}

// Prefixed returns a logger that tags every line with "[component] ".
func Prefixed(component string) func(format string, v ...interface{}) {
	tag := fmt.Sprintf("[%s] ", component)
	return func(format string, v ...interface{}) {
		Logf(tag+format, v...)
	}
}
