// Package testutil provides shared test helpers.
package testutil

import (
	"time"
)

// TB is the subset of testing.TB the helpers use.
type TB interface {
	Helper()
	Fatalf(format string, args ...any)
}

// Default polling parameters for Eventually.
const (
	DefaultWait = 5 * time.Second
	DefaultTick = 5 * time.Millisecond
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
}

// Eventually polls cond every DefaultTick until it returns true, failing the
// test if that has not happened within DefaultWait.
func Eventually(t TB, cond func() bool, msg string) {
	t.Helper()
	EventuallyWithin(t, DefaultWait, DefaultTick, cond, msg)
}

// EventuallyWithin is Eventually with explicit timing.
func EventuallyWithin(t TB, wait, tick time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(wait)
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %v: %s", wait, msg)
			return
		}
		time.Sleep(tick)
	}
}
