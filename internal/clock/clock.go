package clock

import "time"

// Clock reads wall-clock time and creates one-shot timers.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

// Timer is a one-shot timer bound to a Clock.
type Timer interface {
	C() <-chan time.Time
	// Stop prevents the timer from firing. It reports whether the call stopped
	// a pending timer.
	Stop() bool
}

// System returns the process wall clock.
func System() Clock { return systemClock{} }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewTimer(d time.Duration) Timer {
	return &systemTimer{t: time.NewTimer(d)}
}

type systemTimer struct{ t *time.Timer }

func (t *systemTimer) C() <-chan time.Time { return t.t.C }
func (t *systemTimer) Stop() bool          { return t.t.Stop() }
