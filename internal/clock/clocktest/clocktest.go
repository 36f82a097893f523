// Package clocktest provides manual implementations of the clock ports.
package clocktest

import (
	"sort"
	"sync"
	"time"

	"voxremind/internal/clock"
)

// Clock is a manually advanced clock.Clock. Timers fire only from Set/Add.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*timer
}

var _ clock.Clock = (*Clock)(nil)

func New(now time.Time) *Clock { return &Clock{now: now} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) NewTimer(d time.Duration) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &timer{clk: c, at: c.now.Add(d), ch: make(chan time.Time, 1)}
	if d <= 0 {
		t.ch <- c.now
		t.fired = true
		return t
	}
	c.timers = append(c.timers, t)
	return t
}

// Add advances the clock by d and fires due timers.
func (c *Clock) Add(d time.Duration) {
	c.mu.Lock()
	now := c.now.Add(d)
	c.mu.Unlock()
	c.Set(now)
}

// Set moves the clock to now and fires due timers. Moving backwards is allowed
// and never fires anything.
func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	sort.SliceStable(c.timers, func(i, j int) bool { return c.timers[i].at.Before(c.timers[j].at) })
	pending := c.timers[:0]
	for _, t := range c.timers {
		if !t.at.After(now) {
			t.fired = true
			t.ch <- t.at
			continue
		}
		pending = append(pending, t)
	}
	c.timers = pending
}

// PendingTimers reports how many timers are armed and not yet fired or stopped.
func (c *Clock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// WaitForTimers blocks until at least n timers are pending or the wait
// expires in real time. It reports whether the condition was met.
func (c *Clock) WaitForTimers(n int, wait time.Duration) bool {
	deadline := time.Now().Add(wait)
	for {
		if c.PendingTimers() >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

type timer struct {
	clk   *Clock
	at    time.Time
	ch    chan time.Time
	fired bool
}

func (t *timer) C() <-chan time.Time { return t.ch }

func (t *timer) Stop() bool {
	c := t.clk
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.fired {
		return false
	}
	for i, x := range c.timers {
		if x == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}

// TimerSource is a manual clock.TimerSource: callbacks run only from Tick.
// It holds one registration; a stale stop func does not clear a newer one.
type TimerSource struct {
	mu     sync.Mutex
	fn     func()
	period time.Duration
	reg    uint64
}

var _ clock.TimerSource = (*TimerSource)(nil)

func (s *TimerSource) Every(d time.Duration, fn func()) (func(), error) {
	s.mu.Lock()
	s.reg++
	reg := s.reg
	s.fn = fn
	s.period = d
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		if s.reg == reg {
			s.fn = nil
		}
		s.mu.Unlock()
	}, nil
}

// Tick runs the registered callback synchronously. It reports false if no
// callback is registered.
func (s *TimerSource) Tick() bool {
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}

// Active reports whether a callback is registered.
func (s *TimerSource) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fn != nil
}

// Period returns the period of the current registration.
func (s *TimerSource) Period() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.period
}
