// Package countdown is a spoken countdown timer: it announces whole minutes
// remaining, counts the last ten seconds aloud and says "Time is up".
package countdown

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"voxremind/internal/clock"
	"voxremind/internal/reminder"
	logx "voxremind/pkg/logx"
)

// MaxDuration is the longest countdown accepted (99:59:59).
const MaxDuration = 99*time.Hour + 59*time.Minute + 59*time.Second

const (
	msgTimeUp  = "Time is up"
	msgPaused  = "Timer paused"
	msgStopped = "Timer stopped"
)

var (
	ErrNotRunning     = errors.New("no countdown running")
	ErrAlreadyRunning = errors.New("a countdown is already running")
	ErrNotPaused      = errors.New("countdown is not paused")
)

type State int

const (
	Idle State = iota
	Running
	Paused
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

// Timer is a single countdown. Its methods are safe for concurrent use.
type Timer struct {
	timers    clock.TimerSource
	announcer reminder.Announcer
	log       logx.Logger

	mu    sync.Mutex
	ctx   context.Context
	state State
	left  int // seconds
	stop  func()
	// gen invalidates ticks queued by a previous registration.
	gen uint64
}

func New(timers clock.TimerSource, announcer reminder.Announcer, log logx.Logger) *Timer {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Timer{timers: timers, announcer: announcer, log: log}
}

// Start begins a countdown of d, rounded down to whole seconds. ctx scopes
// the announcements made while the countdown runs.
func (t *Timer) Start(ctx context.Context, d time.Duration) error {
	secs := int(d / time.Second)
	if secs <= 0 {
		return fmt.Errorf("countdown must be at least one second, got %s", d)
	}
	if d > MaxDuration {
		return fmt.Errorf("countdown %s exceeds %s", d, FormatClock(MaxDuration))
	}

	t.mu.Lock()
	if t.state != Idle {
		t.mu.Unlock()
		return ErrAlreadyRunning
	}
	t.ctx = ctx
	t.left = secs
	if err := t.attachLocked(); err != nil {
		t.mu.Unlock()
		return err
	}
	t.mu.Unlock()

	t.log.Info("countdown started", logx.Duration("duration", d))
	t.progress(ctx, secs)
	return nil
}

// Pause freezes the countdown and says "Timer paused".
func (t *Timer) Pause(ctx context.Context) error {
	t.mu.Lock()
	if t.state != Running {
		t.mu.Unlock()
		return ErrNotRunning
	}
	stop := t.detachLocked()
	t.state = Paused
	left := t.left
	t.mu.Unlock()
	stop()

	t.log.Info("countdown paused", logx.Int("left_sec", left))
	t.say(ctx, msgPaused)
	return nil
}

// Resume continues a paused countdown and speaks the progress line when the
// remaining time is on a whole minute or within the last ten seconds.
func (t *Timer) Resume(ctx context.Context) error {
	t.mu.Lock()
	if t.state != Paused {
		t.mu.Unlock()
		return ErrNotPaused
	}
	t.ctx = ctx
	if err := t.attachLocked(); err != nil {
		t.mu.Unlock()
		return err
	}
	left := t.left
	t.mu.Unlock()

	t.log.Info("countdown resumed", logx.Int("left_sec", left))
	t.progress(ctx, left)
	return nil
}

// Stop cancels a running or paused countdown and says "Timer stopped".
func (t *Timer) Stop(ctx context.Context) error {
	t.mu.Lock()
	if t.state == Idle {
		t.mu.Unlock()
		return ErrNotRunning
	}
	stop := t.detachLocked()
	t.state = Idle
	t.left = 0
	t.mu.Unlock()
	stop()

	t.log.Info("countdown stopped")
	t.say(ctx, msgStopped)
	return nil
}

// Remaining reports the time left and the current state.
func (t *Timer) Remaining() (time.Duration, State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Duration(t.left) * time.Second, t.state
}

// Close detaches from the timer source without speaking.
func (t *Timer) Close() {
	t.mu.Lock()
	stop := t.detachLocked()
	t.state = Idle
	t.left = 0
	t.mu.Unlock()
	stop()
}

func (t *Timer) attachLocked() error {
	t.gen++
	gen := t.gen
	stop, err := t.timers.Every(time.Second, func() { t.tick(gen) })
	if err != nil {
		return fmt.Errorf("attach countdown ticker: %w", err)
	}
	t.stop = stop
	t.state = Running
	return nil
}

// detachLocked invalidates pending ticks and returns the source's stop
// func, which must be called without t.mu held.
func (t *Timer) detachLocked() func() {
	t.gen++
	stop := t.stop
	t.stop = nil
	if stop == nil {
		return func() {}
	}
	return stop
}

func (t *Timer) tick(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.state != Running {
		t.mu.Unlock()
		return
	}
	t.left--
	left := t.left
	ctx := t.ctx
	stop := func() {}
	if left <= 0 {
		stop = t.detachLocked()
		t.state = Idle
		t.left = 0
	}
	t.mu.Unlock()

	if left <= 0 {
		// The source's stop waits for the running callback, which is this one.
		go stop()
		t.log.Info("countdown finished")
		t.say(ctx, msgTimeUp)
		return
	}
	t.progress(ctx, left)
}

// progress speaks whole minutes above ten seconds and each of the last ten.
func (t *Timer) progress(ctx context.Context, left int) {
	switch {
	case left <= 10:
		t.say(ctx, strconv.Itoa(left))
	case left%60 == 0:
		n := left / 60
		if n == 1 {
			t.say(ctx, "1 minute remaining")
			return
		}
		t.say(ctx, fmt.Sprintf("%d minutes remaining", n))
	}
}

func (t *Timer) say(ctx context.Context, text string) {
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil || t.announcer == nil {
		return
	}
	if err := t.announcer.Announce(ctx, text); err != nil {
		t.log.Warn("countdown announce failed", logx.String("text", text), logx.Err(err))
	}
}

// FormatClock renders d as HH:MM:SS.
func FormatClock(d time.Duration) string {
	secs := int(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}

// ParseDuration accepts a Go duration ("1h2m5s", "90s"), a clock form
// ("H:MM:SS" or "MM:SS") or a bare number of minutes ("5").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Minute, nil
	}
	if strings.Contains(s, ":") {
		parts := strings.Split(s, ":")
		if len(parts) > 3 {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		var total time.Duration
		for _, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil || n < 0 {
				return 0, fmt.Errorf("invalid duration %q", s)
			}
			total = total*60 + time.Duration(n)
		}
		return total * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}
