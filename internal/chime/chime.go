// Package chime speaks the current time on a fixed cadence.
package chime

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"voxremind/internal/clock"
	"voxremind/internal/reminder"
	logx "voxremind/pkg/logx"
)

type Interval int

const (
	Hourly Interval = iota
	Minutely
)

func (i Interval) String() string {
	if i == Minutely {
		return "minutely"
	}
	return "hourly"
}

// Spec is the cron expression for the interval.
func (i Interval) Spec() string {
	if i == Minutely {
		return "* * * * *"
	}
	return "0 * * * *"
}

func ParseInterval(s string) (Interval, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "hourly", "60", "1h":
		return Hourly, nil
	case "minutely", "1", "1m":
		return Minutely, nil
	default:
		return 0, fmt.Errorf("unknown chime interval %q (use hourly or minutely)", s)
	}
}

// SpokenTime renders t the way the chime says it: "It's 9 o'clock AM",
// "It's 3 15 PM".
func SpokenTime(t time.Time) string {
	h, m := t.Hour(), t.Minute()
	spokenHour := h % 12
	if spokenHour == 0 {
		spokenHour = 12
	}
	ampm := "AM"
	if h >= 12 {
		ampm = "PM"
	}
	minuteText := "o'clock"
	if m != 0 {
		minuteText = strconv.Itoa(m)
	}
	return fmt.Sprintf("It's %d %s %s", spokenHour, minuteText, ampm)
}

// Chime announces the time from a cron schedule.
type Chime struct {
	announcer reminder.Announcer
	clock     clock.Clock
	loc       *time.Location
	log       logx.Logger

	mu       sync.Mutex
	c        *cron.Cron
	interval Interval
	last     string
}

func New(announcer reminder.Announcer, clk clock.Clock, loc *time.Location, log logx.Logger) *Chime {
	if clk == nil {
		clk = clock.System()
	}
	if loc == nil {
		loc = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Chime{announcer: announcer, clock: clk, loc: loc, log: log}
}

// Start schedules the chime, replacing a previous schedule.
func (ch *Chime) Start(ctx context.Context, interval Interval) error {
	cl := clock.CronLogger(ch.log)
	c := cron.New(cron.WithLocation(ch.loc), cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := c.AddFunc(interval.Spec(), func() { ch.Fire(ctx) }); err != nil {
		return fmt.Errorf("schedule chime: %w", err)
	}

	ch.mu.Lock()
	old := ch.c
	ch.c = c
	ch.interval = interval
	ch.mu.Unlock()
	if old != nil {
		<-old.Stop().Done()
	}
	c.Start()
	ch.log.Info("chime scheduled", logx.String("interval", interval.String()), logx.String("tz", ch.loc.String()))
	return nil
}

// Stop removes the schedule and waits for a running announcement.
func (ch *Chime) Stop() {
	ch.mu.Lock()
	c := ch.c
	ch.c = nil
	ch.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
		ch.log.Info("chime stopped")
	}
}

// Running reports whether a schedule is active and its interval.
func (ch *Chime) Running() (bool, Interval) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.c != nil, ch.interval
}

// Fire speaks the current time, at most once per wall-clock minute.
func (ch *Chime) Fire(ctx context.Context) bool {
	now := ch.clock.Now().In(ch.loc)
	key := reminder.MinuteKey(now)

	ch.mu.Lock()
	if ch.last == key {
		ch.mu.Unlock()
		return false
	}
	ch.last = key
	ch.mu.Unlock()

	if ctx.Err() != nil || ch.announcer == nil {
		return false
	}
	if err := ch.announcer.Announce(ctx, SpokenTime(now)); err != nil {
		ch.log.Warn("chime announce failed", logx.Err(err))
		return false
	}
	return true
}
