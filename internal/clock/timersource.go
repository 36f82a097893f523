package clock

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	logx "voxremind/pkg/logx"
)

// TimerSource registers a periodic callback. The returned stop func cancels
// the registration and waits for an in-flight callback to return.
type TimerSource interface {
	Every(d time.Duration, fn func()) (stop func(), err error)
}

// CronTimerSource runs periodic callbacks on a robfig/cron scheduler.
//
// Runs never overlap: a tick that is still executing when the next one is due
// causes the next one to be skipped. Periods below one second are rounded up
// to one second by cron's @every descriptor.
type CronTimerSource struct {
	Log      logx.Logger
	Location *time.Location
}

func NewCronTimerSource(log logx.Logger, loc *time.Location) *CronTimerSource {
	if log.IsZero() {
		log = logx.Nop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &CronTimerSource{Log: log, Location: loc}
}

func (s *CronTimerSource) Every(d time.Duration, fn func()) (func(), error) {
	if fn == nil {
		return nil, fmt.Errorf("timer source: callback required")
	}
	if d <= 0 {
		return nil, fmt.Errorf("timer source: period must be > 0, got %s", d)
	}
	cl := cronLogger{log: s.Log}
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := c.AddFunc("@every "+d.String(), fn); err != nil {
		return nil, fmt.Errorf("timer source: %w", err)
	}
	c.Start()
	return func() { <-c.Stop().Done() }, nil
}

// CronLogger adapts log for other cron schedulers in the process.
func CronLogger(log logx.Logger) cron.Logger { return cronLogger{log: log} }

// cronLogger adapts logx to cron.Logger. cron's info output is per-run noise,
// so it is demoted to trace.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Trace("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := append(kvFields(keysAndValues), logx.Err(err))
	l.log.Error("cron: "+msg, fields...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k := strings.TrimSpace(fmt.Sprint(kv[i]))
		if k == "" {
			continue
		}
		out = append(out, logx.Any(k, kv[i+1]))
	}
	return out
}
