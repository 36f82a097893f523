// Package clock provides the time ports used by the reminder scheduler.
//
// Clock abstracts wall-clock reads and one-shot timers so the tick loop and
// the call-confirmation timeout can be driven deterministically in tests
// (see clocktest). TimerSource abstracts the periodic tick registration; the
// production implementation is backed by robfig/cron.
package clock
