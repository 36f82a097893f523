package app

import (
	"context"
	"time"

	"voxremind/internal/eventbus"
	"voxremind/internal/reminder"
	"voxremind/internal/storage"
	logx "voxremind/pkg/logx"
)

// runJournal logs every bus event and appends firings and call outcomes to
// the store (when enabled) until ctx ends.
func runJournal(ctx context.Context, events <-chan eventbus.Event, store storage.Store, log logx.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			rec, ok := recordFor(e)
			if !ok || store == nil {
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			if err := store.AppendFiring(wctx, rec); err != nil {
				log.Warn("journal append failed", logx.String("type", rec.Type), logx.String("task", rec.TaskID), logx.Err(err))
			}
			cancel()
		}
	}
}

func recordFor(e eventbus.Event) (storage.Record, bool) {
	switch ev := e.Data.(type) {
	case reminder.FiredEvent:
		return storage.Record{
			At:        ev.At,
			Type:      storage.TypeFired,
			TaskID:    ev.TaskID,
			Kind:      ev.Kind,
			MinuteKey: ev.MinuteKey,
			Summary:   ev.Summary,
			Error:     ev.Error,
		}, true
	case reminder.OutcomeEvent:
		return storage.Record{
			At:      ev.At,
			Type:    storage.TypeOutcome,
			TaskID:  ev.TaskID,
			Kind:    reminder.KindCall.String(),
			Summary: "Call " + ev.Contact,
			Outcome: ev.Outcome,
			Heard:   ev.Heard,
			Error:   ev.Error,
		}, true
	default:
		return storage.Record{}, false
	}
}
