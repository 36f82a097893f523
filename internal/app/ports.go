package app

import (
	"context"
	"errors"
	"io"
	"sync"

	"voxremind/internal/reminder"
)

// announcers speaks on every output channel; one failing channel does not
// silence the others.
type announcers []reminder.Announcer

func (as announcers) Announce(ctx context.Context, text string) error {
	var errs []error
	for _, a := range as {
		if err := a.Announce(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type dialers []reminder.Dialer

func (ds dialers) PlaceCall(ctx context.Context, phone string) error {
	var errs []error
	for _, d := range ds {
		if err := d.PlaceCall(ctx, phone); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// syncWriter serializes writes from the console ports and command replies.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
