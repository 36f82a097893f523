package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"voxremind/internal/clock/clocktest"
)

type recordingAnnouncer struct {
	mu    sync.Mutex
	texts []string
	err   error
	panic bool
}

func (a *recordingAnnouncer) Announce(_ context.Context, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.panic {
		panic("speech engine crashed")
	}
	a.texts = append(a.texts, text)
	return a.err
}

func (a *recordingAnnouncer) all() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.texts...)
}

func (a *recordingAnnouncer) count(text string) int {
	n := 0
	for _, t := range a.all() {
		if t == text {
			n++
		}
	}
	return n
}

type recordingDialer struct {
	mu     sync.Mutex
	calls  []string
	err    error
	called chan string
}

func newRecordingDialer() *recordingDialer {
	return &recordingDialer{called: make(chan string, 8)}
}

func (d *recordingDialer) PlaceCall(_ context.Context, phone string) error {
	d.mu.Lock()
	d.calls = append(d.calls, phone)
	d.mu.Unlock()
	d.called <- phone
	return d.err
}

func (d *recordingDialer) all() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

type fakeSession struct {
	results chan string
	errs    chan error

	mu     sync.Mutex
	closes int
	locale string
}

func (s *fakeSession) Results() <-chan string { return s.results }
func (s *fakeSession) Errors() <-chan error   { return s.errs }

func (s *fakeSession) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

type fakeVoice struct {
	startErr error
	started  chan *fakeSession
}

func newFakeVoice() *fakeVoice { return &fakeVoice{started: make(chan *fakeSession, 8)} }

func (v *fakeVoice) Listen(_ context.Context, locale string) (Recognition, error) {
	if v.startErr != nil {
		return nil, v.startErr
	}
	s := &fakeSession{results: make(chan string, 1), errs: make(chan error, 1), locale: locale}
	v.started <- s
	return s, nil
}

func (v *fakeVoice) next(t *testing.T) *fakeSession {
	t.Helper()
	select {
	case s := <-v.started:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("voice input was never started")
		return nil
	}
}

var errMic = errors.New("microphone busy")

var day0 = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func at(h, m, s int) time.Time {
	return day0.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second)
}

type harness struct {
	clk       *clocktest.Clock
	src       *clocktest.TimerSource
	announcer *recordingAnnouncer
	dialer    *recordingDialer
	voice     *fakeVoice
	sched     *Scheduler
}

func newHarness(t *testing.T, cfg Config, now time.Time) *harness {
	t.Helper()
	h := &harness{
		clk:       clocktest.New(now),
		src:       &clocktest.TimerSource{},
		announcer: &recordingAnnouncer{},
		dialer:    newRecordingDialer(),
		voice:     newFakeVoice(),
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	h.sched = New(cfg, Deps{
		Clock:     h.clk,
		Timers:    h.src,
		Announcer: h.announcer,
		Voice:     h.voice,
		Dialer:    h.dialer,
	})
	return h
}

// tickAsync runs one Tick in the background; the returned channel closes when it returns.
func (h *harness) tickAsync(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.sched.Tick(ctx)
	}()
	return done
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tick did not return")
	}
}
