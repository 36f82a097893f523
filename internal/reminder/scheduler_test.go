package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"voxremind/internal/eventbus"
)

func mustAdd(t *testing.T, s *Scheduler, task Task) Task {
	t.Helper()
	got, err := s.AddTask(task)
	if err != nil {
		t.Fatalf("AddTask(%+v) error: %v", task, err)
	}
	return got
}

func TestReminderFiresOncePerMinute(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{}, at(8, 59, 59))
	ctx := context.Background()
	task := mustAdd(t, h.sched, Task{Time: "09:00", Kind: KindReminder, Message: "Stand up"})

	h.sched.Tick(ctx)
	if n := len(h.announcer.all()); n != 0 {
		t.Fatalf("announced %d times before 09:00", n)
	}

	h.clk.Set(at(9, 0, 0))
	h.sched.Tick(ctx)
	if got := h.announcer.count("Reminder: Stand up"); got != 1 {
		t.Fatalf("announced %d times at 09:00, want 1", got)
	}
	if fired := h.sched.FiredThisMinute(); len(fired) != 1 || fired[0] != task.ID {
		t.Fatalf("FiredThisMinute = %v, want [%s]", fired, task.ID)
	}

	h.clk.Set(at(9, 0, 30))
	h.sched.Tick(ctx)
	if got := h.announcer.count("Reminder: Stand up"); got != 1 {
		t.Fatalf("announced %d times by 09:00:30, want 1", got)
	}

	h.clk.Set(at(9, 1, 0))
	h.sched.Tick(ctx)
	if fired := h.sched.FiredThisMinute(); len(fired) != 0 {
		t.Fatalf("FiredThisMinute after rollover = %v, want empty", fired)
	}

	h.clk.Set(at(9, 0, 0).Add(24 * time.Hour))
	h.sched.Tick(ctx)
	if got := h.announcer.count("Reminder: Stand up"); got != 2 {
		t.Fatalf("announced %d times after next-day tick, want 2", got)
	}
}

func TestTickJitterWithinMinuteFiresOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{}, at(9, 0, 0).Add(100*time.Millisecond))
	ctx := context.Background()
	mustAdd(t, h.sched, Task{Time: "09:00", Kind: KindReminder, Message: "Stand up"})

	h.sched.Tick(ctx)
	h.clk.Set(at(9, 0, 0).Add(900 * time.Millisecond))
	h.sched.Tick(ctx)
	// A delayed tick landing late in the same minute.
	h.clk.Set(at(9, 0, 59))
	h.sched.Tick(ctx)

	if got := h.announcer.count("Reminder: Stand up"); got != 1 {
		t.Fatalf("announced %d times, want 1", got)
	}
}

func TestTasksFireInInsertionOrder(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{}, at(7, 0, 0))
	for _, msg := range []string{"first", "second", "third"} {
		mustAdd(t, h.sched, Task{Time: "07:00", Kind: KindReminder, Message: msg})
	}
	mustAdd(t, h.sched, Task{Time: "07:01", Kind: KindReminder, Message: "later"})

	h.sched.Tick(context.Background())
	assertSpoken(t, h.announcer, "Reminder: first", "Reminder: second", "Reminder: third")

	tasks := h.sched.Tasks()
	if len(tasks) != 4 || tasks[3].Message != "later" {
		t.Fatalf("Tasks = %+v", tasks)
	}
}

func TestAddTaskRejectsInvalidAndDuplicate(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{}, at(7, 0, 0))
	if _, err := h.sched.AddTask(Task{Time: "25:00", Kind: KindReminder, Message: "x"}); err == nil {
		t.Fatal("expected validation error")
	}
	mustAdd(t, h.sched, Task{ID: "a", Time: "07:00", Kind: KindReminder, Message: "x"})
	_, err := h.sched.AddTask(Task{ID: "a", Time: "08:00", Kind: KindReminder, Message: "y"})
	var verr *ValidationError
	if !errors.As(err, &verr) || !verr.Has("id") {
		t.Fatalf("duplicate id error = %v", err)
	}
	if n := len(h.sched.Tasks()); n != 1 {
		t.Fatalf("len(Tasks) = %d, want 1", n)
	}
}

func TestAnnounceFailureKeepsTask(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{}, at(9, 0, 0))
	h.announcer.err = errors.New("tts offline")
	bus := eventbus.New()
	h.sched.bus = bus
	fired, unsub := bus.Subscribe(4, EventTaskFired)
	defer unsub()
	mustAdd(t, h.sched, Task{Time: "09:00", Kind: KindReminder, Message: "Stand up"})

	h.sched.Tick(context.Background())
	select {
	case ev := <-fired:
		if fe, ok := ev.Data.(FiredEvent); !ok || fe.Error != "tts offline" {
			t.Fatalf("fired event = %+v", ev.Data)
		}
	default:
		t.Fatal("expected a fired event")
	}

	h.announcer.err = nil
	h.clk.Set(at(9, 0, 0).Add(24 * time.Hour))
	h.sched.Tick(context.Background())
	if got := h.announcer.count("Reminder: Stand up"); got != 2 {
		t.Fatalf("announced %d times, want 2", got)
	}
}

func TestSameKeyNextDayFiresAgain(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{}, at(9, 0, 0))
	ctx := context.Background()
	mustAdd(t, h.sched, Task{Time: "09:00", Kind: KindReminder, Message: "Stand up"})

	h.sched.Tick(ctx)
	// No tick between the two 09:00 minutes.
	h.clk.Set(at(9, 0, 0).Add(24 * time.Hour))
	h.sched.Tick(ctx)
	h.clk.Set(at(9, 0, 40).Add(24 * time.Hour))
	h.sched.Tick(ctx)
	if got := h.announcer.count("Reminder: Stand up"); got != 2 {
		t.Fatalf("announced %d times, want 2", got)
	}
}

func TestApplyKeepsTimingSettings(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{TickInterval: 2 * time.Second, ConfirmQueue: 3}, at(9, 0, 0))
	tokyo := time.FixedZone("JST", 9*3600)
	h.sched.Apply(Config{
		TickInterval:   5 * time.Second,
		ConfirmTimeout: 3 * time.Second,
		Locale:         "de-DE",
		ConfirmMode:    ConfirmInline,
		ConfirmQueue:   20,
		Location:       tokyo,
	})
	got := h.sched.config()
	if got.Location != time.UTC || got.TickInterval != 2*time.Second || got.ConfirmQueue != 3 {
		t.Fatalf("timing settings changed: loc=%s tick=%s queue=%d", got.Location, got.TickInterval, got.ConfirmQueue)
	}
	if got.ConfirmTimeout != 3*time.Second || got.Locale != "de-DE" || got.ConfirmMode != ConfirmInline {
		t.Fatalf("confirmation settings not applied: %+v", got)
	}
}

func TestPanickingAnnouncerDoesNotRefire(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{}, at(9, 0, 0))
	h.announcer.panic = true
	mustAdd(t, h.sched, Task{ID: "p", Time: "09:00", Kind: KindReminder, Message: "x"})
	mustAdd(t, h.sched, Task{ID: "q", Time: "09:00", Kind: KindReminder, Message: "y"})

	h.sched.Tick(context.Background())
	h.sched.Tick(context.Background())
	if fired := h.sched.FiredThisMinute(); len(fired) != 2 {
		t.Fatalf("FiredThisMinute = %v, want both tasks", fired)
	}
}

func TestInlineCallConfirmation(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{ConfirmMode: ConfirmInline}, at(18, 0, 0))
	mustAdd(t, h.sched, Task{Time: "18:00", Kind: KindCall, ContactName: "Mom", PhoneNumber: "555-1234"})

	done := h.tickAsync(context.Background())
	sess := h.voice.next(t)
	sess.results <- "yes please"
	waitDone(t, done)

	if calls := h.dialer.all(); len(calls) != 1 || calls[0] != "555-1234" {
		t.Fatalf("PlaceCall calls = %v, want [555-1234]", calls)
	}
	assertSpoken(t, h.announcer, "Do you want to call Mom? Say yes or no.", "Calling Mom")

	// Later ticks in the same minute must not prompt again.
	h.clk.Set(at(18, 0, 30))
	h.sched.Tick(context.Background())
	select {
	case <-h.voice.started:
		t.Fatal("confirmation restarted within the same minute")
	default:
	}
}

func TestInlineTimeoutHasNoCall(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{ConfirmMode: ConfirmInline}, at(18, 0, 0))
	mustAdd(t, h.sched, Task{Time: "18:00", Kind: KindCall, ContactName: "Mom", PhoneNumber: "555-1234"})

	done := h.tickAsync(context.Background())
	sess := h.voice.next(t)
	if !h.clk.WaitForTimers(1, 2*time.Second) {
		t.Fatal("confirmation timer was never armed")
	}
	h.clk.Add(DefaultConfirmTimeout)
	waitDone(t, done)

	if h.announcer.count(msgNoResponse) != 1 {
		t.Fatalf("announcements = %q, want timeout message", h.announcer.all())
	}
	if len(h.dialer.all()) != 0 {
		t.Fatal("dialer invoked on timeout")
	}
	if sess.closeCount() != 1 || h.clk.PendingTimers() != 0 {
		t.Fatalf("cleanup: closes=%d timers=%d", sess.closeCount(), h.clk.PendingTimers())
	}
}

func TestStartedSchedulerConfirmsConcurrently(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{}, at(18, 0, 0))
	bus := eventbus.New()
	h.sched.bus = bus
	outcomes, unsub := bus.Subscribe(4, EventCallOutcome)
	defer unsub()
	mustAdd(t, h.sched, Task{Time: "18:00", Kind: KindCall, ContactName: "Mom", PhoneNumber: "555-1234"})
	mustAdd(t, h.sched, Task{Time: "18:00", Kind: KindReminder, Message: "Dinner"})

	ctx := context.Background()
	if err := h.sched.Start(ctx); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if err := h.sched.Start(ctx); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Start error = %v, want ErrAlreadyStarted", err)
	}
	if h.src.Period() != time.Second {
		t.Fatalf("tick period = %v, want 1s", h.src.Period())
	}

	// The tick returns while the confirmation waits for an answer.
	if !h.src.Tick() {
		t.Fatal("timer source not attached")
	}
	if h.announcer.count("Reminder: Dinner") != 1 {
		t.Fatalf("announcements = %q, want the reminder", h.announcer.all())
	}
	sess := h.voice.next(t)
	h.src.Tick()
	sess.results <- "yes"

	select {
	case phone := <-h.dialer.called:
		if phone != "555-1234" {
			t.Fatalf("PlaceCall(%q), want 555-1234", phone)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("call was never placed")
	}
	select {
	case ev := <-outcomes:
		if oe := ev.Data.(OutcomeEvent); oe.Outcome != "called" || oe.Heard != "yes" {
			t.Fatalf("outcome event = %+v", oe)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no outcome event")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.sched.Stop(stopCtx); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	if h.src.Active() {
		t.Fatal("timer source still attached after Stop")
	}
	if len(h.dialer.all()) != 1 {
		t.Fatalf("PlaceCall calls = %v, want exactly one", h.dialer.all())
	}
	if err := h.sched.Stop(stopCtx); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("second Stop error = %v, want ErrNotStarted", err)
	}
}

func TestStopAbortsInFlightConfirmation(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{}, at(18, 0, 0))
	mustAdd(t, h.sched, Task{Time: "18:00", Kind: KindCall, ContactName: "Mom", PhoneNumber: "555-1234"})

	ctx := context.Background()
	if err := h.sched.Start(ctx); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	h.src.Tick()
	sess := h.voice.next(t)
	if !h.clk.WaitForTimers(1, 2*time.Second) {
		t.Fatal("confirmation timer was never armed")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.sched.Stop(stopCtx); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
	if sess.closeCount() != 1 {
		t.Fatalf("recognition closed %d times, want 1", sess.closeCount())
	}
	if h.clk.PendingTimers() != 0 {
		t.Fatalf("pending timers = %d, want 0", h.clk.PendingTimers())
	}
	if len(h.dialer.all()) != 0 {
		t.Fatal("dialer invoked after Stop")
	}
}

func TestParseConfirmMode(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want ConfirmMode
		ok   bool
	}{
		{raw: "", want: ConfirmConcurrent, ok: true},
		{raw: "concurrent", want: ConfirmConcurrent, ok: true},
		{raw: "inline", want: ConfirmInline, ok: true},
		{raw: "parallel"},
	}
	for _, tt := range tests {
		got, err := ParseConfirmMode(tt.raw)
		if tt.ok != (err == nil) {
			t.Fatalf("ParseConfirmMode(%q) error = %v", tt.raw, err)
		}
		if tt.ok && got != tt.want {
			t.Fatalf("ParseConfirmMode(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
