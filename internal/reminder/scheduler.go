package reminder

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"voxremind/internal/clock"
	"voxremind/internal/eventbus"
	rtsup "voxremind/internal/runtime/supervisor"
	logx "voxremind/pkg/logx"
)

var (
	ErrAlreadyStarted = errors.New("scheduler already started")
	ErrNotStarted     = errors.New("scheduler not started")
)

// ConfirmMode decides how call confirmations relate to the tick loop.
type ConfirmMode int

const (
	// ConfirmConcurrent hands confirmations to a single background worker.
	// Ticks keep running while a confirmation waits for an answer;
	// confirmations are serialized with each other.
	ConfirmConcurrent ConfirmMode = iota
	// ConfirmInline runs the confirmation inside the tick, blocking the loop
	// until it resolves.
	ConfirmInline
)

func (m ConfirmMode) String() string {
	if m == ConfirmInline {
		return "inline"
	}
	return "concurrent"
}

// ParseConfirmMode accepts "concurrent" (default) or "inline".
func ParseConfirmMode(s string) (ConfirmMode, error) {
	switch s {
	case "", "concurrent":
		return ConfirmConcurrent, nil
	case "inline":
		return ConfirmInline, nil
	default:
		return 0, fmt.Errorf("unknown confirm mode %q (use concurrent or inline)", s)
	}
}

// Config controls the scheduler.
type Config struct {
	// TickInterval is the polling period (default 1s).
	TickInterval time.Duration
	// ConfirmTimeout bounds the wait for a spoken answer (default 7s).
	ConfirmTimeout time.Duration
	// Locale is passed to VoiceInput.Listen (default "en-US").
	Locale       string
	ConfirmMode  ConfirmMode
	ConfirmQueue int // pending confirmations in concurrent mode (default 8)
	// Location is the zone minute keys are computed in (default time.Local).
	Location *time.Location
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = DefaultConfirmTimeout
	}
	if c.Locale == "" {
		c.Locale = "en-US"
	}
	if c.ConfirmQueue <= 0 {
		c.ConfirmQueue = 8
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	return c
}

// Deps are the scheduler's external collaborators. Nil ports are replaced
// with no-op implementations (a nil Voice makes every confirmation fail to start).
type Deps struct {
	Clock     clock.Clock
	Timers    clock.TimerSource
	Announcer Announcer
	Voice     VoiceInput
	Dialer    Dialer
	Bus       eventbus.Bus
	Log       logx.Logger
}

// Scheduler polls the clock and fires due tasks at most once per minute.
//
// AddTask and Tasks may be called from any goroutine.
type Scheduler struct {
	log logx.Logger
	bus eventbus.Bus

	clock     clock.Clock
	timers    clock.TimerSource
	announcer Announcer
	voice     VoiceInput
	dialer    Dialer

	mu    sync.Mutex
	cfg   Config
	tasks []Task
	fired map[string]struct{}
	// lastMinute is the last observed wall-clock minute; the fired set is
	// cleared when it changes, even if the "HH:MM" key repeats a day later.
	lastMinute time.Time

	// tickMu serializes Tick.
	tickMu sync.Mutex

	runMu     sync.Mutex
	sup       *rtsup.Supervisor
	stopTimer func()
	queue     chan Task
}

func New(cfg Config, deps Deps) *Scheduler {
	if deps.Log.IsZero() {
		deps.Log = logx.Nop()
	}
	if deps.Clock == nil {
		deps.Clock = clock.System()
	}
	if deps.Timers == nil {
		deps.Timers = clock.NewCronTimerSource(deps.Log.With(logx.String("comp", "ticker")), cfg.Location)
	}
	if deps.Announcer == nil {
		deps.Announcer = nopAnnouncer{}
	}
	if deps.Dialer == nil {
		deps.Dialer = nopDialer{}
	}
	if deps.Voice == nil {
		deps.Voice = noVoice{}
	}
	return &Scheduler{
		log:       deps.Log,
		bus:       deps.Bus,
		clock:     deps.Clock,
		timers:    deps.Timers,
		announcer: deps.Announcer,
		voice:     deps.Voice,
		dialer:    deps.Dialer,
		cfg:       cfg.withDefaults(),
		fired:     map[string]struct{}{},
	}
}

// Apply updates the confirmation settings (timeout, locale, mode).
// Location, TickInterval and ConfirmQueue are fixed for the scheduler's
// lifetime.
func (s *Scheduler) Apply(cfg Config) {
	s.mu.Lock()
	next := cfg.withDefaults()
	next.Location = s.cfg.Location
	next.TickInterval = s.cfg.TickInterval
	next.ConfirmQueue = s.cfg.ConfirmQueue
	s.cfg = next
	s.mu.Unlock()
}

func (s *Scheduler) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// AddTask validates t and appends it to the task list. On failure it returns
// a *ValidationError and the list is unchanged. The stored task (normalized
// time, assigned ID) is returned.
func (s *Scheduler) AddTask(t Task) (Task, error) {
	t, err := Prepare(t)
	if err != nil {
		return Task{}, err
	}
	s.mu.Lock()
	for _, existing := range s.tasks {
		if existing.ID == t.ID {
			s.mu.Unlock()
			return Task{}, &ValidationError{Fields: []FieldError{{Field: "id", Reason: "duplicate task id"}}}
		}
	}
	s.tasks = append(s.tasks, t)
	n := len(s.tasks)
	s.mu.Unlock()

	s.log.Info("task added", logx.String("task", t.ID), logx.String("kind", t.Kind.String()), logx.String("time", t.Time), logx.Int("tasks", n))
	s.publish(EventTaskAdded, t)
	return t, nil
}

// Tasks returns a copy of the task list in insertion order.
func (s *Scheduler) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Task(nil), s.tasks...)
}

// FiredThisMinute returns the IDs already fired during the current minute.
func (s *Scheduler) FiredThisMinute() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.fired))
	for _, t := range s.tasks {
		if _, ok := s.fired[t.ID]; ok {
			out = append(out, t.ID)
		}
	}
	return out
}

// Running reports whether the scheduler is attached to its timer source.
func (s *Scheduler) Running() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.sup != nil
}

// Start attaches the scheduler to its timer source.
func (s *Scheduler) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.sup != nil {
		return ErrAlreadyStarted
	}
	cfg := s.config()

	sup := rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(s.log),
		// a failing confirmation must not take the scheduler down.
		rtsup.WithCancelOnError(false),
	)
	var queue chan Task
	if cfg.ConfirmMode == ConfirmConcurrent {
		queue = make(chan Task, cfg.ConfirmQueue)
		sup.GoRestart("confirm.worker", func(c context.Context) error {
			s.confirmWorker(c, queue)
			return nil
		})
	}
	s.queue = queue

	runCtx := sup.Context()
	stop, err := s.timers.Every(cfg.TickInterval, func() { s.Tick(runCtx) })
	if err != nil {
		sup.Cancel()
		s.queue = nil
		return fmt.Errorf("attach timer source: %w", err)
	}
	s.sup = sup
	s.stopTimer = stop
	s.log.Info("scheduler started", logx.Duration("tick", cfg.TickInterval), logx.String("confirm_mode", cfg.ConfirmMode.String()), logx.String("tz", cfg.Location.String()))
	return nil
}

// Stop detaches from the timer source, aborts an in-flight confirmation
// (which releases its recognition session) and waits for the worker to exit
// or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	start := time.Now()
	s.runMu.Lock()
	sup := s.sup
	stop := s.stopTimer
	s.sup = nil
	s.stopTimer = nil
	s.queue = nil
	s.runMu.Unlock()

	if sup == nil {
		return ErrNotStarted
	}
	// cancel first so an inline confirmation holding the tick returns promptly.
	sup.Cancel()
	if stop != nil {
		stop()
	}
	err := sup.Wait(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	s.log.Info("scheduler stopped", logx.Duration("took", time.Since(start)))
	return err
}

// Tick runs one scheduling pass against the current clock reading.
func (s *Scheduler) Tick(ctx context.Context) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	cfg := s.config()
	now := s.clock.Now().In(cfg.Location)
	key := MinuteKey(now)
	minute := now.Truncate(time.Minute)

	s.mu.Lock()
	if !minute.Equal(s.lastMinute) {
		if len(s.fired) > 0 {
			s.fired = map[string]struct{}{}
		}
		s.lastMinute = minute
	}
	var due []Task
	for _, t := range s.tasks {
		if t.Time != key {
			continue
		}
		if _, done := s.fired[t.ID]; done {
			continue
		}
		// Marked before firing so a panicking port cannot cause a refire.
		s.fired[t.ID] = struct{}{}
		due = append(due, t)
	}
	s.mu.Unlock()

	for _, t := range due {
		if ctx.Err() != nil {
			return
		}
		s.fire(ctx, cfg, t, now, key)
	}
}

func (s *Scheduler) fire(ctx context.Context, cfg Config, t Task, now time.Time, key string) {
	log := s.log.With(logx.String("task", t.ID), logx.String("kind", t.Kind.String()), logx.String("minute", key))
	ev := FiredEvent{TaskID: t.ID, Kind: t.Kind.String(), MinuteKey: key, Summary: t.Summary(), At: now}
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while firing task", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()

	switch t.Kind {
	case KindReminder:
		if err := s.announcer.Announce(ctx, t.Announcement()); err != nil {
			log.Warn("reminder announce failed", logx.Err(err))
			ev.Error = err.Error()
		}
		log.Info("reminder fired")
		s.publish(EventTaskFired, ev)
	case KindCall:
		log.Info("call task fired", logx.String("contact", t.ContactName))
		s.publish(EventTaskFired, ev)
		s.dispatchConfirm(ctx, cfg, t, log)
	default:
		log.Warn("unknown task kind; skipped")
	}
}

func (s *Scheduler) dispatchConfirm(ctx context.Context, cfg Config, t Task, log logx.Logger) {
	s.runMu.Lock()
	q := s.queue
	s.runMu.Unlock()

	// Inline mode, or Tick driven by hand without Start.
	if cfg.ConfirmMode == ConfirmInline || q == nil {
		s.confirm(ctx, t)
		return
	}
	select {
	case q <- t:
	default:
		log.Warn("confirmation queue full; call prompt dropped", logx.Int("queue_cap", cap(q)))
		s.publish(EventCallOutcome, OutcomeEvent{
			TaskID: t.ID, Contact: t.ContactName, Phone: t.PhoneNumber,
			Outcome: "dropped", At: s.clock.Now(),
		})
	}
}

func (s *Scheduler) confirmWorker(ctx context.Context, q <-chan Task) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-q:
			s.confirm(ctx, t)
		}
	}
}

func (s *Scheduler) confirm(ctx context.Context, t Task) ConfirmResult {
	cfg := s.config()
	c := &Confirmer{
		Clock:     s.clock,
		Announcer: s.announcer,
		Voice:     s.voice,
		Dialer:    s.dialer,
		Timeout:   cfg.ConfirmTimeout,
		Locale:    cfg.Locale,
		Log:       s.log.With(logx.String("comp", "confirm")),
	}
	res := c.Confirm(ctx, t)
	ev := OutcomeEvent{
		TaskID:  t.ID,
		Contact: t.ContactName,
		Phone:   t.PhoneNumber,
		Outcome: res.Outcome.String(),
		Heard:   res.Heard,
		At:      s.clock.Now(),
	}
	if res.Err != nil {
		ev.Error = res.Err.Error()
	}
	s.publish(EventCallOutcome, ev)
	return res
}

func (s *Scheduler) publish(typ string, data any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.clock.Now(), Data: data})
}
