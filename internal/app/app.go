// Package app wires the reminder scheduler to its configured channels and
// owns the process lifecycle.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"voxremind/internal/chime"
	"voxremind/internal/clock"
	"voxremind/internal/command"
	"voxremind/internal/config"
	"voxremind/internal/countdown"
	"voxremind/internal/eventbus"
	"voxremind/internal/reminder"
	rtsup "voxremind/internal/runtime/supervisor"
	"voxremind/internal/storage"
	"voxremind/internal/transcript"
	"voxremind/internal/transport"
	"voxremind/internal/transport/telegram"
	"voxremind/internal/voice"
	"voxremind/internal/voice/console"
	logx "voxremind/pkg/logx"
)

// Options override process-level dependencies. Zero values use the real ones.
type Options struct {
	Stdin  io.Reader
	Stdout io.Writer
	Clock  clock.Clock
	Timers clock.TimerSource
	// Messenger replaces the Telegram adapter; updates then arrive through
	// HandleUpdate only.
	Messenger telegram.Messenger
}

type App struct {
	cfgm *config.Manager
	log  logx.Logger
	logs *logx.Service

	bus   eventbus.Bus
	store storage.Store
	clock clock.Clock
	loc   *time.Location

	sched     *reminder.Scheduler
	countdown *countdown.Timer
	chime     *chime.Chime
	contacts  *transcript.Directory
	cmds      *command.Manager

	out     *syncWriter
	speak   announcers
	console *console.Input

	adapter *telegram.Adapter
	bridge  *telegram.Bridge
	updates chan transport.Update

	mu     sync.Mutex
	cfg    *config.Config
	sup    *rtsup.Supervisor
	runCtx context.Context
}

// New loads the config at cfgPath and builds every component. Nothing runs
// until Start.
func New(cfgPath string, opts Options) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logs, root := logx.New(cfg.LogConfig(), nil)
	cfgm.SetLogger(root.With(logx.String("comp", "config")))

	// Validated by Load.
	loc, _ := cfg.Location()
	rcfg, _ := cfg.ReminderConfig()
	scfg, _ := cfg.StorageConfig()
	seeds, _ := cfg.SeedTasks()

	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Clock == nil {
		opts.Clock = clock.System()
	}
	if opts.Timers == nil {
		opts.Timers = clock.NewCronTimerSource(root.With(logx.String("comp", "ticker")), loc)
	}

	store, err := storage.Open(scfg, root.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logs.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if store != nil {
		root.Info("journal enabled", logx.String("driver", scfg.Driver))
	}

	a := &App{
		cfgm:     cfgm,
		log:      root.With(logx.String("comp", "app")),
		logs:     logs,
		bus:      eventbus.New(),
		store:    store,
		clock:    opts.Clock,
		loc:      loc,
		contacts: transcript.NewDirectory(cfg.Contacts),
		cmds:     command.NewManager(root.With(logx.String("comp", "commands")), cfg.Owners()),
		out:      &syncWriter{w: opts.Stdout},
		cfg:      cfg,
	}

	var (
		outs    announcers
		dials   dialers
		voiceIn reminder.VoiceInput
	)
	if cfg.ConsoleEnabled() {
		router := voice.NewRouter()
		outs = append(outs, console.NewAnnouncer(a.out))
		dials = append(dials, console.NewDialer(a.out))
		a.console = console.NewInput(opts.Stdin, router, a.handleConsoleLine, root.With(logx.String("comp", "console")))
		if cfg.VoiceInput() == config.InputConsole {
			voiceIn = router
		}
	}
	if cfg.TelegramEnabled() {
		msg := opts.Messenger
		if msg == nil {
			tc, _ := cfg.TelegramAdapterConfig()
			ad, err := telegram.New(tc, root.With(logx.String("comp", "telegram")))
			if err != nil {
				a.closeStore()
				_ = logs.Close()
				return nil, fmt.Errorf("telegram: %w", err)
			}
			a.adapter = ad
			a.updates = make(chan transport.Update, 256)
			msg = ad
		}
		a.bridge = telegram.NewBridge(msg, voice.NewRouter(), a.cmds, cfg.OwnerChat(), cfg.Owners(),
			root.With(logx.String("comp", "telegram.bridge")))
		outs = append(outs, a.bridge)
		dials = append(dials, a.bridge)
		if cfg.VoiceInput() == config.InputTelegram {
			voiceIn = a.bridge
		}
		logs.SetSender(a.bridge)
	}

	a.speak = outs
	a.sched = reminder.New(rcfg, reminder.Deps{
		Clock:     opts.Clock,
		Timers:    opts.Timers,
		Announcer: outs,
		Voice:     voiceIn,
		Dialer:    dials,
		Bus:       a.bus,
		Log:       root.With(logx.String("comp", "scheduler")),
	})
	a.countdown = countdown.New(opts.Timers, outs, root.With(logx.String("comp", "countdown")))
	a.chime = chime.New(outs, opts.Clock, loc, root.With(logx.String("comp", "chime")))

	for _, t := range seeds {
		if _, err := a.sched.AddTask(t); err != nil {
			a.log.Warn("seed task rejected", logx.String("task", t.Summary()), logx.Err(err))
		}
	}

	a.cmds.SetRegistry(a.commands())
	a.cmds.SetFallback(a.handleTranscript)
	return a, nil
}

// Scheduler exposes the reminder scheduler (status, tests).
func (a *App) Scheduler() *reminder.Scheduler { return a.sched }

// Done is closed when the app context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	a.mu.Lock()
	sup := a.sup
	a.mu.Unlock()
	if sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// ctx is the app run context; announcements that outlive a request use it.
func (a *App) ctx() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runCtx == nil {
		return context.Background()
	}
	return a.runCtx
}

func (a *App) Start(ctx context.Context) error {
	sup := rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	runCtx := sup.Context()
	a.mu.Lock()
	a.sup = sup
	a.runCtx = runCtx
	cfg := a.cfg
	a.mu.Unlock()

	events, unsub := a.bus.Subscribe(128)
	sup.Go0("journal", func(c context.Context) {
		defer unsub()
		runJournal(c, events, a.store, a.log.With(logx.String("comp", "journal")))
	})

	if cfg.SchedulerEnabled() {
		if err := a.sched.Start(runCtx); err != nil {
			sup.Cancel()
			return fmt.Errorf("start scheduler: %w", err)
		}
	} else {
		a.log.Info("scheduler disabled via config")
	}
	if cfg.Chime.Enabled {
		iv, _ := cfg.ChimeInterval()
		if err := a.chime.Start(runCtx, iv); err != nil {
			a.log.Warn("chime not started", logx.Err(err))
		}
	}

	if a.adapter != nil {
		if err := a.adapter.Start(runCtx, a.updates); err != nil {
			sup.Cancel()
			return fmt.Errorf("start telegram: %w", err)
		}
		sup.Go("telegram.bridge", func(c context.Context) error {
			return a.bridge.Run(c, a.updates)
		})
		sup.Go0("telegram.menu", func(c context.Context) {
			mctx, cancel := context.WithTimeout(c, 10*time.Second)
			defer cancel()
			if err := a.adapter.UpdateMenuCommands(mctx, a.cmds.Menu()); err != nil {
				a.log.Warn("menu update failed", logx.Err(err))
			}
		})
	}
	if a.console != nil {
		sup.Go0("console.input", func(c context.Context) {
			if err := a.console.Run(c); err != nil {
				a.log.Warn("console input stopped", logx.Err(err))
			}
		})
	}

	sub := a.cfgm.Subscribe(4)
	sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				a.applyConfig(c, newCfg)
			}
		}
	})
	sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started",
		logx.Int("tasks", len(a.sched.Tasks())),
		logx.Bool("console", a.console != nil),
		logx.Bool("telegram", a.bridge != nil),
		logx.String("voice_input", cfg.VoiceInput()),
	)
	return nil
}

// HandleUpdate routes one chat update; used when Options.Messenger replaces
// the adapter.
func (a *App) HandleUpdate(ctx context.Context, up transport.Update) {
	if a.bridge != nil {
		a.bridge.Handle(ctx, up)
	}
}

// applyConfig applies the hot-reloadable parts of newCfg.
func (a *App) applyConfig(ctx context.Context, newCfg *config.Config) {
	a.mu.Lock()
	last := a.cfg
	a.cfg = newCfg
	a.mu.Unlock()

	ch := config.SummarizeChange(last, newCfg)
	if len(ch.Sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	if ch.Has("logging") {
		a.logs.Apply(newCfg.LogConfig())
	}
	if ch.Has("voice") {
		if rc, err := newCfg.ReminderConfig(); err != nil {
			a.log.Warn("invalid voice config; keeping previous", logx.Err(err))
		} else {
			a.sched.Apply(rc)
		}
	}
	if ch.Has("contacts") {
		a.contacts.Replace(newCfg.Contacts)
	}
	if ch.Has("telegram") {
		a.cmds.SetOwners(newCfg.Owners())
		if a.bridge != nil {
			a.bridge.SetOwners(newCfg.OwnerChat(), newCfg.Owners())
		}
	}
	if ch.Has("chime") {
		if newCfg.Chime.Enabled {
			iv, _ := newCfg.ChimeInterval()
			if err := a.chime.Start(ctx, iv); err != nil {
				a.log.Warn("chime not started", logx.Err(err))
			}
		} else {
			a.chime.Stop()
		}
	}
	if len(ch.RestartRequired) > 0 {
		a.log.Warn("config change requires restart", logx.String("sections", strings.Join(ch.RestartRequired, ",")))
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(ch.Sections, ","))}, ch.Attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	a.mu.Lock()
	sup := a.sup
	a.mu.Unlock()
	if sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	sup.Cancel()

	a.step(ctx, "scheduler", 2*time.Second, func(c context.Context) error {
		if !a.sched.Running() {
			return nil
		}
		return a.sched.Stop(c)
	})
	a.step(ctx, "countdown", time.Second, func(context.Context) error { a.countdown.Close(); return nil })
	a.step(ctx, "chime", time.Second, func(context.Context) error { a.chime.Stop(); return nil })
	if a.adapter != nil {
		a.step(ctx, "adapter", 3*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	}
	a.step(ctx, "supervisor", 2*time.Second, func(c context.Context) error { return sup.Wait(c) })
	a.step(ctx, "storage", time.Second, func(context.Context) error { a.closeStore(); return nil })

	a.log.Info("stopped")
	return a.logs.Close()
}

func (a *App) closeStore() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}
}

// step runs one shutdown step bounded by max so a stuck component cannot
// stall the whole stop.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem < max {
			max = rem
		}
	}
	if max <= 0 {
		a.log.Warn("stop step skipped (deadline reached)", logx.String("name", name))
		return
	}
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
	}
}
