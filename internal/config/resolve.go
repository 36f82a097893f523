package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"voxremind/internal/chime"
	"voxremind/internal/reminder"
	"voxremind/internal/storage"
	"voxremind/internal/transport"
	"voxremind/internal/transport/telegram"
	logx "voxremind/pkg/logx"
)

// Voice input sources.
const (
	InputConsole  = "console"
	InputTelegram = "telegram"
)

// Validate checks every section and reports all problems at once.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	if _, err := cfg.ReminderConfig(); err != nil {
		errs = append(errs, err)
	}
	if _, err := cfg.ChimeInterval(); err != nil {
		errs = append(errs, err)
	}
	if _, err := cfg.StorageConfig(); err != nil {
		errs = append(errs, err)
	}
	if cfg.TelegramEnabled() {
		if _, err := cfg.TelegramAdapterConfig(); err != nil {
			errs = append(errs, err)
		}
	}
	switch cfg.VoiceInput() {
	case InputConsole:
		if !cfg.ConsoleEnabled() {
			errs = append(errs, errors.New("voice.input: console is disabled"))
		}
	case InputTelegram:
		if !cfg.TelegramEnabled() {
			errs = append(errs, errors.New("voice.input: telegram is disabled"))
		}
	default:
		errs = append(errs, fmt.Errorf("voice.input: unknown input %q (use console or telegram)", cfg.Voice.Input))
	}
	if !cfg.ConsoleEnabled() && !cfg.TelegramEnabled() {
		errs = append(errs, errors.New("no output: enable console or telegram"))
	}
	if _, err := cfg.SeedTasks(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Config) ConsoleEnabled() bool { return boolOr(c.Console.Enabled, true) }

func (c *Config) TelegramEnabled() bool { return c.Telegram != nil && c.Telegram.Enabled }

func (c *Config) SchedulerEnabled() bool { return boolOr(c.Scheduler.Enabled, true) }

// VoiceInput names the channel that answers call confirmations.
func (c *Config) VoiceInput() string {
	in := strings.ToLower(strings.TrimSpace(c.Voice.Input))
	if in != "" {
		return in
	}
	if !c.ConsoleEnabled() && c.TelegramEnabled() {
		return InputTelegram
	}
	return InputConsole
}

// Location resolves scheduler.timezone; empty means time.Local.
func (c *Config) Location() (*time.Location, error) {
	tz := strings.TrimSpace(c.Scheduler.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone: %w", err)
	}
	return loc, nil
}

func (c *Config) ReminderConfig() (reminder.Config, error) {
	tick, err := ParseDurationOrDefault("scheduler.tick_interval", c.Scheduler.TickInterval, time.Second)
	if err != nil {
		return reminder.Config{}, err
	}
	if tick > time.Minute {
		// A tick longer than a minute could skip a task's minute entirely.
		return reminder.Config{}, fmt.Errorf("scheduler.tick_interval: %s exceeds 1m", tick)
	}
	timeout, err := ParseDurationOrDefault("voice.confirm_timeout", c.Voice.ConfirmTimeout, reminder.DefaultConfirmTimeout)
	if err != nil {
		return reminder.Config{}, err
	}
	mode, err := reminder.ParseConfirmMode(c.Voice.ConfirmMode)
	if err != nil {
		return reminder.Config{}, fmt.Errorf("voice.confirm_mode: %w", err)
	}
	if c.Voice.ConfirmQueue < 0 {
		return reminder.Config{}, errors.New("voice.confirm_queue: must be >= 0")
	}
	loc, err := c.Location()
	if err != nil {
		return reminder.Config{}, err
	}
	return reminder.Config{
		TickInterval:   tick,
		ConfirmTimeout: timeout,
		Locale:         strings.TrimSpace(c.Voice.Locale),
		ConfirmMode:    mode,
		ConfirmQueue:   c.Voice.ConfirmQueue,
		Location:       loc,
	}, nil
}

func (c *Config) ChimeInterval() (chime.Interval, error) {
	iv, err := chime.ParseInterval(c.Chime.Interval)
	if err != nil {
		return 0, fmt.Errorf("chime.interval: %w", err)
	}
	return iv, nil
}

// StorageConfig returns the journal settings. A nil section disables storage.
func (c *Config) StorageConfig() (storage.Config, error) {
	if c.Storage == nil {
		return storage.Config{}, nil
	}
	busy, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout)
	if err != nil {
		return storage.Config{}, err
	}
	driver := strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch driver {
	case "", "none", "file", "sqlite", "sqlite3":
	default:
		return storage.Config{}, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver)
	}
	if driver != "" && driver != "none" && strings.TrimSpace(c.Storage.Path) == "" {
		return storage.Config{}, errors.New("storage.path: required")
	}
	return storage.Config{
		Driver:      driver,
		Path:        strings.TrimSpace(c.Storage.Path),
		BusyTimeout: busy,
		Keep:        c.Storage.Keep,
	}, nil
}

func (c *Config) LogConfig() logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File: logx.FileConfig{
			Enabled: c.Logging.File.Enabled,
			Path:    c.Logging.File.Path,
		},
		Chat: logx.ChatConfig{
			Enabled:    c.Logging.Telegram.Enabled && c.TelegramEnabled(),
			MinLevel:   c.Logging.Telegram.MinLevel,
			RatePerSec: c.Logging.Telegram.RatePerSec,
		},
	}
}

func (c *Config) TelegramAdapterConfig() (telegram.Config, error) {
	if c.Telegram == nil {
		return telegram.Config{}, errors.New("telegram: section missing")
	}
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return telegram.Config{}, errors.New("telegram.token: required")
	}
	if len(c.Telegram.OwnerUserIDs) == 0 {
		return telegram.Config{}, errors.New("telegram.owner_user_ids: at least one owner required")
	}
	poll, err := ParseDurationOrDefault("telegram.poll_timeout", c.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{
		Token:          strings.TrimSpace(c.Telegram.Token),
		PollTimeout:    poll,
		SendRatePerSec: c.Telegram.SendRatePerSec,
	}, nil
}

// OwnerChat is where announcements go: chat_id, else the first owner's
// private chat.
func (c *Config) OwnerChat() transport.ChatTarget {
	if c.Telegram == nil {
		return transport.ChatTarget{}
	}
	id := c.Telegram.ChatID
	if id == 0 && len(c.Telegram.OwnerUserIDs) > 0 {
		id = c.Telegram.OwnerUserIDs[0]
	}
	return transport.ChatTarget{ChatID: id, ThreadID: c.Telegram.ThreadID}
}

func (c *Config) Owners() []int64 {
	if c.Telegram == nil {
		return nil
	}
	return append([]int64(nil), c.Telegram.OwnerUserIDs...)
}

// SeedTasks validates and builds the configured tasks.
func (c *Config) SeedTasks() ([]reminder.Task, error) {
	out := make([]reminder.Task, 0, len(c.Tasks))
	var errs []error
	for i, tc := range c.Tasks {
		kind, err := reminder.ParseKind(tc.Kind)
		if err != nil {
			errs = append(errs, fmt.Errorf("tasks[%d]: %w", i, err))
			continue
		}
		var t reminder.Task
		switch kind {
		case reminder.KindCall:
			t, err = reminder.NewCall(tc.Time, tc.Contact, tc.Phone)
		default:
			t, err = reminder.NewReminder(tc.Time, tc.Message)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("tasks[%d]: %w", i, err))
			continue
		}
		out = append(out, t)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
