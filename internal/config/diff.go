package config

import (
	"reflect"
	"sort"
	"strings"

	logx "voxremind/pkg/logx"
)

// Change summarizes a reload.
type Change struct {
	// Sections lists changed top-level sections, sorted.
	Sections []string
	// RestartRequired lists changed sections that only apply on restart.
	RestartRequired []string
	// Attrs are safe log fields (never the bot token).
	Attrs []logx.Field
}

func (c Change) Has(section string) bool {
	for _, s := range c.Sections {
		if s == section {
			return true
		}
	}
	return false
}

// SummarizeChange compares two configs section by section.
func SummarizeChange(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var ch Change
	mark := func(section string, restart bool, attrs ...logx.Field) {
		ch.Sections = append(ch.Sections, section)
		if restart {
			ch.RestartRequired = append(ch.RestartRequired, section)
		}
		ch.Attrs = append(ch.Attrs, attrs...)
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		mark("logging", false,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}
	if newCfg.ConsoleEnabled() != oldCfg.ConsoleEnabled() {
		mark("console", true, logx.Bool("console.enabled", newCfg.ConsoleEnabled()))
	}
	if telegramChanged(oldCfg.Telegram, newCfg.Telegram) {
		owners := 0
		if newCfg.Telegram != nil {
			owners = len(newCfg.Telegram.OwnerUserIDs)
		}
		mark("telegram", true,
			logx.Bool("telegram.enabled", newCfg.TelegramEnabled()),
			logx.Int("telegram.owner_count", owners),
		)
	}
	if oldCfg.Voice != newCfg.Voice {
		// The input channel is bound at startup; the rest applies live.
		restart := oldCfg.VoiceInput() != newCfg.VoiceInput()
		mark("voice", restart,
			logx.String("voice.input", newCfg.VoiceInput()),
			logx.String("voice.confirm_timeout", strings.TrimSpace(newCfg.Voice.ConfirmTimeout)),
			logx.String("voice.confirm_mode", strings.TrimSpace(newCfg.Voice.ConfirmMode)),
		)
	}
	if !reflect.DeepEqual(oldCfg.Scheduler, newCfg.Scheduler) {
		mark("scheduler", true,
			logx.Bool("scheduler.enabled", newCfg.SchedulerEnabled()),
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
		)
	}
	if oldCfg.Chime != newCfg.Chime {
		mark("chime", false,
			logx.Bool("chime.enabled", newCfg.Chime.Enabled),
			logx.String("chime.interval", newCfg.Chime.Interval),
		)
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		driver := ""
		if newCfg.Storage != nil {
			driver = newCfg.Storage.Driver
		}
		mark("storage", true, logx.String("storage.driver", driver))
	}
	if !reflect.DeepEqual(oldCfg.Contacts, newCfg.Contacts) {
		mark("contacts", false, logx.Int("contacts.count", len(newCfg.Contacts)))
	}
	if !reflect.DeepEqual(oldCfg.Tasks, newCfg.Tasks) {
		// Seed tasks are applied once.
		mark("tasks", true, logx.Int("tasks.count", len(newCfg.Tasks)))
	}

	sort.Strings(ch.Sections)
	sort.Strings(ch.RestartRequired)
	return ch
}

func telegramChanged(o, n *TelegramConfig) bool {
	if (o == nil) != (n == nil) {
		return true
	}
	if o == nil {
		return false
	}
	return o.Enabled != n.Enabled ||
		strings.TrimSpace(o.Token) != strings.TrimSpace(n.Token) ||
		!reflect.DeepEqual(o.OwnerUserIDs, n.OwnerUserIDs) ||
		o.ChatID != n.ChatID ||
		o.ThreadID != n.ThreadID ||
		strings.TrimSpace(o.PollTimeout) != strings.TrimSpace(n.PollTimeout) ||
		o.SendRatePerSec != n.SendRatePerSec
}
