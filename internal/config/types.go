package config

// Config is the on-disk configuration (JSON, or YAML by file extension).
// Unknown fields are rejected.
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Console   ConsoleConfig   `json:"console"`
	Telegram  *TelegramConfig `json:"telegram,omitempty"`
	Voice     VoiceConfig     `json:"voice"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Chime     ChimeConfig     `json:"chime"`
	Storage   *StorageConfig  `json:"storage,omitempty"`

	// Contacts maps spoken names to phone numbers for the transcript parser.
	Contacts map[string]string `json:"contacts,omitempty"`
	// Tasks are seeded once at startup.
	Tasks []TaskConfig `json:"tasks,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram forwards records at or above MinLevel to the owner chat.
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// ConsoleConfig binds the speech ports to stdin/stdout.
// Enabled is a pointer so an omitted section defaults to true.
type ConsoleConfig struct {
	Enabled *bool `json:"enabled,omitempty"`
}

type TelegramConfig struct {
	Enabled      bool    `json:"enabled"`
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// ChatID receives announcements; defaults to the first owner.
	ChatID   int64 `json:"chat_id,omitempty"`
	ThreadID int   `json:"thread_id,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout    string  `json:"poll_timeout"`
	SendRatePerSec float64 `json:"send_rate_per_sec,omitempty"`
}

// VoiceConfig controls call confirmations.
//
// Defaults (when fields are omitted/zero):
//   - input: "console" (or "telegram" when the console is disabled)
//   - locale: "en-US"
//   - confirm_timeout: "7s"
//   - confirm_mode: "concurrent"
//   - confirm_queue: 8
type VoiceConfig struct {
	Input          string `json:"input,omitempty"`
	Locale         string `json:"locale,omitempty"`
	ConfirmTimeout string `json:"confirm_timeout,omitempty"`
	ConfirmMode    string `json:"confirm_mode,omitempty"`
	ConfirmQueue   int    `json:"confirm_queue,omitempty"`
}

// SchedulerConfig controls the reminder tick loop.
//
// Enabled is a pointer so we can distinguish "omitted" (enabled) from an
// explicit false.
type SchedulerConfig struct {
	Enabled *bool `json:"enabled,omitempty"`
	// TickInterval is a Go duration string; default "1s".
	TickInterval string `json:"tick_interval,omitempty"`
	// Timezone is an IANA name; empty means the host zone.
	Timezone string `json:"timezone,omitempty"`
}

type ChimeConfig struct {
	Enabled bool `json:"enabled"`
	// Interval is "hourly" (default) or "minutely".
	Interval string `json:"interval,omitempty"`
}

// StorageConfig controls the optional firing journal.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./voxremind.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	Keep        int    `json:"keep,omitempty"`
}

// TaskConfig is one seed task.
type TaskConfig struct {
	Time    string `json:"time"`
	Kind    string `json:"kind"`
	Message string `json:"message,omitempty"`
	Contact string `json:"contact,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
