package reminder

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Kind selects what a task does when it fires.
type Kind int

const (
	KindReminder Kind = iota
	KindCall
)

func (k Kind) String() string {
	switch k {
	case KindReminder:
		return "reminder"
	case KindCall:
		return "call"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ParseKind accepts "reminder" or "call" (case-insensitive).
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "reminder", "remind", "":
		return KindReminder, nil
	case "call":
		return KindCall, nil
	default:
		return 0, fmt.Errorf("unknown task kind %q (use reminder or call)", s)
	}
}

// Task is a unit of scheduled reminder work. Tasks are immutable once added.
type Task struct {
	ID string `json:"id"`
	// Time is the daily time of day, "HH:MM" in 24-hour form.
	Time string `json:"time" validate:"required,hhmm"`
	Kind Kind   `json:"kind" validate:"task_kind"`

	// Message is required for reminders.
	Message string `json:"message,omitempty"`

	// ContactName and PhoneNumber are required for calls.
	ContactName string `json:"contact_name,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// NewReminder builds a validated reminder task with a fresh ID.
func NewReminder(at, message string) (Task, error) {
	return Prepare(Task{Time: at, Kind: KindReminder, Message: message})
}

// NewCall builds a validated call task with a fresh ID.
func NewCall(at, contactName, phoneNumber string) (Task, error) {
	return Prepare(Task{Time: at, Kind: KindCall, ContactName: contactName, PhoneNumber: phoneNumber})
}

// Prepare validates t, normalizes its time to "HH:MM" and trims text fields.
// An empty ID is replaced by a random UUID.
func Prepare(t Task) (Task, error) {
	t.Time = strings.TrimSpace(t.Time)
	t.Message = strings.TrimSpace(t.Message)
	t.ContactName = strings.TrimSpace(t.ContactName)
	t.PhoneNumber = strings.TrimSpace(t.PhoneNumber)
	if err := Validate(t); err != nil {
		return Task{}, err
	}
	tod, _ := ParseTimeOfDay(t.Time)
	t.Time = tod.String()
	if strings.TrimSpace(t.ID) == "" {
		t.ID = uuid.NewString()
	}
	return t, nil
}

// Announcement is the text spoken when a reminder task fires.
func (t Task) Announcement() string { return "Reminder: " + t.Message }

// Summary is a one-line human description of the task.
func (t Task) Summary() string {
	switch t.Kind {
	case KindCall:
		return fmt.Sprintf("%s call %s (%s)", t.Time, t.ContactName, t.PhoneNumber)
	default:
		return fmt.Sprintf("%s reminder: %s", t.Time, t.Message)
	}
}

// NextFire returns the first occurrence of the task's time strictly after now,
// in now's location. It returns the zero time if the task time is malformed.
func (t Task) NextFire(now time.Time) time.Time {
	tod, err := ParseTimeOfDay(t.Time)
	if err != nil {
		return time.Time{}
	}
	sched, err := cron.ParseStandard(fmt.Sprintf("%d %d * * *", tod.Minute, tod.Hour))
	if err != nil {
		return time.Time{}
	}
	return sched.Next(now)
}

// TimeOfDay is an hour/minute pair.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string { return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute) }

// ParseTimeOfDay parses "H:MM" or "HH:MM" with hour 0-23 and minute 0-59.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	hs, ms, ok := strings.Cut(s, ":")
	if !ok || len(hs) < 1 || len(hs) > 2 || len(ms) != 2 {
		return TimeOfDay{}, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	h, err := strconv.Atoi(hs)
	if err != nil || h < 0 || h > 23 || !isDigits(hs) {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(ms)
	if err != nil || m < 0 || m > 59 || !isDigits(ms) {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// MinuteKey is the "HH:MM" identity of t's wall-clock minute.
func MinuteKey(t time.Time) string {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}.String()
}
