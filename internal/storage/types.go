package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	// Keep bounds how many records are retained (default 1000).
	Keep int
}

const defaultKeep = 1000

func (c Config) keep() int {
	if c.Keep <= 0 {
		return defaultKeep
	}
	return c.Keep
}

// Record types.
const (
	TypeFired   = "fired"
	TypeOutcome = "outcome"
)

// Record is one journal entry: a task firing or a call confirmation outcome.
// Keep it compact and schema-stable.
type Record struct {
	At        time.Time `json:"at"`
	Type      string    `json:"type"`
	TaskID    string    `json:"task_id"`
	Kind      string    `json:"kind,omitempty"`
	MinuteKey string    `json:"minute_key,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Heard     string    `json:"heard,omitempty"`
	Error     string    `json:"error,omitempty"`
}
