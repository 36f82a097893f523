package reminder

import "time"

// Event types published on the event bus.
const (
	EventTaskAdded   = "task.added"
	EventTaskFired   = "task.fired"
	EventCallOutcome = "call.outcome"
)

// FiredEvent is published once per task firing.
type FiredEvent struct {
	TaskID    string    `json:"task_id"`
	Kind      string    `json:"kind"`
	MinuteKey string    `json:"minute_key"`
	Summary   string    `json:"summary"`
	At        time.Time `json:"at"`
	Error     string    `json:"error,omitempty"`
}

// OutcomeEvent is published when a call confirmation resolves.
type OutcomeEvent struct {
	TaskID  string    `json:"task_id"`
	Contact string    `json:"contact"`
	Phone   string    `json:"phone"`
	Outcome string    `json:"outcome"`
	Heard   string    `json:"heard,omitempty"`
	At      time.Time `json:"at"`
	Error   string    `json:"error,omitempty"`
}
