package models

import "time"

// HeatEvent is a journal entry persisted for a heat (start, reset, scenario, action).
type HeatEvent struct {
	EventID    string    `json:"eventId"`
	HeatID     int       `json:"heatId"`
	OccurredAt time.Time `json:"occurredAt"`
	Kind       string    `json:"kind"` // START | RESET | SCENARIO | ACTION
	Message    string    `json:"message"`
	Metadata   any       `json:"metadata,omitempty"`
}

// Journal kinds.
const (
	EventStart    = "START"
	EventReset    = "RESET"
	EventScenario = "SCENARIO"
	EventAction   = "ACTION"
)
