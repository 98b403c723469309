package messages

import "time"

// PumpDecisionEvent is published after every pump reconciliation so external
// consumers (dashboards, home automation) can follow what the bridge decided.
type PumpDecisionEvent struct {
	PumpID         string    `json:"pump_id"`
	Command        string    `json:"command"` // open | closed
	WateringValves []string  `json:"watering_valves,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
