// Package api defines the wire types shared between the daemon's HTTP
// surface and the CLI client.
package api

import (
	"encoding/json"
	"time"
)

// Status describes the daemon's current view of the world.
type Status struct {
	Version         string       `json:"version"`
	PID             int          `json:"pid"`
	State           string       `json:"state"`
	ActiveProfile   string       `json:"active_profile,omitempty"`
	UndockedProfile string       `json:"undocked_profile,omitempty"`
	Docks           []DockStatus `json:"docks"`
	Monitors        []string     `json:"monitors"`
	SecurityMode    string       `json:"security_mode,omitempty"`
	UptimeSeconds   int64        `json:"uptime_seconds"`
}

// DockStatus is one connected Thunderbolt dock, with the profile linked
// to it when such a link exists.
type DockStatus struct {
	UUID    string `json:"uuid"`
	Name    string `json:"name,omitempty"`
	Profile string `json:"profile,omitempty"`
}

// NotifyRequest asks the daemon to schedule a hardware re-check.
type NotifyRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ApplyRequest asks the daemon to apply a profile. An empty Profile with
// Auto set resolves against current hardware instead.
type ApplyRequest struct {
	Profile string `json:"profile,omitempty"`
	Auto    bool   `json:"auto,omitempty"`
}

// ApplyResult reports the outcome of an apply or resolution pass.
type ApplyResult struct {
	Outcome string `json:"outcome"`
	Profile string `json:"profile,omitempty"`
	Dock    string `json:"dock,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HistoryEntry is one recorded daemon event returned by /history.
type HistoryEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	Outcome   string    `json:"outcome,omitempty"`
	Profile   string    `json:"profile,omitempty"`
	Dock      string    `json:"dock,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// HistoryResponse wraps the /history payload.
type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
}

// Event is one message on the /events websocket stream.
type Event struct {
	Topic     string          `json:"topic"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}
