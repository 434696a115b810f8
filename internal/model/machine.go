package model

import (
	"encoding/json"
	"time"
)

// MachineState is the lifecycle state reported by the Machines API.
// Well-known constants are provided below, but the API may return other
// values; any non-empty string is accepted.
type MachineState string

const (
	StateStarted   MachineState = "started"
	StateStopped   MachineState = "stopped"
	StateSuspended MachineState = "suspended"
	StateFailed    MachineState = "failed"
)

// String returns the string representation of the state.
func (s MachineState) String() string {
	return string(s)
}

// App is one logical application group returned by the inventory source.
type App struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	MachineCount int    `json:"machine_count"`
	VolumeCount  int    `json:"volume_count"`
	Network      string `json:"network"`
}

// Machine is a machine snapshot fetched from the inventory source, with its
// embedded event log. The event log is ordered by arrival, not by time.
type Machine struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	State      MachineState `json:"state"`
	Region     string       `json:"region"`
	InstanceID string       `json:"instance_id"`
	AppName    string       `json:"app_name"`
	CreatedAt  string       `json:"created_at,omitempty"`
	UpdatedAt  string       `json:"updated_at,omitempty"`
	Events     []Event      `json:"events"`
}

// LatestEventTimestamp returns the largest timestamp across the machine's
// embedded events and whether any event was present.
func (m *Machine) LatestEventTimestamp() (int64, bool) {
	if len(m.Events) == 0 {
		return 0, false
	}
	latest := m.Events[0].Timestamp
	for _, e := range m.Events[1:] {
		if e.Timestamp > latest {
			latest = e.Timestamp
		}
	}
	return latest, true
}

// Event is one entry in a machine's fetched event log.
//
// The source-assigned ID is informational only: it is not guaranteed unique
// or monotonic across sources, so ordering and dedup use Timestamp alone.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Status    string          `json:"status"`
	Source    string          `json:"source"`
	Timestamp int64           `json:"timestamp"` // epoch millis
	Request   json.RawMessage `json:"request,omitempty"`
}

// Time returns the event timestamp as a time.Time in UTC.
func (e *Event) Time() time.Time {
	return time.UnixMilli(e.Timestamp).UTC()
}

// billingRelevantTypes is the closed set of event types that warrant a
// ledger row and a notification. Matching is case-sensitive.
var billingRelevantTypes = map[string]bool{
	"start": true,
	"stop":  true,
	"exit":  true,
}

// IsBillingRelevant reports whether the event's type is in the closed
// start/stop/exit set.
func (e *Event) IsBillingRelevant() bool {
	return billingRelevantTypes[e.Type]
}

// StoredMachine is the persisted snapshot of a machine: its last known
// state plus the per-machine watermark.
type StoredMachine struct {
	ID         string       `json:"id"`
	AppName    string       `json:"app_name"`
	Name       string       `json:"name"`
	LastState  MachineState `json:"last_state"`
	LastUpdate time.Time    `json:"last_updated"`
	Region     string       `json:"region,omitempty"`
	InstanceID string       `json:"instance_id,omitempty"`

	// LastProcessedEventTimestamp is the watermark: the timestamp of the
	// most recent event from this machine that has already been evaluated,
	// whether or not it was billing-relevant. Nil means no floor; every
	// event is new.
	LastProcessedEventTimestamp *int64 `json:"last_processed_event_timestamp,omitempty"`
}

// StateChangeEvent is one row in the append-only transition ledger.
type StateChangeEvent struct {
	ID            int64  `json:"id"`
	MachineID     string `json:"machine_id"`
	EventType     string `json:"event_type"`
	PreviousState string `json:"previous_state,omitempty"`
	NewState      string `json:"new_state"`
	Timestamp     int64  `json:"timestamp"` // epoch millis
	Notified      bool   `json:"notified"`
}
