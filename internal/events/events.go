package events

import "context"

// Event topic constants
const (
	TopicMachineStart = "flywatch.machine.start"
	TopicMachineStop  = "flywatch.machine.stop"
	TopicMachineExit  = "flywatch.machine.exit"
)

// TopicFor maps a billing-relevant event type to its topic. Unknown types
// fall under a catch-all topic so nothing is silently lost.
func TopicFor(eventType string) string {
	switch eventType {
	case "start":
		return TopicMachineStart
	case "stop":
		return TopicMachineStop
	case "exit":
		return TopicMachineExit
	}
	return "flywatch.machine." + eventType
}

// MachineTransition is the payload published for each recorded transition.
type MachineTransition struct {
	MachineID string `json:"machine_id"`
	Machine   string `json:"machine"`
	App       string `json:"app"`
	Region    string `json:"region,omitempty"`
	EventType string `json:"event_type"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// NoopPublisher discards transitions. The monitor falls back to it when no
// NATS URL is configured, so publishing stays unconditional in the engine.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, any) error { return nil }

func (NoopPublisher) Close() error { return nil }
