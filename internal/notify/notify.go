// Package notify delivers human-readable alerts for machine state
// transitions. One Notifier implementation exists per channel; callers
// depend only on the interface.
package notify

import (
	"context"

	"github.com/patdx/fly-watch/internal/model"
)

// Notifier formats and delivers one alert per machine event.
type Notifier interface {
	// FormatEvent renders a (machine, event) pair into the channel's
	// message markup. It has no side effects.
	FormatEvent(machine *model.Machine, event *model.Event) string

	// SendAlert delivers one formatted message. A non-nil error means the
	// message may not have reached the channel; callers decide whether to
	// leave a retryable gap.
	SendAlert(ctx context.Context, message string) error

	// StateEmoji maps a machine state to the emoji used in messages.
	StateEmoji(state string) string
}

// stateEmoji is the shared state-to-emoji mapping used by all channels.
func stateEmoji(state string) string {
	switch state {
	case "started":
		return "🟢"
	case "stopped":
		return "🔴"
	case "suspended":
		return "⏸️"
	case "failed":
		return "❌"
	default:
		return "⚪"
	}
}

// shortID truncates a machine ID for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
