package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/patdx/fly-watch/internal/model"
)

// LogNotifier writes alerts to the logger instead of an external channel.
// Used when no channel is configured, and for dry runs.
type LogNotifier struct {
	logger *slog.Logger
}

var _ Notifier = (*LogNotifier)(nil)

func NewLog(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendAlert(ctx context.Context, message string) error {
	n.logger.Info("machine event alert", "message", message)
	return nil
}

func (n *LogNotifier) FormatEvent(machine *model.Machine, event *model.Event) string {
	return fmt.Sprintf("%s %s/%s (%s) %s (%s) source=%s at %s",
		n.StateEmoji(event.Status),
		machine.AppName, machine.Name, shortID(machine.ID),
		event.Type, event.Status, event.Source,
		event.Time().Format("2006-01-02T15:04:05.000Z07:00"),
	)
}

func (n *LogNotifier) StateEmoji(state string) string {
	return stateEmoji(state)
}
