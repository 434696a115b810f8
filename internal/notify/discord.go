package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/patdx/fly-watch/internal/model"
)

// DiscordNotifier delivers alerts to a Discord webhook.
type DiscordNotifier struct {
	webhookURL string
	httpClient *http.Client
}

var _ Notifier = (*DiscordNotifier)(nil)

// NewDiscord creates a notifier posting to the given webhook URL.
func NewDiscord(webhookURL string) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{},
	}
}

// discordPayload is the webhook execute body.
type discordPayload struct {
	Content   string `json:"content"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

func (n *DiscordNotifier) SendAlert(ctx context.Context, message string) error {
	payload := discordPayload{
		Content:   message,
		Username:  "Fly Machine Monitor",
		AvatarURL: "https://fly.io/static/images/fly-logo.svg",
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting to discord webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("discord webhook failed: HTTP %d", resp.StatusCode)
	}
	return nil
}

func (n *DiscordNotifier) FormatEvent(machine *model.Machine, event *model.Event) string {
	return fmt.Sprintf(
		"%s **Machine Event**\n"+
			"**App:** %s\n"+
			"**Machine:** %s (%s)\n"+
			"**Region:** %s\n"+
			"**Event:** %s (%s)\n"+
			"**Source:** %s\n"+
			"**Time:** %s",
		n.StateEmoji(event.Status),
		machine.AppName,
		machine.Name, shortID(machine.ID),
		machine.Region,
		event.Type, event.Status,
		event.Source,
		event.Time().Format("2006-01-02T15:04:05.000Z07:00"),
	)
}

func (n *DiscordNotifier) StateEmoji(state string) string {
	return stateEmoji(state)
}
