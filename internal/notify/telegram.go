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

// telegramAPIBase is the Bot API host; overridable in tests.
var telegramAPIBase = "https://api.telegram.org"

// TelegramNotifier delivers alerts via the Telegram Bot API.
type TelegramNotifier struct {
	botToken   string
	chatID     string
	httpClient *http.Client
}

var _ Notifier = (*TelegramNotifier)(nil)

// NewTelegram creates a notifier sending to the given chat via the bot.
func NewTelegram(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		botToken:   botToken,
		chatID:     chatID,
		httpClient: &http.Client{},
	}
}

func (n *TelegramNotifier) SendAlert(ctx context.Context, message string) error {
	payload := map[string]string{
		"chat_id":    n.chatID,
		"text":       message,
		"parse_mode": "Markdown",
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling telegram payload: %w", err)
	}

	url := telegramAPIBase + "/bot" + n.botToken + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting to telegram: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Description string `json:"description"`
		}
		body, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Description != "" {
			return fmt.Errorf("telegram api failed: HTTP %d: %s", resp.StatusCode, apiErr.Description)
		}
		return fmt.Errorf("telegram api failed: HTTP %d", resp.StatusCode)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (n *TelegramNotifier) FormatEvent(machine *model.Machine, event *model.Event) string {
	return fmt.Sprintf(
		"%s *Machine Event*\n"+
			"*App:* %s\n"+
			"*Machine:* %s (%s)\n"+
			"*Region:* %s\n"+
			"*Event:* %s (%s)\n"+
			"*Source:* %s\n"+
			"*Time:* %s",
		n.StateEmoji(event.Status),
		machine.AppName,
		machine.Name, shortID(machine.ID),
		machine.Region,
		event.Type, event.Status,
		event.Source,
		event.Time().Format("2006-01-02T15:04:05.000Z07:00"),
	)
}

func (n *TelegramNotifier) StateEmoji(state string) string {
	return stateEmoji(state)
}
