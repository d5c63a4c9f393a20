package alert

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	apphttp "github.com/danya2271/LocalLLMTradingBot/pkg/http"
)

const telegramBaseURL = "https://api.telegram.org"

// TelegramChannel broadcasts alerts to a fixed set of Telegram users.
type TelegramChannel struct {
	botToken string
	userIDs  []int64
	client   *apphttp.Client
}

// NewTelegramChannel creates a Telegram sink. An empty baseURL selects the
// production API.
func NewTelegramChannel(botToken string, userIDs []int64, baseURL string) *TelegramChannel {
	if baseURL == "" {
		baseURL = telegramBaseURL
	}
	return &TelegramChannel{
		botToken: botToken,
		userIDs:  userIDs,
		client:   apphttp.NewClient(baseURL, 10*time.Second),
	}
}

func (t *TelegramChannel) Name() string {
	return "telegram"
}

func (t *TelegramChannel) Send(ctx context.Context, alert Payload) error {
	if t.botToken == "" || len(t.userIDs) == 0 {
		return nil
	}

	icon := "ℹ️"
	switch alert.Level {
	case Warning:
		icon = "⚠️"
	case Error:
		icon = "❌"
	case Critical:
		icon = "🚨"
	}

	text := fmt.Sprintf("%s *[%s] %s*\n\n%s", icon, alert.Level, alert.Title, alert.Message)
	if len(alert.Fields) > 0 {
		text += "\n"
		for k, v := range alert.Fields {
			text += fmt.Sprintf("\n- *%s*: %s", k, v)
		}
	}

	var errs error
	for _, userID := range t.userIDs {
		if err := t.sendMessage(ctx, userID, text); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("user %d: %w", userID, err))
		}
	}
	return errs
}

// SendText delivers a plain message outside the alert formatting, used for
// command replies and cycle summaries.
func (t *TelegramChannel) SendText(ctx context.Context, userID int64, text string) error {
	return t.sendMessage(ctx, userID, text)
}

func (t *TelegramChannel) sendMessage(ctx context.Context, chatID int64, text string) error {
	path := fmt.Sprintf("/bot%s/sendMessage", t.botToken)
	payload := map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}
	_, err := t.client.Post(ctx, path, payload)
	return err
}
