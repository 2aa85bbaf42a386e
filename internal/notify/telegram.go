package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// Deliverer sends a finished message to a channel.
type Deliverer interface {
	Deliver(ctx context.Context, channel, text string) error
}

type TelegramDeliverer struct {
	bot     *tgbotapi.BotAPI
	limiter *rate.Limiter
}

// NewTelegramDeliverer validates the token against the Bot API. endpoint may
// be empty for the public API; otherwise it must follow tgbotapi.APIEndpoint's
// "%s/%s" layout.
func NewTelegramDeliverer(token, endpoint string, client *http.Client, limit rate.Limit) (*TelegramDeliverer, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if client == nil {
		client = &http.Client{}
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramDeliverer{bot: bot, limiter: rate.NewLimiter(limit, 1)}, nil
}

// Deliver accepts a numeric chat id or an @channel username.
func (t *TelegramDeliverer) Deliver(ctx context.Context, channel, text string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var msg tgbotapi.MessageConfig
	if id, err := strconv.ParseInt(strings.TrimSpace(channel), 10, 64); err == nil {
		msg = tgbotapi.NewMessage(id, text)
	} else {
		msg = tgbotapi.NewMessageToChannel(strings.TrimSpace(channel), text)
	}
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
