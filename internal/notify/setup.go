package notify

import (
	"errors"

	"golang.org/x/time/rate"

	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/config"
)

// FromConfig wires the OpenAI composer (template when no key is set) and the
// Telegram deliverer. A missing Telegram token or chat id is an error.
func FromConfig(cfg config.Config, ledger Ledger, opts ...Option) (*Dispatcher, error) {
	if cfg.TelegramToken == "" || cfg.TelegramChatID == "" {
		return nil, errors.New("telegram configuration missing: TELEGRAM_TOKEN and TELEGRAM_CHAT_ID are required")
	}
	deliverer, err := NewTelegramDeliverer(cfg.TelegramToken, "", nil, rate.Every(cfg.TelegramRate))
	if err != nil {
		return nil, err
	}

	var composer Composer = TemplateComposer{}
	if cfg.OpenAIAPIKey != "" {
		composer = NewOpenAIComposer(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL)
	}

	opts = append([]Option{WithAttempts(cfg.DeliveryAttempts)}, opts...)
	return NewDispatcher(composer, deliverer, ledger, cfg.TelegramChatID, opts...), nil
}
