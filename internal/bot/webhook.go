package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Registrar is the part of the Bot API that manages webhooks
type Registrar interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// SetWebhook points the platform at url
func SetWebhook(api Registrar, url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("parse webhook url: %w", err)
	}
	if _, err := api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	return nil
}

// DeleteWebhook switches the bot back to long polling
func DeleteWebhook(api Registrar) error {
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("delete webhook: %w", err)
	}
	return nil
}
