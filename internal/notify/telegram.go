package notify

import (
	"context"
	"fmt"
	"html"
	"regexp"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/foodway/foodway-backend/pkg/config"
)

type messageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramChannel pushes messages to customers who linked a Telegram chat.
type TelegramChannel struct {
	bot messageSender
}

func NewTelegramChannel(cfg config.TelegramConfig) (*TelegramChannel, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("telegram bot token required")
	}
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	api.Debug = cfg.Debug
	return &TelegramChannel{bot: api}, nil
}

func (c *TelegramChannel) Name() string { return "telegram" }

func (c *TelegramChannel) Accepts(to Recipient) bool { return to.HasChat() }

func (c *TelegramChannel) Send(ctx context.Context, to Recipient, subject, body string) error {
	if !c.Accepts(to) {
		return ErrNoAddress
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(to.ChatID, telegramText(subject, body))
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// telegramText keeps the <b> emphasis Telegram understands and strips other markup.
func telegramText(subject, body string) string {
	plain := tagPattern.ReplaceAllStringFunc(body, func(tag string) string {
		switch tag {
		case "<b>", "</b>":
			return tag
		default:
			return ""
		}
	})
	return "<b>" + html.EscapeString(subject) + "</b>\n" + plain
}
