package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/microcosm-cc/bluemonday"
)

// TelegramBot is the part of the bot API the notifier uses.
type TelegramBot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends events as HTML messages to one chat.
type Telegram struct {
	bot    TelegramBot
	chatID int64
	policy *bluemonday.Policy
}

// NewTelegram connects to the bot API with token.
func NewTelegram(token string, chatID int64, client *http.Client) (*Telegram, error) {
	if client == nil {
		client = http.DefaultClient
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("notify: telegram: %w", err)
	}
	return NewTelegramWithBot(bot, chatID), nil
}

// NewTelegramWithBot wraps an existing bot.
func NewTelegramWithBot(bot TelegramBot, chatID int64) *Telegram {
	return &Telegram{bot: bot, chatID: chatID, policy: bluemonday.StrictPolicy()}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(_ context.Context, ev *Event) error {
	msg := tgbotapi.NewMessage(t.chatID, t.render(ev))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// render builds the HTML body. Title, body and URL pass through the strict
// policy: markup is stripped and entities escaped.
func (t *Telegram) render(ev *Event) string {
	var b strings.Builder
	b.WriteString("<b>")
	b.WriteString(t.policy.Sanitize(ev.Title))
	b.WriteString("</b>\n")
	b.WriteString(t.policy.Sanitize(ev.Body))
	if ev.URL != "" {
		fmt.Fprintf(&b, "\n<a href=\"%s\">abrir</a>", t.policy.Sanitize(ev.URL))
	}
	return b.String()
}
