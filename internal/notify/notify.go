// Package notify delivers user-facing notices from the agent (session
// expired, Instagram connected, reconnect required) to its owner.
package notify

import (
	log "github.com/sirupsen/logrus"
	tb "gopkg.in/tucnak/telebot.v3"
)

// Notifier is a one-way user notification channel; delivery is
// best-effort and must never fail the caller
type Notifier interface {
	Notify(message string)
}

// Config represents a configuration for the notification channel
// leaving the token empty falls back to log-only notices
type Config struct {
	TelegramToken  string `toml:"telegram_token,omitempty"`
	TelegramChatID int64  `toml:"telegram_chat_id,omitempty"`
}

// New builds a Notifier from the configuration
func New(config Config) Notifier {
	if config.TelegramToken == "" || config.TelegramChatID == 0 {
		return Log{}
	}

	n, err := NewTelegram(config)
	if err != nil {
		log.Errorf("notify: failed to initialize Telegram notifier, falling back to log: %v", err)
		return Log{}
	}
	return n
}

var sendMessageOption = &tb.SendOptions{ParseMode: tb.ModeHTML, DisableWebPagePreview: true}

// Telegram sends notices to the owner's chat through a Telegram bot
type Telegram struct {
	bot  *tb.Bot
	chat tb.ChatID
}

// NewTelegram initializes the Telegram bot behind the notifier
func NewTelegram(config Config) (*Telegram, error) {
	b, err := tb.NewBot(tb.Settings{Token: config.TelegramToken})
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chat: tb.ChatID(config.TelegramChatID)}, nil
}

// Notify sends the message to the owner's chat
func (n *Telegram) Notify(message string) {
	if _, err := n.bot.Send(n.chat, message, sendMessageOption); err != nil {
		log.Errorf("notify: failed to send Telegram message: %v", err)
	}
}

// Log writes notices to the logger only
type Log struct{}

// Notify logs the message
func (Log) Notify(message string) {
	log.Info(message)
}
