// Package notify delivers escalations to a human channel.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/rs/zerolog"

	"github.com/aristath/riskgovernor/internal/domain"
)

// Notifier sends an escalation notice to a human.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
	Channel() string
}

type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts escalations to a Telegram chat.
type TelegramNotifier struct {
	bot    botAPI
	chatID int64
	log    zerolog.Logger
}

// sendTimeout bounds a Telegram request; Send takes no context.
const sendTimeout = 10 * time.Second

// NewTelegramNotifier connects a bot with the given token.
func NewTelegramNotifier(token string, chatID int64, log zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, &http.Client{Timeout: sendTimeout})
	if err != nil {
		return nil, fmt.Errorf("error creating bot: %w", err)
	}
	return newTelegramNotifier(bot, chatID, log), nil
}

func newTelegramNotifier(bot botAPI, chatID int64, log zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		bot:    bot,
		chatID: chatID,
		log:    log.With().Str("notifier", "telegram").Logger(),
	}
}

// Channel implements Notifier.
func (t *TelegramNotifier) Channel() string {
	return "telegram"
}

// Notify implements Notifier.
func (t *TelegramNotifier) Notify(ctx context.Context, n domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, FormatMessage(n))
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	t.log.Debug().Str("case_id", n.CaseID).Msg("Escalation sent")
	return nil
}

// FormatMessage renders a notification as plain text.
func FormatMessage(n domain.Notification) string {
	return fmt.Sprintf("Risk escalation for %s\ncase: %s\nreason: %s", n.Asset, n.CaseID, n.Reason)
}

// LogNotifier writes escalations to the log. It is used when no chat is configured.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("notifier", "log").Logger()}
}

// Channel implements Notifier.
func (l *LogNotifier) Channel() string {
	return "log"
}

// Notify implements Notifier.
func (l *LogNotifier) Notify(_ context.Context, n domain.Notification) error {
	l.log.Warn().
		Str("case_id", n.CaseID).
		Str("asset", n.Asset).
		Str("reason", n.Reason).
		Msg("Risk escalation")
	return nil
}
