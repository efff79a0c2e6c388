package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"petcare-billing/internal/domain/ports/adapter"
)

var _ adapter.AlertNotifier = (*AlertNotifier)(nil)

// AlertNotifier posts reconciliation alerts to an operations chat.
type AlertNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zerolog.Logger
}

func NewAlertNotifier(token string, chatID int64, logger *zerolog.Logger) (*AlertNotifier, error) {
	return NewAlertNotifierWithEndpoint(token, tgbotapi.APIEndpoint, chatID, &http.Client{Timeout: 10 * time.Second}, logger)
}

// NewAlertNotifierWithEndpoint points the bot at a custom Bot API endpoint
// (format "https://host/bot%s/%s").
func NewAlertNotifierWithEndpoint(token, endpoint string, chatID int64, client tgbotapi.HTTPClient, logger *zerolog.Logger) (*AlertNotifier, error) {
	if token == "" || chatID == 0 {
		return nil, fmt.Errorf("telegram alerts: token and chat id are required")
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("telegram alerts: %w", err)
	}
	l := logger.With().Str("component", "telegram_alerts").Logger()
	l.Info().Str("bot", bot.Self.UserName).Int64("chat_id", chatID).Msg("alert bot authorized")
	return &AlertNotifier{bot: bot, chatID: chatID, log: &l}, nil
}

func (n *AlertNotifier) Notify(ctx context.Context, a adapter.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, FormatAlert(a))
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Warn().Err(err).Str("record_id", a.RecordID).Msg("send alert failed")
		return err
	}
	return nil
}

// FormatAlert renders the plain-text alert body.
func FormatAlert(a adapter.Alert) string {
	var b strings.Builder
	b.WriteString("Payment needs reconciliation\n")
	fmt.Fprintf(&b, "status: %s\n", a.Status)
	fmt.Fprintf(&b, "record: %s\n", a.RecordID)
	fmt.Fprintf(&b, "user: %s\n", a.UserID)
	fmt.Fprintf(&b, "plan: %s\n", a.Plan)
	if a.Reason != "" {
		fmt.Fprintf(&b, "reason: %s", a.Reason)
	}
	return strings.TrimRight(b.String(), "\n")
}

var _ adapter.AlertNotifier = (*NoopAlertNotifier)(nil)

// NoopAlertNotifier logs alerts instead of sending them. Used in dev mode or when
// no alert chat is configured.
type NoopAlertNotifier struct {
	log *zerolog.Logger
}

func NewNoopAlertNotifier(logger *zerolog.Logger) *NoopAlertNotifier {
	l := logger.With().Str("component", "noop_alerts").Logger()
	return &NoopAlertNotifier{log: &l}
}

func (n *NoopAlertNotifier) Notify(ctx context.Context, a adapter.Alert) error {
	n.log.Warn().
		Str("record_id", a.RecordID).
		Str("user_id", a.UserID).
		Str("status", a.Status).
		Str("reason", a.Reason).
		Msg("[noop-alert] payment needs reconciliation")
	return nil
}
