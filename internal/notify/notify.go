// Package notify delivers operator and user alerts. Delivery is best
// effort: a failed send is logged and never blocks the ledger.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const (
	KindLowBalance         = "low_balance"
	KindSuspiciousTransfer = "suspicious_transfer"
	KindLoanDue            = "loan_due"
	KindIntegrity          = "integrity_violation"
)

type Alert struct {
	Kind    string    `json:"kind"`
	UserID  uint      `json:"user_id,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

func (a Alert) String() string {
	if a.UserID != 0 {
		return fmt.Sprintf("[%s] user %d: %s", a.Kind, a.UserID, a.Message)
	}
	return fmt.Sprintf("[%s] %s", a.Kind, a.Message)
}

type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// LogNotifier writes alerts to the structured log.
type LogNotifier struct {
	Log zerolog.Logger
}

func (n LogNotifier) Notify(_ context.Context, a Alert) error {
	ev := n.Log.Warn()
	if a.Kind == KindIntegrity {
		ev = n.Log.Error()
	}
	ev.Str("kind", a.Kind).Uint("user_id", a.UserID).Time("at", a.At).Msg(a.Message)
	return nil
}

// sender is the part of *tgbotapi.BotAPI used here.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts alerts to one operator chat.
type TelegramNotifier struct {
	bot    sender
	chatID int64
}

// NewTelegram logs in with token. It contacts the Telegram API.
func NewTelegram(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

func (n *TelegramNotifier) Notify(_ context.Context, a Alert) error {
	icon := "⚠️"
	if a.Kind == KindIntegrity {
		icon = "🚨"
	}
	msg := tgbotapi.NewMessage(n.chatID, icon+" "+a.String())
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// Multi fans an alert out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, a Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
