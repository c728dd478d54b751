package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// messageSender подмножество *bot.Bot, которое нужно уведомителю
type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramNotifier отправляет события в чат Telegram
type TelegramNotifier struct {
	sender   messageSender
	chatID   int64
	location *time.Location
}

// NewTelegramNotifier создаёт клиента бота без запроса getMe при старте
func NewTelegramNotifier(token string, chatID int64, loc *time.Location) (*TelegramNotifier, error) {
	b, err := bot.New(token, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return newTelegramNotifier(b, chatID, loc), nil
}

func newTelegramNotifier(sender messageSender, chatID int64, loc *time.Location) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, chatID: chatID, location: loc}
}

func (n *TelegramNotifier) Dispatch(ctx context.Context, ev model.LifecycleEvent) error {
	_, err := n.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: n.chatID,
		Text:   FormatMessage(ev, n.location),
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
