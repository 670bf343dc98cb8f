package monitor

import (
	"context"
	"fmt"

	"github.com/ykvlv/stockwatch-bot/internal/domain"
)

// Notifier announces a notify-worthy state.
type Notifier interface {
	Notify(ctx context.Context, p domain.Product, s domain.StockState) error
}

// Sender is the minimal chat capability the notifier needs.
// telegram.Messenger implements it.
type Sender interface {
	SendMessage(chatID int64, text string) error
}

// ChatNotifier sends one line per notification to a fixed chat.
type ChatNotifier struct {
	sender Sender
	chatID int64
}

func NewChatNotifier(sender Sender, chatID int64) *ChatNotifier {
	return &ChatNotifier{sender: sender, chatID: chatID}
}

// FormatNotification renders "{name} - {label}".
func FormatNotification(p domain.Product, s domain.StockState) string {
	return p.DisplayName + " - " + s.Label()
}

// Notify implements Notifier.
func (n *ChatNotifier) Notify(_ context.Context, p domain.Product, s domain.StockState) error {
	if err := n.sender.SendMessage(n.chatID, FormatNotification(p, s)); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrNotify, p.ID, err)
	}
	return nil
}
