package telegram

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// recentLimit bounds how many message ids per chat are kept for /clear.
const recentLimit = 500

// Messenger sends messages and remembers the ids of messages seen in each
// chat so they can be deleted later. It satisfies monitor.Sender.
type Messenger struct {
	bot BotAPI

	mu     sync.Mutex
	recent map[int64][]int // chatID -> message ids, oldest first
}

// NewMessenger wraps bot.
func NewMessenger(bot BotAPI) *Messenger {
	return &Messenger{bot: bot, recent: make(map[int64][]int)}
}

// SendMessage sends a plain text message to the given chat.
func (m *Messenger) SendMessage(chatID int64, text string) error {
	return m.Send(tgbotapi.NewMessage(chatID, text))
}

// Send sends c and remembers the resulting message id.
func (m *Messenger) Send(c tgbotapi.MessageConfig) error {
	msg, err := m.bot.Send(c)
	if err != nil {
		return err
	}
	m.remember(c.ChatID, msg.MessageID)
	return nil
}

func (m *Messenger) remember(chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := append(m.recent[chatID], messageID)
	if len(ids) > recentLimit {
		ids = ids[len(ids)-recentLimit:]
	}
	m.recent[chatID] = ids
}

// takeRecent returns and forgets the remembered ids of a chat, newest first.
func (m *Messenger) takeRecent(chatID int64) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.recent[chatID]
	delete(m.recent, chatID)
	out := make([]int, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}
