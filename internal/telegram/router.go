package telegram

import (
	"context"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/stockwatch-bot/internal/catalog"
	"github.com/ykvlv/stockwatch-bot/internal/domain"
	"github.com/ykvlv/stockwatch-bot/internal/scheduler"
	"github.com/ykvlv/stockwatch-bot/internal/store"
)

// BotAPI is the subset of *tgbotapi.BotAPI the router uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(cfg tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
}

// Controller is the scheduler surface exposed to operators.
type Controller interface {
	Start(ctx context.Context)
	Stop()
	Restart(ctx context.Context)
	SetInterval(minutes int) error
	TriggerNow() bool
	Status() scheduler.Status
}

// Products is the registry surface exposed to operators.
type Products interface {
	Catalog() []domain.Product
	Selection() []string
	SetSelection(requested []string) (catalog.SelectionChange, error)
}

// Router wires Telegram updates to command handlers.
// Only updates from the configured chat are handled.
type Router struct {
	out      *Messenger
	bot      BotAPI
	log      *zap.Logger
	chatID   int64
	sched    Controller
	products Products
	journal  store.Journal
	now      func() time.Time
}

// NewRouter creates a new Telegram router.
func NewRouter(out *Messenger, log *zap.Logger, chatID int64, sched Controller, products Products, journal store.Journal) *Router {
	return &Router{
		out:      out,
		bot:      out.bot,
		log:      log,
		chatID:   chatID,
		sched:    sched,
		products: products,
		journal:  journal,
		now:      time.Now,
	}
}

// HandleUpdate routes a single update to the appropriate handler.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil {
		msg = upd.ChannelPost
	}
	if msg == nil || msg.Chat == nil {
		return
	}
	if msg.Chat.ID != r.chatID {
		r.log.Debug("ignoring update from foreign chat", zap.Int64("chatID", msg.Chat.ID))
		return
	}
	r.out.remember(msg.Chat.ID, msg.MessageID)
	if !msg.IsCommand() {
		return
	}

	args := strings.TrimSpace(msg.CommandArguments())
	switch strings.ToLower(msg.Command()) {
	case "help":
		r.reply(msg.Chat.ID, helpText)
	case "status":
		r.handleStatus(msg.Chat.ID)
	case "setinterval", "set_interval":
		r.handleSetInterval(msg.Chat.ID, args)
	case "setproducts", "set_products":
		r.handleSetProducts(msg.Chat.ID, args)
	case "products":
		r.handleProducts(msg.Chat.ID)
	case "log", "tail_log", "taillog":
		r.handleLog(ctx, msg.Chat.ID, args)
	case "clear", "clear_channel":
		r.handleClear(msg)
	case "start":
		r.handleStart(ctx, msg.Chat.ID)
	case "stop":
		r.handleStop(msg.Chat.ID)
	case "restart":
		r.handleRestart(ctx, msg.Chat.ID)
	case "checknow", "check_now":
		r.handleCheckNow(msg.Chat.ID)
	default:
		r.reply(msg.Chat.ID, "Unknown command. Send /help for the list.")
	}
}

// reply sends text and logs a failure instead of returning it.
func (r *Router) reply(chatID int64, text string) {
	r.replyWith(tgbotapi.NewMessage(chatID, text))
}

func (r *Router) replyWith(msg tgbotapi.MessageConfig) {
	if err := r.out.Send(msg); err != nil {
		r.log.Error("reply failed", zap.Error(err), zap.Int64("chatID", msg.ChatID))
	}
}
