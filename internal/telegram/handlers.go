package telegram

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/ykvlv/stockwatch-bot/internal/domain"
)

func (r *Router) handleStatus(chatID int64) {
	r.reply(chatID, formatStatus(r.sched.Status(), r.products.Selection(), r.now()))
}

func (r *Router) handleSetInterval(chatID int64, args string) {
	minutes, err := domain.ParseIntervalMinutes(args)
	if err == nil {
		err = r.sched.SetInterval(minutes)
	}
	if err != nil {
		r.log.Warn("set interval rejected", zap.String("args", args), zap.Error(err))
		r.reply(chatID, "Interval must be a whole number of minutes, at least 1. Example: /setinterval 15")
		return
	}
	r.log.Info("interval set by operator", zap.Int("minutes", minutes))
	r.reply(chatID, "Interval updated: "+domain.FormatCountdown(r.sched.Status().Interval))
}

func (r *Router) handleSetProducts(chatID int64, args string) {
	ids := domain.SplitIDs(args)
	ch, err := r.products.SetSelection(ids)
	if err != nil {
		if errors.Is(err, domain.ErrNoValidProducts) {
			if len(ids) == 0 {
				r.reply(chatID, "No product ids given. Example: /setproducts rtx5080-fe, or /setproducts all")
			} else {
				r.reply(chatID, "No valid product ids: "+strings.Join(ids, ", ")+". Send /products for the list.")
			}
		} else {
			r.reply(chatID, "Could not update products.")
		}
		r.log.Warn("set products rejected", zap.Strings("ids", ids), zap.Error(err))
		return
	}
	r.log.Info("products set by operator", zap.Strings("applied", ch.Applied), zap.Strings("dropped", ch.Dropped))
	r.reply(chatID, formatSelectionChange(ch))
}

func (r *Router) handleProducts(chatID int64) {
	r.reply(chatID, formatProducts(r.products.Catalog(), r.products.Selection()))
}

func (r *Router) handleLog(ctx context.Context, chatID int64, args string) {
	n, err := domain.ParseLineCount(args)
	if err != nil {
		r.reply(chatID, "Line count must be between 1 and 200. Example: /log 20")
		return
	}
	entries, err := r.journal.Tail(ctx, n)
	if err != nil {
		r.log.Error("journal tail failed", zap.Error(err))
		r.reply(chatID, "Could not read the log.")
		return
	}
	if len(entries) == 0 {
		r.reply(chatID, "Log is empty.")
		return
	}
	msg := tgbotapi.NewMessage(chatID, formatLog(entries))
	msg.ParseMode = tgbotapi.ModeHTML
	r.replyWith(msg)
}

func (r *Router) handleClear(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	allowed, err := r.canManageMessages(msg)
	if err != nil {
		r.log.Error("clear: permission lookup failed", zap.Error(err))
		r.reply(chatID, "Could not verify your permissions.")
		return
	}
	if !allowed {
		r.log.Warn("clear: permission denied", zap.Int64("chatID", chatID))
		r.reply(chatID, "You need permission to delete messages to use /clear.")
		return
	}

	var deleted, failed int
	for _, id := range r.out.takeRecent(chatID) {
		if _, err := r.bot.Request(tgbotapi.NewDeleteMessage(chatID, id)); err != nil {
			failed++
			continue
		}
		deleted++
	}
	r.log.Info("chat cleared", zap.Int64("chatID", chatID), zap.Int("deleted", deleted), zap.Int("failed", failed))
}

// canManageMessages reports whether the sender of msg may clear the chat.
// Private chats are always allowed; anonymous admins post as the chat itself.
func (r *Router) canManageMessages(msg *tgbotapi.Message) (bool, error) {
	if msg.Chat.IsPrivate() {
		return true, nil
	}
	if msg.SenderChat != nil && msg.SenderChat.ID == msg.Chat.ID {
		return true, nil
	}
	if msg.From == nil {
		return false, nil
	}
	m, err := r.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: msg.Chat.ID, UserID: msg.From.ID},
	})
	if err != nil {
		return false, err
	}
	return m.IsCreator() || (m.IsAdministrator() && m.CanDeleteMessages), nil
}

func (r *Router) handleStart(ctx context.Context, chatID int64) {
	r.sched.Start(ctx)
	r.reply(chatID, "Polling "+r.sched.Status().State.String()+".")
}

func (r *Router) handleStop(chatID int64) {
	r.sched.Stop()
	r.reply(chatID, "Polling stopped ⏸")
}

func (r *Router) handleRestart(ctx context.Context, chatID int64) {
	r.sched.Restart(ctx)
	r.reply(chatID, "Polling restarted: "+r.sched.Status().State.String()+".")
}

func (r *Router) handleCheckNow(chatID int64) {
	if !r.sched.TriggerNow() {
		r.reply(chatID, "A check is already running.")
		return
	}
	r.reply(chatID, "Check started.")
}
