package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/botfactory/chainbot/core/chain"
	"github.com/botfactory/chainbot/core/logger"
	"github.com/botfactory/chainbot/core/telegram/keyboard"
	tgsender "github.com/botfactory/chainbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Sender delivers engine replies through the Telegram API. Sends go through
// the async dispatcher; a saturated queue falls back to a synchronous call
// so the message still goes out.
type Sender struct {
	bot        *tele.Bot
	dispatcher *tgsender.Dispatcher
}

// NewSender wires a bot and dispatcher into an engine outbound.
func NewSender(bot *tele.Bot, dispatcher *tgsender.Dispatcher) *Sender {
	return &Sender{bot: bot, dispatcher: dispatcher}
}

var _ chain.Outbound = (*Sender)(nil)

// Send renders the reply's keyboard and schedules the API call.
func (s *Sender) Send(ctx context.Context, r chain.Reply) error {
	if s.bot == nil {
		return fmt.Errorf("telegram: sender has no bot")
	}

	recipient := tele.ChatID(r.ChatID)
	markup := keyboard.ForReply(r)
	run := func() error {
		var err error
		if markup != nil {
			_, err = s.bot.Send(recipient, r.Text, markup)
		} else {
			_, err = s.bot.Send(recipient, r.Text)
		}
		return err
	}

	if s.dispatcher == nil {
		return run()
	}

	if err := s.dispatcher.Enqueue(ctx, "send.message", run); err != nil {
		if errors.Is(err, tgsender.ErrQueueFull) || errors.Is(err, tgsender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", "send.message"),
				slog.Int64("chat_id", r.ChatID),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}
