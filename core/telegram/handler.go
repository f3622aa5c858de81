package telegram

import (
	"strings"
	"time"

	"github.com/botfactory/chainbot/core/chain"
	"github.com/botfactory/chainbot/core/logger"
	"github.com/botfactory/chainbot/core/telegram/callbacks"
	tghelpers "github.com/botfactory/chainbot/core/telegram/helpers"
	"github.com/botfactory/chainbot/core/telegram/middleware"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// EngineRoutes binds the chain engine to the two update kinds it understands:
// text messages and inline button presses. Everything else stays unhandled.
func EngineRoutes(engine *chain.Engine, botID int64) []Route {
	textHandler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if strings.TrimSpace(text) == "/start" {
			return handleWithSummary(c, botID, "start", start, func() error {
				ctx := tghelpers.WithHandler(c, botID, "start")
				return engine.HandleStart(ctx, updateFrom(c, botID, chain.UpdateText, text))
			})
		}

		return handleWithSummary(c, botID, "text", start, func() error {
			ctx := tghelpers.WithHandler(c, botID, "text")
			return engine.HandleUpdate(ctx, updateFrom(c, botID, chain.UpdateText, text))
		})
	}

	callbackHandler := func(c tele.Context) error {
		start := time.Now()
		callbackID := callbacks.CallbackPayload(c)

		// Ack the press first so the client stops its spinner even when the
		// engine answers with nothing.
		_ = c.Respond(&tele.CallbackResponse{})

		return handleWithSummary(c, botID, "callback", start, func() error {
			ctx := tghelpers.WithHandler(c, botID, "callback")
			return engine.HandleUpdate(ctx, updateFrom(c, botID, chain.UpdateCallback, callbackID))
		})
	}

	return []Route{
		{Endpoint: tele.OnText, Handler: textHandler},
		{Endpoint: tele.OnCallback, Handler: callbackHandler},
	}
}

func updateFrom(c tele.Context, botID int64, kind chain.UpdateKind, payload string) chain.Update {
	upd := chain.Update{
		BotID:   botID,
		Kind:    kind,
		Payload: payload,
	}
	if chat := c.Chat(); chat != nil {
		upd.ChatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		upd.From = chain.User{
			ID:        user.ID,
			Username:  user.Username,
			FirstName: user.FirstName,
			LastName:  user.LastName,
		}
	}
	return upd
}

func handleWithSummary(c tele.Context, botID int64, handlerName string, start time.Time, fn func() error) error {
	err := fn()
	logHandlerSummary(c, botID, handlerName, start, err)
	return err
}

func logHandlerSummary(c tele.Context, botID int64, handlerName string, start time.Time, err error) {
	ctx := tghelpers.WithHandler(c, botID, handlerName)
	msgs, kb := middleware.GetCounters(c)

	status, outcome := "ok", "ok"
	if err != nil {
		status, outcome = "fail", "fail"
	}

	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", handlerName),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("cause", handlerName),
		)
	}
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", attrs...)
}
