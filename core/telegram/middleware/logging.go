package middleware

import (
	"sync"
	"time"

	"github.com/botfactory/chainbot/core/logger"
	"github.com/botfactory/chainbot/core/telegram/callbacks"
	tghelpers "github.com/botfactory/chainbot/core/telegram/helpers"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// recentUpdates keeps a short-lived set of processed update IDs to avoid double logging.
var (
	recentMu     sync.Mutex
	recentUpdate = make(map[int]time.Time)
	keepFor      = 10 * time.Second
)

func alreadyLogged(updateID int) bool {
	now := time.Now()
	recentMu.Lock()
	defer recentMu.Unlock()
	for id, ts := range recentUpdate {
		if now.Sub(ts) > keepFor {
			delete(recentUpdate, id)
		}
	}
	if _, ok := recentUpdate[updateID]; ok {
		return true
	}
	recentUpdate[updateID] = now
	return false
}

// LoggerMiddleware logs a single receipt line per update and seeds the
// request context with rid and update metadata. It deduplicates by
// update_id so stacking it on multiple branches stays harmless.
func LoggerMiddleware(botID int64) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			upd := c.Update()
			user := c.Sender()
			chat := c.Chat()

			chatID, userID := int64(0), int64(0)
			if chat != nil {
				chatID = chat.ID
			}
			if user != nil {
				userID = user.ID
			}
			rid := logger.BuildRID(upd.ID, chatID, userID)
			c.Set("rid", rid)
			c.Set("update_start", time.Now())

			ctx := logger.WithRID(logger.Background(), rid)
			ctx = logger.WithUpdateMeta(ctx, upd.ID, botID, userID, chatID)
			ctx = logger.WithLogger(ctx, logger.Component("tg"))
			tghelpers.StoreContext(c, ctx)

			if logger.ShouldSampleDebug() && !alreadyLogged(upd.ID) {
				attrs := []slog.Attr{
					slog.String("status", "ok"),
					slog.String("rid", rid),
					slog.Int("update_id", upd.ID),
				}
				if chatID != 0 {
					attrs = append(attrs, slog.Int64("chat_id", chatID))
				}
				if userID != 0 {
					attrs = append(attrs, slog.Int64("user_id", userID))
					if user.Username != "" {
						attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
					}
				}

				switch {
				case upd.Callback != nil:
					key, payload := callbacks.ParseCallbackData(upd.Callback)
					if key != "" {
						attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
					}
					if payload != "" {
						attrs = append(attrs, slog.String("cb_id", logger.SanitizeLimit(payload, 256)))
					}
				case upd.Message != nil:
					if t := c.Text(); t != "" {
						attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
					}
				}
				logger.LogEvent(ctx, logger.Component("tg"), slog.LevelDebug, "update.received", attrs...)
			}

			return next(c)
		}
	}
}
