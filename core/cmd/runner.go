package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/botfactory/chainbot/core/bootstrap"
	"github.com/botfactory/chainbot/core/chain"
	coreconfig "github.com/botfactory/chainbot/core/config"
	"github.com/botfactory/chainbot/core/logger"
	coretelegram "github.com/botfactory/chainbot/core/telegram"
	tgsender "github.com/botfactory/chainbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
	"log/slog"
)

// Options describe how the bot process is configured.
type Options struct {
	ConfigEnvVar      string
	DefaultConfigPath string
}

// Run loads configuration, bootstraps infrastructure, wires the chain
// engine to the Telegram transport, and blocks until shutdown.
func Run(opts Options) error {
	env := opts.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	cfgPath := os.Getenv(env)
	if cfgPath == "" {
		cfgPath = opts.DefaultConfigPath
	}
	if cfgPath == "" {
		return fmt.Errorf("cmd: config path not provided via %s or DefaultConfigPath", env)
	}

	log.Printf("loading config: %s", cfgPath)
	cfg, err := coreconfig.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}

	startedAt := time.Now()
	infra, err := bootstrap.Run(bootstrap.Options{Config: cfg})
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}
	defer func() {
		if err := infra.Close(); err != nil {
			log.Printf("infra close error: %v", err)
		}
	}()
	defer func() {
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	runOpts := coretelegram.RunOptions{
		Config:      cfg,
		Middlewares: coretelegram.DefaultMiddlewares(cfg, nil),
		Routes: func(bot *tele.Bot, dispatcher *tgsender.Dispatcher) []coretelegram.Route {
			engine, err := chain.NewEngine(chain.Options{
				Bot: chain.BotConfig{
					ID:             cfg.Telegram.BotID,
					DefaultReply:   cfg.Engine.DefaultReply,
					WelcomeMessage: cfg.Engine.WelcomeMessage,
				},
				Graphs:   infra.Graphs,
				Sessions: infra.Sessions,
				Results:  infra.Results,
				Menu:     infra.Menus,
				Out:      coretelegram.NewSender(bot, dispatcher),
			})
			if err != nil {
				// Wiring is static; a failure here is a programming error.
				panic(err)
			}

			logger.L.With("component", "app").Info("app ready",
				slog.String("event", "ready"),
				slog.Int64("bot_id", cfg.Telegram.BotID),
				slog.String("backend", cfg.Sessions.Backend),
				slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
			)

			return coretelegram.EngineRoutes(engine, cfg.Telegram.BotID)
		},
		OnStop: func(context.Context) error {
			logger.L.With("component", "app").Info("shutting down...",
				slog.String("event", "shutdown"),
			)
			return nil
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return coretelegram.RunTelegram(ctx, runOpts)
}
