package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/botfactory/chainbot/core/chain"
	coreconfig "github.com/botfactory/chainbot/core/config"
	coredatabase "github.com/botfactory/chainbot/core/database"
	"github.com/botfactory/chainbot/core/logger"
	"github.com/botfactory/chainbot/core/storage"
)

// Options control the bootstrap pipeline.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
// Graphs and Menus always read from Postgres; Sessions and Results follow
// the configured session backend.
type Result struct {
	DB    *sqlx.DB
	Redis *redis.Client

	Graphs   chain.GraphStore
	Menus    chain.MenuStore
	Sessions chain.SessionStore
	Results  chain.Recorder
}

// Close releases the connections opened during bootstrap.
func (r *Result) Close() error {
	var first error
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			first = err
		}
	}
	if r.DB != nil {
		if err := r.DB.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Run initializes the logger, connects to the database, applies migrations,
// and builds the configured stores.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}
	cfg := opts.Config

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(cfg.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	res := &Result{
		DB:     db,
		Graphs: storage.NewPGGraphStore(db),
		Menus:  storage.NewPGMenuStore(db),
	}

	switch cfg.Sessions.Backend {
	case coreconfig.SessionsMemory:
		mem := storage.NewMemorySessionStore()
		res.Sessions, res.Results = mem, mem
	case coreconfig.SessionsRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Sessions.Redis.Addr,
			Password: cfg.Sessions.Redis.Password,
			DB:       cfg.Sessions.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = client.Close()
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap: redis ping failed: %w", err)
		}
		res.Redis = client
		rs := storage.NewRedisSessionStore(client)
		res.Sessions, res.Results = rs, rs
	default:
		pg := storage.NewPGSessionStore(db)
		res.Sessions, res.Results = pg, pg
	}

	return res, nil
}
