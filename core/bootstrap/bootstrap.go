package bootstrap

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/adboard/core/config"
	coredatabase "github.com/m3rciful/adboard/core/database"
	"github.com/m3rciful/adboard/core/logger"
)

// Options control the bootstrap pipeline. Zero hooks fall back to the core implementations.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config

	// SkipDatabase leaves Result.DB nil; used when the app runs on the in-memory store.
	SkipDatabase bool

	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	DB *sqlx.DB
}

// Run initializes the logger, applies migrations, and connects to the database.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}
	if opts.SkipDatabase {
		logger.DB.Info("db skipped",
			slog.String("event", "db.connect"),
			slog.String("driver", "memory"),
		)
		return &Result{}, nil
	}

	start := time.Now()
	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(opts.Database); err != nil {
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	logger.DB.Debug("db ready",
		slog.String("event", "db.ready"),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return &Result{DB: db}, nil
}
