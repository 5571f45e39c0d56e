// Package app wires the adboard bot: storage, channel, workflow, handlers and runtime.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/adboard/bot/ads"
	"github.com/m3rciful/adboard/bot/channel"
	"github.com/m3rciful/adboard/bot/handlers"
	"github.com/m3rciful/adboard/bot/storage"
	"github.com/m3rciful/adboard/bot/workflow"
	"github.com/m3rciful/adboard/core/bootstrap"
	"github.com/m3rciful/adboard/core/httpserver"
	"github.com/m3rciful/adboard/core/logger"
	"github.com/m3rciful/adboard/core/metrics"
	tg "github.com/m3rciful/adboard/core/telegram"
	"github.com/m3rciful/adboard/core/telegram/middleware"
	"github.com/m3rciful/adboard/core/telegram/router"
	"github.com/m3rciful/adboard/core/telegram/sender"
	"github.com/m3rciful/adboard/core/telegram/state"
)

const janitorInterval = time.Minute

// App holds the long-lived components of the bot.
type App struct {
	cfg        *Config
	db         *sqlx.DB
	store      ads.Store
	bot        *tele.Bot
	dispatcher *sender.Dispatcher
	publisher  channel.Publisher
	sessions   *state.Memory[workflow.Session]
	machine    *workflow.Machine
	handlers   *handlers.Handlers
	registry   *tg.Registry
	metrics    *metrics.Metrics
	limiter    middleware.Limiter
	redis      *middleware.RedisLimiter

	stop context.CancelFunc
	bg   sync.WaitGroup
}

// Deps overrides collaborators; zero fields are built from the config.
type Deps struct {
	Bootstrap func(bootstrap.Options) (*bootstrap.Result, error)
	NewBot    func(*Config) (*tele.Bot, error)
	Store     ads.Store
	Publisher channel.Publisher
}

// Bootstrap builds the app from cfg.
func Bootstrap(cfg *Config) (*App, error) {
	return Build(cfg, Deps{})
}

// Build assembles every component. The bot is only created when the
// Telegram transport or publisher needs it.
func Build(cfg *Config, deps Deps) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	a := &App{cfg: cfg, metrics: metrics.New()}

	boot := deps.Bootstrap
	if boot == nil {
		boot = bootstrap.Run
	}
	res, err := boot(bootstrap.Options{
		Config:       cfg.CoreConfig(),
		Database:     cfg.Database,
		SkipDatabase: cfg.MemoryStore() || deps.Store != nil,
	})
	if err != nil {
		return nil, err
	}
	a.db = res.DB

	switch {
	case deps.Store != nil:
		a.store = deps.Store
	case a.db != nil:
		a.store = storage.NewSQL(a.db)
	default:
		a.store = storage.NewMemory()
	}

	newBot := deps.NewBot
	if newBot == nil {
		newBot = func(c *Config) (*tele.Bot, error) { return tg.NewBot(c.CoreConfig()) }
	}
	if a.bot, err = newBot(cfg); err != nil {
		a.closeStore()
		return nil, err
	}
	a.dispatcher = sender.NewDispatcher(sender.Options{MaxRetries: 2})

	a.publisher = deps.Publisher
	if a.publisher == nil {
		if a.publisher, err = a.buildPublisher(); err != nil {
			a.closeStore()
			return nil, err
		}
	}

	a.sessions = state.NewMemory[workflow.Session]()
	a.metrics.TrackSessions(a.sessions.Len)
	a.machine, err = workflow.New(workflow.Options{
		Store:     a.store,
		Publisher: a.publisher,
		Sessions:  a.sessions,
		Timeout:   cfg.WorkflowTimeout(),
		Observer:  a.metrics,
	})
	if err != nil {
		a.closeStore()
		return nil, err
	}

	a.handlers = handlers.New(a.machine)
	a.registry = tg.NewRegistry()
	if err := a.handlers.Register(a.registry); err != nil {
		a.closeStore()
		return nil, fmt.Errorf("app: register handlers: %w", err)
	}
	a.registry.SetTextFallback(a.handlers.Idle)

	if url := cfg.RateLimit.RedisURL; url != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rl, err := middleware.NewRedisLimiter(ctx, url)
		cancel()
		if err != nil {
			logger.TWire.Warn("redis limiter unavailable, using memory",
				slog.String("event", "rate_limit.backend"),
				slog.String("err", err.Error()),
			)
		} else {
			a.redis = rl
			a.limiter = rl
		}
	}

	logger.TWire.Info("app built",
		slog.String("event", "app.build"),
		slog.String("store", a.storeKind()),
		slog.Bool("dry_run", cfg.Channel.DryRun),
		slog.Duration("session_ttl", cfg.SessionTTL()),
	)
	return a, nil
}

func (a *App) buildPublisher() (channel.Publisher, error) {
	if a.cfg.Channel.DryRun {
		logger.CHAN.Warn("channel dry run",
			slog.String("event", "channel.mode"),
			slog.String("mode", "dry_run"),
		)
		return channel.NewDryRun(a.metrics), nil
	}
	return channel.NewTelegram(channel.Options{
		API:      a.bot,
		ChatID:   a.cfg.Channel.ChatID,
		Runner:   a.dispatcher,
		Timeout:  a.cfg.ChannelTimeout(),
		Observer: a.metrics,
	})
}

func (a *App) storeKind() string {
	if a.db == nil {
		return StorageMemory
	}
	return a.cfg.Database.Driver
}

// Machine exposes the workflow engine.
func (a *App) Machine() *workflow.Machine {
	return a.machine
}

// TelegramRunOptions implements cmd.TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	if a.bot == nil {
		return tg.RunOptions{}, errors.New("app: bot not built")
	}
	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{Metrics: a.metrics})
	routes = append(routes, router.TextRoutes(a.handlers, a.registry, router.TextOptions{
		UnknownPhoto: a.handlers.Idle,
		Metrics:      a.metrics,
	})...)
	routes = append(routes, router.CallbackRoute(a.registry, router.CallbackOptions{Metrics: a.metrics}))

	return tg.RunOptions{
		Config:     a.cfg.CoreConfig(),
		Registry:   a.registry,
		Bot:        a.bot,
		Dispatcher: a.dispatcher,
		Middlewares: tg.DefaultMiddlewares(a.cfg.CoreConfig(), tg.MiddlewareOptions{
			Limiter: a.limiter,
			Metrics: a.metrics,
		}),
		Routes:  routes,
		OnStart: a.start,
		OnStop:  a.shutdown,
	}, nil
}

// start launches the session janitor and the health/metrics listener.
func (a *App) start(ctx context.Context, _ tg.Runtime) error {
	ctx, a.stop = context.WithCancel(ctx)

	if ttl := a.cfg.SessionTTL(); ttl > 0 {
		a.bg.Add(1)
		go func() {
			defer a.bg.Done()
			a.sessions.RunJanitor(ctx, janitorInterval, ttl, func(ids []int64) {
				logger.FSM.Info("sessions expired",
					slog.String("event", "session.expire"),
					slog.Int("count", len(ids)),
				)
			})
		}()
	}

	if listen := a.cfg.HTTP.Listen; listen != "" {
		srv := httpserver.NewServer(httpserver.Options{
			Listen:  listen,
			Checks:  a.checks(),
			Metrics: a.metrics.Handler(),
		})
		a.bg.Add(1)
		go func() {
			defer a.bg.Done()
			if err := srv.Run(ctx); err != nil {
				logger.HTTP.Error("http server failed",
					slog.String("event", "http.fail"),
					slog.String("err", err.Error()),
				)
			}
		}()
	}
	return nil
}

func (a *App) checks() map[string]httpserver.Check {
	checks := map[string]httpserver.Check{}
	if a.db != nil {
		checks["db"] = a.db.PingContext
	}
	if a.redis != nil {
		checks["redis"] = a.redis.Ping
	}
	return checks
}

// shutdown stops background work and waits for it within ctx.
func (a *App) shutdown(ctx context.Context, _ tg.Runtime) error {
	if a.stop != nil {
		a.stop()
	}
	done := make(chan struct{})
	go func() {
		a.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("app: shutdown: %w", ctx.Err())
	}
}

// Close releases the dispatcher, the store and the rate-limit backend.
func (a *App) Close() error {
	var errs []error
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

func (a *App) closeStore() {
	if err := a.store.Close(); err != nil {
		logger.DB.Warn("store close failed",
			slog.String("event", "db.close"),
			slog.String("err", err.Error()),
		)
	}
}
