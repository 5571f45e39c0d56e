package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/adboard/bot/channel"
	"github.com/m3rciful/adboard/bot/storage"
	"github.com/m3rciful/adboard/bot/workflow"
	"github.com/m3rciful/adboard/core/bootstrap"
	tg "github.com/m3rciful/adboard/core/telegram"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	var cfg Config
	cfg.Telegram.Token = "1:x"
	cfg.Database.Driver = StorageMemory
	require.NoError(t, cfg.Normalize())
	return &cfg
}

func offlineDeps(t *testing.T) Deps {
	t.Helper()
	return Deps{
		Bootstrap: func(o bootstrap.Options) (*bootstrap.Result, error) {
			assert.True(t, o.SkipDatabase)
			return &bootstrap.Result{}, nil
		},
		NewBot: func(*Config) (*tele.Bot, error) {
			return tele.NewBot(tele.Settings{Offline: true})
		},
	}
}

func TestBuildMemoryDryRun(t *testing.T) {
	a, err := Build(testConfig(t), offlineDeps(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.IsType(t, &storage.Memory{}, a.store)
	assert.IsType(t, &channel.DryRun{}, a.publisher)
	assert.Equal(t, StorageMemory, a.storeKind())

	res, err := a.Machine().Handle(context.Background(), workflow.Event{Kind: workflow.EventStartCreate, UserID: 7})
	require.NoError(t, err)
	assert.Equal(t, workflow.AwaitTitle, res.Stage)
	assert.True(t, a.sessions.InProgress(7))
}

func TestTelegramRunOptions(t *testing.T) {
	a, err := Build(testConfig(t), offlineDeps(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)

	assert.Same(t, a.bot, opts.Bot)
	assert.Same(t, a.dispatcher, opts.Dispatcher)
	assert.NotNil(t, opts.OnStart)
	assert.NotNil(t, opts.OnStop)

	endpoints := map[any]bool{}
	for _, r := range opts.Routes {
		endpoints[r.Endpoint] = true
	}
	for _, want := range []any{"/start", "/new", "/my", "/cancel", "/help", tele.OnText, tele.OnPhoto, tele.OnCallback} {
		assert.True(t, endpoints[want], "missing route %v", want)
	}

	names := make([]string, 0, len(opts.Middlewares))
	for _, mw := range opts.Middlewares {
		names = append(names, mw.Name)
	}
	assert.Equal(t, []string{"recover", "logger", "metrics"}, names)
}

func TestStartStop(t *testing.T) {
	cfg := testConfig(t)
	cfg.HTTP.Listen = "127.0.0.1:0"
	a, err := Build(cfg, offlineDeps(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	require.NoError(t, a.start(context.Background(), tg.Runtime{}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, a.shutdown(ctx, tg.Runtime{}))
}

func TestBuildStopsOnBotError(t *testing.T) {
	deps := offlineDeps(t)
	deps.NewBot = func(*Config) (*tele.Bot, error) { return nil, errors.New("no network") }

	_, err := Build(testConfig(t), deps)
	assert.EqualError(t, err, "no network")
}

func TestBuildBootstrapError(t *testing.T) {
	deps := offlineDeps(t)
	deps.Bootstrap = func(bootstrap.Options) (*bootstrap.Result, error) {
		return nil, errors.New("migrations failed")
	}

	_, err := Build(testConfig(t), deps)
	assert.Error(t, err)
}

func TestBuildNilConfig(t *testing.T) {
	_, err := Build(nil, Deps{})
	assert.Error(t, err)
}
