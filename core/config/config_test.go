package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDecodePicksFormatByExtension(t *testing.T) {
	const tomlBody = `
[telegram]
token = "1:toml"

[rate_limit]
interval_ms = 250
exclude_updates = ["callback"]
`
	const yamlBody = `
telegram:
  token: "1:yaml"
rate_limit:
  interval_ms: 500
`
	cases := []struct {
		name     string
		body     string
		token    string
		interval int
	}{
		{name: "config.toml", body: tomlBody, token: "1:toml", interval: 250},
		{name: "CONFIG.TOML", body: tomlBody, token: "1:toml", interval: 250},
		{name: "config.yaml", body: yamlBody, token: "1:yaml", interval: 500},
		{name: "config.yml", body: yamlBody, token: "1:yaml", interval: 500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var cfg Config
			require.NoError(t, Decode(write(t, tc.name, tc.body), &cfg))
			assert.Equal(t, tc.token, cfg.Telegram.Token)
			assert.Equal(t, tc.interval, cfg.RateLimit.IntervalMS)
		})
	}
}

func TestDecodeRejectsWrongFormat(t *testing.T) {
	var cfg Config
	err := Decode(write(t, "config.toml", "telegram:\n  token: x\n"), &cfg)
	assert.ErrorContains(t, err, "TOML")

	err = Decode(write(t, "config.yaml", "telegram: [unclosed\n"), &cfg)
	assert.ErrorContains(t, err, "YAML")

	err = Decode(filepath.Join(t.TempDir(), "missing.yaml"), &cfg)
	assert.ErrorContains(t, err, "read config file")
}

func TestDecodeEnvOverlaysFile(t *testing.T) {
	t.Setenv("BOT_TOKEN", "2:env")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RATE_LIMIT_REDIS_URL", "redis://cache:6379/0")

	var cfg Config
	path := write(t, "config.toml", "[telegram]\ntoken = \"1:file\"\n\n[logging]\nformat = \"json\"\n")
	require.NoError(t, Decode(path, &cfg))

	assert.Equal(t, "2:env", cfg.Telegram.Token)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format, "file values without env survive")
	assert.Equal(t, "redis://cache:6379/0", cfg.RateLimit.RedisURL)
}

func TestNormalize(t *testing.T) {
	cfg := Config{Telegram: TelegramConfig{Token: "1:x", RunMode: "Polling"}}
	cfg.RateLimit.ExcludeUpdates = []string{" Callback "}
	cfg.HTTP.Listen = " :9090 "
	require.NoError(t, Normalize(&cfg))
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, []string{UpdateCallback}, cfg.RateLimit.ExcludeUpdates)
	assert.Equal(t, ":9090", cfg.HTTP.Listen)

	bad := map[string]Config{
		"no token":   {},
		"bad mode":   {Telegram: TelegramConfig{Token: "1:x", RunMode: "push"}},
		"webhook":    {Telegram: TelegramConfig{Token: "1:x", RunMode: RunModeWebhook}},
		"long poll":  {Telegram: TelegramConfig{Token: "1:x", LongPollTimeoutSeconds: -1}},
		"rate limit": {Telegram: TelegramConfig{Token: "1:x"}, RateLimit: RateLimitConfig{IntervalMS: -1}},
		"exclude":    {Telegram: TelegramConfig{Token: "1:x"}, RateLimit: RateLimitConfig{ExcludeUpdates: []string{"poll"}}},
	}
	for name, c := range bad {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, Normalize(&c))
		})
	}
	assert.Error(t, Normalize(nil))
}
