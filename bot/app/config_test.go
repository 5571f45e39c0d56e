package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/adboard/core/database"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
telegram:
  token: "123:abc"
database:
  driver: SQLite
  path: /tmp/ads.db
channel:
  chat_id: -1001234567890
workflow:
  session_ttl_minutes: 5
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, "longpoll", cfg.Telegram.RunMode)
	assert.Equal(t, database.DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, 1, cfg.Database.MaxConnections)
	assert.False(t, cfg.MemoryStore())
	assert.Equal(t, int64(-1001234567890), cfg.Channel.ChatID)
	assert.False(t, cfg.Channel.DryRun)
	assert.Equal(t, 10*time.Second, cfg.ChannelTimeout())
	assert.Equal(t, 15*time.Second, cfg.WorkflowTimeout())
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL())
	assert.Same(t, &cfg.Config, cfg.CoreConfig())
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[telegram]
token = "123:abc"

[database]
driver = "memory"

[workflow]
session_ttl_minutes = -1
timeout_seconds = 3
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.MemoryStore())
	assert.True(t, cfg.Channel.DryRun, "no chat id means dry run")
	assert.Zero(t, cfg.SessionTTL())
	assert.Equal(t, 3*time.Second, cfg.WorkflowTimeout())
}

func TestLoadEnvOverlay(t *testing.T) {
	t.Setenv("BOT_TOKEN", "999:env")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("CHANNEL_ID", "-100777")
	t.Setenv("WORKFLOW_SESSION_TTL_MINUTES", "45")

	cfg, err := Load(writeConfig(t, "config.yaml", "logging:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "999:env", cfg.Telegram.Token)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.MemoryStore())
	assert.Equal(t, int64(-100777), cfg.Channel.ChatID)
	assert.Equal(t, 45*time.Minute, cfg.SessionTTL())
}

func TestNormalizeErrors(t *testing.T) {
	valid := func() Config {
		var c Config
		c.Telegram.Token = "1:x"
		c.Database.Driver = StorageMemory
		return c
	}

	cases := map[string]func(c *Config){
		"missing token": func(c *Config) {
			c.Telegram.Token = ""
		},
		"bad driver": func(c *Config) {
			c.Database.Driver = "mysql"
		},
		"postgres without host": func(c *Config) {
			c.Database.Driver = database.DriverPostgres
		},
		"negative channel timeout": func(c *Config) {
			c.Channel.TimeoutSeconds = -1
		},
		"ttl below -1": func(c *Config) {
			c.Workflow.SessionTTLMinutes = -2
		},
		"negative workflow timeout": func(c *Config) {
			c.Workflow.TimeoutSeconds = -5
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(&c)
			assert.Error(t, c.Normalize())
		})
	}

	c := valid()
	require.NoError(t, c.Normalize())
	assert.Equal(t, 30*time.Minute, c.SessionTTL())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
