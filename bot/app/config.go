package app

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/adboard/core/config"
	"github.com/m3rciful/adboard/core/database"
)

// StorageMemory keeps ads in process memory instead of a database.
const StorageMemory = "memory"

// ChannelConfig selects the channel ads are published to.
type ChannelConfig struct {
	// ChatID is the numeric id of the channel, e.g. -1001234567890.
	ChatID int64 `yaml:"chat_id" toml:"chat_id" envconfig:"CHANNEL_ID"`
	// DryRun logs posts instead of sending them; forced on when ChatID is zero.
	DryRun         bool `yaml:"dry_run" toml:"dry_run" envconfig:"CHANNEL_DRY_RUN"`
	TimeoutSeconds int  `yaml:"timeout_seconds" toml:"timeout_seconds" envconfig:"CHANNEL_TIMEOUT_SECONDS"`
}

// WorkflowConfig tunes the conversation engine.
type WorkflowConfig struct {
	// SessionTTLMinutes drops conversations idle for longer; 0 keeps the default, -1 disables expiry.
	SessionTTLMinutes int `yaml:"session_ttl_minutes" toml:"session_ttl_minutes" envconfig:"WORKFLOW_SESSION_TTL_MINUTES"`
	// TimeoutSeconds bounds the store and channel calls made for one user action.
	TimeoutSeconds int `yaml:"timeout_seconds" toml:"timeout_seconds" envconfig:"WORKFLOW_TIMEOUT_SECONDS"`
}

// Config is the full adboard configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database database.Config `yaml:"database" toml:"database"`
	Channel  ChannelConfig   `yaml:"channel" toml:"channel"`
	Workflow WorkflowConfig  `yaml:"workflow" toml:"workflow"`
}

// CoreConfig implements cmd.ConfigCarrier.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// Load reads path, overlays the environment and validates the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}

	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if !c.MemoryStore() {
		if err := c.Database.Normalize(); err != nil {
			return err
		}
	}

	if c.Channel.ChatID == 0 {
		c.Channel.DryRun = true
	}
	if c.Channel.TimeoutSeconds < 0 {
		return fmt.Errorf("channel.timeout_seconds must be >= 0")
	}
	if c.Channel.TimeoutSeconds == 0 {
		c.Channel.TimeoutSeconds = 10
	}

	switch {
	case c.Workflow.SessionTTLMinutes == 0:
		c.Workflow.SessionTTLMinutes = 30
	case c.Workflow.SessionTTLMinutes < -1:
		return fmt.Errorf("workflow.session_ttl_minutes must be >= -1")
	}
	if c.Workflow.TimeoutSeconds < 0 {
		return fmt.Errorf("workflow.timeout_seconds must be >= 0")
	}
	if c.Workflow.TimeoutSeconds == 0 {
		c.Workflow.TimeoutSeconds = 15
	}
	return nil
}

// MemoryStore reports whether ads live in memory only.
func (c *Config) MemoryStore() bool {
	return c.Database.Driver == StorageMemory
}

// SessionTTL is the idle time after which a conversation is dropped; zero disables expiry.
func (c *Config) SessionTTL() time.Duration {
	if c.Workflow.SessionTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(c.Workflow.SessionTTLMinutes) * time.Minute
}

// ChannelTimeout bounds one channel call.
func (c *Config) ChannelTimeout() time.Duration {
	return time.Duration(c.Channel.TimeoutSeconds) * time.Second
}

// WorkflowTimeout bounds the calls made for one user action.
func (c *Config) WorkflowTimeout() time.Duration {
	return time.Duration(c.Workflow.TimeoutSeconds) * time.Second
}
