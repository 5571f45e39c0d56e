package database

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// DriverPostgres selects PostgreSQL through lib/pq.
	DriverPostgres = "postgres"
	// DriverSQLite selects the pure-Go modernc SQLite driver.
	DriverSQLite = "sqlite"
)

// Config holds database connection settings.
type Config struct {
	Driver         string `yaml:"driver" toml:"driver" envconfig:"DB_DRIVER"`
	Host           string `yaml:"host" toml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" toml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" toml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" toml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" toml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" toml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" toml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
	// Path is the database file used by the sqlite driver.
	Path string `yaml:"path" toml:"path" envconfig:"DB_PATH"`
}

// Normalize applies defaults and validates the driver specific fields.
func (c *Config) Normalize() error {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	if c.Driver == "" {
		c.Driver = DriverPostgres
	}
	switch c.Driver {
	case DriverPostgres:
		if c.Host == "" || c.Name == "" {
			return fmt.Errorf("database.host and database.name are required for postgres")
		}
		if c.Port == "" {
			c.Port = "5432"
		}
		if c.SSLMode == "" {
			c.SSLMode = "disable"
		}
		if c.MaxConnections <= 0 {
			c.MaxConnections = 10
		}
	case DriverSQLite:
		if strings.TrimSpace(c.Path) == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
		// modernc serializes writers; a single connection avoids SQLITE_BUSY.
		c.MaxConnections = 1
	default:
		return fmt.Errorf("invalid database.driver %q; allowed: postgres, sqlite", c.Driver)
	}
	return nil
}

// DSN returns the connection string understood by the selected database/sql driver.
func (c Config) DSN() string {
	if c.Driver == DriverSQLite {
		return "file:" + c.Path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}
	return fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// MigrateURL returns the golang-migrate database URL for the selected driver.
func (c Config) MigrateURL() string {
	if c.Driver == DriverSQLite {
		return "sqlite://" + c.Path
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}
