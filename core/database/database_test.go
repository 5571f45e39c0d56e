package database

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigNormalize(t *testing.T) {
	cfg := Config{Host: "db", Name: "ads"}
	require.NoError(t, cfg.Normalize())
	assert.Equal(t, DriverPostgres, cfg.Driver)
	assert.Equal(t, "5432", cfg.Port)
	assert.Equal(t, "disable", cfg.SSLMode)
	assert.Equal(t, 10, cfg.MaxConnections)

	lite := Config{Driver: "SQLite", Path: "/tmp/ads.db", MaxConnections: 8}
	require.NoError(t, lite.Normalize())
	assert.Equal(t, 1, lite.MaxConnections)
	assert.Equal(t, "sqlite:///tmp/ads.db", lite.MigrateURL())

	assert.Error(t, (&Config{Driver: "sqlite"}).Normalize())
	assert.Error(t, (&Config{Driver: "mysql"}).Normalize())
}

func TestMigrateURLEscapesCredentials(t *testing.T) {
	cfg := Config{Driver: DriverPostgres, Host: "db", Port: "5432", User: "bot", Password: "p@ss", Name: "ads", SSLMode: "disable"}
	assert.Equal(t, "postgres://bot:p%40ss@db:5432/ads?sslmode=disable", cfg.MigrateURL())
}

func TestSelectApplied(t *testing.T) {
	fsys := fstest.MapFS{
		"sqlite/0002_index.up.sql":  {},
		"sqlite/0001_init.up.sql":   {},
		"sqlite/0001_init.down.sql": {},
		"sqlite/0003_extra.up.sql":  {},
		"postgres/0001_init.up.sql": {},
	}
	files := listMigrationFiles(fsys, "sqlite")
	require.Equal(t, []string{"0001_init.up.sql", "0002_index.up.sql", "0003_extra.up.sql"}, files)

	assert.Equal(t, []string{"0002_index.up.sql", "0003_extra.up.sql"}, selectApplied(files, 1, 3))
	assert.Empty(t, selectApplied(files, 3, 3))
	assert.Equal(t, uint64(12), parseVersion("0012_name.up.sql"))
}

func TestRunMigrationsSQLite(t *testing.T) {
	cfg := Config{Driver: DriverSQLite, Path: filepath.Join(t.TempDir(), "ads.db")}
	require.NoError(t, RunMigrations(cfg))
	// second run is a no-op
	require.NoError(t, RunMigrations(cfg))

	db, err := Connect(cfg)
	require.NoError(t, err)
	defer db.Close()

	var tables []string
	require.NoError(t, db.Select(&tables, db.Rebind(
		"SELECT name FROM sqlite_master WHERE type = ? AND name IN ('users', 'ads') ORDER BY name"), "table"))
	assert.Equal(t, []string{"ads", "users"}, tables)
}
