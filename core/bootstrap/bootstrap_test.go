package bootstrap

import (
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/adboard/core/config"
	coredatabase "github.com/m3rciful/adboard/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunRequiresConfig(t *testing.T) {
	_, err := Run(Options{})
	require.Error(t, err)
}

func TestRunMigratesBeforeConnect(t *testing.T) {
	var calls []string
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Migrate: func(coredatabase.Config) error {
			calls = append(calls, "migrate")
			return nil
		},
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			calls = append(calls, "connect")
			return nil, nil
		},
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, []string{"migrate", "connect"}, calls)
}

func TestRunStopsOnMigrationError(t *testing.T) {
	connected := false
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Migrate:    func(coredatabase.Config) error { return errors.New("boom") },
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			connected = true
			return nil, nil
		},
	})
	require.ErrorContains(t, err, "migrations failed")
	assert.False(t, connected)
}

func TestRunSkipDatabase(t *testing.T) {
	res, err := Run(Options{
		Config:       &coreconfig.Config{},
		LoggerInit:   noLogger,
		SkipDatabase: true,
		Migrate:      func(coredatabase.Config) error { return errors.New("must not run") },
	})
	require.NoError(t, err)
	assert.Nil(t, res.DB)
}
