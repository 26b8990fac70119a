package database

import (
	"testing"

	"invest-wallet/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialector(t *testing.T) {
	cfg := &config.Config{
		DBDriver:   "mysql",
		DBHost:     "db",
		DBPort:     "3306",
		DBUser:     "wallet",
		DBPassword: "secret",
		DBName:     "invest_wallet",
	}

	d, err := Dialector(cfg)
	require.NoError(t, err)
	assert.Equal(t, "mysql", d.Name())

	cfg.DBDriver = "postgres"
	cfg.DBPort = "5432"
	d, err = Dialector(cfg)
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())

	cfg.DBDriver = "sqlite"
	_, err = Dialector(cfg)
	assert.Error(t, err)
}
