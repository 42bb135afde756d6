package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadCfgPostgres(t *testing.T) {
	t.Setenv("DRIVER", "postgres")
	t.Setenv("PG_DSN", "postgres://localhost/candles")
	t.Setenv("SYMBOLS", "BTCUSDT, ETHUSDT,")

	c := loadCfg()
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, c.Symbols)

	dc := c.dataConfig()
	assert.Equal(t, "postgres", dc.Driver)
	assert.Equal(t, "postgres://localhost/candles", dc.Postgres.DSN)
	assert.Equal(t, "candles", dc.Postgres.Table)
}

func TestInstallRejectsReadOnlyDriver(t *testing.T) {
	t.Setenv("DRIVER", "csv")
	err := install(context.Background(), loadCfg(), zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be written to")
}

func TestInstallRejectsBadDerive(t *testing.T) {
	t.Setenv("DERIVE", "fortnight")
	err := install(context.Background(), loadCfg(), zap.NewNop())
	assert.ErrorContains(t, err, "DERIVE")
}
