package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(path, []byte(`
server:
  port: 9090
database:
  driver: postgres
  port: 5432
business:
  over_credit_tolerance: "1.50"
kafka:
  brokers: ["a:9092", "b:9092"]
`), 0o600)
	require.NoError(t, err)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.True(t, decimal.RequireFromString("1.5").Equal(cfg.Business.Tolerance()))
	// 默认值
	assert.Equal(t, 30*time.Second, cfg.Business.LockTTL)
	assert.Equal(t, "order.paid", cfg.Kafka.Topic.OrderPaid)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("STOREFRONT_GATEWAY_SERVER_KEY", "sk-test")
	t.Setenv("STOREFRONT_DATABASE_DRIVER", "memory")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Gateway.ServerKey)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestBusinessConfig_InvalidDecimals(t *testing.T) {
	b := BusinessConfig{OverCreditTolerance: "abc", DefaultReferrerRate: "-1"}
	assert.True(t, b.Tolerance().IsZero())
	assert.True(t, b.ReferrerRate().IsZero())
}
