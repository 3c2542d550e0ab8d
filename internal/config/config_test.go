package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "@every 5s", cfg.Schedule.Cycle)
	assert.Equal(t, 10, cfg.Polymarket.Concurrency)
	assert.Equal(t, 500, cfg.Polymarket.ActivityLimit)
	assert.Equal(t, 5*time.Minute, cfg.Redis.PriceTTL)
	assert.Equal(t, time.Hour, cfg.Redis.WhaleTTL)
	assert.Equal(t, 0.25, cfg.Engine.KellyMultiplier)
	assert.True(t, cfg.Engine.ConsensusBoost)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.TelegramEnabled())
}

func TestLoad_YAMLKeepsUnsetEngineDefaults(t *testing.T) {
	path := writeConfig(t, `
engine:
  kelly_multiplier: 0.5
  min_wallets: 3
polymarket:
  timeout: 5s
  concurrency: 4
watchlist:
  wallets:
    - "0x7523cafcee7bcf2db9a79d80e0d79b88a9a54c4c"
redis:
  addr: localhost:6379
  whale_ttl: 30m
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.5, cfg.Engine.KellyMultiplier)
	assert.Equal(t, 3, cfg.Engine.MinWallets)
	assert.Equal(t, 0.05, cfg.Engine.MaxRiskCap)
	assert.True(t, cfg.Engine.IgnoreBagholders)
	assert.Equal(t, 5*time.Second, cfg.Polymarket.Timeout)
	assert.Equal(t, 4, cfg.Polymarket.Concurrency)
	assert.Equal(t, 30*time.Minute, cfg.Redis.WhaleTTL)
	assert.Len(t, cfg.Watchlist.Wallets, 1)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "telegram:\n  bot_token: from-file\n")
	t.Setenv("TELEGRAM_BOT_TOKEN", "from-env")
	t.Setenv("TELEGRAM_CHAT_ID", "12345")
	t.Setenv("TRACKED_WALLETS", " 0xa , 0xb,,")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("DEFAULT_BALANCE", "2500")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "from-env", cfg.Telegram.BotToken)
	assert.True(t, cfg.TelegramEnabled())
	assert.Equal(t, []string{"0xa", "0xb"}, cfg.Watchlist.Wallets)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "whale-consensus.signals", cfg.Kafka.Topic)
	assert.Equal(t, 2500.0, cfg.Engine.DefaultBalance)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("CONCURRENCY", "many")
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_BadYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "engine: [unclosed"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
		require.NoError(t, err)
		return cfg
	}

	cases := map[string]func(*Config){
		"token without chat": func(c *Config) { c.Telegram.BotToken = "x" },
		"non-numeric chat":   func(c *Config) { c.Telegram.BotToken, c.Telegram.ChatID = "x", "abc" },
		"zero concurrency":   func(c *Config) { c.Polymarket.Concurrency = 0 },
		"bad cycle":          func(c *Config) { c.Schedule.Cycle = "every so often" },
		"bad engine":         func(c *Config) { c.Engine.MaxRiskCap = 0.5 },
		"bad log level":      func(c *Config) { c.Log.Level = "loud" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
