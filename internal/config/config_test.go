package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_PORT", "")
	t.Setenv("BURNOUT_OVERRIDES_FILE", "")
	t.Setenv("AUTH_BOT_CLIENT_ID", "")
	t.Setenv("AUTH_ADMIN_CLIENT_ID", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.App.Addr())
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
	assert.Equal(t, 5*time.Second, cfg.Tickets.ChannelDeleteDelay())
	assert.Equal(t, 7, cfg.Tickets.StatsWindowDays)
	assert.Equal(t, time.Hour, cfg.Workers.BurnoutSweepInterval())
	assert.Equal(t, DefaultBurnoutThresholds(), cfg.Burnout.ForGuild("any"))
	assert.Empty(t, cfg.Auth.Clients)
}

func TestLoadClientsAndInvalidRedisDB(t *testing.T) {
	t.Setenv("AUTH_BOT_CLIENT_ID", "bot")
	t.Setenv("AUTH_BOT_CLIENT_SECRET_HASH", "$2a$04$hash")
	t.Setenv("AUTH_ADMIN_CLIENT_ID", "")
	t.Setenv("REDIS_DB", "0")

	cfg, err := Load()
	require.NoError(t, err)
	require.Len(t, cfg.Auth.Clients, 1)
	assert.Equal(t, "BOT", cfg.Auth.Clients[0].Role)

	t.Setenv("REDIS_DB", "zero")
	_, err = Load()
	assert.Error(t, err)
}

func TestEnvFallbacks(t *testing.T) {
	t.Setenv("MODCENTER_TEST_INT", "abc")
	t.Setenv("MODCENTER_TEST_BOOL", "maybe")
	assert.Equal(t, 4, getEnvAsInt("MODCENTER_TEST_INT", 4))
	assert.True(t, getEnvAsBool("MODCENTER_TEST_BOOL", true))

	w := WorkersConfig{BurnoutSweepIntervalMinutes: 0}
	assert.Zero(t, w.BurnoutSweepInterval())
}

func TestParseBurnoutOverrides(t *testing.T) {
	content := []byte(`
guilds:
  "111":
    max_tickets_daily: 25
    high_above: 80
  "222": {}
`)
	overrides, err := ParseBurnoutOverrides(content, DefaultBurnoutThresholds())
	require.NoError(t, err)
	require.Len(t, overrides, 2)

	got := overrides["111"]
	assert.Equal(t, 25, got.MaxTicketsDaily)
	assert.Equal(t, 80, got.HighAbove)
	assert.Equal(t, 600, got.MaxResponseSeconds)
	assert.Equal(t, DefaultBurnoutThresholds(), overrides["222"])

	cfg := BurnoutConfig{Defaults: DefaultBurnoutThresholds(), GuildOverrides: overrides}
	assert.Equal(t, 25, cfg.ForGuild("111").MaxTicketsDaily)
	assert.Equal(t, 15, cfg.ForGuild("333").MaxTicketsDaily)
}

func TestParseBurnoutOverridesKeepsGivenDefaults(t *testing.T) {
	defaults := DefaultBurnoutThresholds()
	defaults.MaxTicketsDaily = 40
	defaults.AssignmentCutoff = 90

	overrides, err := ParseBurnoutOverrides([]byte("guilds:\n  \"7\":\n    high_above: 85\n"), defaults)
	require.NoError(t, err)

	got := overrides["7"]
	assert.Equal(t, 85, got.HighAbove)
	assert.Equal(t, 40, got.MaxTicketsDaily)
	assert.Equal(t, 90, got.AssignmentCutoff)

	cfg := BurnoutConfig{Defaults: defaults, GuildOverrides: overrides}
	assert.Equal(t, 40, cfg.ForGuild("7").MaxTicketsDaily)
	assert.Equal(t, 40, cfg.ForGuild("8").MaxTicketsDaily)
}

func TestLoadBurnoutOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "burnout.yaml")
	require.NoError(t, os.WriteFile(path, []byte("guilds:\n  \"9\":\n    reopen_weight: 10\n"), 0o600))
	t.Setenv("BURNOUT_OVERRIDES_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Burnout.ForGuild("9").ReopenWeight)

	_, err = ParseBurnoutOverrides([]byte("guilds: [1, 2"), DefaultBurnoutThresholds())
	assert.Error(t, err)

	_, err = LoadBurnoutOverrides(filepath.Join(t.TempDir(), "nope.yaml"), DefaultBurnoutThresholds())
	assert.Error(t, err)
}
