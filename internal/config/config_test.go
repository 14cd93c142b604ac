package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"HTTP_ADDR", "MARKET_PROVIDER", "DEFAULT_LEVERAGE", "JOURNAL_ENABLED", "REQUEST_TIMEOUT_SEC"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "fallback", cfg.MarketProvider)
	assert.Equal(t, 10.0, cfg.DefaultLeverage)
	assert.True(t, cfg.JournalEnabled)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MARKET_PROVIDER", "sdk")
	t.Setenv("MARKET_TIMEOUT_MS", "1500")
	t.Setenv("DEFAULT_LEVERAGE", "20")
	t.Setenv("PLAN_ADVERSE_MOVE", "0.03")
	t.Setenv("JOURNAL_ENABLED", "false")
	t.Setenv("JOURNAL_RETENTION_HOURS", "2")
	t.Setenv("JOURNAL_PRUNE_INTERVAL_SEC", "not-a-number")

	cfg := Load()
	assert.Equal(t, "sdk", cfg.MarketProvider)
	assert.Equal(t, 1500*time.Millisecond, cfg.MarketTimeout())
	assert.Equal(t, 20.0, cfg.DefaultLeverage)
	assert.Equal(t, 0.03, cfg.PlanAdverseMove)
	assert.False(t, cfg.JournalEnabled)
	assert.Equal(t, 2*time.Hour, cfg.JournalRetention())
	assert.Equal(t, time.Hour, cfg.JournalPruneInterval())
}
