package config

import (
	"bytes"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestValidateBudgetConfig(t *testing.T) {
	assert.NoError(t, validateBudgetConfig(DefaultBudgetConfig()))

	cfg := DefaultBudgetConfig()
	cfg.AtRiskRatio = 0.99
	assert.Error(t, validateBudgetConfig(cfg))

	cfg = DefaultBudgetConfig()
	cfg.DefaultGroupBy = "campaign"
	assert.Error(t, validateBudgetConfig(cfg))

	cfg = DefaultBudgetConfig()
	cfg.MaxYear = cfg.MinYear - 1
	assert.Error(t, validateBudgetConfig(cfg))
}

func TestBudgetConfigHolderFallsBackToDefaults(t *testing.T) {
	var holder *BudgetConfigHolder
	assert.Equal(t, DefaultBudgetConfig(), holder.Get())

	static := NewStaticBudgetConfigHolder(BudgetConfig{OnTrackRatio: 1, AtRiskRatio: 0.5, DefaultGroupBy: "agency", MinYear: 2010, MaxYear: 2030})
	assert.Equal(t, "agency", static.Get().DefaultGroupBy)
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("DATABASE_TYPE", "sqlite")
	t.Setenv("RATE_LIMIT_ENABLED", "yes")
	t.Setenv("RATE_LIMIT_BUDGET_WRITE_BURST", "7")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("AUTH_COOKIE_NAME", " pb_session ")

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, 7, cfg.RateLimit.WriteBurst)
	assert.Equal(t, "pb_session", cfg.AuthCookieName)
	assert.True(t, cfg.IsProduction())
}

func TestBudgetConfigReloadKeepsLastValid(t *testing.T) {
	log := zaptest.NewLogger(t)
	holder := NewStaticBudgetConfigHolder(DefaultBudgetConfig())

	read := func(doc string) *viper.Viper {
		v := viper.New()
		v.SetConfigType("yml")
		require.NoError(t, v.ReadConfig(bytes.NewBufferString(doc)))
		return v
	}

	valid := read(`
budget:
  onTrackRatio: 0.9
  atRiskRatio: 0.7
  defaultGroupBy: agency
  minYear: 2010
  maxYear: 2040
`)
	assert.True(t, holder.reload(valid, log))
	want := BudgetConfig{OnTrackRatio: 0.9, AtRiskRatio: 0.7, DefaultGroupBy: "agency", MinYear: 2010, MaxYear: 2040}
	assert.Equal(t, want, holder.Get())

	inverted := read(`
budget:
  onTrackRatio: 0.5
  atRiskRatio: 0.9
  defaultGroupBy: seller
  minYear: 2010
  maxYear: 2040
`)
	assert.False(t, holder.reload(inverted, log))
	assert.Equal(t, want, holder.Get())

	malformed := read(`
budget:
  onTrackRatio: high
`)
	assert.False(t, holder.reload(malformed, log))
	assert.Equal(t, want, holder.Get())
}
