package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// BudgetConfig tunes the comparison report and request validation.
type BudgetConfig struct {
	OnTrackRatio   float64 `mapstructure:"onTrackRatio"`
	AtRiskRatio    float64 `mapstructure:"atRiskRatio"`
	DefaultGroupBy string  `mapstructure:"defaultGroupBy"`
	MinYear        int     `mapstructure:"minYear"`
	MaxYear        int     `mapstructure:"maxYear"`
}

func DefaultBudgetConfig() BudgetConfig {
	return BudgetConfig{
		OnTrackRatio:   0.95,
		AtRiskRatio:    0.80,
		DefaultGroupBy: "seller",
		MinYear:        2000,
		MaxYear:        2100,
	}
}

type BudgetConfigHolder struct {
	current atomic.Value // holds BudgetConfig
}

// NewStaticBudgetConfigHolder returns a holder that never reloads.
func NewStaticBudgetConfigHolder(cfg BudgetConfig) *BudgetConfigHolder {
	holder := &BudgetConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewBudgetConfigHolder(log *zap.Logger) (*BudgetConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.budget")

	v := viper.New()
	v.SetConfigName("budget")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/podbudget")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PODBUDGET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultBudgetConfig()
	v.SetDefault("budget.onTrackRatio", defaults.OnTrackRatio)
	v.SetDefault("budget.atRiskRatio", defaults.AtRiskRatio)
	v.SetDefault("budget.defaultGroupBy", defaults.DefaultGroupBy)
	v.SetDefault("budget.minYear", defaults.MinYear)
	v.SetDefault("budget.maxYear", defaults.MaxYear)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg BudgetConfig
	if err := v.UnmarshalKey("budget", &cfg); err != nil {
		return nil, err
	}
	if err := validateBudgetConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticBudgetConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if holder.reload(v, log) {
			log.Info("reloaded", zap.String("file", e.Name))
		}
	})
	v.WatchConfig()

	return holder, nil
}

// reload swaps in the budget section of v. An unreadable or invalid section
// leaves the previous config in place.
func (h *BudgetConfigHolder) reload(v *viper.Viper, log *zap.Logger) bool {
	var updated BudgetConfig
	if err := v.UnmarshalKey("budget", &updated); err != nil {
		log.Warn("reload failed", zap.Error(err))
		return false
	}
	if err := validateBudgetConfig(updated); err != nil {
		log.Warn("invalid config ignored", zap.Error(err))
		return false
	}
	h.current.Store(updated)
	return true
}

func (h *BudgetConfigHolder) Get() BudgetConfig {
	if h == nil {
		return DefaultBudgetConfig()
	}
	cfg, ok := h.current.Load().(BudgetConfig)
	if !ok {
		return DefaultBudgetConfig()
	}
	return cfg
}

func validateBudgetConfig(cfg BudgetConfig) error {
	if cfg.OnTrackRatio <= 0 || cfg.AtRiskRatio <= 0 {
		return errors.New("budget ratios must be positive")
	}
	if cfg.AtRiskRatio > cfg.OnTrackRatio {
		return errors.New("budget.atRiskRatio cannot exceed budget.onTrackRatio")
	}
	switch cfg.DefaultGroupBy {
	case "seller", "agency", "advertiser":
	default:
		return errors.New("budget.defaultGroupBy must be seller, agency or advertiser")
	}
	if cfg.MinYear <= 0 || cfg.MaxYear < cfg.MinYear {
		return errors.New("budget year range is invalid")
	}
	return nil
}
