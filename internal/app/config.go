package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "NUTRISYNC"

// Config is the install-level configuration. It is read from config.yml in the
// config directory; NUTRISYNC_* environment variables override the file, with
// dots in keys written as underscores (NUTRISYNC_LOG_LEVEL for log.level).
type Config struct {
	DBPath              string
	LogLevel            string
	LogFile             string
	GoalAdjustmentKcal  int
	GoalRateKgPerWeek   float64
	SignificantChangeKg float64
	CatalogCap          int
	HistoryCap          int
	WriteTimeout        time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.path", "")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.file", "")
	v.SetDefault("goals.adjustment_kcal", 500)
	v.SetDefault("goals.rate_kg_per_week", 0.5)
	v.SetDefault("goals.significant_change_kg", 0.5)
	v.SetDefault("search.catalog_cap", 50)
	v.SetDefault("weight.history_cap", 30)
	v.SetDefault("store.write_timeout", "10s")
}

// LoadConfig reads dir/config.yml if present. An empty dir uses ConfigDir.
func LoadConfig(dir string) (Config, error) {
	if dir == "" {
		d, err := ConfigDir()
		if err != nil {
			return Config{}, err
		}
		dir = d
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(dir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		DBPath:              v.GetString("db.path"),
		LogLevel:            v.GetString("log.level"),
		LogFile:             v.GetString("log.file"),
		GoalAdjustmentKcal:  v.GetInt("goals.adjustment_kcal"),
		GoalRateKgPerWeek:   v.GetFloat64("goals.rate_kg_per_week"),
		SignificantChangeKg: v.GetFloat64("goals.significant_change_kg"),
		CatalogCap:          v.GetInt("search.catalog_cap"),
		HistoryCap:          v.GetInt("weight.history_cap"),
		WriteTimeout:        v.GetDuration("store.write_timeout"),
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	if cfg.DBPath == "" {
		p, err := DefaultDBPath()
		if err != nil {
			return Config{}, err
		}
		cfg.DBPath = p
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.GoalAdjustmentKcal < 0:
		return fmt.Errorf("goals.adjustment_kcal must be >= 0")
	case c.GoalRateKgPerWeek < 0:
		return fmt.Errorf("goals.rate_kg_per_week must be >= 0")
	case c.SignificantChangeKg <= 0:
		return fmt.Errorf("goals.significant_change_kg must be > 0")
	case c.CatalogCap <= 0:
		return fmt.Errorf("search.catalog_cap must be > 0")
	case c.HistoryCap <= 0:
		return fmt.Errorf("weight.history_cap must be > 0")
	case c.WriteTimeout < 0:
		return fmt.Errorf("store.write_timeout must be >= 0")
	}
	return nil
}
