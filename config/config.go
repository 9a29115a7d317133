package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full engine configuration.
type Config struct {
	Engine    EngineConfig    `yaml:"engine"`
	Risk      RiskConfig      `yaml:"risk"`
	Stake     StakeConfig     `yaml:"stake"`
	Storage   StorageConfig   `yaml:"storage"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Log       LogConfig       `yaml:"log"`
}

// EngineConfig seeds the bankroll and the execution mode.
type EngineConfig struct {
	InitialUnits       float64 `yaml:"initial_units"`
	KellyFraction      float64 `yaml:"kelly_fraction"`
	Live               bool    `yaml:"live"` // default shadow
	StreakLookback     int     `yaml:"streak_lookback"`
	BackfillIntervalMS int     `yaml:"backfill_interval_ms"`
}

// RiskConfig holds the guard thresholds.
type RiskConfig struct {
	EVFloor              float64 `yaml:"ev_floor"`
	DrawdownThreshold    float64 `yaml:"drawdown_threshold"`
	DrawdownFraction     float64 `yaml:"drawdown_fraction"`
	MaxConsecutiveLosses int     `yaml:"max_consecutive_losses"`
	EarlySeasonCutoff    float64 `yaml:"early_season_cutoff"`
}

// StakeConfig holds the sizing limits.
type StakeConfig struct {
	MaxStakePct float64 `yaml:"max_stake_pct"`
	MinUnit     float64 `yaml:"min_unit"`
}

// StorageConfig controls where state is persisted.
type StorageConfig struct {
	DSN string `yaml:"dsn"` // SQLite file path, or ":memory:"
}

// SchedulerConfig holds the cron specs (6-field, with seconds).
type SchedulerConfig struct {
	SweepSpec     string `yaml:"sweep_spec"`
	AggregateSpec string `yaml:"aggregate_spec"`
}

// LogConfig controls log format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load reads the YAML file plus a .env if one exists. Environment values
// override the YAML for the keys they cover; missing values get defaults.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// Default returns the configuration used when no YAML file is given.
func Default() *Config {
	cfg := &Config{}
	applyEnvOverrides(cfg)
	setDefaults(cfg)
	return cfg
}

// BackfillInterval returns the backfill pacing as a time.Duration.
func (c *Config) BackfillInterval() time.Duration {
	return time.Duration(c.Engine.BackfillIntervalMS) * time.Millisecond
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("BANKGUARD_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Engine.InitialUnits <= 0 {
		cfg.Engine.InitialUnits = 100000
	}
	if cfg.Engine.KellyFraction <= 0 {
		cfg.Engine.KellyFraction = 0.25
	}
	if cfg.Engine.StreakLookback <= 0 {
		cfg.Engine.StreakLookback = 50
	}
	if cfg.Engine.BackfillIntervalMS <= 0 {
		cfg.Engine.BackfillIntervalMS = 100
	}
	if cfg.Risk.EVFloor <= 0 {
		cfg.Risk.EVFloor = 0.03
	}
	if cfg.Risk.DrawdownThreshold <= 0 {
		cfg.Risk.DrawdownThreshold = 0.20
	}
	if cfg.Risk.DrawdownFraction <= 0 {
		cfg.Risk.DrawdownFraction = 0.10
	}
	if cfg.Risk.MaxConsecutiveLosses <= 0 {
		cfg.Risk.MaxConsecutiveLosses = 10
	}
	if cfg.Risk.EarlySeasonCutoff <= 0 {
		cfg.Risk.EarlySeasonCutoff = 0.25
	}
	if cfg.Stake.MaxStakePct <= 0 {
		cfg.Stake.MaxStakePct = 0.05
	}
	if cfg.Stake.MinUnit <= 0 {
		cfg.Stake.MinUnit = 0.01
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "bankguard.db"
	}
	if cfg.Scheduler.SweepSpec == "" {
		cfg.Scheduler.SweepSpec = "0 */10 * * * *"
	}
	if cfg.Scheduler.AggregateSpec == "" {
		cfg.Scheduler.AggregateSpec = "0 5 0 * * *"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
