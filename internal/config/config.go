// Package config loads solver settings from an optional YAML file,
// DOBSS_* environment variables and a local .env file.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// DOBSS_SOLVER_TIME_LIMIT=30s.
const EnvPrefix = "DOBSS"

type Solver struct {
	// BigM is the big-M constant. Zero derives it from each game.
	BigM                 float64       `mapstructure:"big_m"`
	TimeLimit            time.Duration `mapstructure:"time_limit"`
	MaxNodes             int           `mapstructure:"max_nodes"`
	Tolerance            float64       `mapstructure:"tolerance"`
	IntegralityTolerance float64       `mapstructure:"integrality_tolerance"`
}

type Batch struct {
	Parallelism int `mapstructure:"parallelism"`
	// CacheSize is the number of equilibria kept for repeated games.
	CacheSize int `mapstructure:"cache_size"`
}

type Baseline struct {
	Iterations   int     `mapstructure:"iterations"`
	MixingLambda float64 `mapstructure:"mixing_lambda"`
}

type Config struct {
	Solver   Solver   `mapstructure:"solver"`
	Batch    Batch    `mapstructure:"batch"`
	Baseline Baseline `mapstructure:"baseline"`
	Seed     int64    `mapstructure:"seed"`
}

var defaults = map[string]interface{}{
	"solver.big_m":                 0.0,
	"solver.time_limit":            "0s",
	"solver.max_nodes":             0,
	"solver.tolerance":             1e-10,
	"solver.integrality_tolerance": 1e-6,
	"batch.parallelism":            4,
	"batch.cache_size":             0,
	"baseline.iterations":          0,
	"baseline.mixing_lambda":       0.0,
	"seed":                         123,
}

// Load reads the configuration. path may be empty, in which case only
// defaults and environment overrides apply.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "loading .env")
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config file %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.StringToTimeDurationHookFunc()
	}); err != nil {
		return nil, errors.Wrap(err, "parsing config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every setting is in range.
func (c *Config) Validate() error {
	switch {
	case c.Solver.BigM < 0:
		return errors.Errorf("solver.big_m must be non-negative, got %v", c.Solver.BigM)
	case c.Solver.TimeLimit < 0:
		return errors.Errorf("solver.time_limit must be non-negative, got %v", c.Solver.TimeLimit)
	case c.Solver.MaxNodes < 0:
		return errors.Errorf("solver.max_nodes must be non-negative, got %v", c.Solver.MaxNodes)
	case c.Solver.Tolerance <= 0 || c.Solver.IntegralityTolerance <= 0:
		return errors.New("solver tolerances must be positive")
	case c.Solver.IntegralityTolerance >= 0.5:
		return errors.Errorf("solver.integrality_tolerance must be below 0.5, got %v",
			c.Solver.IntegralityTolerance)
	case c.Batch.Parallelism < 0:
		return errors.Errorf("batch.parallelism must be non-negative, got %v", c.Batch.Parallelism)
	case c.Batch.CacheSize < 0:
		return errors.Errorf("batch.cache_size must be non-negative, got %v", c.Batch.CacheSize)
	case c.Baseline.Iterations < 0:
		return errors.Errorf("baseline.iterations must be non-negative, got %v", c.Baseline.Iterations)
	case c.Baseline.MixingLambda < 0 || c.Baseline.MixingLambda > 1:
		return errors.Errorf("baseline.mixing_lambda must be in [0, 1], got %v", c.Baseline.MixingLambda)
	}
	return nil
}
