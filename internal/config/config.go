// Package config loads application configuration from a yaml file, the
// environment, and command-line flags, in increasing order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/conorfennell/wortschatz/internal/scheduler"
)

// envPrefix is stripped from environment variables; "__" nests sections,
// e.g. WORTSCHATZ_SCHEDULER__EASE_FACTOR → scheduler.ease_factor.
const envPrefix = "WORTSCHATZ_"

// Defaults shared between the config struct and the CLI flag definitions.
const (
	DefaultDBPath     = "wortschatz.db"
	DefaultListenAddr = ":8080"
	DefaultReposDir   = "repos"
	DefaultUser       = "default"
	DefaultLanguage   = "de"
)

// Scheduler configures the review scheduling policy.
type Scheduler struct {
	AgainDelay         time.Duration `koanf:"again_delay" validate:"min=0"`
	FirstIntervalDays  int           `koanf:"first_interval_days" validate:"min=0"`
	SecondIntervalDays int           `koanf:"second_interval_days" validate:"min=0"`
	EaseFactor         float64       `koanf:"ease_factor" validate:"omitempty,gte=1"`
	RequeueOnFail      bool          `koanf:"requeue_on_fail"`
}

// Config is the full application configuration.
type Config struct {
	DBPath     string    `koanf:"db_path" validate:"required"`
	ListenAddr string    `koanf:"listen_addr" validate:"required"`
	ReposDir   string    `koanf:"repos_dir" validate:"required"`
	User       string    `koanf:"user" validate:"required"`
	Language   string    `koanf:"language" validate:"required,min=2,max=8"`
	Scheduler  Scheduler `koanf:"scheduler"`
}

// Default returns the built-in configuration. Scheduler fields are left
// zero so the engine fills its own defaults.
func Default() Config {
	return Config{
		DBPath:     DefaultDBPath,
		ListenAddr: DefaultListenAddr,
		ReposDir:   DefaultReposDir,
		User:       DefaultUser,
		Language:   DefaultLanguage,
	}
}

// Policy converts the scheduler section into an engine policy.
func (c Config) Policy() scheduler.Policy {
	return scheduler.Policy{
		AgainDelay:     c.Scheduler.AgainDelay,
		FirstInterval:  time.Duration(c.Scheduler.FirstIntervalDays) * 24 * time.Hour,
		SecondInterval: time.Duration(c.Scheduler.SecondIntervalDays) * 24 * time.Hour,
		EaseFactor:     c.Scheduler.EaseFactor,
		RequeueOnFail:  c.Scheduler.RequeueOnFail,
	}
}

// Load builds the configuration: defaults, then the yaml file at path (if
// given), then WORTSCHATZ_* environment variables, then flags. Flags left
// at their defaults do not override file or environment values.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithValue(flags, ".", k, flagKey), nil); err != nil {
			return Config{}, fmt.Errorf("loading flags: %w", err)
		}
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func flagKey(key, value string) (string, interface{}) {
	return strings.ReplaceAll(key, "-", "_"), value
}
