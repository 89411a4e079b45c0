// Package config resolves settings from defaults, an optional config file,
// DESCENTVIZ_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable lookup.
const EnvPrefix = "DESCENTVIZ"

// Keys understood by Load.
const (
	KeyLearningRate = "learning_rate"
	KeyIterations   = "iterations"
	KeyBeta1        = "beta1"
	KeyBeta2        = "beta2"
	KeyOutput       = "output"
	KeyDataDir      = "data_dir"
	KeyAddr         = "addr"
	KeyLogLevel     = "log_level"
)

// Config is the resolved settings shared by the commands.
type Config struct {
	LearningRate float64 `mapstructure:"learning_rate"`
	Iterations   int     `mapstructure:"iterations"`
	Beta1        float64 `mapstructure:"beta1"`
	Beta2        float64 `mapstructure:"beta2"`
	Output       string  `mapstructure:"output"`
	DataDir      string  `mapstructure:"data_dir"`
	Addr         string  `mapstructure:"addr"`
	LogLevel     string  `mapstructure:"log_level"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LearningRate: 0.01,
		Iterations:   100,
		Beta1:        0.9,
		Beta2:        0.999,
		Output:       "output.png",
		DataDir:      "./data",
		Addr:         ":8080",
		LogLevel:     "info",
	}
}

// New returns a viper instance seeded with defaults and bound to the
// environment.
func New() *viper.Viper {
	v := viper.New()

	d := Default()
	v.SetDefault(KeyLearningRate, d.LearningRate)
	v.SetDefault(KeyIterations, d.Iterations)
	v.SetDefault(KeyBeta1, d.Beta1)
	v.SetDefault(KeyBeta2, d.Beta2)
	v.SetDefault(KeyOutput, d.Output)
	v.SetDefault(KeyDataDir, d.DataDir)
	v.SetDefault(KeyAddr, d.Addr)
	v.SetDefault(KeyLogLevel, d.LogLevel)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return v
}

// ReadFile merges the YAML, JSON or TOML file at path into v. An empty path
// is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	slog.Debug("Config file loaded", "path", path)
	return nil
}

// BindFlag ties key to a command-line flag so an explicitly set flag wins
// over file and environment values.
func BindFlag(v *viper.Viper, key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("no flag for config key %q", key)
	}
	if err := v.BindPFlag(key, flag); err != nil {
		return fmt.Errorf("failed to bind flag --%s: %w", flag.Name, err)
	}
	return nil
}

// Load unmarshals v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges that would otherwise surface as odd optimizer
// behavior far from the input that caused it.
func (c *Config) Validate() error {
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be positive, got %v", c.LearningRate)
	}
	if c.Iterations < 0 {
		return fmt.Errorf("iterations must be non-negative, got %d", c.Iterations)
	}
	if c.Beta1 < 0 || c.Beta1 >= 1 {
		return fmt.Errorf("beta1 must be in [0, 1), got %v", c.Beta1)
	}
	if c.Beta2 < 0 || c.Beta2 >= 1 {
		return fmt.Errorf("beta2 must be in [0, 1), got %v", c.Beta2)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a log level name to its slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}
