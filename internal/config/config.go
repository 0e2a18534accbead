// Package config loads service configuration from flags, environment
// variables, and an optional config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCEndpoint  string
	WSEndpoint   string
	IncoEndpoint string

	PostgresDSN string
	UseMemory   bool

	ListenAddr  string
	MetricsAddr string

	SplitThreshold decimal.Decimal
	MaxSplitParts  int
	MinSplitAmount decimal.Decimal
	SplitDelay     time.Duration

	LogLevel string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VAULTD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen-addr", ":8080")
	v.SetDefault("metrics-addr", ":9090")
	v.SetDefault("split-threshold", "1000")
	v.SetDefault("max-split-parts", 5)
	v.SetDefault("min-split-amount", "100")
	v.SetDefault("split-delay", 30*time.Second)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	threshold, err := decimal.NewFromString(v.GetString("split-threshold"))
	if err != nil {
		return Config{}, fmt.Errorf("parse split-threshold: %w", err)
	}
	minSplit, err := decimal.NewFromString(v.GetString("min-split-amount"))
	if err != nil {
		return Config{}, fmt.Errorf("parse min-split-amount: %w", err)
	}

	cfg := Config{
		RPCEndpoint:    v.GetString("rpc-endpoint"),
		WSEndpoint:     v.GetString("ws-endpoint"),
		IncoEndpoint:   v.GetString("inco-endpoint"),
		PostgresDSN:    v.GetString("postgres-dsn"),
		UseMemory:      v.GetBool("use-memory"),
		ListenAddr:     v.GetString("listen-addr"),
		MetricsAddr:    v.GetString("metrics-addr"),
		SplitThreshold: threshold,
		MaxSplitParts:  v.GetInt("max-split-parts"),
		MinSplitAmount: minSplit,
		SplitDelay:     v.GetDuration("split-delay"),
		LogLevel:       v.GetString("log-level"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.RPCEndpoint == "" {
		return fmt.Errorf("rpc-endpoint is required")
	}
	if c.IncoEndpoint == "" {
		return fmt.Errorf("inco-endpoint is required")
	}
	if !c.UseMemory && c.PostgresDSN == "" {
		return fmt.Errorf("postgres-dsn is required unless use-memory is set")
	}
	if c.MaxSplitParts < 1 {
		return fmt.Errorf("max-split-parts must be at least 1")
	}
	if !c.MinSplitAmount.IsPositive() {
		return fmt.Errorf("min-split-amount must be positive")
	}
	if c.SplitDelay < 0 {
		return fmt.Errorf("split-delay must not be negative")
	}
	return nil
}
