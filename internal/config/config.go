// Package config loads the environment-only configuration surface
// described in spec §6: retry policy, timeouts, cache sizing, rate
// limiting, admission limits, validation policy, the preshared API key,
// the pseudonymisation salt, and per-worker URLs.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the process-wide configuration shared by cmd/coordinator,
// cmd/worker, and cmd/aggregator; each entrypoint reads only the fields
// relevant to it.
type Config struct {
	MaxRetries             int           `mapstructure:"max_retries"`
	RetryBackoffBaseSeconds float64      `mapstructure:"retry_backoff_base_seconds"`
	AlgorithmTimeoutSeconds int           `mapstructure:"algorithm_timeout_seconds"`
	CacheSize              int           `mapstructure:"cache_size"`
	RateLimitPerMinute     int           `mapstructure:"rate_limit_per_minute"`
	MaxRequestSizeMB       int           `mapstructure:"max_request_size_mb"`
	ValidationStrict       bool          `mapstructure:"validation_strict"`
	AllowPartialResults    bool          `mapstructure:"allow_partial_results"`
	APIKey                 string        `mapstructure:"api_key"`
	PseudonymizationSalt   string        `mapstructure:"pseudonymization_salt"`
	PseudonymizationEnabled bool         `mapstructure:"pseudonymization_enabled"`

	LayeringWorkerURL    string `mapstructure:"layering_worker_url"`
	WashTradingWorkerURL string `mapstructure:"wash_trading_worker_url"`
	AggregatorURL        string `mapstructure:"aggregator_url"`

	InputDir  string `mapstructure:"input_dir"`
	OutputDir string `mapstructure:"output_dir"`
	LogsDir   string `mapstructure:"logs_dir"`

	DatabaseURL string `mapstructure:"database_url"`

	ListenAddr string `mapstructure:"listen_addr"`
}

func defaults() Config {
	return Config{
		MaxRetries:              3,
		RetryBackoffBaseSeconds: 2,
		AlgorithmTimeoutSeconds: 30,
		CacheSize:               1000,
		RateLimitPerMinute:      100,
		MaxRequestSizeMB:        10,
		ValidationStrict:        true,
		AllowPartialResults:     false,
		InputDir:                "./input",
		OutputDir:               "./output",
		LogsDir:                 "./logs",
		ListenAddr:              ":8080",
	}
}

// Load reads configuration entirely from the environment (optionally
// seeded from a local .env file for development), applying the
// defaults above for anything unset.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	cfg := defaults()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnv(v,
		"max_retries", "retry_backoff_base_seconds", "algorithm_timeout_seconds",
		"cache_size", "rate_limit_per_minute", "max_request_size_mb",
		"validation_strict", "allow_partial_results", "api_key",
		"pseudonymization_salt", "pseudonymization_enabled",
		"layering_worker_url", "wash_trading_worker_url", "aggregator_url",
		"input_dir", "output_dir", "logs_dir", "database_url", "listen_addr",
	)

	if v.IsSet("max_retries") {
		cfg.MaxRetries = v.GetInt("max_retries")
	}
	if v.IsSet("retry_backoff_base_seconds") {
		cfg.RetryBackoffBaseSeconds = v.GetFloat64("retry_backoff_base_seconds")
	}
	if v.IsSet("algorithm_timeout_seconds") {
		cfg.AlgorithmTimeoutSeconds = v.GetInt("algorithm_timeout_seconds")
	}
	if v.IsSet("cache_size") {
		cfg.CacheSize = v.GetInt("cache_size")
	}
	if v.IsSet("rate_limit_per_minute") {
		cfg.RateLimitPerMinute = v.GetInt("rate_limit_per_minute")
	}
	if v.IsSet("max_request_size_mb") {
		cfg.MaxRequestSizeMB = v.GetInt("max_request_size_mb")
	}
	if v.IsSet("validation_strict") {
		cfg.ValidationStrict = v.GetBool("validation_strict")
	}
	if v.IsSet("allow_partial_results") {
		cfg.AllowPartialResults = v.GetBool("allow_partial_results")
	}
	if v.IsSet("api_key") {
		cfg.APIKey = v.GetString("api_key")
	}
	if v.IsSet("pseudonymization_salt") {
		cfg.PseudonymizationSalt = v.GetString("pseudonymization_salt")
	}
	if v.IsSet("pseudonymization_enabled") {
		cfg.PseudonymizationEnabled = v.GetBool("pseudonymization_enabled")
	}
	if v.IsSet("layering_worker_url") {
		cfg.LayeringWorkerURL = v.GetString("layering_worker_url")
	}
	if v.IsSet("wash_trading_worker_url") {
		cfg.WashTradingWorkerURL = v.GetString("wash_trading_worker_url")
	}
	if v.IsSet("aggregator_url") {
		cfg.AggregatorURL = v.GetString("aggregator_url")
	}
	if v.IsSet("input_dir") {
		cfg.InputDir = v.GetString("input_dir")
	}
	if v.IsSet("output_dir") {
		cfg.OutputDir = v.GetString("output_dir")
	}
	if v.IsSet("logs_dir") {
		cfg.LogsDir = v.GetString("logs_dir")
	}
	if v.IsSet("database_url") {
		cfg.DatabaseURL = v.GetString("database_url")
	}
	if v.IsSet("listen_addr") {
		cfg.ListenAddr = v.GetString("listen_addr")
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func bindEnv(v *viper.Viper, keys ...string) {
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

func validate(cfg Config) error {
	if cfg.PseudonymizationEnabled && cfg.PseudonymizationSalt == "" {
		return fmt.Errorf("pseudonymization_enabled is set but pseudonymization_salt is empty")
	}
	if cfg.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0")
	}
	if cfg.RetryBackoffBaseSeconds <= 0 {
		return fmt.Errorf("retry_backoff_base_seconds must be > 0")
	}
	return nil
}

// AlgorithmTimeout returns the configured worker-call timeout as a
// time.Duration.
func (c Config) AlgorithmTimeout() time.Duration {
	return time.Duration(c.AlgorithmTimeoutSeconds) * time.Second
}

// MaxRequestBytes returns the configured request-body cap in bytes.
func (c Config) MaxRequestBytes() int64 {
	return int64(c.MaxRequestSizeMB) * 1024 * 1024
}
