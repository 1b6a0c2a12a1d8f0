// Package config provides application configuration with multi-source
// priority: environment variables override the config file
// (~/.marketmate/config.yaml), which overrides built-in defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidServerURL indicates the assistant server URL is malformed.
	ErrInvalidServerURL = errors.New("invalid server URL")

	// ErrInvalidCurrency indicates the quote currency is malformed.
	ErrInvalidCurrency = errors.New("invalid currency")
)

// Defaults applied when neither environment nor config file set a value.
const (
	DefaultServerURL = "http://localhost:8000"
	DefaultCurrency  = "usd"

	configDirName  = ".marketmate"
	configFileName = "config"
	envPrefix      = "MARKETMATE"
)

// Config stores application configuration.
type Config struct {
	// ServerURL is the assistant API base (stream + fallback endpoints).
	ServerURL string `mapstructure:"server_url"`

	// Currency is the default quote currency for hydrated widgets.
	Currency string `mapstructure:"currency"`

	// Hydration collaborator endpoints. Empty base URLs fall back to the
	// public APIs; keys are optional on free tiers.
	MarketURL  string `mapstructure:"market_url"`
	MarketKey  string `mapstructure:"market_key"`
	NewsURL    string `mapstructure:"news_url"`
	NewsKey    string `mapstructure:"news_key"`
	OnChainURL string `mapstructure:"onchain_url"`
	OnChainKey string `mapstructure:"onchain_key"`

	// Debug enables debug logging.
	Debug bool `mapstructure:"debug"`
}

// Load reads configuration from defaults, the config file, and environment
// variables, in increasing priority, then validates the result.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server_url", DefaultServerURL)
	v.SetDefault("currency", DefaultCurrency)
	v.SetDefault("debug", false)

	v.SetConfigName(configFileName)
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, configDirName))
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; anything else is not.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	parsed, err := url.Parse(c.ServerURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidServerURL, c.ServerURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidServerURL)
	}

	currency := strings.TrimSpace(c.Currency)
	if currency == "" || len(currency) > 8 {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, c.Currency)
	}

	return nil
}
