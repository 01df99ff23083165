// Package config loads the pagebatch configuration from defaults, an
// optional file, PAGEBATCH_ environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pagebatch/pagebatch/operation"
	"github.com/pagebatch/pagebatch/session"
)

// EnvPrefix prefixes the environment variables read as configuration.
const EnvPrefix = "PAGEBATCH"

// Backend selects how engines are driven.
type Backend string

// Backends.
const (
	// BackendAuto drives chromium over CDP and the other engines with
	// playwright.
	BackendAuto       Backend = "auto"
	BackendCDP        Backend = "cdp"
	BackendPlaywright Backend = "playwright"
)

// ErrInvalid is wrapped by validation errors.
var ErrInvalid = errors.New("invalid configuration")

// Config is the pagebatch configuration.
type Config struct {
	LogLevel          string `mapstructure:"log_level"`
	LogCategoryFilter string `mapstructure:"log_category_filter"`
	Debug             bool   `mapstructure:"debug"`

	Backend        Backend `mapstructure:"backend"`
	InstallRoot    string  `mapstructure:"install_root"`
	ContinueOnFail bool    `mapstructure:"continue_on_fail"`

	LaunchTimeout     time.Duration `mapstructure:"launch_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	SelectorTimeout   time.Duration `mapstructure:"selector_timeout"`
	CloseTimeout      time.Duration `mapstructure:"close_timeout"`

	MetricsAddr string       `mapstructure:"metrics_addr"`
	Traces      TracesConfig `mapstructure:"traces"`
}

// TracesConfig configures span export. An empty Proto disables tracing.
type TracesConfig struct {
	Proto    string `mapstructure:"proto"`
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
	Verbose  bool   `mapstructure:"verbose"`
}

// SetDefaults sets the defaults of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_category_filter", "")
	v.SetDefault("debug", false)
	v.SetDefault("backend", string(BackendAuto))
	v.SetDefault("install_root", "")
	v.SetDefault("continue_on_fail", false)
	v.SetDefault("launch_timeout", 30*time.Second)
	v.SetDefault("navigation_timeout", 30*time.Second)
	v.SetDefault("selector_timeout", operation.DefaultSelectorTimeout)
	v.SetDefault("close_timeout", session.DefaultCloseTimeout)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("traces.proto", "")
	v.SetDefault("traces.endpoint", "localhost:4318")
	v.SetDefault("traces.insecure", false)
	v.SetDefault("traces.verbose", false)
}

// Load reads the configuration into a Config. Flags must already be bound
// to v. A non empty file must exist.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// Validate checks the values of c.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendAuto, BackendCDP, BackendPlaywright:
	default:
		return fmt.Errorf("%w: backend %q, must be one of auto, cdp, playwright", ErrInvalid, c.Backend)
	}
	for name, d := range map[string]time.Duration{
		"launch_timeout":     c.LaunchTimeout,
		"navigation_timeout": c.NavigationTimeout,
		"selector_timeout":   c.SelectorTimeout,
		"close_timeout":      c.CloseTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s must not be negative, got %s", ErrInvalid, name, d)
		}
	}
	switch strings.ToLower(c.Traces.Proto) {
	case "", "http", "stdout":
	default:
		return fmt.Errorf("%w: traces.proto %q, must be http or stdout", ErrInvalid, c.Traces.Proto)
	}

	return nil
}
