package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. SHADOWTRACE_DISCOVERY_ENDPOINT.
const EnvPrefix = "SHADOWTRACE"

// Interface is the read-only view of the configuration handed to components.
type Interface interface {
	Logger() LoggerConfig
	Discovery() DiscoveryConfig
	Session() SessionConfig
	Risk() RiskConfig
	Graph() GraphConfig
	Console() ConsoleConfig
	Metrics() MetricsConfig
	Demo() DemoConfig
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	DiscoveryCfg DiscoveryConfig `mapstructure:"discovery" yaml:"discovery"`
	SessionCfg   SessionConfig   `mapstructure:"session" yaml:"session"`
	RiskCfg      RiskConfig      `mapstructure:"risk" yaml:"risk"`
	GraphCfg     GraphConfig     `mapstructure:"graph" yaml:"graph"`
	ConsoleCfg   ConsoleConfig   `mapstructure:"console" yaml:"console"`
	MetricsCfg   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	DemoCfg      DemoConfig      `mapstructure:"demo" yaml:"demo"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig       { return c.LoggerCfg }
func (c *Config) Discovery() DiscoveryConfig { return c.DiscoveryCfg }
func (c *Config) Session() SessionConfig     { return c.SessionCfg }
func (c *Config) Risk() RiskConfig           { return c.RiskCfg }
func (c *Config) Graph() GraphConfig         { return c.GraphCfg }
func (c *Config) Console() ConsoleConfig     { return c.ConsoleCfg }
func (c *Config) Metrics() MetricsConfig     { return c.MetricsCfg }
func (c *Config) Demo() DemoConfig           { return c.DemoCfg }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"` // Empty disables the rotating file copy.
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig names the color of each log level in console format.
type ColorConfig struct {
	Debug string `mapstructure:"debug" yaml:"debug"`
	Info  string `mapstructure:"info" yaml:"info"`
	Warn  string `mapstructure:"warn" yaml:"warn"`
	Error string `mapstructure:"error" yaml:"error"`
	Fatal string `mapstructure:"fatal" yaml:"fatal"`
}

// DiscoveryConfig describes how to reach the discovery backend.
type DiscoveryConfig struct {
	Endpoint        string        `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout         time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RateLimit       float64       `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per second; 0 disables limiting.
	Burst           int           `mapstructure:"burst" yaml:"burst"`
	UserAgent       string        `mapstructure:"user_agent" yaml:"user_agent"`
	IgnoreTLSErrors bool          `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	ProxyURL        string        `mapstructure:"proxy_url" yaml:"proxy_url"`
	HTTP2           bool          `mapstructure:"http2" yaml:"http2"`
}

// SessionConfig tunes the scan session.
type SessionConfig struct {
	HistoryCapacity int `mapstructure:"history_capacity" yaml:"history_capacity"`
}

// RiskConfig mirrors risk.Policy.
type RiskConfig struct {
	FanOut            int `mapstructure:"fan_out" yaml:"fan_out"`
	CriticalThreshold int `mapstructure:"critical_threshold" yaml:"critical_threshold"`
	HighThreshold     int `mapstructure:"high_threshold" yaml:"high_threshold"`
}

// GraphConfig mirrors correlation.Config.
type GraphConfig struct {
	AngularStep float64 `mapstructure:"angular_step" yaml:"angular_step"`
	RadiusX     float64 `mapstructure:"radius_x" yaml:"radius_x"`
	RadiusY     float64 `mapstructure:"radius_y" yaml:"radius_y"`
	EvenSpacing bool    `mapstructure:"even_spacing" yaml:"even_spacing"`
	Fallback    bool    `mapstructure:"fallback" yaml:"fallback"`
}

// ConsoleConfig controls the interactive shell.
type ConsoleConfig struct {
	Prompt string `mapstructure:"prompt" yaml:"prompt"`
	// Color is one of "auto", "always" or "never".
	Color string `mapstructure:"color" yaml:"color"`
	// Passphrase, when set, must match at login. When empty any non-empty passphrase is accepted.
	Passphrase string `mapstructure:"passphrase" yaml:"-"`
	// Operator is the identity pre-filled at login and placed at the graph root.
	Operator string `mapstructure:"operator" yaml:"operator"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// DemoConfig configures the bundled demo discovery backend.
type DemoConfig struct {
	ListenAddr string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	Latency    time.Duration `mapstructure:"latency" yaml:"latency"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "warn")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "shadowtrace")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Discovery --
	v.SetDefault("discovery.endpoint", "http://localhost:8000/api/v1/scan/")
	v.SetDefault("discovery.timeout", "30s")
	v.SetDefault("discovery.rate_limit", 2.0)
	v.SetDefault("discovery.burst", 1)
	v.SetDefault("discovery.user_agent", "shadowtrace-cli")
	v.SetDefault("discovery.ignore_tls_errors", false)
	v.SetDefault("discovery.proxy_url", "")
	v.SetDefault("discovery.http2", true)

	// -- Session --
	v.SetDefault("session.history_capacity", 10)

	// -- Risk --
	v.SetDefault("risk.fan_out", 12)
	v.SetDefault("risk.critical_threshold", 70)
	v.SetDefault("risk.high_threshold", 40)

	// -- Graph --
	v.SetDefault("graph.angular_step", 1.5)
	v.SetDefault("graph.radius_x", 200.0)
	v.SetDefault("graph.radius_y", 150.0)
	v.SetDefault("graph.even_spacing", false)
	v.SetDefault("graph.fallback", true)

	// -- Console --
	v.SetDefault("console.prompt", "shadowtrace > ")
	v.SetDefault("console.color", "auto")
	v.SetDefault("console.passphrase", "")
	v.SetDefault("console.operator", "")

	// -- Metrics --
	v.SetDefault("metrics.listen_addr", "")

	// -- Demo backend --
	v.SetDefault("demo.listen_addr", "127.0.0.1:8000")
	v.SetDefault("demo.latency", "0s")
}

// NewConfigFromViper unmarshals and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// The passphrase is never expected in a config file.
	_ = v.BindEnv("console.passphrase", EnvPrefix+"_CONSOLE_PASSPHRASE")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	var errs []error

	if c.DiscoveryCfg.Endpoint == "" {
		errs = append(errs, errors.New("discovery.endpoint is required"))
	} else if u, err := url.Parse(c.DiscoveryCfg.Endpoint); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("discovery.endpoint must be an absolute URL, got %q", c.DiscoveryCfg.Endpoint))
	}
	if c.DiscoveryCfg.Timeout <= 0 {
		errs = append(errs, errors.New("discovery.timeout must be a positive duration"))
	}
	if c.DiscoveryCfg.RateLimit < 0 {
		errs = append(errs, errors.New("discovery.rate_limit must not be negative"))
	}
	if c.DiscoveryCfg.ProxyURL != "" {
		if _, err := url.Parse(c.DiscoveryCfg.ProxyURL); err != nil {
			errs = append(errs, fmt.Errorf("discovery.proxy_url is invalid: %w", err))
		}
	}
	if c.SessionCfg.HistoryCapacity < 1 {
		errs = append(errs, errors.New("session.history_capacity must be at least 1"))
	}
	if err := c.RiskCfg.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.GraphCfg.RadiusX <= 0 || c.GraphCfg.RadiusY <= 0 {
		errs = append(errs, errors.New("graph.radius_x and graph.radius_y must be positive"))
	}
	switch strings.ToLower(c.ConsoleCfg.Color) {
	case "auto", "always", "never":
	default:
		errs = append(errs, fmt.Errorf("console.color must be auto, always or never, got %q", c.ConsoleCfg.Color))
	}
	return errors.Join(errs...)
}

// Validate checks the risk thresholds are ordered.
func (r RiskConfig) Validate() error {
	if r.FanOut < 0 {
		return errors.New("risk.fan_out must not be negative")
	}
	if r.HighThreshold > r.CriticalThreshold {
		return errors.New("risk.high_threshold must not exceed risk.critical_threshold")
	}
	return nil
}
