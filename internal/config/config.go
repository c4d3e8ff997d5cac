// Package config loads the overseer binary configuration from a YAML file
// and OVERSEER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/airsstack/overseer"
	"github.com/airsstack/overseer/internal/logger"
)

const (
	// EnvPrefix prefixes every environment override, e.g. OVERSEER_SUPERVISOR_STRATEGY.
	EnvPrefix = "OVERSEER"

	// DefaultConfigPath is read when no path is given and OVERSEER_CONFIG is unset.
	DefaultConfigPath = "overseer.yaml"
)

// Config is the full binary configuration.
type Config struct {
	Log        logger.Config    `mapstructure:"log" yaml:"log"`
	Supervisor SupervisorConfig `mapstructure:"supervisor" yaml:"supervisor"`
	Monitor    MonitorConfig    `mapstructure:"monitor" yaml:"monitor"`
	HTTP       HTTPConfig       `mapstructure:"http" yaml:"http"`
	Demo       DemoConfig       `mapstructure:"demo" yaml:"demo"`
}

// SupervisorConfig configures the root supervisor.
type SupervisorConfig struct {
	Name            string        `mapstructure:"name" yaml:"name"`
	Strategy        string        `mapstructure:"strategy" yaml:"strategy"`
	MaxRestarts     int           `mapstructure:"max_restarts" yaml:"max_restarts"`
	RestartWindow   time.Duration `mapstructure:"restart_window" yaml:"restart_window"`
	BackoffScope    string        `mapstructure:"backoff_scope" yaml:"backoff_scope"`
	RestartDelay    time.Duration `mapstructure:"restart_delay" yaml:"restart_delay"`
	MaxRestartDelay time.Duration `mapstructure:"max_restart_delay" yaml:"max_restart_delay"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	Health          HealthConfig  `mapstructure:"health" yaml:"health"`
}

// HealthConfig configures periodic health checks. A zero interval disables them.
type HealthConfig struct {
	Interval          time.Duration `mapstructure:"interval" yaml:"interval"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	FailureThreshold  int           `mapstructure:"failure_threshold" yaml:"failure_threshold"`
	DegradedThreshold int           `mapstructure:"degraded_threshold" yaml:"degraded_threshold"`
}

// MonitorConfig selects the event monitors.
type MonitorConfig struct {
	History     int    `mapstructure:"history" yaml:"history"`
	MinSeverity string `mapstructure:"min_severity" yaml:"min_severity"`
	EventLog    string `mapstructure:"event_log" yaml:"event_log,omitempty"`
	SentryDSN   string `mapstructure:"sentry_dsn" yaml:"sentry_dsn,omitempty"`
}

// HTTPConfig configures the introspection server. An empty address disables it.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// DemoConfig shapes the demo tree started by "overseer run".
type DemoConfig struct {
	Workers    int           `mapstructure:"workers" yaml:"workers"`
	CrashEvery time.Duration `mapstructure:"crash_every" yaml:"crash_every"`
}

// Load reads configuration from path, or from OVERSEER_CONFIG or the default
// path when path is empty. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path == "" {
		path = DefaultConfigPath
	}
	v.SetConfigFile(path)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			if _, statErr := os.Stat(v.ConfigFileUsed()); statErr == nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("supervisor.name", "root")
	v.SetDefault("supervisor.strategy", overseer.OneForOne.String())
	v.SetDefault("supervisor.max_restarts", overseer.DefaultMaxRestarts)
	v.SetDefault("supervisor.restart_window", overseer.DefaultRestartWindow)
	v.SetDefault("supervisor.backoff_scope", "per_node")
	v.SetDefault("supervisor.restart_delay", time.Duration(0))
	v.SetDefault("supervisor.max_restart_delay", 5*time.Second)
	v.SetDefault("supervisor.shutdown_timeout", 30*time.Second)
	v.SetDefault("supervisor.health.interval", time.Duration(0))
	v.SetDefault("supervisor.health.timeout", overseer.DefaultHealthTimeout)
	v.SetDefault("supervisor.health.failure_threshold", overseer.DefaultFailureThreshold)
	v.SetDefault("supervisor.health.degraded_threshold", 0)

	v.SetDefault("monitor.history", 1000)
	v.SetDefault("monitor.min_severity", overseer.SeverityInfo.String())

	v.SetDefault("http.addr", ":9090")

	v.SetDefault("demo.workers", 3)
	v.SetDefault("demo.crash_every", 20*time.Second)
}

// Validate checks the configuration for values the supervisor would reject
// or silently misinterpret.
func (c *Config) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if _, err := overseer.ParseStrategy(c.Supervisor.Strategy); err != nil {
		return fmt.Errorf("supervisor.strategy: %w", err)
	}
	if _, err := overseer.ParseBackoffScope(c.Supervisor.BackoffScope); err != nil {
		return fmt.Errorf("supervisor.backoff_scope: %w", err)
	}
	if _, err := overseer.ParseSeverity(c.Monitor.MinSeverity); err != nil {
		return fmt.Errorf("monitor.min_severity: %w", err)
	}
	if c.Supervisor.MaxRestarts < 0 {
		return fmt.Errorf("supervisor.max_restarts must not be negative, got %d", c.Supervisor.MaxRestarts)
	}
	if c.Supervisor.RestartWindow <= 0 {
		return fmt.Errorf("supervisor.restart_window must be positive, got %s", c.Supervisor.RestartWindow)
	}
	if c.Supervisor.Health.Interval < 0 {
		return fmt.Errorf("supervisor.health.interval must not be negative, got %s", c.Supervisor.Health.Interval)
	}
	if c.Demo.Workers < 0 {
		return fmt.Errorf("demo.workers must not be negative, got %d", c.Demo.Workers)
	}
	return nil
}

// Strategy returns the parsed root strategy.
func (c *Config) Strategy() overseer.Strategy {
	s, _ := overseer.ParseStrategy(c.Supervisor.Strategy)
	return s
}

// MinSeverity returns the parsed monitor threshold.
func (c *Config) MinSeverity() overseer.Severity {
	s, _ := overseer.ParseSeverity(c.Monitor.MinSeverity)
	return s
}

// Options converts the supervisor section into supervisor options.
func (c *Config) Options() []overseer.Option {
	sc := c.Supervisor
	scope, _ := overseer.ParseBackoffScope(sc.BackoffScope)

	opts := []overseer.Option{
		overseer.WithName(sc.Name),
		overseer.WithIntensity(sc.MaxRestarts, sc.RestartWindow),
		overseer.WithBackoffScope(scope),
		overseer.WithShutdownTimeout(sc.ShutdownTimeout),
	}
	if sc.RestartDelay > 0 {
		opts = append(opts, overseer.WithRestartDelay(overseer.ExponentialDelay(sc.RestartDelay, sc.MaxRestartDelay)))
	}
	if sc.Health.Interval > 0 {
		opts = append(opts, overseer.WithHealthChecks(overseer.HealthConfig{
			Interval:          sc.Health.Interval,
			Timeout:           sc.Health.Timeout,
			FailureThreshold:  sc.Health.FailureThreshold,
			DegradedThreshold: sc.Health.DegradedThreshold,
		}))
	}
	return opts
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
