// Package config loads broker configuration with viper: typed defaults,
// optional config file, BOXBROKER_-prefixed environment overrides. The
// two positional CLI arguments ("broker <rendezvous_pipe> <max_sessions>")
// still take precedence when given, so the CLI surface is unchanged;
// config/env only supply defaults and ambient settings (logging, metrics)
// an argv-only interface has no room for.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the broker daemon.
type Config struct {
	RendezvousPipe string        `mapstructure:"rendezvous_pipe"`
	MaxSessions    int           `mapstructure:"max_sessions"`
	MaxBoxes       int           `mapstructure:"max_boxes"`
	QueueCapacity  int           `mapstructure:"queue_capacity"`
	Logging        LoggingConfig `mapstructure:"logging"`
	Metrics        MetricsConfig `mapstructure:"metrics"`
	SysGuard       SysGuardConfig `mapstructure:"sysguard"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// MetricsConfig controls the Prometheus/health HTTP listener.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
	Endpoint   string `mapstructure:"endpoint"`
}

// SysGuardConfig controls the resource check run before the rendezvous
// pipe is created.
type SysGuardConfig struct {
	Enabled            bool    `mapstructure:"enabled"`
	MaxHostMemPercent   float64 `mapstructure:"max_host_mem_percent"`
}

// Load reads configuration from environment variables and an optional
// config file, layering the given positional CLI args (rendezvousPipe,
// maxSessions) over the result when non-zero, matching §6's CLI surface.
func Load(rendezvousPipe string, maxSessions int) (Config, error) {
	v := viper.New()

	v.SetDefault("rendezvous_pipe", "/tmp/mbroker.pipe")
	v.SetDefault("max_sessions", 8)
	v.SetDefault("max_boxes", 23)
	v.SetDefault("queue_capacity", 0) // 0 means derive from max_sessions/2, see defaultQueueCapacity

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen_addr", ":9095")
	v.SetDefault("metrics.endpoint", "/metrics")

	v.SetDefault("sysguard.enabled", true)
	v.SetDefault("sysguard.max_host_mem_percent", 90.0)

	v.SetConfigName("boxbroker")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("BOXBROKER")
	v.AutomaticEnv()

	_ = v.ReadInConfig() // config file is optional

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	if rendezvousPipe != "" {
		cfg.RendezvousPipe = rendezvousPipe
	}
	if maxSessions > 0 {
		cfg.MaxSessions = maxSessions
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = defaultQueueCapacity(cfg.MaxSessions)
	}
	if cfg.MaxBoxes <= 0 {
		cfg.MaxBoxes = 23
	}

	return cfg, nil
}

// defaultQueueCapacity mirrors mbroker.c's pcq_create(queue, max_sessions
// / 2), with a floor of 1 so a max_sessions of 1 still gets a usable
// queue.
func defaultQueueCapacity(maxSessions int) int {
	c := maxSessions / 2
	if c <= 0 {
		c = 1
	}
	return c
}
