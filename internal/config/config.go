// Package config handles agent configuration loading using viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level static configuration. Maps to the `strix:` root
// key in YAML.
type Config struct {
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
	Parser  ParserConfig  `mapstructure:"parser" yaml:"parser"`
	Source  SourceConfig  `mapstructure:"source" yaml:"source"`
	Sink    SinkConfig    `mapstructure:"sink" yaml:"sink"`
}

type configRoot struct {
	Strix Config `mapstructure:"strix"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string        `mapstructure:"level" yaml:"level"`
	Format string        `mapstructure:"format" yaml:"format"` // text | json
	File   FileLogConfig `mapstructure:"file" yaml:"file"`
}

// FileLogConfig enables rotating file output next to the console output.
type FileLogConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Path       string `mapstructure:"path" yaml:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// MetricsConfig contains the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ParserConfig sizes the per-stream deframer.
type ParserConfig struct {
	// BufferCapacity is the receive ring size in bytes; must be a
	// non-zero power of two.
	BufferCapacity int `mapstructure:"buffer_capacity" yaml:"buffer_capacity"`
	// MaxBodyBytes caps the body length a header may declare. Zero means
	// the largest body that fits the ring.
	MaxBodyBytes uint32 `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
}

// SourceConfig selects and configures the byte ingress.
type SourceConfig struct {
	Type    string         `mapstructure:"type" yaml:"type"`
	Options map[string]any `mapstructure:"options" yaml:"options,omitempty"`
}

// SinkConfig selects and configures the message egress.
type SinkConfig struct {
	Type    string         `mapstructure:"type" yaml:"type"`
	Options map[string]any `mapstructure:"options" yaml:"options,omitempty"`
}

// Load reads, defaults and validates the configuration file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Env overrides: key "strix.log.level" → env "STRIX_LOG_LEVEL".
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Strix

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("strix.log.level", "info")
	v.SetDefault("strix.log.format", "text")
	v.SetDefault("strix.log.file.enabled", false)
	v.SetDefault("strix.log.file.path", "/var/log/strix/strix.log")
	v.SetDefault("strix.log.file.max_size_mb", 100)
	v.SetDefault("strix.log.file.max_backups", 5)
	v.SetDefault("strix.log.file.max_age_days", 30)
	v.SetDefault("strix.log.file.compress", true)

	v.SetDefault("strix.metrics.enabled", true)
	v.SetDefault("strix.metrics.listen", ":9091")
	v.SetDefault("strix.metrics.path", "/metrics")

	v.SetDefault("strix.parser.buffer_capacity", 64*1024)
	v.SetDefault("strix.parser.max_body_bytes", 0)

	v.SetDefault("strix.source.type", "tcp")
	v.SetDefault("strix.sink.type", "console")
}

// Validate rejects configurations the agent cannot start with. Source and
// sink option maps are validated later by their factories.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level: %s", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format: %s (must be text or json)", c.Log.Format)
	}
	if c.Log.File.Enabled && c.Log.File.Path == "" {
		return fmt.Errorf("log.file.enabled requires log.file.path")
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return fmt.Errorf("metrics.enabled requires metrics.listen")
	}

	bc := c.Parser.BufferCapacity
	if bc <= 0 || bc&(bc-1) != 0 {
		return fmt.Errorf("parser.buffer_capacity must be a non-zero power of two, got %d", bc)
	}

	if c.Source.Type == "" {
		return fmt.Errorf("source.type is required")
	}
	if c.Sink.Type == "" {
		return fmt.Errorf("sink.type is required")
	}
	return nil
}
