package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Serve     ServeConfig     `mapstructure:"serve"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

type WorkspaceConfig struct {
	Root      string `mapstructure:"root"`
	ReportDir string `mapstructure:"report_dir"`
}

type EngineConfig struct {
	// Workers bounds the per-layer worker pool; 0 runs sequentially.
	Workers int `mapstructure:"workers"`
	// CacheTTLSeconds expires memoized calculations; 0 disables expiry.
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds"`
	// CacheMaxEntries caps the calculation cache; 0 means unbounded.
	CacheMaxEntries int `mapstructure:"cache_max_entries"`
}

type ServeConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// LiveReload pushes an SSE event to connected browsers when a report
	// file changes.
	LiveReload bool `mapstructure:"live_reload"`
}

type TelemetryConfig struct {
	// OTLPEndpoint is the OTLP gRPC collector address (e.g. "localhost:4317").
	// If empty, trace export is disabled.
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	Environment  string `mapstructure:"environment"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.Engine.Workers < 0 {
		warnings = append(warnings, fmt.Sprintf("engine workers %d is negative", c.Engine.Workers))
	}
	if c.Serve.Port < 0 || c.Serve.Port > 65535 {
		warnings = append(warnings, fmt.Sprintf("serve port %d is out of range", c.Serve.Port))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		warnings = append(warnings, fmt.Sprintf("unknown log format %q, falling back to text", c.Log.Format))
	}

	return warnings
}

// Load reads configuration from file and environment. A missing config file
// is not an error: the workspace is usable with defaults and TTR_* env vars.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("TTR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Validate configuration and print warnings
	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("workspace.root", ".")
	v.SetDefault("workspace.report_dir", "reports")
	v.SetDefault("engine.workers", 0)
	v.SetDefault("engine.cache_ttl_seconds", 300)
	v.SetDefault("engine.cache_max_entries", 10000)
	v.SetDefault("serve.host", "127.0.0.1")
	v.SetDefault("serve.port", 8080)
	v.SetDefault("serve.live_reload", true)
	v.SetDefault("telemetry.environment", "development")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
