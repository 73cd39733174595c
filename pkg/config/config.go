// Package config provides configuration management for the hprof decoder
// CLI and its example consumers.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Decode    DecodeConfig    `mapstructure:"decode"`
	Consumer  ConsumerConfig  `mapstructure:"consumer"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

// DecodeConfig holds decoder-level configuration.
type DecodeConfig struct {
	// IDSizeOverride forces the identifier width instead of trusting the
	// stream header; 0 means "use the header's declared value". Intended
	// for diagnosing malformed producers, not normal operation.
	IDSizeOverride int `mapstructure:"id_size_override"`
	// StrictFrameLength, when true (the default), treats any
	// frame-length mismatch as fatal. Turning it off is a diagnostic
	// escape hatch only — spec correctness requires strict equality.
	StrictFrameLength bool `mapstructure:"strict_frame_length"`
}

// ConsumerConfig selects which example consumer(s) drive a decode run.
type ConsumerConfig struct {
	// Kind is one of "count", "print", "columnar", "graph".
	Kind string `mapstructure:"kind"`
	// ClassFilter, when non-empty, is a comma-separated list of business
	// package prefixes; columnar/graph consumers restrict export and
	// retained-size analysis to classes under these prefixes. Empty
	// means no filtering.
	ClassFilter   string `mapstructure:"class_filter"`
	SummaryAsJSON bool   `mapstructure:"summary_as_json"`
	// UploadArtifact, when true, has the columnar consumer publish a
	// zstd-compressed row-count manifest through StorageConfig after Flush.
	UploadArtifact bool `mapstructure:"upload_artifact"`
}

// DatabaseConfig holds the columnar exporter's database connection
// configuration.
type DatabaseConfig struct {
	Type     string `mapstructure:"type"` // sqlite, postgres, or mysql
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
}

// StorageConfig holds object storage configuration for uploading exported
// artifacts.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // cos or local
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`
	Scheme    string `mapstructure:"scheme"`
	LocalPath string `mapstructure:"local_path"`
}

// TelemetryConfig mirrors pkg/telemetry's environment-driven config, kept
// here only so it can be recorded in a config file alongside everything
// else; pkg/telemetry.LoadFromEnv remains the source of truth at runtime.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"` // json or text
}

// Load reads configuration from the specified file path, falling back to
// defaults if no config file is found.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/hprofdecode")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			fmt.Println("Config file not found, using defaults")
		} else if os.IsNotExist(err) {
			fmt.Printf("Config file %s not found, using defaults\n", configPath)
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadFromReader loads configuration from raw bytes (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("decode.id_size_override", 0)
	v.SetDefault("decode.strict_frame_length", true)

	v.SetDefault("consumer.kind", "count")
	v.SetDefault("consumer.class_filter", "")
	v.SetDefault("consumer.summary_as_json", false)
	v.SetDefault("consumer.upload_artifact", false)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.database", "hprof.db")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "./exports")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "hprofdecode")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.output_path", "")
	v.SetDefault("log.format", "text")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Consumer.Kind {
	case "count", "print", "columnar", "graph":
	default:
		return fmt.Errorf("unsupported consumer kind: %s", c.Consumer.Kind)
	}

	if c.Consumer.Kind == "columnar" {
		switch c.Database.Type {
		case "sqlite", "postgres", "mysql", "none":
		default:
			return fmt.Errorf("unsupported database type: %s", c.Database.Type)
		}
	}

	return nil
}
