// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
// Package config loads spool configuration.
// Priority: config file > SPOOL_ env vars > defaults.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all spool configuration.
type Config struct {
	Store   StoreConfig   `mapstructure:"store"`
	Context ContextConfig `mapstructure:"context"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// StoreConfig configures the content store.
type StoreConfig struct {
	// SizeThresholdBytes is the cutoff above which tool output is stored
	// out of band instead of returned inline.
	SizeThresholdBytes int64 `mapstructure:"size_threshold_bytes"`
	// MaxMemoryBytes bounds total stored bytes.
	MaxMemoryBytes int64 `mapstructure:"max_memory_bytes"`
	// CompressionThresholdBytes is the payload size above which gzip is attempted.
	CompressionThresholdBytes int64 `mapstructure:"compression_threshold_bytes"`
	// TTLSeconds is the fixed lifetime of a stored entry.
	TTLSeconds int64 `mapstructure:"ttl_seconds"`
	// CleanupIntervalSeconds enables the recurring expiry sweep when positive.
	CleanupIntervalSeconds int64 `mapstructure:"cleanup_interval_seconds"`
}

// ContextConfig configures the reference context manager.
type ContextConfig struct {
	// MaxReferenceAgeSeconds is how long an untouched tracked reference
	// survives age-based cleanup.
	MaxReferenceAgeSeconds int64 `mapstructure:"max_reference_age_seconds"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// TTL returns the store TTL as a duration.
func (c StoreConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// CleanupInterval returns the sweep interval as a duration.
func (c StoreConfig) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalSeconds) * time.Second
}

// MaxReferenceAge returns the context cleanup age as a duration.
func (c ContextConfig) MaxReferenceAge() time.Duration {
	return time.Duration(c.MaxReferenceAgeSeconds) * time.Second
}

// SetDefaults registers default values on a viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("store.size_threshold_bytes", 10*1024)
	v.SetDefault("store.max_memory_bytes", 256*1024*1024)
	v.SetDefault("store.compression_threshold_bytes", 1024*1024)
	v.SetDefault("store.ttl_seconds", 3600)
	v.SetDefault("store.cleanup_interval_seconds", 300)
	v.SetDefault("context.max_reference_age_seconds", 1800)
	v.SetDefault("logging.level", "info")
}

// Load reads configuration from an optional file plus SPOOL_ environment
// variables, falling back to defaults.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("SPOOL")
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
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

// Validate rejects configurations the store cannot honor.
func (c *Config) Validate() error {
	if c.Store.SizeThresholdBytes < 0 {
		return fmt.Errorf("store.size_threshold_bytes must be non-negative, got %d", c.Store.SizeThresholdBytes)
	}
	if c.Store.MaxMemoryBytes <= 0 {
		return fmt.Errorf("store.max_memory_bytes must be positive, got %d", c.Store.MaxMemoryBytes)
	}
	if c.Store.TTLSeconds <= 0 {
		return fmt.Errorf("store.ttl_seconds must be positive, got %d", c.Store.TTLSeconds)
	}
	if c.Store.SizeThresholdBytes > c.Store.MaxMemoryBytes {
		return fmt.Errorf("store.size_threshold_bytes (%d) exceeds store.max_memory_bytes (%d)",
			c.Store.SizeThresholdBytes, c.Store.MaxMemoryBytes)
	}
	return nil
}
