// Package config provides centralized configuration management using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. STEPWISE_STORE_BACKEND.
const EnvPrefix = "STEPWISE"

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// Config holds all configuration values for stepwise hosts.
type Config struct {
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Store    StoreConfig    `mapstructure:"store" yaml:"store"`
	Redis    RedisConfig    `mapstructure:"redis" yaml:"redis"`
	NATS     NATSConfig     `mapstructure:"nats" yaml:"nats"`
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http"`
	Security SecurityConfig `mapstructure:"security" yaml:"security"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
}

type StoreConfig struct {
	Backend string        `mapstructure:"backend" yaml:"backend"`
	Dir     string        `mapstructure:"dir" yaml:"dir"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

type RedisConfig struct {
	Addr   string `mapstructure:"addr" yaml:"addr"`
	Prefix string `mapstructure:"prefix" yaml:"prefix"`
}

type NATSConfig struct {
	// URL enables completion publishing. Empty disables it.
	URL     string `mapstructure:"url" yaml:"url"`
	Subject string `mapstructure:"subject" yaml:"subject"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

type SecurityConfig struct {
	// EncryptionKey is a base64 or hex encoded 32 byte key. Empty disables encryption.
	EncryptionKey string `mapstructure:"encryption_key" yaml:"encryption_key"`
	// FallbackKeys open snapshots sealed before a key rotation.
	FallbackKeys []string `mapstructure:"fallback_keys" yaml:"fallback_keys"`
	MaskPII      bool     `mapstructure:"mask_pii" yaml:"mask_pii"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() map[string]any {
	return map[string]any{
		"log.level":               "info",
		"log.json":                false,
		"store.backend":           BackendFile,
		"store.dir":               ".stepwise/runs",
		"store.ttl":               "0s",
		"redis.addr":              "localhost:6379",
		"redis.prefix":            "stepwise:run:",
		"nats.url":                "",
		"nats.subject":            "stepwise.completions",
		"http.addr":               ":8080",
		"security.encryption_key": "",
		"security.fallback_keys":  []string{},
		"security.mask_pii":       false,
	}
}

// New returns a viper instance with defaults and env bindings but no file.
func New() *viper.Viper {
	v := viper.New()
	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load loads configuration with full precedence:
// flags bound by the caller > ENV vars > config file > defaults.
// An empty path searches for stepwise.{yaml,toml,json} in the working directory.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = New()
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("stepwise")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated values.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendFile, BackendRedis:
	default:
		return fmt.Errorf("unknown store backend %q (want memory, file or redis)", c.Store.Backend)
	}
	if c.Store.TTL < 0 {
		return fmt.Errorf("store ttl must not be negative, got %s", c.Store.TTL)
	}
	return nil
}
