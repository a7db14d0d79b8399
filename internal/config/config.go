// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig            `mapstructure:"server"`
	Auth    AuthConfig              `mapstructure:"auth"`
	HTTP    HTTPConfig              `mapstructure:"http"`
	Sync    SyncConfig              `mapstructure:"sync"`
	Store   StoreConfig             `mapstructure:"store"`
	Logging LoggingConfig           `mapstructure:"logging"`
	Tenants map[string]TenantConfig `mapstructure:"tenants"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles for the inbound surface.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// HTTPConfig configures the outbound partner HTTP client.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// SyncConfig governs crawl pipeline fan-out.
type SyncConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Backend  string `mapstructure:"backend"`
	RedisURL string `mapstructure:"redis_url"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// TenantConfig holds one partner account's credentials and namespace.
type TenantConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	// DetailKey selects the product field used to fetch and cache detail
	// records: "sku" or "slug".
	DetailKey string `mapstructure:"detail_key"`
}

// Store backend names accepted by store.backend.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CATALOGSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	applyTenantDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("sync.concurrency", 8)
	v.SetDefault("store.backend", StoreMemory)
	v.SetDefault("store.table", "catalog_kv")
	v.SetDefault("logging.development", true)
}

func applyTenantDefaults(cfg *Config) {
	for name, t := range cfg.Tenants {
		if t.DetailKey == "" {
			t.DetailKey = "sku"
			cfg.Tenants[name] = t
		}
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Sync.Concurrency <= 0 {
		return fmt.Errorf("sync.concurrency must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Store.Backend {
	case StoreMemory:
	case StoreRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("store.redis_url must be set for the redis backend")
		}
	case StorePostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("store.backend must be one of memory, redis, postgres")
	}
	for name, t := range c.Tenants {
		if err := validateTenant(name, t); err != nil {
			return err
		}
	}
	return nil
}

func validateTenant(name string, t TenantConfig) error {
	if t.BaseURL == "" {
		return fmt.Errorf("tenants.%s.base_url is required", name)
	}
	if t.ClientID == "" || t.ClientSecret == "" {
		return fmt.Errorf("tenants.%s client credentials are required", name)
	}
	if t.Username == "" || t.Password == "" {
		return fmt.Errorf("tenants.%s username/password are required", name)
	}
	if t.DetailKey != "sku" && t.DetailKey != "slug" {
		return fmt.Errorf("tenants.%s.detail_key must be sku or slug", name)
	}
	return nil
}

// HTTPTimeout converts the configured timeout into a duration for the
// outbound client.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
