// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend names shared by several sections.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendLocal    = "local"
	BackendGCS      = "gcs"
	BackendMock     = "mock"
	BackendRemote   = "remote"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Application ApplicationConfig `mapstructure:"application"`
	Site        SiteConfig        `mapstructure:"site"`
	Search      SearchConfig      `mapstructure:"search"`
	SEO         SEOConfig         `mapstructure:"seo"`
	Slugs       SlugsConfig       `mapstructure:"slugs"`
	Allowlist   AllowlistConfig   `mapstructure:"allowlist"`
	State       StateConfig       `mapstructure:"state"`
	Inventory   InventoryConfig   `mapstructure:"inventory"`
	Storage     StorageConfig     `mapstructure:"storage"`
	DB          DBConfig          `mapstructure:"db"`
	Redis       RedisConfig       `mapstructure:"redis"`
	PubSub      PubSubConfig      `mapstructure:"pubsub"`
	RateLimit   RateLimitConfig   `mapstructure:"ratelimit"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig guards the allowlist admin endpoints.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
	// Level overrides the mode's default minimum level.
	Level string `mapstructure:"level"`
}

// ApplicationConfig names the service for tracing resources.
type ApplicationConfig struct {
	ServiceName string `mapstructure:"service_name"`
}

// SiteConfig is the public identity used in canonical URLs and page titles.
type SiteConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Name    string `mapstructure:"name"`
}

// SearchConfig is the blanket search policy.
type SearchConfig struct {
	FreshnessDays   int `mapstructure:"freshness_days"`
	DefaultPageSize int `mapstructure:"default_page_size"`
	MaxPageSize     int `mapstructure:"max_page_size"`
}

// SEOConfig holds the hysteresis band.
type SEOConfig struct {
	IndexOnThreshold  int `mapstructure:"index_on_threshold"`
	IndexOffThreshold int `mapstructure:"index_off_threshold"`
	MinIndexCount     int `mapstructure:"min_index_count"`
}

// SlugsConfig points at an alternate slug registry file. Empty uses the
// embedded registry.
type SlugsConfig struct {
	Path string `mapstructure:"path"`
}

// AllowlistConfig selects the allowlist source and its cache interval.
type AllowlistConfig struct {
	Backend        string `mapstructure:"backend"`
	RefreshSeconds int    `mapstructure:"refresh_seconds"`
	// Paths seeds the memory backend.
	Paths []string `mapstructure:"paths"`
}

// StateConfig selects where hysteresis state lives.
type StateConfig struct {
	Backend string `mapstructure:"backend"`
}

// InventoryConfig selects the car source.
type InventoryConfig struct {
	Backend        string `mapstructure:"backend"`
	RefreshSeconds int    `mapstructure:"refresh_seconds"`
	FixturePath    string `mapstructure:"fixture_path"`
	RemoteURL      string `mapstructure:"remote_url"`
	RemoteAPIKey   string `mapstructure:"remote_api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// StorageConfig selects where sitemap artifacts are published.
type StorageConfig struct {
	Backend      string `mapstructure:"backend"`
	BaseDir      string `mapstructure:"base_dir"`
	GCSBucket    string `mapstructure:"gcs_bucket"`
	Prefix       string `mapstructure:"prefix"`
	CacheControl string `mapstructure:"cache_control"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN                    string `mapstructure:"dsn"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeSeconds int    `mapstructure:"max_conn_lifetime_seconds"`
	Migrate                bool   `mapstructure:"migrate"`
	StateTable             string `mapstructure:"state_table"`
	AllowlistTable         string `mapstructure:"allowlist_table"`
	CarsTable              string `mapstructure:"cars_table"`
}

// RedisConfig controls the Redis client.
type RedisConfig struct {
	Addr          string `mapstructure:"addr"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	PoolSize      int    `mapstructure:"pool_size"`
	Prefix        string `mapstructure:"prefix"`
	StateTTLHours int    `mapstructure:"state_ttl_hours"`
}

// PubSubConfig holds metadata for index-transition notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
	Ordering  bool   `mapstructure:"ordering"`
}

// RateLimitConfig throttles API clients.
type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RPS               float64 `mapstructure:"rps"`
	Burst             int     `mapstructure:"burst"`
	IdleSeconds       int     `mapstructure:"idle_seconds"`
	TrustForwardedFor bool    `mapstructure:"trust_forwarded_for"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CARSEARCH")
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

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
	v.SetDefault("application.service_name", "carsearch")
	v.SetDefault("site.base_url", "http://localhost:8080")
	v.SetDefault("site.name", "カーサーチ")
	v.SetDefault("search.freshness_days", 90)
	v.SetDefault("search.default_page_size", 20)
	v.SetDefault("search.max_page_size", 100)
	v.SetDefault("seo.index_on_threshold", 30)
	v.SetDefault("seo.index_off_threshold", 10)
	v.SetDefault("seo.min_index_count", 3)
	v.SetDefault("slugs.path", "")
	v.SetDefault("allowlist.backend", BackendMemory)
	v.SetDefault("allowlist.refresh_seconds", 60)
	v.SetDefault("allowlist.paths", []string{})
	v.SetDefault("state.backend", BackendMemory)
	v.SetDefault("inventory.backend", BackendMock)
	v.SetDefault("inventory.refresh_seconds", 300)
	v.SetDefault("inventory.fixture_path", "")
	v.SetDefault("inventory.remote_url", "")
	v.SetDefault("inventory.remote_api_key", "")
	v.SetDefault("inventory.timeout_seconds", 10)
	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.base_dir", "data/site")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("storage.cache_control", "public, max-age=3600")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 8)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.max_conn_lifetime_seconds", 1800)
	v.SetDefault("db.migrate", false)
	v.SetDefault("db.state_table", "seo_state")
	v.SetDefault("db.allowlist_table", "seo_allowlist")
	v.SetDefault("db.cars_table", "cars")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.prefix", "carsearch:")
	v.SetDefault("redis.state_ttl_hours", 0)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("pubsub.ordering", false)
	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.rps", 10.0)
	v.SetDefault("ratelimit.burst", 20)
	v.SetDefault("ratelimit.idle_seconds", 600)
	v.SetDefault("ratelimit.trust_forwarded_for", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if u, err := url.Parse(c.Site.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("site.base_url must be an absolute URL")
	}
	if c.Search.DefaultPageSize <= 0 {
		return fmt.Errorf("search.default_page_size must be > 0")
	}
	if c.Search.MaxPageSize < c.Search.DefaultPageSize {
		return fmt.Errorf("search.max_page_size must be >= search.default_page_size")
	}
	if c.Search.FreshnessDays < 0 {
		return fmt.Errorf("search.freshness_days must be >= 0")
	}
	if c.SEO.IndexOffThreshold >= c.SEO.IndexOnThreshold {
		return fmt.Errorf("seo.index_off_threshold must be < seo.index_on_threshold")
	}
	if c.SEO.MinIndexCount < 1 {
		return fmt.Errorf("seo.min_index_count must be >= 1")
	}
	if err := c.validateBackends(); err != nil {
		return err
	}
	if c.RateLimit.Enabled && c.RateLimit.RPS <= 0 {
		return fmt.Errorf("ratelimit.rps must be > 0 when rate limiting is enabled")
	}
	return nil
}

func (c Config) validateBackends() error {
	if err := oneOf("allowlist.backend", c.Allowlist.Backend, BackendMemory, BackendRedis, BackendPostgres); err != nil {
		return err
	}
	if err := oneOf("state.backend", c.State.Backend, BackendMemory, BackendRedis, BackendPostgres); err != nil {
		return err
	}
	if err := oneOf("inventory.backend", c.Inventory.Backend, BackendMock, BackendRemote, BackendPostgres); err != nil {
		return err
	}
	if err := oneOf("storage.backend", c.Storage.Backend, BackendMemory, BackendLocal, BackendGCS); err != nil {
		return err
	}
	if c.usesBackend(BackendPostgres) && c.DB.DSN == "" {
		return errors.New("db.dsn must be set when a postgres backend is selected")
	}
	if c.usesBackend(BackendRedis) && c.Redis.Addr == "" {
		return errors.New("redis.addr must be set when a redis backend is selected")
	}
	if c.Inventory.Backend == BackendRemote && c.Inventory.RemoteURL == "" {
		return errors.New("inventory.remote_url must be set for the remote inventory backend")
	}
	if c.Storage.Backend == BackendGCS && c.Storage.GCSBucket == "" {
		return errors.New("storage.gcs_bucket must be set for the gcs storage backend")
	}
	return nil
}

func (c Config) usesBackend(name string) bool {
	return c.Allowlist.Backend == name || c.State.Backend == name || c.Inventory.Backend == name
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, "|"), value)
}

// AllowlistRefresh is the allowlist cache interval.
func (c Config) AllowlistRefresh() time.Duration {
	return time.Duration(c.Allowlist.RefreshSeconds) * time.Second
}

// InventoryRefresh is the inventory snapshot interval.
func (c Config) InventoryRefresh() time.Duration {
	return time.Duration(c.Inventory.RefreshSeconds) * time.Second
}

// ShutdownTimeout bounds graceful shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}
