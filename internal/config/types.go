package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Redis     RedisConfig     `yaml:"redis" mapstructure:"redis"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	PII       PIIConfig       `yaml:"pii" mapstructure:"pii"`
	Injection InjectionConfig `yaml:"injection" mapstructure:"injection"`
	Security  SecurityConfig  `yaml:"security" mapstructure:"security"`
	Events    EventsConfig    `yaml:"events" mapstructure:"events"`
	Audit     AuditConfig     `yaml:"audit" mapstructure:"audit"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host           string        `yaml:"host" mapstructure:"host"`
	Port           int           `yaml:"port" mapstructure:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	CORS           CORSConfig    `yaml:"cors" mapstructure:"cors"`
}

// CORSConfig controls cross-origin access to the HTTP API
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" mapstructure:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// RedisConfig contains the shared backing-store connection settings.
// The cache adapter and the rate limiter share one client.
type RedisConfig struct {
	URL            string        `yaml:"url" mapstructure:"url"`
	PoolSize       int           `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns   int           `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
	DialTimeout    time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`
	CommandTimeout time.Duration `yaml:"command_timeout" mapstructure:"command_timeout"`
}

// CacheConfig contains response-cache configuration
type CacheConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	// KeyPrefix namespaces every cache key; changing it invalidates the cache.
	KeyPrefix string    `yaml:"key_prefix" mapstructure:"key_prefix"`
	TTL       TTLConfig `yaml:"ttl" mapstructure:"ttl"`
	// LongTTLEndpoints lists endpoint tags whose clean results may use the
	// long TTL class (explicitly idempotent lookups).
	LongTTLEndpoints []string `yaml:"long_ttl_endpoints" mapstructure:"long_ttl_endpoints"`
}

// TTLConfig maps the three TTL classes to durations
type TTLConfig struct {
	Short  time.Duration `yaml:"short" mapstructure:"short"`
	Medium time.Duration `yaml:"medium" mapstructure:"medium"`
	Long   time.Duration `yaml:"long" mapstructure:"long"`
}

// RateLimitConfig contains distributed rate limiter configuration
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// FailOpen selects the store-outage policy: true admits traffic (bounded
	// by a best-effort local limiter), false denies with OutageRetryAfter.
	FailOpen         bool          `yaml:"fail_open" mapstructure:"fail_open"`
	OutageRetryAfter time.Duration `yaml:"outage_retry_after" mapstructure:"outage_retry_after"`
	// TiersFile points at the external per-caller tier table (YAML).
	TiersFile   string       `yaml:"tiers_file" mapstructure:"tiers_file"`
	DefaultTier string       `yaml:"default_tier" mapstructure:"default_tier"`
	Source      BucketConfig `yaml:"source" mapstructure:"source"`
	Endpoint    BucketConfig `yaml:"endpoint" mapstructure:"endpoint"`
	Global      BucketConfig `yaml:"global" mapstructure:"global"`
}

// BucketConfig describes one token bucket: capacity and refill per second
type BucketConfig struct {
	Capacity     float64 `yaml:"capacity" mapstructure:"capacity"`
	RefillPerSec float64 `yaml:"refill_per_sec" mapstructure:"refill_per_sec"`
}

// PIIConfig contains sensitive-data detector configuration
type PIIConfig struct {
	Enabled          bool    `yaml:"enabled" mapstructure:"enabled"`
	PatternSet       string  `yaml:"pattern_set" mapstructure:"pattern_set"` // strict, standard, or relaxed
	EnableValidation bool    `yaml:"enable_validation" mapstructure:"enable_validation"`
	EnableContext    bool    `yaml:"enable_context" mapstructure:"enable_context"`
	ContextWindow    int     `yaml:"context_window" mapstructure:"context_window"`
	MinConfidence    float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
}

// InjectionConfig contains injection detector configuration
type InjectionConfig struct {
	Enabled       bool    `yaml:"enabled" mapstructure:"enabled"`
	PatternSet    string  `yaml:"pattern_set" mapstructure:"pattern_set"`
	MinConfidence float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
}

// SecurityConfig contains cross-cutting pipeline policy
type SecurityConfig struct {
	// MaxTextChars bounds accepted input length in runes.
	MaxTextChars int `yaml:"max_text_chars" mapstructure:"max_text_chars"`
	// BlockOnHigh short-circuits requests carrying a High-severity injection
	// match with a 403 instead of flagging them.
	BlockOnHigh bool `yaml:"block_on_high" mapstructure:"block_on_high"`
}

// EventsConfig contains WebSocket event hub configuration
type EventsConfig struct {
	Enabled   bool                 `yaml:"enabled" mapstructure:"enabled"`
	Path      string               `yaml:"path" mapstructure:"path"`
	Username  string               `yaml:"username" mapstructure:"username"`
	Password  string               `yaml:"password" mapstructure:"password"`
	Broadcast EventBroadcastConfig `yaml:"broadcast" mapstructure:"broadcast"`
}

// EventBroadcastConfig toggles event types on the hub
type EventBroadcastConfig struct {
	PIIDetections       bool `yaml:"pii_detections" mapstructure:"pii_detections"`
	InjectionDetections bool `yaml:"injection_detections" mapstructure:"injection_detections"`
	RateLimitDenials    bool `yaml:"rate_limit_denials" mapstructure:"rate_limit_denials"`
	System              bool `yaml:"system" mapstructure:"system"`
	Connections         bool `yaml:"connections" mapstructure:"connections"`
}

// AuditConfig contains the flagged-traffic audit trail configuration
type AuditConfig struct {
	// Backend selects the sink: none, postgres, or parquet.
	Backend    string              `yaml:"backend" mapstructure:"backend"`
	BufferSize int                 `yaml:"buffer_size" mapstructure:"buffer_size"`
	Postgres   AuditPostgresConfig `yaml:"postgres" mapstructure:"postgres"`
	Parquet    AuditParquetConfig  `yaml:"parquet" mapstructure:"parquet"`
}

// AuditPostgresConfig contains the Postgres sink settings
type AuditPostgresConfig struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
}

// AuditParquetConfig contains the Parquet file sink settings
type AuditParquetConfig struct {
	Dir           string `yaml:"dir" mapstructure:"dir"`
	EventsPerFile int    `yaml:"events_per_file" mapstructure:"events_per_file"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string        `yaml:"level" mapstructure:"level"`
	Format string        `yaml:"format" mapstructure:"format"` // json or console
	File   LogFileConfig `yaml:"file" mapstructure:"file"`
}

// LogFileConfig contains file logging configuration
type LogFileConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    60 * time.Second,
			RequestTimeout: 30 * time.Second,
			MaxBodyBytes:   10 << 20, // 10MB
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
			},
		},
		Redis: RedisConfig{
			URL:            "redis://localhost:6379",
			PoolSize:       10,
			MinIdleConns:   2,
			DialTimeout:    time.Second,
			CommandTimeout: 100 * time.Millisecond,
		},
		Cache: CacheConfig{
			Enabled:   true,
			KeyPrefix: "reflexgate:process",
			TTL: TTLConfig{
				Short:  60 * time.Second,
				Medium: 300 * time.Second,
				Long:   3600 * time.Second,
			},
		},
		RateLimit: RateLimitConfig{
			Enabled:          true,
			FailOpen:         true,
			OutageRetryAfter: time.Second,
			TiersFile:        "",
			DefaultTier:      "free",
			Source:           BucketConfig{Capacity: 100, RefillPerSec: 100.0 / 3600.0},
			Endpoint:         BucketConfig{Capacity: 1000, RefillPerSec: 100},
			Global:           BucketConfig{Capacity: 5000, RefillPerSec: 500},
		},
		PII: PIIConfig{
			Enabled:          true,
			PatternSet:       "standard",
			EnableValidation: true,
			EnableContext:    true,
			ContextWindow:    10,
			MinConfidence:    0.5,
		},
		Injection: InjectionConfig{
			Enabled:       true,
			PatternSet:    "standard",
			MinConfidence: 0.3,
		},
		Security: SecurityConfig{
			MaxTextChars: 100000,
			BlockOnHigh:  false,
		},
		Events: EventsConfig{
			Enabled:  false,
			Path:     "/ws",
			Username: "reflexgate",
			Password: "",
			Broadcast: EventBroadcastConfig{
				PIIDetections:       true,
				InjectionDetections: true,
				RateLimitDenials:    true,
				System:              true,
				Connections:         false,
			},
		},
		Audit: AuditConfig{
			Backend:    "none",
			BufferSize: 1024,
			Postgres: AuditPostgresConfig{
				DatabaseURL:     "postgres://localhost:5432/reflexgate?sslmode=disable",
				MaxOpenConns:    10,
				MaxIdleConns:    2,
				ConnMaxLifetime: 30 * time.Minute,
			},
			Parquet: AuditParquetConfig{
				Dir:           "audit",
				EventsPerFile: 10000,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File: LogFileConfig{
				Enabled: false,
				Path:    "logs/reflexgate.log",
			},
		},
	}
}
