package cacheinfra

import (
	"strings"
	"time"
)

const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config selects and configures the cache backing store.
type Config struct {
	// Backend is either "redis" or "memory".
	Backend string

	Redis  RedisConfig
	Memory MemoryConfig
}

// RedisConfig holds the connection settings for the Redis backend.
type RedisConfig struct {
	// URL is a redis:// or rediss:// connection string.
	URL string

	// PoolSize overrides the go-redis default when greater than 0.
	PoolSize int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// MemoryConfig holds the settings for the in-process sturdyc backend.
type MemoryConfig struct {
	// Capacity defines the maximum number of entries that the cache can store.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of cache shards for concurrent access.
	// Must be greater than 0. Default: 256
	NumShards int

	// MaxTTL caps the lifetime of any entry. Per-entry TTLs longer than MaxTTL
	// are shortened to it.
	MaxTTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the cache reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often expired entries are swept.
	// Zero value uses the sturdyc default.
	EvictionInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		Backend: BackendMemory,
		Redis: RedisConfig{
			URL:          "redis://localhost:6379/0",
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Memory: MemoryConfig{
			Capacity:           10000,
			NumShards:          256,
			MaxTTL:             time.Hour,
			EvictionPercentage: 10,
		},
	}
}

// Validate checks if the configuration values are valid.
// Only the section of the selected backend is checked.
func (c Config) Validate() error {
	switch strings.ToLower(c.Backend) {
	case BackendRedis:
		return c.Redis.Validate()
	case BackendMemory:
		return c.Memory.Validate()
	default:
		return &ConfigError{Field: "Backend", Message: "must be one of redis, memory"}
	}
}

// Validate checks the Redis settings.
func (c RedisConfig) Validate() error {
	if c.URL == "" {
		return &ConfigError{Field: "Redis.URL", Message: "cannot be empty"}
	}
	if c.PoolSize < 0 {
		return &ConfigError{Field: "Redis.PoolSize", Message: "must be non-negative"}
	}
	if c.DialTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return &ConfigError{Field: "Redis.Timeouts", Message: "must be non-negative"}
	}
	return nil
}

// Validate checks the in-process store settings.
func (c MemoryConfig) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Memory.Capacity", Message: "must be greater than 0"}
	}

	if c.NumShards <= 0 {
		return &ConfigError{Field: "Memory.NumShards", Message: "must be greater than 0"}
	}

	if c.MaxTTL <= 0 {
		return &ConfigError{Field: "Memory.MaxTTL", Message: "must be greater than 0"}
	}

	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "Memory.EvictionPercentage", Message: "must be between 1 and 100"}
	}

	if c.EvictionInterval < 0 {
		return &ConfigError{Field: "Memory.EvictionInterval", Message: "must be non-negative"}
	}

	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}
