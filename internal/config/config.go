// Package config loads the process configuration from STOREFRONT_* environment
// variables.
package config

import (
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-storefront-cache/cache"
	"github.com/goliatone/go-storefront-cache/internal/cacheinfra"
	"github.com/goliatone/go-storefront-cache/internal/database"
	"github.com/goliatone/go-storefront-cache/internal/logging"
	"github.com/goliatone/go-storefront-cache/invalidation"
)

// Prefix is prepended to every variable name.
const Prefix = "STOREFRONT_"

type Config struct {
	HTTP         HTTPConfig         `envPrefix:"HTTP_"`
	Cache        CacheConfig        `envPrefix:"CACHE_"`
	Database     database.Config    `envPrefix:"DATABASE_"`
	Analytics    AnalyticsConfig    `envPrefix:"ANALYTICS_"`
	Revalidation RevalidationConfig `envPrefix:"REVALIDATION_"`
	Log          logging.Config     `envPrefix:"LOG_"`
}

type HTTPConfig struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	// AdminToken guards the cache and invalidation endpoints. Empty disables
	// the check.
	AdminToken string `env:"ADMIN_TOKEN"`
}

type CacheConfig struct {
	Backend        string        `env:"BACKEND" envDefault:"memory"`
	RedisURL       string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisPoolSize  int           `env:"REDIS_POOL_SIZE" envDefault:"0"`
	DefaultTTL     time.Duration `env:"DEFAULT_TTL" envDefault:"5m"`
	FetchTimeout   time.Duration `env:"FETCH_TIMEOUT" envDefault:"10s"`
	Codec          string        `env:"CODEC" envDefault:"msgpack"`
	ScanPageSize   int64         `env:"SCAN_PAGE_SIZE" envDefault:"100"`
	MemoryCapacity int           `env:"MEMORY_CAPACITY" envDefault:"10000"`
	MaxTTL         time.Duration `env:"MAX_TTL" envDefault:"1h"`
	CatalogTTL     time.Duration `env:"CATALOG_TTL" envDefault:"10m"`
}

type AnalyticsConfig struct {
	Timezone     string        `env:"TIMEZONE" envDefault:"UTC"`
	CacheTTL     time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	WarmSchedule string        `env:"WARM_SCHEDULE"`
	WarmStores   []string      `env:"WARM_STORES" envSeparator:","`
	WarmPresets  []string      `env:"WARM_PRESETS" envSeparator:"," envDefault:"7d,30d"`
	// Retention is how long events are kept. Zero keeps them forever.
	Retention time.Duration `env:"RETENTION" envDefault:"0s"`
}

type RevalidationConfig struct {
	WebhookURL    string        `env:"WEBHOOK_URL"`
	Secret        string        `env:"SECRET"`
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"5s"`
	MaxRetries    uint64        `env:"MAX_RETRIES" envDefault:"3"`
	DashboardPath string        `env:"DASHBOARD_PATH" envDefault:"/dashboard/products"`
}

// Load parses the process environment.
func Load() (Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom parses vars instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, goerrors.Wrap(err, goerrors.CategoryValidation, "parse environment")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	err := validation.ValidateStruct(&c.HTTP,
		validation.Field(&c.HTTP.Addr, validation.Required),
		validation.Field(&c.HTTP.ReadTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.HTTP.WriteTimeout, validation.Min(time.Duration(0))),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid http configuration")
	}

	err = validation.ValidateStruct(&c.Cache,
		validation.Field(&c.Cache.Backend, validation.Required, validation.In(cacheinfra.BackendMemory, cacheinfra.BackendRedis)),
		validation.Field(&c.Cache.ScanPageSize, validation.Min(int64(1))),
		validation.Field(&c.Cache.CatalogTTL, validation.Min(time.Second)),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid cache configuration")
	}
	if err := c.Cache.ToManager().Validate(); err != nil {
		return err
	}
	if err := c.Cache.ToInfra().Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid cache backend configuration")
	}

	if err := c.Database.Validate(); err != nil {
		return err
	}

	err = validation.ValidateStruct(&c.Analytics,
		validation.Field(&c.Analytics.Timezone, validation.Required, validation.By(validTimezone)),
		validation.Field(&c.Analytics.CacheTTL, validation.Min(time.Second)),
		validation.Field(&c.Analytics.WarmStores, validation.When(c.Analytics.WarmSchedule != "", validation.Required)),
		validation.Field(&c.Analytics.Retention, validation.Min(time.Duration(0))),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid analytics configuration")
	}

	if err := c.Log.Validate(); err != nil {
		return goerrors.FromOzzoValidation(err, "invalid log configuration")
	}
	return nil
}

func validTimezone(value any) error {
	_, err := time.LoadLocation(value.(string))
	return err
}

// Location resolves the default analytics timezone.
func (c AnalyticsConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ToInfra maps the cache section onto the backing store configuration.
func (c CacheConfig) ToInfra() cacheinfra.Config {
	cfg := cacheinfra.DefaultConfig()
	cfg.Backend = strings.ToLower(c.Backend)
	cfg.Redis.URL = c.RedisURL
	cfg.Redis.PoolSize = c.RedisPoolSize
	cfg.Memory.Capacity = c.MemoryCapacity
	cfg.Memory.MaxTTL = c.MaxTTL
	return cfg
}

// ToManager maps the cache section onto the read-through manager
// configuration.
func (c CacheConfig) ToManager() cache.Config {
	return cache.Config{
		DefaultTTL:   c.DefaultTTL,
		FetchTimeout: c.FetchTimeout,
		Codec:        c.Codec,
	}
}

// Enabled reports whether a webhook revalidator should be built.
func (c RevalidationConfig) Enabled() bool {
	return c.WebhookURL != ""
}

func (c RevalidationConfig) Webhook() invalidation.WebhookConfig {
	return invalidation.WebhookConfig{
		URL:        c.WebhookURL,
		Secret:     c.Secret,
		Timeout:    c.Timeout,
		MaxRetries: c.MaxRetries,
	}
}
