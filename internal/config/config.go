package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server ServerConfig
	App    AppConfig
	Log    LogConfig
	Bling  BlingConfig
	Cache  CacheConfig
	Store  StoreConfig
	Sync   SyncConfig
}

// ServerConfig holds admin HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"bling-mirror"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	AdminAPIKey string `envconfig:"ADMIN_API_KEY" default:""` // empty disables admin auth
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"`
}

// BlingConfig holds upstream API and auth settings.
type BlingConfig struct {
	APIBaseURL       string        `envconfig:"BLING_API_BASE_URL" default:"https://www.bling.com.br/Api/v3"`
	AuthBaseURL      string        `envconfig:"BLING_AUTH_BASE_URL"`
	AuthSecret       string        `envconfig:"BLING_AUTH_SECRET"`
	Tenant           string        `envconfig:"BLING_TENANT" default:"lojaodositio"`
	ThrottleInterval time.Duration `envconfig:"BLING_THROTTLE_INTERVAL" default:"4s"`
	TokenTTL         time.Duration `envconfig:"BLING_TOKEN_TTL" default:"5h"`
	HTTPTimeout      time.Duration `envconfig:"BLING_HTTP_TIMEOUT" default:"0s"` // 0 = no timeout

	ReceivablePaymentMethodID string        `envconfig:"BLING_RECEIVABLE_PAYMENT_METHOD_ID" default:"4951136"`
	ReceivableSituation       string        `envconfig:"BLING_RECEIVABLE_SITUATION" default:"1"`
	ReceivableWindow          time.Duration `envconfig:"BLING_RECEIVABLE_WINDOW" default:"720h"`
}

// CacheConfig holds token cache backend settings.
type CacheConfig struct {
	Type string `envconfig:"TOKEN_CACHE_TYPE" default:"memory"` // memory or redis

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix   string `envconfig:"REDIS_KEY_PREFIX" default:"bling:token"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	Type string `envconfig:"STORE_TYPE" default:"mongodb"` // mongodb, sqlite, postgres or mysql

	// MongoDB settings
	MongoURI      string `envconfig:"MONGO_URI"`
	MongoDatabase string `envconfig:"MONGO_DATABASE"`

	// SQL settings (sqlite path or driver DSN)
	DSN string `envconfig:"STORE_DSN" default:"./data/bling.db"`

	Collections CollectionConfig
}

// CollectionConfig names the per-entity collections (tables for SQL stores).
type CollectionConfig struct {
	Sellers        string `envconfig:"MONGO_COLLECTION_SELLERS" default:"sellers"`
	PaymentMethods string `envconfig:"MONGO_COLLECTION_PAYMENT_METHODS" default:"payment_methods"`
	Modules        string `envconfig:"MONGO_COLLECTION_MODULOS" default:"modulos"`
	Receivables    string `envconfig:"MONGO_COLLECTION_RECEIVABLE" default:"receivables"`
	SyncRuns       string `envconfig:"MONGO_COLLECTION_SYNC_RUNS" default:"sync_runs"`
}

// SyncConfig holds scheduler settings.
type SyncConfig struct {
	Interval   time.Duration `envconfig:"SYNC_INTERVAL" default:"24h"`
	RunOnStart bool          `envconfig:"SYNC_RUN_ON_START" default:"true"`
	Timezone   string        `envconfig:"SYNC_TIMEZONE" default:"Local"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsMongo reports whether the document store is MongoDB.
func (s *StoreConfig) IsMongo() bool {
	return s.Type == "mongodb" || s.Type == "mongo"
}

// Location resolves the configured timezone used for "today" boundaries.
func (s *SyncConfig) Location() (*time.Location, error) {
	if s.Timezone == "" || s.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// Validate checks the settings the sync loop cannot run without.
func (c *Config) Validate() error {
	var errs []error

	if c.Bling.AuthBaseURL == "" {
		errs = append(errs, errors.New("BLING_AUTH_BASE_URL is required"))
	}
	if c.Bling.AuthSecret == "" {
		errs = append(errs, errors.New("BLING_AUTH_SECRET is required"))
	}
	if c.Bling.Tenant == "" {
		errs = append(errs, errors.New("BLING_TENANT is required"))
	}
	if c.Bling.ThrottleInterval < 0 {
		errs = append(errs, errors.New("BLING_THROTTLE_INTERVAL must not be negative"))
	}

	switch c.Store.Type {
	case "mongodb", "mongo":
		if c.Store.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required"))
		}
		if c.Store.MongoDatabase == "" {
			errs = append(errs, errors.New("MONGO_DATABASE is required"))
		}
	case "sqlite", "postgres", "postgresql", "mysql":
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("STORE_DSN is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported STORE_TYPE %q", c.Store.Type))
	}

	switch c.Cache.Type {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("unsupported TOKEN_CACHE_TYPE %q", c.Cache.Type))
	}

	if c.Sync.Interval <= 0 {
		errs = append(errs, errors.New("SYNC_INTERVAL must be positive"))
	}

	return errors.Join(errs...)
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
