package config

import (
	"fmt"
	"strings"
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
	Server   ServerConfig
	App      AppConfig
	Security SecurityConfig
	MFC      MFCConfig
	LogStore LogStoreConfig
	Cache    CacheConfig
	Database DatabaseConfig
	Postgres PostgresConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"45s"`
	MaxUploadBytes  int64         `envconfig:"SERVER_MAX_UPLOAD_BYTES" default:"10485760"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"mfc-availability"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// SecurityConfig holds API access settings.
type SecurityConfig struct {
	// Empty disables API key auth.
	APIKeys        []string `envconfig:"API_KEYS"`
	RateLimit      int      `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// MFCConfig holds vendor API settings.
type MFCConfig struct {
	PublicKey      string        `envconfig:"MFC_PUBLIC_KEY"`
	PrivateKey     string        `envconfig:"MFC_PRIVATE_KEY"`
	Endpoint       string        `envconfig:"MFC_ENDPOINT" default:"https://myfigurecollection.net/papi.php?mode=set-availability"`
	RequestTimeout time.Duration `envconfig:"MFC_REQUEST_TIMEOUT" default:"30s"`
}

// LogStoreConfig selects where submission log entries are persisted.
type LogStoreConfig struct {
	Type  string `envconfig:"LOG_STORE_TYPE" default:"file"` // file, sqlite, mysql, or postgres
	Path  string `envconfig:"LOG_FILE_PATH" default:"./logs/app.log"`
	Fsync bool   `envconfig:"LOG_FILE_FSYNC" default:"false"`
	// SQLite settings
	SQLitePath string `envconfig:"LOG_SQLITE_PATH" default:"./data/logs.db"`
}

// CacheConfig holds batch progress cache settings.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"24h"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix   string `envconfig:"REDIS_PREFIX" default:"mfc"`
}

// DatabaseConfig holds MySQL connection settings for the mysql log store.
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"3306"`
	Name     string `envconfig:"DB_NAME" default:"mfc"`
	User     string `envconfig:"DB_USER" default:"root"`
	Password string `envconfig:"DB_PASS" default:""`
}

// PostgresConfig holds PostgreSQL settings for the postgres log store.
type PostgresConfig struct {
	Host     string `envconfig:"PG_HOST" default:"localhost"`
	Port     int    `envconfig:"PG_PORT" default:"5432"`
	Name     string `envconfig:"PG_NAME" default:"mfc"`
	User     string `envconfig:"PG_USER" default:"postgres"`
	Password string `envconfig:"PG_PASS" default:""`
	SSLMode  string `envconfig:"PG_SSLMODE" default:"disable"`
}

// DSN returns the PostgreSQL connection string.
func (p *PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Name, p.SSLMode)
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// DSN returns the MySQL data source name.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// AuthEnabled reports whether any API key is configured.
func (s *SecurityConfig) AuthEnabled() bool {
	return len(s.Keys()) > 0
}

// Keys returns the configured API keys with blanks removed.
func (s *SecurityConfig) Keys() []string {
	keys := make([]string, 0, len(s.APIKeys))
	for _, k := range s.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	switch cfg.LogStore.Type {
	case "file", "sqlite", "mysql", "postgres":
	default:
		return nil, fmt.Errorf("unsupported LOG_STORE_TYPE %q", cfg.LogStore.Type)
	}
	switch cfg.Cache.Type {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("unsupported CACHE_TYPE %q", cfg.Cache.Type)
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
