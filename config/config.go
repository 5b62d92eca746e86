package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const defaultJWTSecret = "change-this-secret-key"

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Cache     CacheConfig
	Metrics   MetricsConfig
}

type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	Env  string `envconfig:"ENV" default:"development"`
}

type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"imuhira"`
	Password string `envconfig:"DB_PASSWORD" default:"imuhira_password"`
	DBName   string `envconfig:"DB_NAME" default:"imuhira_db"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     string `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// AuthConfig guards the admin routes. Auth is off unless Enabled is set.
type AuthConfig struct {
	Enabled        bool   `envconfig:"ADMIN_AUTH_ENABLED" default:"false"`
	Username       string `envconfig:"ADMIN_USERNAME" default:"admin"`
	PasswordHash   string `envconfig:"ADMIN_PASSWORD_HASH"`
	JWTSecret      string `envconfig:"JWT_SECRET" default:"change-this-secret-key"`
	JWTExpiryHours int    `envconfig:"JWT_EXPIRY_HOURS" default:"24"`
}

type RateLimitConfig struct {
	WritesPerSecond int `envconfig:"RATE_LIMIT_WRITES_PER_SECOND" default:"5"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type CacheConfig struct {
	DebateTTL time.Duration `envconfig:"CACHE_DEBATE_TTL" default:"5m"`
}

type MetricsConfig struct {
	Enabled bool `envconfig:"METRICS_ENABLED" default:"false"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	origins := cfg.CORS.AllowedOrigins[:0]
	for _, origin := range cfg.CORS.AllowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return nil, fmt.Errorf("CORS_ALLOWED_ORIGINS must list at least one origin")
	}
	cfg.CORS.AllowedOrigins = origins

	if cfg.Auth.Enabled && cfg.IsProduction() && cfg.Auth.JWTSecret == defaultJWTSecret {
		return nil, fmt.Errorf("JWT_SECRET must be set in production")
	}
	if cfg.Auth.Enabled && cfg.Auth.PasswordHash == "" {
		return nil, fmt.Errorf("ADMIN_PASSWORD_HASH must be set when admin auth is enabled")
	}

	return cfg, nil
}

// IsProduction reports whether error details must be hidden from clients
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Env, "production")
}

// GetDSN returns the database connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}
