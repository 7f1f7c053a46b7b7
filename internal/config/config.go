// Package config provides configuration management for the NFT 3D-model scanner.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Upstream  UpstreamConfig
	Gateways  GatewayConfig
	Cache     CacheConfig
	Database  DatabaseConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
	// AdminToken guards credential updates; empty disables them
	AdminToken string
}

// UpstreamConfig holds the NFT provider (Alchemy) settings
type UpstreamConfig struct {
	// APIKey seeds the credential store when it is empty
	APIKey          string
	BaseURLTemplate string // slug, key
	PageSize        int
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	PageDelay       time.Duration
	TokenURITimeout time.Duration
	RequestTimeout  time.Duration
	MaxPages        int
}

// GatewayConfig holds the IPFS gateways probed in order
type GatewayConfig struct {
	URLs         []string
	ProbeTimeout time.Duration
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	Backend         string // redis or postgres
	MemoryTTL       time.Duration
	NFTMetadataTTL  time.Duration
	AssetPreviewTTL time.Duration
	WalletDataTTL   time.Duration
	CleanupInterval time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// RateLimitConfig holds the per-client API limit
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// DefaultGateways is the fixed gateway probe order
var DefaultGateways = []string{
	"https://ipfs.io/ipfs/",
	"https://gateway.pinata.cloud/ipfs/",
	"https://cloudflare-ipfs.com/ipfs/",
	"https://dweb.link/ipfs/",
}

// Cache backends
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:       getEnv("SERVER_PORT", "8080"),
			Host:       getEnv("SERVER_HOST", "0.0.0.0"),
			AdminToken: strings.TrimSpace(getEnv("ADMIN_TOKEN", "")),
		},
		Upstream: UpstreamConfig{
			APIKey:          getEnv("ALCHEMY_API_KEY", ""),
			BaseURLTemplate: getEnv("ALCHEMY_BASE_URL", "https://%s.g.alchemy.com/v2/%s"),
			PageSize:        getEnvAsInt("ALCHEMY_PAGE_SIZE", 20),
			MaxRetries:      getEnvAsInt("ALCHEMY_MAX_RETRIES", 3),
			BaseDelay:       getEnvAsDuration("ALCHEMY_RETRY_BASE_DELAY", time.Second),
			MaxDelay:        getEnvAsDuration("ALCHEMY_RETRY_MAX_DELAY", 60*time.Second),
			PageDelay:       getEnvAsDuration("ALCHEMY_PAGE_DELAY", 2*time.Second),
			TokenURITimeout: getEnvAsDuration("ALCHEMY_TOKEN_URI_TIMEOUT", 30*time.Second),
			RequestTimeout:  getEnvAsDuration("ALCHEMY_REQUEST_TIMEOUT", 60*time.Second),
			MaxPages:        getEnvAsInt("DISCOVERY_MAX_PAGES", 500),
		},
		Gateways: GatewayConfig{
			URLs:         getEnvAsList("IPFS_GATEWAYS", DefaultGateways),
			ProbeTimeout: getEnvAsDuration("IPFS_PROBE_TIMEOUT", 10*time.Second),
		},
		Cache: CacheConfig{
			Backend:         strings.ToLower(getEnv("CACHE_BACKEND", BackendRedis)),
			MemoryTTL:       getEnvAsDuration("CACHE_MEMORY_TTL", 5*time.Minute),
			NFTMetadataTTL:  getEnvAsDuration("CACHE_NFT_METADATA_TTL", time.Hour),
			AssetPreviewTTL: getEnvAsDuration("CACHE_ASSET_PREVIEW_TTL", 24*time.Hour),
			WalletDataTTL:   getEnvAsDuration("CACHE_WALLET_DATA_TTL", 5*time.Minute),
			CleanupInterval: getEnvAsDuration("CACHE_CLEANUP_INTERVAL", 10*time.Minute),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "nft3d_scanner"),
				User:           getEnv("POSTGRES_USER", "scanner"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 10),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings the services cannot run with
func (c *Config) Validate() error {
	if c.Cache.Backend != BackendRedis && c.Cache.Backend != BackendPostgres {
		return fmt.Errorf("CACHE_BACKEND must be %q or %q, got %q", BackendRedis, BackendPostgres, c.Cache.Backend)
	}
	if c.Upstream.PageSize <= 0 {
		return fmt.Errorf("ALCHEMY_PAGE_SIZE must be positive")
	}
	if c.Upstream.MaxRetries < 0 {
		return fmt.Errorf("ALCHEMY_MAX_RETRIES cannot be negative")
	}
	if c.Upstream.PageDelay <= 0 {
		return fmt.Errorf("ALCHEMY_PAGE_DELAY must be positive")
	}
	if c.Upstream.MaxPages <= 0 {
		return fmt.Errorf("DISCOVERY_MAX_PAGES must be positive")
	}
	if len(c.Gateways.URLs) == 0 {
		return fmt.Errorf("IPFS_GATEWAYS cannot be empty")
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated variable, dropping empty items
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return append([]string(nil), defaultValue...)
	}

	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaultValue...)
	}
	return out
}
