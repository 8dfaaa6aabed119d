package config

import (
	"os"
	"strconv"
	"strings"
)

const defaultSizeLimit = 10_000_000_000

// Config holds all configuration for the server
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Auth      AuthConfig
	Cache     CacheConfig
	Upstream  UpstreamConfig
	Logging   LoggingConfig
	RateLimit RateLimitConfig
	Proxy     ProxyConfig
	Metrics   MetricsConfig

	// Providers are the explorers this server fronts, keyed by provider name.
	Providers Providers
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// StorageConfig holds durable cache storage configuration
type StorageConfig struct {
	Type     string // "sqlite" or "postgres"
	Postgres PostgresConfig
	SQLite   SQLiteConfig

	// SizeLimitBytes bounds the total payload size of the durable cache; 0 disables culling.
	SizeLimitBytes int64
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	URL string
}

// SQLiteConfig holds SQLite settings
type SQLiteConfig struct {
	Path string
}

// AuthConfig holds authentication settings for administrative endpoints
type AuthConfig struct {
	Type string // "none" or "api-key"
}

// CacheConfig holds settings for the in-memory cache tier
type CacheConfig struct {
	// TransientTTLSeconds is how long raw upstream responses are kept in memory.
	TransientTTLSeconds int
	// TransientMaxEntries bounds the in-memory tier; 0 means unbounded.
	TransientMaxEntries int
}

// UpstreamConfig holds settings for calls to explorers and RPC nodes
type UpstreamConfig struct {
	ProvidersFile  string
	TimeoutSeconds int
	UserAgent      string
	RPCTimeout     int // seconds
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string
	Format string // "text" or "json"
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	Enabled        bool
	RequestsPerMin int
	BurstSize      int
	CleanupMinutes int
}

// ProxyConfig holds trusted proxy settings for X-Forwarded-For handling
type ProxyConfig struct {
	TrustProxy     bool
	TrustedProxies []string // CIDR notation
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled bool
}

// Load loads configuration from environment variables and the providers file
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvInt("PORT", 8080),
			Host:         getEnv("HOST", "0.0.0.0"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 90),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 120),
		},
		Storage: StorageConfig{
			Type: getEnv("STORAGE_TYPE", "sqlite"),
			Postgres: PostgresConfig{
				URL: getEnv("DATABASE_URL", ""),
			},
			SQLite: SQLiteConfig{
				Path: getEnv("SQLITE_PATH", "./cache/explorer-cache.db"),
			},
			SizeLimitBytes: getEnvInt64("CACHE_SIZE_LIMIT_BYTES", defaultSizeLimit),
		},
		Auth: AuthConfig{
			Type: getEnv("AUTH_TYPE", "none"),
		},
		Cache: CacheConfig{
			TransientTTLSeconds: getEnvInt("TRANSIENT_CACHE_TTL_SECONDS", 3600),
			TransientMaxEntries: getEnvInt("TRANSIENT_CACHE_MAX_ENTRIES", 10000),
		},
		Upstream: UpstreamConfig{
			ProvidersFile:  getEnv("PROVIDERS_CONFIG", "./config.toml"),
			TimeoutSeconds: getEnvInt("UPSTREAM_TIMEOUT_SECONDS", 30),
			UserAgent:      getEnv("UPSTREAM_USER_AGENT", "Mozilla/5.0"),
			RPCTimeout:     getEnvInt("RPC_TIMEOUT_SECONDS", 15),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvBool("RATE_LIMIT_ENABLED", false),
			RequestsPerMin: getEnvInt("RATE_LIMIT_RPM", 600),
			BurstSize:      getEnvInt("RATE_LIMIT_BURST", 100),
			CleanupMinutes: getEnvInt("RATE_LIMIT_CLEANUP_MINUTES", 10),
		},
		Proxy: ProxyConfig{
			TrustProxy:     getEnvBool("TRUST_PROXY", false),
			TrustedProxies: getEnvStringSlice("TRUSTED_PROXIES", []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
		},
	}

	// If DATABASE_URL is set, default to postgres
	if cfg.Storage.Postgres.URL != "" && cfg.Storage.Type == "sqlite" {
		cfg.Storage.Type = "postgres"
	}

	providers, err := LoadProviders(cfg.Upstream.ProvidersFile)
	if err != nil {
		return nil, err
	}
	cfg.Providers = providers

	return cfg, nil
}

// LoadStorage loads only the settings needed to open the durable store.
// CLI maintenance commands use it so they work without a providers file.
func LoadStorage() StorageConfig {
	cfg := StorageConfig{
		Type:     getEnv("STORAGE_TYPE", "sqlite"),
		Postgres: PostgresConfig{URL: getEnv("DATABASE_URL", "")},
		SQLite:   SQLiteConfig{Path: getEnv("SQLITE_PATH", "./cache/explorer-cache.db")},

		SizeLimitBytes: getEnvInt64("CACHE_SIZE_LIMIT_BYTES", defaultSizeLimit),
	}
	if cfg.Postgres.URL != "" && cfg.Type == "sqlite" {
		cfg.Type = "postgres"
	}
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		// Accept float notation such as "10e9"
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return int64(f)
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
