package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/pendergraft/explorer-cache/internal/config"
)

// CacheStore handles durable cache entries
type CacheStore interface {
	GetEntry(ctx context.Context, key CacheKey) ([]byte, error)
	PutEntry(ctx context.Context, key CacheKey, payload []byte) error
	DeleteEntry(ctx context.Context, key CacheKey) (bool, error)
	ListEntryKeys(ctx context.Context) ([]CacheKey, error)
	Stats(ctx context.Context) (*Stats, error)
}

// APIKeyStore handles API key operations
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, name string) (key string, err error)
	ValidateAPIKey(ctx context.Context, key string) (*APIKey, error)
	ListAPIKeys(ctx context.Context) ([]APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) error
}

// Store combines all storage interfaces with lifecycle methods.
// Domain services define their own minimal interfaces based on their actual usage.
type Store interface {
	CacheStore
	APIKeyStore

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error
}

// CacheKey identifies a durable entry. Address is stored exactly as given;
// callers pass the checksummed form.
type CacheKey struct {
	Provider string
	Module   string
	Action   string
	Address  string
}

// Entry is a stored explorer response
type Entry struct {
	ID        string
	Key       CacheKey
	Payload   []byte
	SizeBytes int64
	StoredAt  int64 // unix nanoseconds
}

// Stats summarizes the durable cache. Hits and Misses count GetEntry
// outcomes since the store was opened.
type Stats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Count     int64 `json:"count"`
	SizeBytes int64 `json:"size"`
}

// APIKey represents an API key
type APIKey struct {
	ID         string
	Name       string
	KeyHash    string
	CreatedAt  string
	LastUsedAt string
	RevokedAt  string
}

// counters tracks lookup outcomes in memory
type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func (c *counters) record(hit bool) {
	if hit {
		c.hits.Add(1)
		return
	}
	c.misses.Add(1)
}

// New creates a new store based on configuration
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, cfg.SizeLimitBytes, logger)
	case "postgres":
		return NewPostgresStore(cfg.Postgres.URL, cfg.SizeLimitBytes, logger)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
