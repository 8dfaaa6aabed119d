package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db        *sql.DB
	logger    *slog.Logger
	sizeLimit int64
	counters
}

// NewSQLiteStore creates a new SQLite store. sizeLimit bounds the total
// payload bytes kept; 0 disables culling.
func NewSQLiteStore(path string, sizeLimit int64, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// busy_timeout goes in the DSN so every pooled connection gets it
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger, sizeLimit: sizeLimit}, nil
}

// Ping checks the database connection
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := `
	-- Verified explorer responses
	CREATE TABLE IF NOT EXISTS cache_entries (
		id TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		module TEXT NOT NULL,
		action TEXT NOT NULL,
		address TEXT NOT NULL,
		payload BLOB NOT NULL,
		size_bytes INTEGER NOT NULL,
		stored_at INTEGER NOT NULL,
		UNIQUE(provider, module, action, address)
	);

	-- API keys
	CREATE TABLE IF NOT EXISTS api_keys (
		id TEXT PRIMARY KEY,
		key_hash TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		created_at TEXT DEFAULT (datetime('now')),
		last_used_at TEXT,
		revoked_at TEXT
	);

	-- Indexes
	CREATE INDEX IF NOT EXISTS idx_cache_entries_stored_at ON cache_entries(stored_at);
	CREATE INDEX IF NOT EXISTS idx_cache_entries_address ON cache_entries(provider, address);
	`

	_, err := s.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	s.logger.Info("database migrations complete")
	return nil
}

// GetEntry returns the stored payload for key
func (s *SQLiteStore) GetEntry(ctx context.Context, key CacheKey) ([]byte, error) {
	query := `
		SELECT payload FROM cache_entries
		WHERE provider = ? AND module = ? AND action = ? AND address = ?
	`
	var payload []byte
	err := s.db.QueryRowContext(ctx, query, key.Provider, key.Module, key.Action, key.Address).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		s.record(false)
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.record(true)
	return payload, nil
}

// PutEntry stores payload under key, replacing any previous entry, then
// culls the oldest entries if the size limit is exceeded.
func (s *SQLiteStore) PutEntry(ctx context.Context, key CacheKey, payload []byte) error {
	query := `
		INSERT INTO cache_entries (id, provider, module, action, address, payload, size_bytes, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider, module, action, address) DO UPDATE SET
			payload = excluded.payload,
			size_bytes = excluded.size_bytes,
			stored_at = excluded.stored_at
	`
	_, err := s.db.ExecContext(ctx, query,
		generateID(), key.Provider, key.Module, key.Action, key.Address,
		payload, len(payload), time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("storing entry: %w", err)
	}
	return s.cull(ctx)
}

// DeleteEntry removes the entry for key. It reports whether a row was removed.
func (s *SQLiteStore) DeleteEntry(ctx context.Context, key CacheKey) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM cache_entries WHERE provider = ? AND module = ? AND action = ? AND address = ?",
		key.Provider, key.Module, key.Action, key.Address,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListEntryKeys lists the keys of every stored entry
func (s *SQLiteStore) ListEntryKeys(ctx context.Context) ([]CacheKey, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT provider, module, action, address FROM cache_entries ORDER BY provider, address, module, action")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []CacheKey
	for rows.Next() {
		var k CacheKey
		if err := rows.Scan(&k.Provider, &k.Module, &k.Action, &k.Address); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Stats returns lookup counters and the current entry count and volume
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{Hits: s.hits.Load(), Misses: s.misses.Load()}
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM cache_entries").Scan(&st.Count, &st.SizeBytes)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// cull deletes least recently stored entries until the payload total is within the limit
func (s *SQLiteStore) cull(ctx context.Context) error {
	if s.sizeLimit <= 0 {
		return nil
	}

	for {
		var total int64
		if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(SUM(size_bytes), 0) FROM cache_entries").Scan(&total); err != nil {
			return fmt.Errorf("measuring cache: %w", err)
		}
		if total <= s.sizeLimit {
			return nil
		}

		rows, err := s.db.QueryContext(ctx, "SELECT id, size_bytes FROM cache_entries ORDER BY stored_at ASC LIMIT ?", cullBatchSize)
		if err != nil {
			return fmt.Errorf("selecting entries to cull: %w", err)
		}
		var ids []string
		var sizes []int64
		for rows.Next() {
			var id string
			var size int64
			if err := rows.Scan(&id, &size); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
			sizes = append(sizes, size)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		victims := oldestOverLimit(ids, sizes, total, s.sizeLimit)
		if len(victims) == 0 {
			return nil
		}
		for _, id := range victims {
			if _, err := s.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE id = ?", id); err != nil {
				return fmt.Errorf("culling entry: %w", err)
			}
		}
		s.logger.Debug("culled cache entries", "count", len(victims), "limit_bytes", s.sizeLimit)
	}
}

// CreateAPIKey creates a new API key
func (s *SQLiteStore) CreateAPIKey(ctx context.Context, name string) (string, error) {
	key := generateAPIKey()
	hash := hashAPIKey(key)
	id := generateID()
	_, err := s.db.ExecContext(ctx, "INSERT INTO api_keys (id, key_hash, name, created_at) VALUES (?, ?, ?, datetime('now'))", id, hash, name)
	if err != nil {
		return "", err
	}
	return key, nil
}

// ValidateAPIKey validates an API key
func (s *SQLiteStore) ValidateAPIKey(ctx context.Context, key string) (*APIKey, error) {
	hash := hashAPIKey(key)
	var ak APIKey
	err := s.db.QueryRowContext(ctx, "SELECT id, key_hash, name, created_at FROM api_keys WHERE key_hash = ? AND revoked_at IS NULL", hash).Scan(
		&ak.ID, &ak.KeyHash, &ak.Name, &ak.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	// Update last used
	_, _ = s.db.ExecContext(ctx, "UPDATE api_keys SET last_used_at = datetime('now') WHERE id = ?", ak.ID)
	return &ak, nil
}

// ListAPIKeys lists all API keys
func (s *SQLiteStore) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at, last_used_at FROM api_keys WHERE revoked_at IS NULL")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		var lastUsed sql.NullString
		if err := rows.Scan(&k.ID, &k.Name, &k.CreatedAt, &lastUsed); err != nil {
			return nil, err
		}
		if lastUsed.Valid {
			k.LastUsedAt = lastUsed.String
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RevokeAPIKey revokes an API key
func (s *SQLiteStore) RevokeAPIKey(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE api_keys SET revoked_at = datetime('now') WHERE id = ? AND revoked_at IS NULL", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
