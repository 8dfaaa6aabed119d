package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db        *sql.DB
	logger    *slog.Logger
	sizeLimit int64
	counters
}

// NewPostgresStore creates a new Postgres store. sizeLimit bounds the total
// payload bytes kept; 0 disables culling.
func NewPostgresStore(url string, sizeLimit int64, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db, logger: logger, sizeLimit: sizeLimit}, nil
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	-- Verified explorer responses
	CREATE TABLE IF NOT EXISTS cache_entries (
		id UUID PRIMARY KEY,
		provider TEXT NOT NULL,
		module TEXT NOT NULL,
		action TEXT NOT NULL,
		address TEXT NOT NULL,
		payload BYTEA NOT NULL,
		size_bytes BIGINT NOT NULL,
		stored_at BIGINT NOT NULL,
		UNIQUE(provider, module, action, address)
	);

	-- API keys
	CREATE TABLE IF NOT EXISTS api_keys (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		key_hash TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		last_used_at TIMESTAMPTZ,
		revoked_at TIMESTAMPTZ
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
func (s *PostgresStore) GetEntry(ctx context.Context, key CacheKey) ([]byte, error) {
	query := `
		SELECT payload FROM cache_entries
		WHERE provider = $1 AND module = $2 AND action = $3 AND address = $4
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
func (s *PostgresStore) PutEntry(ctx context.Context, key CacheKey, payload []byte) error {
	query := `
		INSERT INTO cache_entries (id, provider, module, action, address, payload, size_bytes, stored_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (provider, module, action, address) DO UPDATE SET
			payload = EXCLUDED.payload,
			size_bytes = EXCLUDED.size_bytes,
			stored_at = EXCLUDED.stored_at
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
func (s *PostgresStore) DeleteEntry(ctx context.Context, key CacheKey) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM cache_entries WHERE provider = $1 AND module = $2 AND action = $3 AND address = $4",
		key.Provider, key.Module, key.Action, key.Address,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListEntryKeys lists the keys of every stored entry
func (s *PostgresStore) ListEntryKeys(ctx context.Context) ([]CacheKey, error) {
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
func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{Hits: s.hits.Load(), Misses: s.misses.Load()}
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM cache_entries").Scan(&st.Count, &st.SizeBytes)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// cull deletes least recently stored entries until the payload total is within the limit
func (s *PostgresStore) cull(ctx context.Context) error {
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

		rows, err := s.db.QueryContext(ctx, "SELECT id, size_bytes FROM cache_entries ORDER BY stored_at ASC LIMIT $1", cullBatchSize)
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
		if _, err := s.db.ExecContext(ctx, "DELETE FROM cache_entries WHERE id = ANY($1::uuid[])", victims); err != nil {
			return fmt.Errorf("culling entries: %w", err)
		}
		s.logger.Debug("culled cache entries", "count", len(victims), "limit_bytes", s.sizeLimit)
	}
}

// CreateAPIKey creates a new API key
func (s *PostgresStore) CreateAPIKey(ctx context.Context, name string) (string, error) {
	key := generateAPIKey()
	hash := hashAPIKey(key)
	id := generateID()
	_, err := s.db.ExecContext(ctx, "INSERT INTO api_keys (id, key_hash, name) VALUES ($1, $2, $3)", id, hash, name)
	if err != nil {
		return "", err
	}
	return key, nil
}

// ValidateAPIKey validates an API key
func (s *PostgresStore) ValidateAPIKey(ctx context.Context, key string) (*APIKey, error) {
	hash := hashAPIKey(key)
	var ak APIKey
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, "SELECT id, key_hash, name, created_at FROM api_keys WHERE key_hash = $1 AND revoked_at IS NULL", hash).Scan(
		&ak.ID, &ak.KeyHash, &ak.Name, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ak.CreatedAt = createdAt.Format("2006-01-02 15:04:05")
	// Update last used
	_, _ = s.db.ExecContext(ctx, "UPDATE api_keys SET last_used_at = NOW() WHERE id = $1", ak.ID)
	return &ak, nil
}

// ListAPIKeys lists all API keys
func (s *PostgresStore) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, created_at, last_used_at FROM api_keys WHERE revoked_at IS NULL")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var k APIKey
		var createdAt time.Time
		var lastUsed sql.NullTime
		if err := rows.Scan(&k.ID, &k.Name, &createdAt, &lastUsed); err != nil {
			return nil, err
		}
		k.CreatedAt = createdAt.Format("2006-01-02 15:04:05")
		if lastUsed.Valid {
			k.LastUsedAt = lastUsed.Time.Format("2006-01-02 15:04:05")
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// RevokeAPIKey revokes an API key
func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE api_keys SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
