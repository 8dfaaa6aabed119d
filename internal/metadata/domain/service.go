package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pendergraft/explorer-cache/internal/explorer"
	"github.com/pendergraft/explorer-cache/internal/observability/metrics"
	"github.com/pendergraft/explorer-cache/internal/storage"
	"github.com/pendergraft/explorer-cache/internal/validation"
)

// Common errors returned by the metadata service.
var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrUnsupportedAction = errors.New("unsupported action")
)

// CacheStore defines the storage operations needed by the metadata domain.
type CacheStore interface {
	GetEntry(ctx context.Context, key storage.CacheKey) ([]byte, error)
	PutEntry(ctx context.Context, key storage.CacheKey, payload []byte) error
	DeleteEntry(ctx context.Context, key storage.CacheKey) (bool, error)
	ListEntryKeys(ctx context.Context) ([]storage.CacheKey, error)
	Stats(ctx context.Context) (*storage.Stats, error)
}

// Fetcher retrieves explorer responses, typically through a short-lived cache.
type Fetcher interface {
	Fetch(ctx context.Context, req explorer.Request) (explorer.Response, error)
}

type service struct {
	store     CacheStore
	fetcher   Fetcher
	providers map[string]struct{}
	locks     lockTable
	logger    *slog.Logger
}

// NewService creates a new metadata service for the given provider names.
func NewService(store CacheStore, fetcher Fetcher, providers []string, logger *slog.Logger) *service {
	known := make(map[string]struct{}, len(providers))
	for _, p := range providers {
		known[p] = struct{}{}
	}
	return &service{
		store:     store,
		fetcher:   fetcher,
		providers: known,
		logger:    logger,
	}
}

// Lookup validates a metadata query and answers it from the durable cache
// or the explorer. Unverified responses are returned as-is but not stored.
func (s *service) Lookup(ctx context.Context, provider, module, action, address string) (explorer.Response, error) {
	if _, ok := s.providers[provider]; !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidRequest, provider)
	}
	if module != ModuleContract {
		return nil, fmt.Errorf("%w: unsupported module %q", ErrInvalidRequest, module)
	}
	if action != ActionGetSourceCode && action != ActionGetABI {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAction, action)
	}
	canonical, err := validation.CanonicalAddress(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	result, err := s.GetVerified(ctx, Key{Provider: provider, Module: module, Action: action, Address: canonical})
	if err != nil {
		return nil, err
	}
	return result.Response, nil
}

// GetVerified runs durable lookup, fetch, verification and persistence for
// key while holding key's lock, so concurrent callers for the same key see
// one fetch and then a durable hit. A caller whose ctx ends while waiting
// for the lock returns ctx.Err(); once the lock is held, fetch and persist
// are not cancelled when ctx is.
func (s *service) GetVerified(ctx context.Context, key Key) (*Result, error) {
	verify, err := verifierFor(key.Action)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locks.lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	payload, err := s.store.GetEntry(ctx, key.storageKey())
	if err == nil {
		metrics.CacheLookup(key.Action, "hit")
		return &Result{Response: explorer.Response(payload), Verified: true}, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("reading cache: %w", err)
	}
	metrics.CacheLookup(key.Action, "miss")

	detached := context.WithoutCancel(ctx)

	resp, err := s.fetcher.Fetch(detached, key.request())
	if err != nil {
		return nil, err
	}

	if !verify(resp) {
		return &Result{Response: resp}, nil
	}

	if err := s.store.PutEntry(detached, key.storageKey(), resp); err != nil {
		// The caller still gets the response; the next miss refetches.
		metrics.CacheWrite(key.Action, "error")
		s.logger.Warn("persisting verified response failed", "key", key.request().String(), "error", err)
	} else {
		metrics.CacheWrite(key.Action, "ok")
	}
	return &Result{Response: resp, Verified: true}, nil
}

// Invalidate removes every durable entry for (provider, address), whatever
// its module or action, and returns how many were removed. The in-memory
// tier is left alone.
func (s *service) Invalidate(ctx context.Context, provider, address string) (int, error) {
	if err := validation.ValidateProviderName(provider); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	canonical, err := validation.CanonicalAddress(address)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	keys, err := s.store.ListEntryKeys(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing cache keys: %w", err)
	}

	deleted := 0
	for _, k := range keys {
		if k.Provider != provider || k.Address != canonical {
			continue
		}
		removed, err := s.store.DeleteEntry(ctx, k)
		if err != nil {
			return deleted, fmt.Errorf("deleting cache entry: %w", err)
		}
		if removed {
			deleted++
		}
	}

	metrics.Invalidation(provider, deleted)
	return deleted, nil
}

// Stats returns durable cache statistics.
func (s *service) Stats(ctx context.Context) (*Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading cache stats: %w", err)
	}
	return &Stats{Hits: st.Hits, Misses: st.Misses, Count: st.Count, Size: st.SizeBytes}, nil
}
