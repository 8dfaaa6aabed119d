package domain

import (
	"context"
	"log/slog"
	"time"

	"github.com/pendergraft/explorer-cache/internal/explorer"
)

// loggingService is the interface required for logging middleware.
type loggingService interface {
	Lookup(ctx context.Context, provider, module, action, address string) (explorer.Response, error)
	GetVerified(ctx context.Context, key Key) (*Result, error)
	Invalidate(ctx context.Context, provider, address string) (int, error)
	Stats(ctx context.Context) (*Stats, error)
}

// LoggingMiddleware returns a service middleware that logs all operations.
func LoggingMiddleware(logger *slog.Logger) func(loggingService) *loggingMiddleware {
	return func(next loggingService) *loggingMiddleware {
		return &loggingMiddleware{
			next:   next,
			logger: logger,
		}
	}
}

type loggingMiddleware struct {
	next   loggingService
	logger *slog.Logger
}

func (m *loggingMiddleware) Lookup(ctx context.Context, provider, module, action, address string) (explorer.Response, error) {
	start := time.Now()
	resp, err := m.next.Lookup(ctx, provider, module, action, address)
	m.logger.Debug("Lookup",
		"provider", provider,
		"module", module,
		"action", action,
		"address", address,
		"bytes", len(resp),
		"duration", time.Since(start),
		"error", err,
	)
	return resp, err
}

func (m *loggingMiddleware) GetVerified(ctx context.Context, key Key) (*Result, error) {
	start := time.Now()
	result, err := m.next.GetVerified(ctx, key)
	verified := false
	if result != nil {
		verified = result.Verified
	}
	m.logger.Debug("GetVerified",
		"key", key.request().String(),
		"verified", verified,
		"duration", time.Since(start),
		"error", err,
	)
	return result, err
}

func (m *loggingMiddleware) Invalidate(ctx context.Context, provider, address string) (int, error) {
	start := time.Now()
	deleted, err := m.next.Invalidate(ctx, provider, address)
	m.logger.Info("Invalidate",
		"provider", provider,
		"address", address,
		"deleted", deleted,
		"duration", time.Since(start),
		"error", err,
	)
	return deleted, err
}

func (m *loggingMiddleware) Stats(ctx context.Context) (*Stats, error) {
	start := time.Now()
	stats, err := m.next.Stats(ctx)
	m.logger.Debug("Stats",
		"duration", time.Since(start),
		"error", err,
	)
	return stats, err
}
