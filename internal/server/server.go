// Package server wires the cache services into an HTTP server.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pendergraft/explorer-cache/internal/auth"
	"github.com/pendergraft/explorer-cache/internal/chains"
	"github.com/pendergraft/explorer-cache/internal/chains/evm"
	"github.com/pendergraft/explorer-cache/internal/config"
	argsDomain "github.com/pendergraft/explorer-cache/internal/constructorargs/domain"
	argsTransport "github.com/pendergraft/explorer-cache/internal/constructorargs/transport"
	"github.com/pendergraft/explorer-cache/internal/explorer"
	"github.com/pendergraft/explorer-cache/internal/keyring"
	metadataDomain "github.com/pendergraft/explorer-cache/internal/metadata/domain"
	metadataTransport "github.com/pendergraft/explorer-cache/internal/metadata/transport"
	"github.com/pendergraft/explorer-cache/internal/middleware/logging"
	"github.com/pendergraft/explorer-cache/internal/middleware/ratelimit"
	"github.com/pendergraft/explorer-cache/internal/middleware/realip"
	"github.com/pendergraft/explorer-cache/internal/observability/metrics"
	"github.com/pendergraft/explorer-cache/internal/storage"
)

// Server is the HTTP server
type Server struct {
	cfg      *config.Config
	store    storage.Store
	logger   *slog.Logger
	router   *chi.Mux
	resolver *evm.Resolver

	// Services typed via transport interfaces
	metadataSvc metadataTransport.Service
	argsSvc     argsTransport.Service
}

// New builds the service graph for cfg on top of an opened store.
func New(cfg *config.Config, store storage.Store, logger *slog.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		store:  store,
		logger: logger,
		router: chi.NewRouter(),
	}

	rotator, err := keyring.NewRotator(cfg.Providers.Keys())
	if err != nil {
		return nil, fmt.Errorf("building key rotator: %w", err)
	}

	fetcher := explorer.NewClient(cfg.Providers.URLs(), rotator, explorer.Options{
		HTTPClient:          &http.Client{Timeout: time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second},
		UserAgent:           cfg.Upstream.UserAgent,
		TransientTTL:        time.Duration(cfg.Cache.TransientTTLSeconds) * time.Second,
		TransientMaxEntries: cfg.Cache.TransientMaxEntries,
		Logger:              logger,
	})

	names := cfg.Providers.Names()
	mdImpl := metadataDomain.NewService(store, fetcher, names, logger)
	mdSvc := metadataDomain.LoggingMiddleware(logger)(mdImpl)
	s.metadataSvc = mdSvc

	s.resolver = evm.NewResolver(time.Duration(cfg.Upstream.RPCTimeout)*time.Second, logger)
	registry := chains.FromProviders(cfg.Providers)
	s.argsSvc = argsDomain.NewService(mdSvc, registry, s.resolver, names)

	logger.Info("providers configured", "providers", names, "on_chain", registry.List())

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases RPC connections held by the on-chain resolver.
func (s *Server) Close() {
	s.resolver.Close()
}

func (s *Server) setupMiddleware() {
	// Real IP first so rate limiting and logging see the caller, not the proxy.
	s.router.Use(realip.Middleware(realip.Config{
		TrustProxy:     s.cfg.Proxy.TrustProxy,
		TrustedProxies: s.cfg.Proxy.TrustedProxies,
	}))
	s.router.Use(ratelimit.Middleware(ratelimit.Config{
		Enabled:        s.cfg.RateLimit.Enabled,
		RequestsPerMin: s.cfg.RateLimit.RequestsPerMin,
		BurstSize:      s.cfg.RateLimit.BurstSize,
		CleanupMinutes: s.cfg.RateLimit.CleanupMinutes,
	}))

	s.router.Use(middleware.RequestID)
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, X-API-Key")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)
	if metrics.Enabled() {
		s.router.Method(http.MethodGet, "/metrics", metrics.Handler())
	}

	metadataHandler := metadataTransport.NewHandler(s.metadataSvc)
	argsHandler := argsTransport.NewHandler(s.argsSvc)

	requireAuth := func(r chi.Router) {
		if s.cfg.Auth.Type == "api-key" {
			r.Use(auth.Middleware(s.store, writeError))
		}
	}

	metadataHandler.RegisterReadRoutes(s.router)
	argsHandler.RegisterRoutes(s.router)

	s.router.Group(func(r chi.Router) {
		requireAuth(r)
		metadataHandler.RegisterWriteRoutes(r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports ok only while the durable store answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "NOT_READY", "storage unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
