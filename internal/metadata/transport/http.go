// Package transport provides HTTP handlers for the metadata domain.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/explorer-cache/internal/explorer"
	"github.com/pendergraft/explorer-cache/internal/metadata/domain"
)

// Service defines the metadata operations used by the HTTP layer.
type Service interface {
	Lookup(ctx context.Context, provider, module, action, address string) (explorer.Response, error)
	Invalidate(ctx context.Context, provider, address string) (int, error)
	Stats(ctx context.Context) (*domain.Stats, error)
}

// Handler handles HTTP requests for explorer metadata.
type Handler struct {
	svc Service
}

// NewHandler creates a new metadata HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterReadRoutes registers lookup and stats routes (no auth required).
func (h *Handler) RegisterReadRoutes(r chi.Router) {
	r.Get("/stats", h.handleStats)
	r.Get("/{provider}/api", h.handleLookup)
}

// RegisterWriteRoutes registers the invalidation route.
func (h *Handler) RegisterWriteRoutes(r chi.Router) {
	r.Delete("/{provider}/api", h.handleInvalidate)
}

func (h *Handler) handleLookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := h.svc.Lookup(r.Context(),
		chi.URLParam(r, "provider"),
		q.Get("module"),
		q.Get("action"),
		q.Get("address"),
	)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp)
}

func (h *Handler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.svc.Invalidate(r.Context(), chi.URLParam(r, "provider"), r.URL.Query().Get("address"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: deleted})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to read cache stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// writeServiceError maps domain and upstream errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, err error) {
	var upstream *explorer.UpstreamError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrUnsupportedAction):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.As(err, &upstream):
		writeError(w, http.StatusBadGateway, "UPSTREAM_ERROR", upstream.Error())
	default:
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
