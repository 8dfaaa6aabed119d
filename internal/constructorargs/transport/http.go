// Package transport provides HTTP handlers for the constructor args domain.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pendergraft/explorer-cache/internal/constructorargs/domain"
	"github.com/pendergraft/explorer-cache/internal/explorer"
)

// Service defines the constructor args operations used by the HTTP layer.
type Service interface {
	ConstructorArgs(ctx context.Context, req domain.Request) (*domain.Result, error)
}

// Handler handles HTTP requests for constructor arguments.
type Handler struct {
	svc Service
}

// NewHandler creates a new constructor args HTTP handler.
func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers constructor args routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/{provider}/constructor_args/{address}", h.handleGet)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	onChain := false
	if v := q.Get("on_chain_lookup"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "on_chain_lookup must be a boolean")
			return
		}
		onChain = parsed
	}

	result, err := h.svc.ConstructorArgs(r.Context(), domain.Request{
		Provider:       chi.URLParam(r, "provider"),
		Address:        chi.URLParam(r, "address"),
		OnChainLookup:  onChain,
		CreationTxHash: q.Get("creation_tx_hash"),
		Bytecode:       q.Get("bytecode"),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// writeServiceError maps domain and upstream errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, err error) {
	var upstream *explorer.UpstreamError
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, domain.ErrNotConfigured):
		writeError(w, http.StatusNotFound, "NOT_CONFIGURED", "No RPC endpoint configured for this chain")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Creation transaction not found")
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
