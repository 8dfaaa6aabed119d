package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/explorer-cache/internal/constructorargs/domain"
	"github.com/pendergraft/explorer-cache/internal/explorer"
)

const testAddress = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

// mockService implements Service for testing
type mockService struct {
	result *domain.Result
	err    error
	last   domain.Request
}

func (m *mockService) ConstructorArgs(ctx context.Context, req domain.Request) (*domain.Result, error) {
	m.last = req
	return m.result, m.err
}

func setupRouter(svc Service) *chi.Mux {
	r := chi.NewRouter()
	NewHandler(svc).RegisterRoutes(r)
	return r
}

func TestHandleGet(t *testing.T) {
	svc := &mockService{result: &domain.Result{Address: testAddress, ConstructorArgs: "ddeeff"}}
	router := setupRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/etherscan/constructor_args/"+testAddress+"?on_chain_lookup=true&creation_tx_hash=0xabc&bytecode=aabbcc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"address":"`+testAddress+`","constructor_args":"ddeeff"}`, rec.Body.String())
	assert.Equal(t, domain.Request{
		Provider:       "etherscan",
		Address:        testAddress,
		OnChainLookup:  true,
		CreationTxHash: "0xabc",
		Bytecode:       "aabbcc",
	}, svc.last)
}

func TestHandleGet_InvalidOnChainFlag(t *testing.T) {
	svc := &mockService{}
	router := setupRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/etherscan/constructor_args/"+testAddress+"?on_chain_lookup=maybe", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGet_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid", domain.ErrInvalidRequest, http.StatusBadRequest, "INVALID_REQUEST"},
		{"not configured", domain.ErrNotConfigured, http.StatusNotFound, "NOT_CONFIGURED"},
		{"not found", domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"upstream", &explorer.UpstreamError{Provider: "etherscan", StatusCode: 429}, http.StatusBadGateway, "UPSTREAM_ERROR"},
		{"other", context.Canceled, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupRouter(&mockService{err: tt.err})

			req := httptest.NewRequest(http.MethodGet, "/etherscan/constructor_args/"+testAddress, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body["error"]["code"])
		})
	}
}
