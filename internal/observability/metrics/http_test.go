package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/stats", "/stats"},
		{"/etherscan/api", "/{provider}/api"},
		{"/whatever-someone-typed/api", "/{provider}/api"},
		{"/etherscan/constructor_args/0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", "/{provider}/constructor_args/{address}"},
		{"/etherscan/constructor_args/nothex", "/{provider}/constructor_args/{invalid}"},
		{"/favicon.ico", "other"},
		{"/a/b/c/d", "other"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizePath(tt.path))
		})
	}
}

func TestHelpersAreNoopsWhenDisabled(t *testing.T) {
	Init(false, "test")

	assert.NotPanics(t, func() {
		CacheLookup("getabi", "hit")
		TransientCacheLookup("miss")
		CacheWrite("getabi", "ok")
		Invalidation("etherscan", 3)
		UpstreamRequest("etherscan", "200", 0)
		OnChainLookup("etherscan", "found")
	})
	assert.False(t, Enabled())
}

func TestRouteLabel(t *testing.T) {
	var got string
	r := chi.NewRouter()
	r.Get("/{provider}/api", func(w http.ResponseWriter, r *http.Request) {
		got = routeLabel(r)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		got = routeLabel(r)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/etherscan/api", nil))
	assert.Equal(t, "/{provider}/api", got)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/favicon.ico", nil))
	assert.Equal(t, "other", got)

	assert.Equal(t, "/{provider}/api", routeLabel(httptest.NewRequest(http.MethodGet, "/arbiscan/api", nil)))
}
