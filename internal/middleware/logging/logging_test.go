package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/explorer-cache/internal/middleware/realip"
)

func respond(status int, body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != 0 {
			w.WriteHeader(status)
		}
		w.Write([]byte(body))
	})
}

func serve(t *testing.T, h http.Handler, req *http.Request) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	Middleware(logger)(h).ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestMiddleware_Fields(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/etherscan/api?module=contract", nil)
	req.RemoteAddr = "192.168.1.100:12345"

	entry := serve(t, respond(http.StatusOK, "hello"), req)

	assert.Equal(t, "request", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/etherscan/api", entry["path"])
	assert.Equal(t, float64(200), entry["status"])
	assert.Equal(t, float64(5), entry["bytes"])
	assert.Equal(t, "192.168.1.100", entry["client_ip"])
	assert.NotEmpty(t, entry["duration"])
}

func TestMiddleware_ImplicitOK(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	entry := serve(t, respond(0, "{}"), req)
	assert.Equal(t, float64(200), entry["status"])
}

func TestMiddleware_ServerErrorsAtWarn(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/etherscan/api", nil)
	entry := serve(t, respond(http.StatusBadGateway, "upstream"), req)

	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, float64(502), entry["status"])
}

func TestMiddleware_RequestIDAndRealIP(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := realip.Middleware(realip.Config{TrustProxy: true, TrustedProxies: []string{"10.0.0.0/8"}})(
		middleware.RequestID(Middleware(logger)(respond(http.StatusNoContent, ""))),
	)

	req := httptest.NewRequest(http.MethodDelete, "/etherscan/api", nil)
	req.RemoteAddr = "10.0.0.1:5000"
	req.Header.Set("X-Forwarded-For", "203.0.113.50")
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotEmpty(t, entry["request_id"])
	assert.Equal(t, "203.0.113.50", entry["client_ip"])
	assert.Equal(t, float64(204), entry["status"])
}
