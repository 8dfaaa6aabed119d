package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/explorer-cache/internal/config"
	"github.com/pendergraft/explorer-cache/internal/storage"
)

const (
	verifiedAddr   = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	unverifiedAddr = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
)

type fixture struct {
	srv      *httptest.Server
	store    storage.Store
	upstream *atomic.Int32
}

func newFixture(t *testing.T, authType string) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	var calls atomic.Int32
	explorerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		if q.Get("address") != verifiedAddr {
			w.Write([]byte(`{"status":"0","message":"NOTOK","result":"Contract source code not verified"}`))
			return
		}
		switch q.Get("action") {
		case "getsourcecode":
			w.Write([]byte(`{"status":"1","message":"OK","result":[{"SourceCode":"contract A {}","ContractName":"A","ConstructorArguments":"00ff"}]}`))
		default:
			w.Write([]byte(`{"status":"1","message":"OK","result":"[]"}`))
		}
	}))
	t.Cleanup(explorerSrv.Close)

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"), 0, logger)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		Auth:     config.AuthConfig{Type: authType},
		Cache:    config.CacheConfig{TransientTTLSeconds: 3600, TransientMaxEntries: 100},
		Upstream: config.UpstreamConfig{TimeoutSeconds: 5, UserAgent: "test", RPCTimeout: 5},
		Providers: config.Providers{
			"etherscan": {URL: explorerSrv.URL, Keys: []string{"k1"}},
		},
	}

	s, err := New(cfg, store, logger)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return &fixture{srv: srv, store: store, upstream: &calls}
}

func (f *fixture) do(t *testing.T, method, path string, header http.Header) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t, "none")
	for _, path := range []string{"/health", "/healthz", "/readyz"} {
		status, body := f.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, status, path)
		assert.JSONEq(t, `{"status":"ok"}`, string(body))
	}
}

func TestReadyz_StoreDown(t *testing.T) {
	f := newFixture(t, "none")
	require.NoError(t, f.store.Close())

	status, _ := f.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestLookup_VerifiedIsPersisted(t *testing.T) {
	f := newFixture(t, "none")
	path := "/etherscan/api?module=contract&action=getsourcecode&address=" + verifiedAddr

	status, first := f.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(first), `"ContractName":"A"`)

	status, second := f.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), f.upstream.Load())

	_, body := f.do(t, http.MethodGet, "/stats", nil)
	var stats map[string]int64
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, int64(1), stats["count"])
	assert.Equal(t, int64(1), stats["hits"])
}

func TestLookup_UnverifiedNotPersisted(t *testing.T) {
	f := newFixture(t, "none")

	status, body := f.do(t, http.MethodGet, "/etherscan/api?module=contract&action=getabi&address="+unverifiedAddr, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "not verified")

	stats, err := f.store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Count)
}

func TestLookup_BadRequests(t *testing.T) {
	f := newFixture(t, "none")
	for _, path := range []string{
		"/polygonscan/api?module=contract&action=getabi&address=" + verifiedAddr,
		"/etherscan/api?module=account&action=balance&address=" + verifiedAddr,
		"/etherscan/api?module=contract&action=getabi&address=0x1234",
	} {
		status, _ := f.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, status, path)
	}
}

func TestInvalidate_RequiresKey(t *testing.T) {
	f := newFixture(t, "api-key")
	f.do(t, http.MethodGet, "/etherscan/api?module=contract&action=getsourcecode&address="+verifiedAddr, nil)

	status, _ := f.do(t, http.MethodDelete, "/etherscan/api?address="+verifiedAddr, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	key, err := f.store.CreateAPIKey(context.Background(), "test")
	require.NoError(t, err)

	status, body := f.do(t, http.MethodDelete, "/etherscan/api?address="+verifiedAddr, http.Header{"X-Api-Key": {key}})
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"deleted":1}`, string(body))
}

func TestConstructorArgs_FromExplorer(t *testing.T) {
	f := newFixture(t, "none")

	status, body := f.do(t, http.MethodGet, "/etherscan/constructor_args/"+verifiedAddr, nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"address":"`+verifiedAddr+`","constructor_args":"00ff"}`, string(body))
}

func TestConstructorArgs_NoChainConfigured(t *testing.T) {
	f := newFixture(t, "none")

	status, body := f.do(t, http.MethodGet, "/etherscan/constructor_args/"+unverifiedAddr, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, string(body), "NOT_CONFIGURED")
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, "none")

	status, _ := f.do(t, http.MethodOptions, "/etherscan/api", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestNew_LogsProvidersWithChains(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"), 0, logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		Upstream: config.UpstreamConfig{TimeoutSeconds: 5, RPCTimeout: 5},
		Providers: config.Providers{
			"etherscan": {URL: "http://explorer.invalid", Keys: []string{"k1"}, RPC: &config.RPC{ChainID: 1, URL: "http://node.invalid"}},
			"arbiscan":  {URL: "http://explorer.invalid", Keys: []string{"k2"}},
		},
	}
	s, err := New(cfg, store, logger)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	var entry struct {
		Msg       string   `json:"msg"`
		Providers []string `json:"providers"`
		OnChain   []string `json:"on_chain"`
	}
	for _, line := range bytes.Split(buf.Bytes(), []byte("\n")) {
		if bytes.Contains(line, []byte("providers configured")) {
			require.NoError(t, json.Unmarshal(line, &entry))
		}
	}
	assert.Equal(t, []string{"arbiscan", "etherscan"}, entry.Providers)
	assert.Equal(t, []string{"etherscan"}, entry.OnChain)
}
