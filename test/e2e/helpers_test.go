//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/pendergraft/explorer-cache/internal/config"
	"github.com/pendergraft/explorer-cache/internal/server"
	"github.com/pendergraft/explorer-cache/internal/storage"
	"github.com/pendergraft/explorer-cache/pkg/client"
)

const (
	// verifiedAddress has published source with constructor arguments.
	verifiedAddress = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	// unverifiedAddress is only known to the fake node.
	unverifiedAddress = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"

	creationTxHash = "0x9f2b6e1c4a5d8e7f0a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f6071"
	creationCode   = "0x6080604052aabbccdd"
	runtimeCode    = "0x6080604052"
)

// TestContext holds shared test infrastructure
type TestContext struct {
	PostgresContainer *postgres.PostgresContainer
	ConnString        string
	Explorer          *fakeExplorer
	Node              *httptest.Server
	TestServer        *httptest.Server
	Server            *server.Server
	Store             storage.Store
}

// setupPostgresE starts a Postgres container and returns the connection string
func setupPostgresE(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("explorer_cache"),
		postgres.WithUsername("explorer_cache"),
		postgres.WithPassword("explorer_cache"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get postgres connection string: %w", err)
	}
	return container, connString, nil
}

// fakeExplorer answers etherscan-style contract queries and counts calls.
type fakeExplorer struct {
	*httptest.Server
	calls atomic.Int64
}

func newFakeExplorer() *fakeExplorer {
	f := &fakeExplorer{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		q := r.URL.Query()
		if q.Get("apiKey") == "" {
			w.Write([]byte(`{"status":"0","message":"NOTOK","result":"Missing API key"}`))
			return
		}
		if q.Get("address") != verifiedAddress {
			switch q.Get("action") {
			case "getabi":
				w.Write([]byte(`{"status":"0","message":"NOTOK","result":"Contract source code not verified"}`))
			default:
				w.Write([]byte(`{"status":"1","message":"OK","result":[{"SourceCode":"","ABI":"Contract source code not verified","ConstructorArguments":""}]}`))
			}
			return
		}
		switch q.Get("action") {
		case "getabi":
			w.Write([]byte(`{"status":"1","message":"OK","result":"[{\"type\":\"constructor\",\"inputs\":[]}]"}`))
		default:
			w.Write([]byte(`{"status":"1","message":"OK","result":[{"SourceCode":"contract Token {}","ABI":"[]","ContractName":"Token","CompilerVersion":"v0.8.24","ConstructorArguments":"000000000000000000000000000000000000000000000000000000000000002a"}]}`))
		}
	}))
	return f
}

// newFakeNode serves the two JSON-RPC methods used for on-chain derivation.
func newFakeNode() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
			Params []string        `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var result any
		switch req.Method {
		case "ots_getContractCreator":
			if len(req.Params) == 1 && req.Params[0] == unverifiedAddress {
				result = map[string]string{"hash": creationTxHash, "creator": verifiedAddress}
			}
		case "eth_getTransactionByHash":
			if len(req.Params) == 1 && req.Params[0] == creationTxHash {
				result = map[string]string{"hash": creationTxHash, "input": creationCode}
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
}

// startServerE starts the server in-process against Postgres
func startServerE(connString, explorerURL, nodeURL string) (*httptest.Server, storage.Store, *server.Server, error) {
	cfg := &config.Config{
		Storage: config.StorageConfig{
			Type:           "postgres",
			Postgres:       config.PostgresConfig{URL: connString},
			SizeLimitBytes: 10_000_000,
		},
		Auth:      config.AuthConfig{Type: "api-key"},
		Cache:     config.CacheConfig{TransientTTLSeconds: 3600, TransientMaxEntries: 1000},
		Upstream:  config.UpstreamConfig{TimeoutSeconds: 10, UserAgent: "e2e", RPCTimeout: 10},
		RateLimit: config.RateLimitConfig{Enabled: false},
		Providers: config.Providers{
			"etherscan": {
				URL:  explorerURL,
				Keys: []string{"k1", "k2"},
				RPC:  &config.RPC{ChainID: 1, URL: nodeURL},
			},
			// shares chain 1 with etherscan, so it inherits the node
			"blockscout": {
				URL:  explorerURL,
				Keys: []string{"b1"},
				RPC:  &config.RPC{ChainID: 1},
			},
			"arbiscan": {
				URL:  explorerURL,
				Keys: []string{"a1"},
				RPC:  &config.RPC{ChainID: 42161},
			},
		},
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	store, err := storage.New(cfg.Storage, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	srv, err := server.New(cfg, store, logger)
	if err != nil {
		store.Close()
		return nil, nil, nil, fmt.Errorf("failed to create server: %w", err)
	}

	return httptest.NewServer(srv.Handler()), store, srv, nil
}

// newClient creates a new API client for the test server
func newClient(apiKey string) *client.Client {
	return client.New(testCtx.TestServer.URL, apiKey)
}

// createTestAPIKey creates a test API key using the store directly
func createTestAPIKey(t *testing.T, name string) string {
	key, err := testCtx.Store.CreateAPIKey(context.Background(), name)
	require.NoError(t, err, "Failed to create API key")
	return key
}

// assertAPIError checks the status and code of a client error
func assertAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr), "expected *client.APIError, got %v", err)
	require.Equal(t, status, apiErr.StatusCode)
	require.Equal(t, code, apiErr.Code)
}
