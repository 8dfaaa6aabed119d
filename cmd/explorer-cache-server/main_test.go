package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pendergraft/explorer-cache/internal/storage"
)

const checksummed = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func useTempStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	t.Setenv("STORAGE_TYPE", "sqlite")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SQLITE_PATH", path)
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("info"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("verbose"))
}

func TestHumanBytes(t *testing.T) {
	assert.Equal(t, "999 B", humanBytes(999))
	assert.Equal(t, "1.5 kB", humanBytes(1500))
	assert.Equal(t, "10.0 GB", humanBytes(10_000_000_000))
}

func TestPrintStats(t *testing.T) {
	stats := &storage.Stats{Count: 3, SizeBytes: 2048}

	var js bytes.Buffer
	require.NoError(t, printStats(&js, stats, false))
	var decoded map[string]int64
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	assert.Equal(t, int64(3), decoded["count"])
	assert.Equal(t, int64(2048), decoded["size"])

	var table bytes.Buffer
	require.NoError(t, printStats(&table, stats, true))
	assert.Contains(t, table.String(), "ENTRIES")
	assert.Contains(t, table.String(), "2.0 kB")
}

func TestKeysLifecycle(t *testing.T) {
	useTempStore(t)

	out, err := run(t, "keys", "create", "--name", "ops", "--quiet")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "ec_key_"))

	out, err = run(t, "keys", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ops")
	assert.Contains(t, out, "never")

	fields := strings.Fields(strings.Split(out, "\n")[1])
	require.NotEmpty(t, fields)

	_, err = run(t, "keys", "revoke", "--id", fields[0])
	require.NoError(t, err)

	_, err = run(t, "keys", "revoke", "--id", "does-not-exist")
	assert.Error(t, err)
}

func TestKeysCreate_ToFile(t *testing.T) {
	useTempStore(t)
	keyFile := filepath.Join(t.TempDir(), "secrets", "ops.key")

	out, err := run(t, "keys", "create", "--name", "ops", "--output", keyFile)
	require.NoError(t, err)
	assert.Contains(t, out, keyFile)
	assert.FileExists(t, keyFile)
}

func TestCacheInvalidate(t *testing.T) {
	path := useTempStore(t)

	logger := slog.New(slog.DiscardHandler)
	store, err := storage.NewSQLiteStore(path, 0, logger)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	for _, action := range []string{"getsourcecode", "getabi"} {
		key := storage.CacheKey{Provider: "etherscan", Module: "contract", Action: action, Address: checksummed}
		require.NoError(t, store.PutEntry(context.Background(), key, []byte(`{"status":"1"}`)))
	}
	require.NoError(t, store.Close())

	out, err := run(t, "cache", "invalidate", "--provider", "etherscan", "--address", strings.ToLower(checksummed))
	require.NoError(t, err)
	assert.Equal(t, "removed 2 entries\n", out)

	out, err = run(t, "cache", "stats", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"count": 0`)
}

func TestCacheInvalidate_BadAddress(t *testing.T) {
	useTempStore(t)
	_, err := run(t, "cache", "invalidate", "--provider", "etherscan", "--address", "0x1234")
	assert.Error(t, err)
}
