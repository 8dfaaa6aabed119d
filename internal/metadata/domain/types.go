// Package domain serves explorer contract metadata through a durable cache
// that only ever holds verified responses.
package domain

import (
	"github.com/pendergraft/explorer-cache/internal/explorer"
	"github.com/pendergraft/explorer-cache/internal/storage"
)

// Supported explorer query.
const (
	ModuleContract      = "contract"
	ActionGetSourceCode = "getsourcecode"
	ActionGetABI        = "getabi"
)

// Key identifies one cached explorer query. Address is always checksummed.
type Key struct {
	Provider string
	Module   string
	Action   string
	Address  string
}

func (k Key) request() explorer.Request {
	return explorer.Request{Provider: k.Provider, Module: k.Module, Action: k.Action, Address: k.Address}
}

func (k Key) storageKey() storage.CacheKey {
	return storage.CacheKey{Provider: k.Provider, Module: k.Module, Action: k.Action, Address: k.Address}
}

// Result is the outcome of a guarded lookup. Verified responses come from,
// or were just written to, the durable cache; unverified ones never are.
type Result struct {
	Response explorer.Response
	Verified bool
}

// Stats summarizes the durable cache.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Count  int64 `json:"count"`
	Size   int64 `json:"size"`
}
