// Package chains maps explorer providers to the chains they index and the
// RPC nodes that serve those chains.
package chains

import (
	"errors"
	"fmt"
	"sort"

	"github.com/pendergraft/explorer-cache/internal/config"
)

// ErrNotConfigured is returned when a provider's chain has no RPC endpoint.
var ErrNotConfigured = errors.New("rpc endpoint not configured")

// Chain is an EVM network identified by its chain id
type Chain struct {
	ID     int64
	RPCURL string
}

// Registry holds provider → chain id and chain id → RPC endpoint.
// Several providers may index the same chain and share one endpoint.
type Registry struct {
	providers map[string]int64
	endpoints map[int64]string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]int64),
		endpoints: make(map[int64]string),
	}
}

// FromProviders builds a registry from the providers file. Providers without
// an rpc section are not registered.
func FromProviders(providers config.Providers) *Registry {
	r := NewRegistry()
	for _, name := range providers.Names() {
		rpc := providers[name].RPC
		if rpc == nil || rpc.ChainID == 0 {
			continue
		}
		r.Register(name, Chain{ID: rpc.ChainID, RPCURL: rpc.URL})
	}
	return r
}

// Register links a provider to a chain. A non-empty RPCURL becomes the
// endpoint for that chain; an empty one leaves any existing endpoint alone.
func (r *Registry) Register(provider string, c Chain) {
	r.providers[provider] = c.ID
	if c.RPCURL != "" {
		r.endpoints[c.ID] = c.RPCURL
	}
}

// Get returns the chain a provider indexes
func (r *Registry) Get(provider string) (Chain, bool) {
	id, ok := r.providers[provider]
	if !ok {
		return Chain{}, false
	}
	return Chain{ID: id, RPCURL: r.endpoints[id]}, true
}

// RPCURL returns the endpoint for provider's chain. A provider with no chain
// yields "" and no error; a chain with no endpoint yields ErrNotConfigured.
func (r *Registry) RPCURL(provider string) (string, error) {
	c, ok := r.Get(provider)
	if !ok {
		return "", nil
	}
	if c.RPCURL == "" {
		return "", fmt.Errorf("%w: chain %d (provider %s)", ErrNotConfigured, c.ID, provider)
	}
	return c.RPCURL, nil
}

// List returns the registered provider names in sorted order
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
