// Package keyring hands out explorer API keys in round-robin order.
package keyring

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrUnknownProvider is returned when no keys are configured for a provider.
var ErrUnknownProvider = errors.New("unknown provider")

// Ring cycles through a fixed, non-empty list of keys.
type Ring struct {
	keys   []string
	cursor atomic.Uint64
}

// NewRing creates a ring over keys. The slice is copied.
func NewRing(keys []string) (*Ring, error) {
	if len(keys) == 0 {
		return nil, errors.New("key ring requires at least one key")
	}
	return &Ring{keys: append([]string(nil), keys...)}, nil
}

// Next returns the next key. Concurrent callers each observe a distinct
// position in the sequence.
func (r *Ring) Next() string {
	n := r.cursor.Add(1) - 1
	return r.keys[n%uint64(len(r.keys))]
}

// Len returns the number of keys in the ring.
func (r *Ring) Len() int {
	return len(r.keys)
}

// Rotator holds one Ring per provider.
type Rotator struct {
	rings map[string]*Ring
}

// NewRotator builds a rotator from provider name → keys.
func NewRotator(keys map[string][]string) (*Rotator, error) {
	rings := make(map[string]*Ring, len(keys))
	for provider, k := range keys {
		ring, err := NewRing(k)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", provider, err)
		}
		rings[provider] = ring
	}
	return &Rotator{rings: rings}, nil
}

// Next returns the next key for provider.
func (r *Rotator) Next(provider string) (string, error) {
	ring, ok := r.rings[provider]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	return ring.Next(), nil
}
