package domain

import (
	"context"
	"sync"
)

// lockTable holds one single-slot semaphore per Key. Entries are never removed.
type lockTable struct {
	m sync.Map // Key -> chan struct{}
}

// lock waits until k is held or ctx is done. On success it returns the
// matching unlock.
func (t *lockTable) lock(ctx context.Context, k Key) (func(), error) {
	v, ok := t.m.Load(k)
	if !ok {
		v, _ = t.m.LoadOrStore(k, make(chan struct{}, 1))
	}
	sem := v.(chan struct{})

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
