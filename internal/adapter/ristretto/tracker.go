// Package ristretto implements an in-process idempotency tracker using
// dgraph-io/ristretto. It is lossy (admission and eviction may drop ids), so
// it is only used as an L1 in front of an authoritative store.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// entryOverhead approximates the bytes held per id beyond the key itself.
const entryOverhead = 16

// Tracker keeps processed event ids in a ristretto cache with a TTL.
type Tracker struct {
	c   *ristretto.Cache[string, int64]
	ttl time.Duration
}

// New creates a tracker bounded to maxCostBytes of ids, each kept for ttl.
func New(maxCostBytes int64, ttl time.Duration) (*Tracker, error) {
	if maxCostBytes < 1<<20 {
		maxCostBytes = 1 << 20
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, int64]{
		NumCounters: maxCostBytes / 64 * 10, // ~10x expected ids (uuid + overhead ≈ 64B)
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Tracker{c: c, ttl: ttl}, nil
}

// IsProcessed reports whether id is still cached.
func (t *Tracker) IsProcessed(_ context.Context, id string) (bool, error) {
	_, found := t.c.Get(id)
	return found, nil
}

// MarkProcessed caches id. The write is flushed before returning so an
// immediate IsProcessed observes it.
func (t *Tracker) MarkProcessed(_ context.Context, id string) error {
	t.c.SetWithTTL(id, time.Now().UnixNano(), int64(len(id)+entryOverhead), t.ttl)
	t.c.Wait()
	return nil
}

// Close shuts down the cache and releases resources.
func (t *Tracker) Close() {
	t.c.Close()
}
