// Package idempotency provides the in-process processed-event tracker.
//
// The tracker only de-duplicates within one process and one TTL window: its
// state is lost on restart and is not shared between replicas of the same
// consumer. Deployments that need more use the JetStream KV backed tracker.
package idempotency

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultTTL is how long a processed event id is remembered.
const DefaultTTL = time.Hour

// Memory is an expiring set of processed event ids, safe for concurrent use
// by every consumption loop and the sweeper.
type Memory struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time // for testing
}

// NewMemory creates a tracker that forgets ids ttl after they were marked.
// A non-positive ttl uses DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// IsProcessed reports whether id was marked within the TTL. Expired entries
// count as unprocessed even before the sweep removes them.
func (m *Memory) IsProcessed(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	at, ok := m.seen[id]
	if !ok {
		return false, nil
	}
	if m.now().Sub(at) >= m.ttl {
		delete(m.seen, id)
		return false, nil
	}
	return true, nil
}

// MarkProcessed records id with the current time.
func (m *Memory) MarkProcessed(_ context.Context, id string) error {
	m.mu.Lock()
	m.seen[id] = m.now()
	m.mu.Unlock()
	return nil
}

// Sweep removes entries older than the TTL and returns how many were removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.ttl)
	removed := 0
	for id, at := range m.seen {
		if !at.After(cutoff) {
			delete(m.seen, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked ids, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

// Run sweeps every interval until ctx is cancelled.
func (m *Memory) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				slog.Debug("idempotency sweep", "removed", n, "remaining", m.Len())
			}
		}
	}
}
