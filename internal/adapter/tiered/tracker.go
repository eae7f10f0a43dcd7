// Package tiered implements a two-level (L1 + L2) idempotency tracker.
package tiered

import (
	"context"
	"log/slog"

	"github.com/Strob0t/eventcore/internal/port/idempotency"
)

// Tracker combines a fast, lossy L1 with an authoritative L2.
// IsProcessed checks L1 first, then L2 (backfilling L1 on L2 hit).
// MarkProcessed writes L2 first so a failed write is never hidden by L1.
type Tracker struct {
	l1 idempotency.Tracker
	l2 idempotency.Tracker
}

// New creates a tiered tracker.
func New(l1, l2 idempotency.Tracker) *Tracker {
	return &Tracker{l1: l1, l2: l2}
}

// IsProcessed checks L1, then L2. L1 errors degrade to an L2 lookup.
func (t *Tracker) IsProcessed(ctx context.Context, id string) (bool, error) {
	ok, err := t.l1.IsProcessed(ctx, id)
	if err != nil {
		slog.Warn("idempotency l1 lookup failed", "event_id", id, "error", err)
	}
	if ok {
		return true, nil
	}

	ok, err = t.l2.IsProcessed(ctx, id)
	if err != nil {
		return false, err
	}
	if ok {
		if err := t.l1.MarkProcessed(ctx, id); err != nil {
			slog.Warn("idempotency l1 backfill failed", "event_id", id, "error", err)
		}
	}
	return ok, nil
}

// MarkProcessed writes to L2, then L1.
func (t *Tracker) MarkProcessed(ctx context.Context, id string) error {
	if err := t.l2.MarkProcessed(ctx, id); err != nil {
		return err
	}
	if err := t.l1.MarkProcessed(ctx, id); err != nil {
		slog.Warn("idempotency l1 write failed", "event_id", id, "error", err)
	}
	return nil
}
