package tiered_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Strob0t/eventcore/internal/adapter/tiered"
	"github.com/Strob0t/eventcore/internal/port/idempotency/idempotencytest"
)

// memTracker is a simple in-memory tracker for testing.
type memTracker struct {
	seen    map[string]bool
	failGet error
	failSet error
}

func newMemTracker() *memTracker {
	return &memTracker{seen: make(map[string]bool)}
}

func (m *memTracker) IsProcessed(_ context.Context, id string) (bool, error) {
	if m.failGet != nil {
		return false, m.failGet
	}
	return m.seen[id], nil
}

func (m *memTracker) MarkProcessed(_ context.Context, id string) error {
	if m.failSet != nil {
		return m.failSet
	}
	m.seen[id] = true
	return nil
}

func TestTiered_Compliance(t *testing.T) {
	idempotencytest.RunComplianceTests(t, tiered.New(newMemTracker(), newMemTracker()))
}

func TestTiered_L1Hit(t *testing.T) {
	l1, l2 := newMemTracker(), newMemTracker()
	tr := tiered.New(l1, l2)

	l1.seen["e1"] = true

	ok, err := tr.IsProcessed(context.Background(), "e1")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected L1 hit")
	}
}

func TestTiered_L2HitWithBackfill(t *testing.T) {
	l1, l2 := newMemTracker(), newMemTracker()
	tr := tiered.New(l1, l2)

	l2.seen["e2"] = true

	ok, err := tr.IsProcessed(context.Background(), "e2")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected L2 hit")
	}
	if !l1.seen["e2"] {
		t.Fatal("expected L1 backfill")
	}
}

func TestTiered_MarkWritesBoth(t *testing.T) {
	l1, l2 := newMemTracker(), newMemTracker()
	tr := tiered.New(l1, l2)

	if err := tr.MarkProcessed(context.Background(), "e3"); err != nil {
		t.Fatal(err)
	}
	if !l1.seen["e3"] || !l2.seen["e3"] {
		t.Fatalf("expected both levels marked, l1=%v l2=%v", l1.seen["e3"], l2.seen["e3"])
	}
}

func TestTiered_L2WriteFailureSurfaces(t *testing.T) {
	l1, l2 := newMemTracker(), newMemTracker()
	l2.failSet = errors.New("kv unavailable")
	tr := tiered.New(l1, l2)

	if err := tr.MarkProcessed(context.Background(), "e4"); err == nil {
		t.Fatal("expected L2 error")
	}
	if l1.seen["e4"] {
		t.Fatal("L1 must not be marked when L2 failed")
	}
}

func TestTiered_L1FailureFallsBackToL2(t *testing.T) {
	l1, l2 := newMemTracker(), newMemTracker()
	l1.failGet = errors.New("l1 broken")
	l2.seen["e5"] = true
	tr := tiered.New(l1, l2)

	ok, err := tr.IsProcessed(context.Background(), "e5")
	if err != nil {
		t.Fatalf("L1 failure should not surface: %v", err)
	}
	if !ok {
		t.Fatal("expected L2 hit")
	}
}
