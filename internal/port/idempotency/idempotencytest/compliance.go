// Package idempotencytest provides a compliance suite for idempotency.Tracker
// implementations.
package idempotencytest

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/Strob0t/eventcore/internal/port/idempotency"
)

// RunComplianceTests runs the standard suite against any Tracker. The tracker
// must be empty of the ids the suite generates and use a TTL of at least a
// minute.
func RunComplianceTests(t *testing.T, tr idempotency.Tracker) {
	t.Helper()
	ctx := context.Background()

	t.Run("UnknownIsUnprocessed", func(t *testing.T) {
		ok, err := tr.IsProcessed(ctx, uuid.NewString())
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Fatal("expected fresh id to be unprocessed")
		}
	})

	t.Run("MarkThenCheck", func(t *testing.T) {
		id := uuid.NewString()
		if err := tr.MarkProcessed(ctx, id); err != nil {
			t.Fatal(err)
		}
		ok, err := tr.IsProcessed(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatal("expected id to be processed after MarkProcessed")
		}
	})

	t.Run("MarkTwice", func(t *testing.T) {
		id := uuid.NewString()
		if err := tr.MarkProcessed(ctx, id); err != nil {
			t.Fatal(err)
		}
		if err := tr.MarkProcessed(ctx, id); err != nil {
			t.Fatalf("second MarkProcessed: %v", err)
		}
		if ok, _ := tr.IsProcessed(ctx, id); !ok {
			t.Fatal("expected id to stay processed")
		}
	})

	t.Run("IDsAreIndependent", func(t *testing.T) {
		a, b := uuid.NewString(), uuid.NewString()
		if err := tr.MarkProcessed(ctx, a); err != nil {
			t.Fatal(err)
		}
		if ok, _ := tr.IsProcessed(ctx, b); ok {
			t.Fatal("marking one id must not mark another")
		}
	})
}
