// Package idempotency defines the port for processed-event tracking.
package idempotency

import "context"

// Tracker remembers which event ids have been handled successfully.
// It protects handlers from running twice for one event; it does not stop
// the broker from storing a message twice.
type Tracker interface {
	// IsProcessed reports whether id was marked within the retention window.
	IsProcessed(ctx context.Context, id string) (bool, error)

	// MarkProcessed records id as handled now.
	MarkProcessed(ctx context.Context, id string) error
}
