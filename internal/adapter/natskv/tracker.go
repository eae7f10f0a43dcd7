// Package natskv implements the idempotency tracker on a NATS JetStream
// KeyValue bucket, sharing processed ids across replicas and restarts.
package natskv

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// validKey matches the characters JetStream accepts in KV keys.
var validKey = regexp.MustCompile(`^[-/_=a-zA-Z0-9]+(\.[-/_=a-zA-Z0-9]+)*$`)

// Tracker stores processed event ids in a KV bucket. Expiry is managed at
// bucket level, see nats.Conn.KeyValue.
type Tracker struct {
	kv jetstream.KeyValue
}

// New wraps an existing bucket.
func New(kv jetstream.KeyValue) *Tracker {
	return &Tracker{kv: kv}
}

// IsProcessed reports whether id is present in the bucket.
func (t *Tracker) IsProcessed(ctx context.Context, id string) (bool, error) {
	_, err := t.kv.Get(ctx, Key(id))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("kv get %s: %w", id, err)
	}
	return true, nil
}

// MarkProcessed stores id with the current unix time as value.
func (t *Tracker) MarkProcessed(ctx context.Context, id string) error {
	stamp := strconv.FormatInt(time.Now().Unix(), 10)
	if _, err := t.kv.Put(ctx, Key(id), []byte(stamp)); err != nil {
		return fmt.Errorf("kv put %s: %w", id, err)
	}
	return nil
}

// Key maps an event id to a legal KV key. Ids that are already legal are
// kept verbatim; others are hashed.
func Key(id string) string {
	if validKey.MatchString(id) {
		return id
	}
	sum := sha256.Sum256([]byte(id))
	return "h_" + hex.EncodeToString(sum[:])
}
