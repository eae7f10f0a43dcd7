// Package event defines the domain events exchanged on the event bus.
//
// Every event is a BaseEvent envelope plus a typed Data payload. The payload
// type is the variant of the tagged union and EventType is its discriminator.
// Consumers switch on the payload type and must treat *Unknown (a type this
// build does not know about) as an explicit ignore path.
package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/eventcore/internal/domain"
)

// Type identifies the kind of domain event. It doubles as the bus subject.
type Type string

// CurrentVersion is the schema version stamped on newly created events.
const CurrentVersion = "1.0"

// BaseEvent is the envelope shared by every event on the bus.
type BaseEvent struct {
	// EventID is producer-assigned and unique per logical occurrence.
	// Redeliveries of the same message carry the same EventID; it is also
	// the broker deduplication key.
	EventID       string    `json:"eventId"`
	EventType     Type      `json:"eventType"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlationId,omitempty"`
	CausationID   string    `json:"causationId,omitempty"`
	Version       string    `json:"version"`
}

// Payload is implemented by every event variant.
type Payload interface {
	EventType() Type
}

// Event is a BaseEvent envelope with its variant payload.
type Event struct {
	BaseEvent
	Data Payload `json:"data"`
}

// Option customizes an event built by New.
type Option func(*Event)

// WithCorrelationID ties the event to a causal chain.
func WithCorrelationID(id string) Option {
	return func(e *Event) { e.CorrelationID = id }
}

// WithCausationID records the id of the event that triggered this one.
func WithCausationID(id string) Option {
	return func(e *Event) { e.CausationID = id }
}

// WithEventID overrides the generated event id. Producers that retry a
// publish must reuse the id of the first attempt.
func WithEventID(id string) Option {
	return func(e *Event) { e.EventID = id }
}

// WithTimestamp overrides the creation time.
func WithTimestamp(ts time.Time) Option {
	return func(e *Event) { e.Timestamp = ts }
}

// CausedBy continues the causal chain of parent: the new event inherits the
// parent's correlation id (or the parent id when it has none) and records the
// parent as its cause.
func CausedBy(parent *Event) Option {
	return func(e *Event) {
		if parent == nil {
			return
		}
		e.CausationID = parent.EventID
		e.CorrelationID = parent.CorrelationID
		if e.CorrelationID == "" {
			e.CorrelationID = parent.EventID
		}
	}
}

// New builds an event for payload with a fresh id and the current time.
func New(payload Payload, opts ...Option) *Event {
	e := &Event{
		BaseEvent: BaseEvent{
			EventID:   uuid.NewString(),
			EventType: payload.EventType(),
			Timestamp: time.Now().UTC(),
			Version:   CurrentVersion,
		},
		Data: payload,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate checks the fields the bus relies on.
func (e *Event) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: nil event", domain.ErrValidation)
	}
	if e.EventID == "" {
		return fmt.Errorf("%w: eventId is required", domain.ErrValidation)
	}
	if e.EventType == "" {
		return fmt.Errorf("%w: eventType is required", domain.ErrValidation)
	}
	if e.Data == nil {
		return fmt.Errorf("%w: data is required for %s", domain.ErrValidation, e.EventType)
	}
	return nil
}

// Subject returns the bus subject the event is published on.
func (e *Event) Subject() string {
	return string(e.EventType)
}

// UnmarshalJSON decodes the envelope and resolves Data through the registry.
func (e *Event) UnmarshalJSON(b []byte) error {
	var raw struct {
		BaseEvent
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	payload, err := decodePayload(raw.EventType, raw.Data)
	if err != nil {
		return fmt.Errorf("decode %s data: %w", raw.EventType, err)
	}
	e.BaseEvent = raw.BaseEvent
	e.Data = payload
	return nil
}

// Decode parses a serialized event and validates its envelope.
func Decode(b []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// Encode serializes an event to its wire form. HTML characters in string
// values are written as is.
func Encode(e *Event) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
