package event

import (
	"strings"
	"time"
)

// DeadLetterPrefix is the subject prefix of the quarantine namespace.
const DeadLetterPrefix = "dlq."

// DeadLetter wraps an event that exhausted its delivery attempts.
// It is created once by the dead-letter router and never mutated.
type DeadLetter struct {
	// OriginalEvent holds the message body byte for byte as it was
	// delivered, base64 on the wire. Undecodable bodies are kept as well.
	OriginalEvent   []byte    `json:"originalEvent"`
	OriginalType    Type      `json:"originalType"`
	OriginalSubject string    `json:"originalSubject"`
	FailureReason   string    `json:"failureReason"`
	FailureCount    int       `json:"failureCount"`
	FirstFailureAt  time.Time `json:"firstFailureAt"`
	LastFailureAt   time.Time `json:"lastFailureAt"`
	Consumer        string    `json:"consumer,omitempty"`
	StreamSequence  uint64    `json:"streamSequence,omitempty"`
}

// EventType returns the quarantine type for the wrapped event.
func (d *DeadLetter) EventType() Type {
	return DeadLetterType(d.OriginalType)
}

// Original decodes the wrapped event. Undecodable originals (poison
// messages) return an error; the raw bytes remain in OriginalEvent.
func (d *DeadLetter) Original() (*Event, error) {
	return Decode(d.OriginalEvent)
}

// DeadLetterType returns the quarantine type for t.
func DeadLetterType(t Type) Type {
	return Type(DeadLetterPrefix + string(t))
}

// DeadLetterSubject returns the quarantine subject for events of type t.
func DeadLetterSubject(t Type) string {
	return DeadLetterPrefix + string(t)
}

// IsDeadLetter reports whether t is a quarantine type.
func IsDeadLetter(t Type) bool {
	return strings.HasPrefix(string(t), DeadLetterPrefix)
}
