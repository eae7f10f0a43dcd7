package eventbus

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned when an operation is attempted while the
// broker link is down. Operations fail fast instead of queueing.
var ErrNotConnected = errors.New("event bus not connected")

// ErrClosed is returned after the connection has been closed for good.
var ErrClosed = errors.New("event bus closed")

// ConnectionError reports that the broker link could not be established.
// Fatal at startup; mid-run losses are recovered by background reconnects.
type ConnectionError struct {
	Servers string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("event bus connect %s: %v", e.Servers, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// PublishError reports a rejected or undeliverable publish. The publisher
// never retries; callers own their retry policy.
type PublishError struct {
	Subject string
	EventID string
	Err     error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s (event %s): %v", e.Subject, e.EventID, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// ProvisioningError reports a stream that could not be created for a reason
// other than already existing. Fatal at startup.
type ProvisioningError struct {
	Stream string
	Err    error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provision stream %s: %v", e.Stream, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// HandlerError reports a failed (or panicking) consumer handler. It is
// contained by the redelivery and dead-letter machinery.
type HandlerError struct {
	EventID   string
	EventType string
	Attempt   uint64
	Panicked  bool
	Err       error
}

func (e *HandlerError) Error() string {
	if e.Panicked {
		return fmt.Sprintf("handler panicked on %s (event %s, attempt %d): %v", e.EventType, e.EventID, e.Attempt, e.Err)
	}
	return fmt.Sprintf("handler failed on %s (event %s, attempt %d): %v", e.EventType, e.EventID, e.Attempt, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// DeadLetterRoutingError reports a dead-letter record that could not be
// stored. The original message is acknowledged regardless.
type DeadLetterRoutingError struct {
	Subject string
	EventID string
	Err     error
}

func (e *DeadLetterRoutingError) Error() string {
	return fmt.Sprintf("dead-letter %s (event %s): %v", e.Subject, e.EventID, e.Err)
}

func (e *DeadLetterRoutingError) Unwrap() error { return e.Err }
