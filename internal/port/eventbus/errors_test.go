package eventbus

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("stream full")

	tests := []struct {
		name string
		err  error
	}{
		{"connection", &ConnectionError{Servers: "nats://a", Err: cause}},
		{"publish", &PublishError{Subject: "tool.registered", EventID: "e1", Err: cause}},
		{"provisioning", &ProvisioningError{Stream: "EVENTS", Err: cause}},
		{"handler", &HandlerError{EventID: "e1", EventType: "x.y", Attempt: 2, Err: cause}},
		{"dead letter", &DeadLetterRoutingError{Subject: "dlq.x.y", EventID: "e1", Err: cause}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			if !errors.Is(wrapped, cause) {
				t.Errorf("errors.Is did not reach the cause through %T", tt.err)
			}
			if !strings.Contains(tt.err.Error(), "stream full") {
				t.Errorf("message %q lacks cause", tt.err.Error())
			}
		})
	}
}

func TestErrorsAs(t *testing.T) {
	err := fmt.Errorf("startup: %w", &ProvisioningError{Stream: "EVENTS_DLQ", Err: errors.New("insufficient resources")})

	var pe *ProvisioningError
	if !errors.As(err, &pe) {
		t.Fatal("errors.As failed for ProvisioningError")
	}
	if pe.Stream != "EVENTS_DLQ" {
		t.Errorf("stream = %q", pe.Stream)
	}
}

func TestHandlerErrorPanicMessage(t *testing.T) {
	err := &HandlerError{EventID: "e1", EventType: "x.y", Attempt: 1, Panicked: true, Err: errors.New("nil map")}
	if !strings.Contains(err.Error(), "panicked") {
		t.Errorf("message %q does not mention the panic", err.Error())
	}
}

func TestParseDeliverPolicy(t *testing.T) {
	if ParseDeliverPolicy("new") != DeliverNew {
		t.Error("new should parse to DeliverNew")
	}
	for _, s := range []string{"all", "", "bogus"} {
		if ParseDeliverPolicy(s) != DeliverAll {
			t.Errorf("%q should parse to DeliverAll", s)
		}
	}
	if DeliverNew.String() != "new" || DeliverAll.String() != "all" {
		t.Error("String round trip failed")
	}
}
