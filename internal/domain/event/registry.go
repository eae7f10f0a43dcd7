package event

import (
	"bytes"
	"encoding/json"
	"strings"
)

// registry maps each known type to a constructor for its payload.
var registry = map[Type]func() Payload{
	TypeWorkflowCreated:   func() Payload { return &WorkflowCreated{} },
	TypeWorkflowStarted:   func() Payload { return &WorkflowStarted{} },
	TypeWorkflowCompleted: func() Payload { return &WorkflowCompleted{} },
	TypeWorkflowFailed:    func() Payload { return &WorkflowFailed{} },
	TypeWorkflowCancelled: func() Payload { return &WorkflowCancelled{} },

	TypeExecutionStarted:   func() Payload { return &ExecutionStarted{} },
	TypeExecutionCompleted: func() Payload { return &ExecutionCompleted{} },
	TypeExecutionFailed:    func() Payload { return &ExecutionFailed{} },
	TypeExecutionCancelled: func() Payload { return &ExecutionCancelled{} },
	TypeNodeStarted:        func() Payload { return &NodeStarted{} },
	TypeNodeCompleted:      func() Payload { return &NodeCompleted{} },
	TypeNodeFailed:         func() Payload { return &NodeFailed{} },

	TypeAgentCreated:            func() Payload { return &AgentCreated{} },
	TypeAgentUpdated:            func() Payload { return &AgentUpdated{} },
	TypeAgentDeleted:            func() Payload { return &AgentDeleted{} },
	TypeAgentExecutionStarted:   func() Payload { return &AgentExecutionStarted{} },
	TypeAgentExecutionCompleted: func() Payload { return &AgentExecutionCompleted{} },
	TypeAgentExecutionFailed:    func() Payload { return &AgentExecutionFailed{} },

	TypeToolRegistered:         func() Payload { return &ToolRegistered{} },
	TypeToolExecutionRequested: func() Payload { return &ToolExecutionRequested{} },
	TypeToolExecutionStarted:   func() Payload { return &ToolExecutionStarted{} },
	TypeToolExecutionCompleted: func() Payload { return &ToolExecutionCompleted{} },
	TypeToolExecutionFailed:    func() Payload { return &ToolExecutionFailed{} },

	TypeModelRegistered:    func() Payload { return &ModelRegistered{} },
	TypeInferenceStarted:   func() Payload { return &InferenceStarted{} },
	TypeInferenceCompleted: func() Payload { return &InferenceCompleted{} },
	TypeInferenceFailed:    func() Payload { return &InferenceFailed{} },
	TypeTokenGenerated:     func() Payload { return &TokenGenerated{} },
	TypeTokenCompleted:     func() Payload { return &TokenCompleted{} },

	TypeVectorIndexed:         func() Payload { return &VectorIndexed{} },
	TypeVectorSearchRequested: func() Payload { return &VectorSearchRequested{} },
	TypeVectorSearchCompleted: func() Payload { return &VectorSearchCompleted{} },
	TypeVectorSearchFailed:    func() Payload { return &VectorSearchFailed{} },
}

// Known reports whether t has a registered payload in this build.
func Known(t Type) bool {
	if IsDeadLetter(t) {
		return true
	}
	_, ok := registry[t]
	return ok
}

// Types returns every registered type. Order is unspecified.
func Types() []Type {
	out := make([]Type, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	return out
}

// Unknown holds the payload of an event type this build does not know.
// It re-encodes to the same JSON value it was decoded from, with
// insignificant whitespace removed.
type Unknown struct {
	Type Type            `json:"-"`
	Raw  json.RawMessage `json:"-"`
}

// EventType returns the type the event was published with.
func (u *Unknown) EventType() Type { return u.Type }

// MarshalJSON emits the original payload bytes.
func (u *Unknown) MarshalJSON() ([]byte, error) {
	if len(u.Raw) == 0 {
		return []byte("null"), nil
	}
	return u.Raw, nil
}

// decodePayload resolves raw data for t. Unknown types never fail; known
// types with absent data yield a nil payload, which Validate rejects.
func decodePayload(t Type, raw json.RawMessage) (Payload, error) {
	var ctor func() Payload
	switch {
	case IsDeadLetter(t):
		ctor = func() Payload { return &DeadLetter{} }
	default:
		ctor = registry[t]
	}
	if ctor == nil {
		return &Unknown{Type: t, Raw: append(json.RawMessage(nil), raw...)}, nil
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	p := ctor()
	if err := json.Unmarshal(trimmed, p); err != nil {
		return nil, err
	}
	if dl, ok := p.(*DeadLetter); ok && dl.OriginalType == "" {
		dl.OriginalType = Type(strings.TrimPrefix(string(t), DeadLetterPrefix))
	}
	return p, nil
}
