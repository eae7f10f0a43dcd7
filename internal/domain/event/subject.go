package event

import "strings"

// DurableSubjects lists the subject namespaces captured by the main stream.
// model.token.* is deliberately absent: token events are fan-out only and
// must not be persisted.
var DurableSubjects = []string{
	"workflow.*",
	"execution.*",
	"execution.node.*",
	"agent.*",
	"agent.execution.*",
	"tool.*",
	"tool.execution.*",
	"model.*",
	"model.inference.*",
	"vector.*",
	"vector.search.*",
}

// StreamingSubjects lists the non-durable fan-out namespaces.
var StreamingSubjects = []string{
	"model.token.*",
}

// DeadLetterSubjects lists the subject namespaces captured by the DLQ stream.
var DeadLetterSubjects = []string{
	DeadLetterPrefix + ">",
}

// tokenPrefix is the namespace of non-durable token events.
const tokenPrefix = "model.token."

// IsStreaming reports whether t belongs to the non-durable token namespace.
func IsStreaming(t Type) bool {
	return strings.HasPrefix(string(t), tokenPrefix)
}
