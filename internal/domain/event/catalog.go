package event

import "encoding/json"

// Workflow lifecycle.
const (
	TypeWorkflowCreated   Type = "workflow.created"
	TypeWorkflowStarted   Type = "workflow.started"
	TypeWorkflowCompleted Type = "workflow.completed"
	TypeWorkflowFailed    Type = "workflow.failed"
	TypeWorkflowCancelled Type = "workflow.cancelled"
)

// Execution lifecycle.
const (
	TypeExecutionStarted   Type = "execution.started"
	TypeExecutionCompleted Type = "execution.completed"
	TypeExecutionFailed    Type = "execution.failed"
	TypeExecutionCancelled Type = "execution.cancelled"

	TypeNodeStarted   Type = "execution.node.started"
	TypeNodeCompleted Type = "execution.node.completed"
	TypeNodeFailed    Type = "execution.node.failed"
)

// Agent lifecycle and invocation.
const (
	TypeAgentCreated Type = "agent.created"
	TypeAgentUpdated Type = "agent.updated"
	TypeAgentDeleted Type = "agent.deleted"

	TypeAgentExecutionStarted   Type = "agent.execution.started"
	TypeAgentExecutionCompleted Type = "agent.execution.completed"
	TypeAgentExecutionFailed    Type = "agent.execution.failed"
)

// Tool registration and invocation.
const (
	TypeToolRegistered Type = "tool.registered"

	TypeToolExecutionRequested Type = "tool.execution.requested"
	TypeToolExecutionStarted   Type = "tool.execution.started"
	TypeToolExecutionCompleted Type = "tool.execution.completed"
	TypeToolExecutionFailed    Type = "tool.execution.failed"
)

// Model registration, inference and token streaming.
const (
	TypeModelRegistered Type = "model.registered"

	TypeInferenceStarted   Type = "model.inference.started"
	TypeInferenceCompleted Type = "model.inference.completed"
	TypeInferenceFailed    Type = "model.inference.failed"

	// Token events travel on the non-durable stream path only.
	TypeTokenGenerated Type = "model.token.generated"
	TypeTokenCompleted Type = "model.token.completed"
)

// Vector search lifecycle.
const (
	TypeVectorIndexed         Type = "vector.indexed"
	TypeVectorSearchRequested Type = "vector.search.requested"
	TypeVectorSearchCompleted Type = "vector.search.completed"
	TypeVectorSearchFailed    Type = "vector.search.failed"
)

// --- Workflow ---

// WorkflowCreated is emitted when a workflow definition is stored.
type WorkflowCreated struct {
	WorkflowID string `json:"workflowId"`
	Name       string `json:"name"`
	Version    int    `json:"version"`
	CreatedBy  string `json:"createdBy,omitempty"`
}

// WorkflowStarted is emitted when a workflow run begins.
type WorkflowStarted struct {
	WorkflowID  string         `json:"workflowId"`
	ExecutionID string         `json:"executionId"`
	TriggeredBy string         `json:"triggeredBy,omitempty"`
	Input       map[string]any `json:"input,omitempty"`
}

// WorkflowCompleted is emitted when a workflow run finishes successfully.
type WorkflowCompleted struct {
	WorkflowID  string         `json:"workflowId"`
	ExecutionID string         `json:"executionId"`
	Output      map[string]any `json:"output,omitempty"`
	DurationMs  int64          `json:"durationMs"`
}

// WorkflowFailed is emitted when a workflow run fails.
type WorkflowFailed struct {
	WorkflowID  string `json:"workflowId"`
	ExecutionID string `json:"executionId"`
	Error       string `json:"error"`
	FailedNode  string `json:"failedNode,omitempty"`
}

// WorkflowCancelled is emitted when a workflow run is cancelled.
type WorkflowCancelled struct {
	WorkflowID  string `json:"workflowId"`
	ExecutionID string `json:"executionId"`
	Reason      string `json:"reason,omitempty"`
}

func (*WorkflowCreated) EventType() Type   { return TypeWorkflowCreated }
func (*WorkflowStarted) EventType() Type   { return TypeWorkflowStarted }
func (*WorkflowCompleted) EventType() Type { return TypeWorkflowCompleted }
func (*WorkflowFailed) EventType() Type    { return TypeWorkflowFailed }
func (*WorkflowCancelled) EventType() Type { return TypeWorkflowCancelled }

// --- Execution ---

// ExecutionStarted is emitted when an execution is scheduled onto a worker.
type ExecutionStarted struct {
	ExecutionID string         `json:"executionId"`
	WorkflowID  string         `json:"workflowId,omitempty"`
	Input       map[string]any `json:"input,omitempty"`
}

// ExecutionCompleted is emitted when an execution finishes successfully.
type ExecutionCompleted struct {
	ExecutionID string         `json:"executionId"`
	WorkflowID  string         `json:"workflowId,omitempty"`
	Output      map[string]any `json:"output,omitempty"`
	DurationMs  int64          `json:"durationMs"`
}

// ExecutionFailed is emitted when an execution fails.
type ExecutionFailed struct {
	ExecutionID string `json:"executionId"`
	WorkflowID  string `json:"workflowId,omitempty"`
	Error       string `json:"error"`
	Retryable   bool   `json:"retryable"`
}

// ExecutionCancelled is emitted when an execution is cancelled.
type ExecutionCancelled struct {
	ExecutionID string `json:"executionId"`
	Reason      string `json:"reason,omitempty"`
}

// NodeStarted is emitted when a single node of an execution begins.
type NodeStarted struct {
	ExecutionID string         `json:"executionId"`
	NodeID      string         `json:"nodeId"`
	NodeType    string         `json:"nodeType"`
	Input       map[string]any `json:"input,omitempty"`
}

// NodeCompleted is emitted when a node finishes successfully.
type NodeCompleted struct {
	ExecutionID string         `json:"executionId"`
	NodeID      string         `json:"nodeId"`
	Output      map[string]any `json:"output,omitempty"`
	DurationMs  int64          `json:"durationMs"`
}

// NodeFailed is emitted when a node fails.
type NodeFailed struct {
	ExecutionID string `json:"executionId"`
	NodeID      string `json:"nodeId"`
	Error       string `json:"error"`
}

func (*ExecutionStarted) EventType() Type   { return TypeExecutionStarted }
func (*ExecutionCompleted) EventType() Type { return TypeExecutionCompleted }
func (*ExecutionFailed) EventType() Type    { return TypeExecutionFailed }
func (*ExecutionCancelled) EventType() Type { return TypeExecutionCancelled }
func (*NodeStarted) EventType() Type        { return TypeNodeStarted }
func (*NodeCompleted) EventType() Type      { return TypeNodeCompleted }
func (*NodeFailed) EventType() Type         { return TypeNodeFailed }

// --- Agent ---

// AgentCreated is emitted when an agent is defined.
type AgentCreated struct {
	AgentID string   `json:"agentId"`
	Name    string   `json:"name"`
	ModelID string   `json:"modelId,omitempty"`
	Tools   []string `json:"tools,omitempty"`
}

// AgentUpdated is emitted when an agent definition changes.
type AgentUpdated struct {
	AgentID string         `json:"agentId"`
	Changes map[string]any `json:"changes,omitempty"`
}

// AgentDeleted is emitted when an agent is removed.
type AgentDeleted struct {
	AgentID string `json:"agentId"`
}

// AgentExecutionStarted is emitted when an agent begins working on an execution.
type AgentExecutionStarted struct {
	ExecutionID string `json:"executionId"`
	AgentID     string `json:"agentId"`
	Prompt      string `json:"prompt,omitempty"`
}

// AgentExecutionCompleted is emitted when an agent finishes.
type AgentExecutionCompleted struct {
	ExecutionID string `json:"executionId"`
	AgentID     string `json:"agentId"`
	Output      string `json:"output,omitempty"`
	Steps       int    `json:"steps"`
	TokensIn    int    `json:"tokensIn"`
	TokensOut   int    `json:"tokensOut"`
}

// AgentExecutionFailed is emitted when an agent run fails.
type AgentExecutionFailed struct {
	ExecutionID string `json:"executionId"`
	AgentID     string `json:"agentId"`
	Error       string `json:"error"`
}

func (*AgentCreated) EventType() Type            { return TypeAgentCreated }
func (*AgentUpdated) EventType() Type            { return TypeAgentUpdated }
func (*AgentDeleted) EventType() Type            { return TypeAgentDeleted }
func (*AgentExecutionStarted) EventType() Type   { return TypeAgentExecutionStarted }
func (*AgentExecutionCompleted) EventType() Type { return TypeAgentExecutionCompleted }
func (*AgentExecutionFailed) EventType() Type    { return TypeAgentExecutionFailed }

// --- Tool ---

// ToolRegistered is emitted when a tool becomes available to agents.
type ToolRegistered struct {
	ToolID      string          `json:"toolId"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Schema      json.RawMessage `json:"schema,omitempty"`
}

// ToolExecutionRequested is emitted when an agent asks for a tool call.
type ToolExecutionRequested struct {
	ExecutionID string         `json:"executionId"`
	CallID      string         `json:"callId"`
	ToolName    string         `json:"toolName"`
	Arguments   map[string]any `json:"arguments,omitempty"`
}

// ToolExecutionStarted is emitted when a tool call begins running.
type ToolExecutionStarted struct {
	ExecutionID string `json:"executionId"`
	CallID      string `json:"callId"`
	ToolName    string `json:"toolName"`
}

// ToolExecutionCompleted is emitted when a tool call returns.
type ToolExecutionCompleted struct {
	ExecutionID string          `json:"executionId"`
	CallID      string          `json:"callId"`
	ToolName    string          `json:"toolName"`
	Result      json.RawMessage `json:"result,omitempty"`
	DurationMs  int64           `json:"durationMs"`
}

// ToolExecutionFailed is emitted when a tool call fails.
type ToolExecutionFailed struct {
	ExecutionID string `json:"executionId"`
	CallID      string `json:"callId"`
	ToolName    string `json:"toolName"`
	Error       string `json:"error"`
}

func (*ToolRegistered) EventType() Type         { return TypeToolRegistered }
func (*ToolExecutionRequested) EventType() Type { return TypeToolExecutionRequested }
func (*ToolExecutionStarted) EventType() Type   { return TypeToolExecutionStarted }
func (*ToolExecutionCompleted) EventType() Type { return TypeToolExecutionCompleted }
func (*ToolExecutionFailed) EventType() Type    { return TypeToolExecutionFailed }

// --- Model ---

// ModelRegistered is emitted when a model endpoint is added.
type ModelRegistered struct {
	ModelID       string `json:"modelId"`
	Provider      string `json:"provider"`
	ContextWindow int    `json:"contextWindow,omitempty"`
}

// InferenceStarted is emitted when a model call is issued.
type InferenceStarted struct {
	ExecutionID string `json:"executionId"`
	InferenceID string `json:"inferenceId"`
	ModelID     string `json:"modelId"`
	Streaming   bool   `json:"streaming"`
}

// InferenceCompleted is emitted when a model call returns.
type InferenceCompleted struct {
	ExecutionID      string  `json:"executionId"`
	InferenceID      string  `json:"inferenceId"`
	ModelID          string  `json:"modelId"`
	PromptTokens     int     `json:"promptTokens"`
	CompletionTokens int     `json:"completionTokens"`
	LatencyMs        int64   `json:"latencyMs"`
	CostUSD          float64 `json:"costUsd,omitempty"`
}

// InferenceFailed is emitted when a model call fails.
type InferenceFailed struct {
	ExecutionID string `json:"executionId"`
	InferenceID string `json:"inferenceId"`
	ModelID     string `json:"modelId"`
	Error       string `json:"error"`
}

// TokenGenerated carries one increment of streamed model output.
type TokenGenerated struct {
	ExecutionID string `json:"executionId"`
	InferenceID string `json:"inferenceId"`
	Index       int    `json:"index"`
	Token       string `json:"token"`
}

// TokenCompleted marks the end of a token stream.
type TokenCompleted struct {
	ExecutionID  string `json:"executionId"`
	InferenceID  string `json:"inferenceId"`
	TotalTokens  int    `json:"totalTokens"`
	FinishReason string `json:"finishReason,omitempty"`
}

func (*ModelRegistered) EventType() Type    { return TypeModelRegistered }
func (*InferenceStarted) EventType() Type   { return TypeInferenceStarted }
func (*InferenceCompleted) EventType() Type { return TypeInferenceCompleted }
func (*InferenceFailed) EventType() Type    { return TypeInferenceFailed }
func (*TokenGenerated) EventType() Type     { return TypeTokenGenerated }
func (*TokenCompleted) EventType() Type     { return TypeTokenCompleted }

// --- Vector ---

// VectorIndexed is emitted when a document is embedded into a collection.
type VectorIndexed struct {
	Collection string `json:"collection"`
	DocumentID string `json:"documentId"`
	Dimensions int    `json:"dimensions"`
}

// VectorSearchRequested is emitted when a similarity search is issued.
type VectorSearchRequested struct {
	SearchID   string         `json:"searchId"`
	Collection string         `json:"collection"`
	Query      string         `json:"query"`
	TopK       int            `json:"topK"`
	Filter     map[string]any `json:"filter,omitempty"`
}

// VectorSearchCompleted is emitted when a similarity search returns.
type VectorSearchCompleted struct {
	SearchID    string   `json:"searchId"`
	Collection  string   `json:"collection"`
	ResultIDs   []string `json:"resultIds"`
	TopScore    float64  `json:"topScore,omitempty"`
	LatencyMs   int64    `json:"latencyMs"`
	ResultCount int      `json:"resultCount"`
}

// VectorSearchFailed is emitted when a similarity search fails.
type VectorSearchFailed struct {
	SearchID   string `json:"searchId"`
	Collection string `json:"collection"`
	Error      string `json:"error"`
}

func (*VectorIndexed) EventType() Type         { return TypeVectorIndexed }
func (*VectorSearchRequested) EventType() Type { return TypeVectorSearchRequested }
func (*VectorSearchCompleted) EventType() Type { return TypeVectorSearchCompleted }
func (*VectorSearchFailed) EventType() Type    { return TypeVectorSearchFailed }
