package message

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
)

// Result type tags for ToolResult.ResultType.
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultRejected = "rejected"
	ResultDenied   = "denied"
)

// ToolHandler executes a tool invocation on behalf of the agent process.
//
// The returned value may be a *ToolResult, a plain string (shorthand for a
// successful textual result), or nil. A nil result with a nil error is
// normalized by the dispatcher to an explicit failure result; a non-nil error
// or a panic is converted to a failure result carrying the message. The agent
// process always receives a structured answer.
type ToolHandler func(ctx context.Context, inv *ToolInvocation) (any, error)

// ToolDefinition describes a caller-supplied tool: the name, description, and
// parameter schema are sent to the agent process in the session's tool
// manifest; the handler stays local and is never sent over the wire.
type ToolDefinition struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
	Handler     ToolHandler        `json:"-"`
}

// ToolInvocation is an inbound "tool.call" request from the agent process.
type ToolInvocation struct {
	SessionID  string         `json:"sessionId" mapstructure:"sessionId"`
	ToolCallID string         `json:"toolCallId" mapstructure:"toolCallId"`
	ToolName   string         `json:"toolName" mapstructure:"toolName"`
	Arguments  map[string]any `json:"arguments,omitempty" mapstructure:"arguments"`
}

// ToolResult is the structured answer returned for a tool invocation.
type ToolResult struct {
	// TextResultForLLM is the textual result presented to the model.
	TextResultForLLM string `json:"textResultForLlm"`

	// ResultType is one of "success", "failure", "rejected", "denied".
	ResultType string `json:"resultType"`

	// BinaryResultsForLLM carries optional binary attachments.
	BinaryResultsForLLM []BinaryResult `json:"binaryResultsForLlm,omitempty"`

	// Error describes the failure when ResultType is not "success".
	Error string `json:"error,omitempty"`

	// Telemetry carries optional implementation-defined measurements.
	Telemetry map[string]any `json:"telemetry,omitempty"`
}

// BinaryResult is a single binary attachment in a tool result.
type BinaryResult struct {
	MediaType string `json:"mediaType"`
	Data      []byte `json:"data"`
}

// TextResult returns a successful textual tool result.
func TextResult(text string) *ToolResult {
	return &ToolResult{
		TextResultForLLM: text,
		ResultType:       ResultSuccess,
	}
}

// FailureResult returns a failure tool result with the message as both
// display text and error field.
func FailureResult(msg string) *ToolResult {
	return &ToolResult{
		TextResultForLLM: msg,
		ResultType:       ResultFailure,
		Error:            msg,
		Telemetry:        map[string]any{},
	}
}

// ToolPermission is the outcome of a permission callback.
type ToolPermission int

const (
	// PermissionAllow lets the invocation proceed to the tool handler.
	PermissionAllow ToolPermission = iota

	// PermissionReject answers the invocation with a "rejected" result.
	PermissionReject

	// PermissionDeny answers the invocation with a "denied" result.
	PermissionDeny
)

// PermissionCallback is consulted before each tool invocation is dispatched.
// If nil, all invocations are allowed.
type PermissionCallback func(ctx context.Context, inv *ToolInvocation) ToolPermission
