// Package dispatch handles inbound tool.call requests from the agent process:
// payload validation, permission checks, handler invocation, and result
// normalization. The agent always receives a structured ToolResult; handler
// failures never cross the RPC boundary as raw errors.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mitchellh/mapstructure"

	"github.com/pilotdesk/agentlink-go/internal/message"
	"github.com/pilotdesk/agentlink-go/internal/rpc"
	"github.com/pilotdesk/agentlink-go/internal/session"
)

// Dispatcher resolves tool invocations against a session's registered
// handlers and normalizes whatever comes back into a well-formed ToolResult.
type Dispatcher struct {
	log      *slog.Logger
	registry *session.Registry
	canUse   message.PermissionCallback
}

// New creates a dispatcher over the given registry. canUse may be nil, in
// which case every invocation is allowed.
func New(log *slog.Logger, registry *session.Registry, canUse message.PermissionCallback) *Dispatcher {
	return &Dispatcher{
		log:      log.With("component", "tool_dispatch"),
		registry: registry,
		canUse:   canUse,
	}
}

// HandleToolCall is the RPC request handler for "tool.call".
//
// Malformed payloads and unknown sessions fail the RPC request itself; these
// are protocol-level errors. Everything past that point answers successfully
// with a ToolResult, including missing handlers, handler errors, and panics.
func (d *Dispatcher) HandleToolCall(ctx context.Context, params map[string]any) (any, error) {
	inv, err := decodeInvocation(params)
	if err != nil {
		d.log.Warn("Malformed tool.call payload", "error", err)

		return nil, rpc.NewError(rpc.CodeInvalidParams, "%s", err.Error())
	}

	sess, ok := d.registry.Get(inv.SessionID)
	if !ok {
		d.log.Warn("tool.call for unknown session", "session_id", inv.SessionID)

		return nil, rpc.NewError(rpc.CodeInvalidParams, "unknown session: %s", inv.SessionID)
	}

	log := d.log.With("session_id", inv.SessionID, "tool", inv.ToolName, "tool_call_id", inv.ToolCallID)

	if result := d.checkPermission(ctx, inv); result != nil {
		log.Info("Tool invocation blocked by permission callback", "result_type", result.ResultType)

		return wrapResult(result), nil
	}

	handler, ok := sess.ToolHandler(inv.ToolName)
	if !ok {
		log.Info("No handler registered for tool")

		return wrapResult(message.FailureResult(
			fmt.Sprintf("tool %q is not supported by this client instance", inv.ToolName),
		)), nil
	}

	log.Debug("Invoking tool handler")

	return wrapResult(d.invoke(ctx, handler, inv)), nil
}

// checkPermission consults the permission callback. Returns nil to proceed,
// or the ToolResult to answer with.
func (d *Dispatcher) checkPermission(ctx context.Context, inv *message.ToolInvocation) *message.ToolResult {
	if d.canUse == nil {
		return nil
	}

	switch d.canUse(ctx, inv) {
	case message.PermissionDeny:
		return &message.ToolResult{
			TextResultForLLM: fmt.Sprintf("invocation of tool %q was denied", inv.ToolName),
			ResultType:       message.ResultDenied,
			Telemetry:        map[string]any{},
		}

	case message.PermissionReject:
		return &message.ToolResult{
			TextResultForLLM: fmt.Sprintf("invocation of tool %q was rejected", inv.ToolName),
			ResultType:       message.ResultRejected,
			Telemetry:        map[string]any{},
		}

	default:
		return nil
	}
}

// invoke runs the handler and normalizes its outcome. Panics and errors both
// become failure results carrying the message as display text and error
// field, with empty telemetry.
func (d *Dispatcher) invoke(
	ctx context.Context,
	handler message.ToolHandler,
	inv *message.ToolInvocation,
) (result *message.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Warn("Tool handler panicked", "tool", inv.ToolName, "panic", r)

			result = message.FailureResult(fmt.Sprintf("tool handler panic: %v", r))
		}
	}()

	value, err := handler(ctx, inv)
	if err != nil {
		return message.FailureResult(err.Error())
	}

	return normalize(value)
}

// normalize converts a handler's return value into an explicit ToolResult.
func normalize(value any) *message.ToolResult {
	switch v := value.(type) {
	case nil:
		return message.FailureResult("tool handler produced no result")

	case *message.ToolResult:
		if v == nil {
			return message.FailureResult("tool handler produced no result")
		}

		return v

	case string:
		// Bare string shorthand for a successful textual result.
		return message.TextResult(v)

	default:
		return message.FailureResult(fmt.Sprintf("tool handler returned unsupported result type %T", value))
	}
}

// wrapResult shapes the RPC result payload: {"result": <ToolResult>}.
func wrapResult(result *message.ToolResult) map[string]any {
	return map[string]any{"result": result}
}

// decodeInvocation validates and decodes a tool.call params map. The three
// identifying fields must be present, non-empty strings.
func decodeInvocation(params map[string]any) (*message.ToolInvocation, error) {
	if params == nil {
		return nil, fmt.Errorf("missing tool.call params")
	}

	for _, field := range []string{"sessionId", "toolCallId", "toolName"} {
		v, ok := params[field].(string)
		if !ok || v == "" {
			return nil, fmt.Errorf("tool.call params missing string field %q", field)
		}
	}

	var inv message.ToolInvocation

	if err := mapstructure.Decode(params, &inv); err != nil {
		return nil, fmt.Errorf("decode tool.call params: %w", err)
	}

	return &inv, nil
}
