package agentlink

import (
	"github.com/google/jsonschema-go/jsonschema"

	"github.com/pilotdesk/agentlink-go/internal/config"
	"github.com/pilotdesk/agentlink-go/internal/message"
	"github.com/pilotdesk/agentlink-go/internal/session"
)

// Re-export types from internal packages

// ===== Options and Configuration =====

// Options configures the behavior of the agentlink client.
// Construct with functional options; see NewClient and Query.
type Options = config.Options

// TransportMode selects how the client talks to the agent process.
type TransportMode = config.TransportMode

const (
	// TransportStdio frames messages over the process's stdio pipes.
	TransportStdio = config.TransportStdio

	// TransportTCP frames messages over a localhost TCP socket.
	TransportTCP = config.TransportTCP
)

// ===== Sessions =====

// Session is one logical conversation multiplexed over the shared channel.
type Session = session.Session

// EventHandler receives session events in the order the agent emitted them.
type EventHandler = session.EventHandler

// SessionConfig configures session creation.
type SessionConfig = message.SessionConfig

// SendOptions carries a prompt and its delivery parameters.
type SendOptions = message.SendOptions

// Attachment is an auxiliary payload delivered alongside a prompt.
type Attachment = message.Attachment

// DeliveryMode controls how the agent queues a prompt.
type DeliveryMode = message.DeliveryMode

const (
	// DeliverEnqueue appends the prompt to the session's queue (default).
	DeliverEnqueue = message.DeliverEnqueue

	// DeliverImmediate interrupts the current turn and delivers now.
	DeliverImmediate = message.DeliverImmediate
)

// ===== Events =====

// SessionEvent is a single event emitted by the agent for a session.
type SessionEvent = message.SessionEvent

const (
	// EventError marks an event carrying a session-scoped failure.
	EventError = message.EventError

	// EventIdle marks the end of a turn.
	EventIdle = message.EventIdle
)

// PingResult is the agent's answer to a ping.
type PingResult = message.PingResult

// ===== Tools =====

// ToolDefinition declares a tool the agent may invoke: its name, description,
// parameter schema, and the local handler that runs when it is called.
type ToolDefinition = message.ToolDefinition

// ToolInvocation describes one inbound tool call from the agent.
type ToolInvocation = message.ToolInvocation

// ToolResult is the structured answer to a tool invocation.
type ToolResult = message.ToolResult

// ToolHandler runs a tool invocation. It may return a *ToolResult, a bare
// string (shorthand for a successful text result), or an error.
type ToolHandler = message.ToolHandler

const (
	// ResultSuccess marks a successful tool result.
	ResultSuccess = message.ResultSuccess

	// ResultFailure marks a failed tool result.
	ResultFailure = message.ResultFailure

	// ResultRejected marks a tool invocation rejected by the permission
	// callback.
	ResultRejected = message.ResultRejected

	// ResultDenied marks a tool invocation denied by the permission callback.
	ResultDenied = message.ResultDenied
)

// TextResult creates a successful ToolResult with the given display text.
var TextResult = message.TextResult

// FailureResult creates a failed ToolResult with the given message.
var FailureResult = message.FailureResult

// ===== Permissions =====

// ToolPermission is a permission callback's verdict for one invocation.
type ToolPermission = message.ToolPermission

const (
	// PermissionAllow lets the invocation proceed.
	PermissionAllow = message.PermissionAllow

	// PermissionReject refuses the invocation as inapplicable.
	PermissionReject = message.PermissionReject

	// PermissionDeny refuses the invocation as not permitted.
	PermissionDeny = message.PermissionDeny
)

// PermissionCallback is consulted before each inbound tool invocation.
type PermissionCallback = message.PermissionCallback

// ===== Schemas =====

// Schema is a JSON Schema object for tool parameter validation.
type Schema = jsonschema.Schema
