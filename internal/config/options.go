package config

import (
	"log/slog"
	"time"

	"github.com/pilotdesk/agentlink-go/internal/message"
)

const (
	// DefaultReadyTimeout bounds how long start() waits for the process to
	// become ready (TCP port announcement).
	DefaultReadyTimeout = 10 * time.Second

	// DefaultQueryTimeout bounds a streaming query from start to idle.
	DefaultQueryTimeout = 60 * time.Second

	// DefaultLogLevel is passed to the agent process via --log-level.
	DefaultLogLevel = "info"

	// DefaultExecutable is the agent executable name looked up in PATH when
	// no explicit path is configured.
	DefaultExecutable = "agentd"
)

// Options configures the behavior of the agentlink client.
type Options struct {
	// Logger is the slog logger for operation tracking.
	// If nil, logging is disabled (silent operation).
	Logger *slog.Logger

	// ExecutablePath is the path to the agent executable. Empty resolves to
	// DefaultExecutable through the usual PATH lookup.
	ExecutablePath string

	// Args are extra CLI arguments appended after the managed flags.
	Args []string

	// Cwd sets the working directory for the agent process.
	Cwd string

	// Env provides additional environment variables for the agent process.
	Env map[string]string

	// TransportMode selects stdio pipes or a localhost TCP socket.
	TransportMode TransportMode

	// Port is the TCP port to request in TCP mode. Zero lets the process
	// pick; the actual port is taken from its "listening on port N"
	// announcement either way.
	Port int

	// LogLevel is forwarded to the agent process via --log-level.
	LogLevel string

	// AutoStart makes CreateSession lazily start a disconnected client.
	AutoStart bool

	// AutoRestart reconnects after an unexpected process exit or channel
	// close while connected.
	AutoRestart bool

	// ReadyTimeout bounds process readiness during start.
	ReadyTimeout time.Duration

	// Model optionally selects the model for sessions created by Query.
	Model string

	// Tools are the tools offered to sessions created by Query.
	Tools []message.ToolDefinition

	// QueryTimeout bounds a streaming query from start to idle.
	QueryTimeout time.Duration

	// IncludeEphemeral controls whether Query yields ephemeral
	// (streaming-chunk) events. Defaults to true.
	IncludeEphemeral bool

	// CanInvokeTool is consulted before each inbound tool invocation.
	// If nil, all invocations are allowed.
	CanInvokeTool message.PermissionCallback

	// Transport allows injecting a custom transport implementation.
	// If set, the client does not spawn an agent process.
	// This field is not serialized to JSON.
	Transport Transport `json:"-"`
}

// Default returns Options populated with the documented defaults: stdio
// transport, auto-start and auto-restart enabled, ephemeral events included.
func Default() *Options {
	return &Options{
		TransportMode:    TransportStdio,
		LogLevel:         DefaultLogLevel,
		AutoStart:        true,
		AutoRestart:      true,
		ReadyTimeout:     DefaultReadyTimeout,
		QueryTimeout:     DefaultQueryTimeout,
		IncludeEphemeral: true,
	}
}
