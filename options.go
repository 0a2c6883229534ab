package agentlink

import (
	"log/slog"
	"time"

	"github.com/pilotdesk/agentlink-go/internal/config"
)

// Option configures Options using the functional options pattern.
// This is the primary option type for configuring clients and queries.
type Option func(*Options)

// applyOptions resolves the documented defaults and applies functional
// options on top.
func applyOptions(opts []Option) *Options {
	options := config.Default()
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Basic Configuration =====

// WithLogger sets the logger for operation tracking.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithExecutable sets the path to the agent executable.
// If not set, the executable is searched in PATH under its default name.
func WithExecutable(path string) Option {
	return func(o *Options) {
		o.ExecutablePath = path
	}
}

// WithArgs appends extra CLI arguments after the managed flags.
func WithArgs(args ...string) Option {
	return func(o *Options) {
		o.Args = args
	}
}

// WithCwd sets the working directory for the agent process.
func WithCwd(cwd string) Option {
	return func(o *Options) {
		o.Cwd = cwd
	}
}

// WithEnv provides additional environment variables for the agent process.
func WithEnv(env map[string]string) Option {
	return func(o *Options) {
		o.Env = env
	}
}

// WithLogLevel sets the log level forwarded to the agent process via
// --log-level. Defaults to "info".
func WithLogLevel(level string) Option {
	return func(o *Options) {
		o.LogLevel = level
	}
}

// ===== Transport =====

// WithStdio selects the stdio transport (the default): messages are framed
// over the supervised process's stdin and stdout pipes.
func WithStdio() Option {
	return func(o *Options) {
		o.TransportMode = config.TransportStdio
	}
}

// WithTCP selects the TCP transport with an ephemeral port: the process picks
// a port and announces it on stdout, and the client dials it on localhost.
func WithTCP() Option {
	return func(o *Options) {
		o.TransportMode = config.TransportTCP
		o.Port = 0
	}
}

// WithTCPPort selects the TCP transport with a fixed port request. The actual
// port is still taken from the process's announcement.
func WithTCPPort(port int) Option {
	return func(o *Options) {
		o.TransportMode = config.TransportTCP
		o.Port = port
	}
}

// WithTransport injects a custom transport implementation.
// When set, the client does not spawn an agent process.
func WithTransport(transport Transport) Option {
	return func(o *Options) {
		o.Transport = transport
	}
}

// ===== Lifecycle =====

// WithAutoStart controls whether CreateSession lazily starts a disconnected
// client. Enabled by default.
func WithAutoStart(enable bool) Option {
	return func(o *Options) {
		o.AutoStart = enable
	}
}

// WithAutoRestart controls reconnection after an unexpected process exit or
// channel close. Enabled by default.
func WithAutoRestart(enable bool) Option {
	return func(o *Options) {
		o.AutoRestart = enable
	}
}

// WithReadyTimeout bounds how long start waits for the process to become
// ready. Defaults to 10 seconds.
func WithReadyTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.ReadyTimeout = timeout
	}
}

// ===== Sessions and Queries =====

// WithModel selects the model for sessions created by Query.
func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// WithTools registers tools for sessions created by Query.
func WithTools(tools ...ToolDefinition) Option {
	return func(o *Options) {
		o.Tools = tools
	}
}

// WithQueryTimeout bounds a streaming query from start to idle.
// Defaults to 60 seconds.
func WithQueryTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.QueryTimeout = timeout
	}
}

// WithIncludeEphemeral controls whether Query yields ephemeral
// (streaming-chunk) events. Enabled by default.
func WithIncludeEphemeral(include bool) Option {
	return func(o *Options) {
		o.IncludeEphemeral = include
	}
}

// WithToolPermission sets a callback consulted before each inbound tool
// invocation. If not set, all invocations are allowed.
func WithToolPermission(callback PermissionCallback) Option {
	return func(o *Options) {
		o.CanInvokeTool = callback
	}
}
