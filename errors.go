package agentlink

import "github.com/pilotdesk/agentlink-go/internal/errors"

// Re-export error types from internal package

// AgentNotFoundError indicates the agent executable was not found.
type AgentNotFoundError = errors.AgentNotFoundError

// ConnectionError indicates failure to establish or keep a connection to the
// agent process.
type ConnectionError = errors.ConnectionError

// ProcessError indicates the agent process exited abnormally.
type ProcessError = errors.ProcessError

// ReadinessTimeoutError indicates the agent process did not become ready in
// time.
type ReadinessTimeoutError = errors.ReadinessTimeoutError

// QueryTimeoutError indicates a streaming query exceeded its timeout.
type QueryTimeoutError = errors.QueryTimeoutError

// SessionError indicates a session-scoped failure reported by the agent.
type SessionError = errors.SessionError

// JSONDecodeError indicates a frame from the agent could not be decoded.
type JSONDecodeError = errors.JSONDecodeError

// AgentLinkError is the base interface implemented by all typed errors in
// this package.
type AgentLinkError = errors.AgentLinkError

// Re-export sentinel errors from internal package.
var (
	// ErrNotConnected indicates the client is not connected.
	ErrNotConnected = errors.ErrNotConnected

	// ErrAlreadyConnected indicates a start on an already-started connection.
	ErrAlreadyConnected = errors.ErrAlreadyConnected

	// ErrChannelClosed indicates the RPC channel has shut down.
	ErrChannelClosed = errors.ErrChannelClosed

	// ErrRequestTimeout indicates a request timed out.
	ErrRequestTimeout = errors.ErrRequestTimeout

	// ErrSessionDestroyed indicates an operation on a destroyed session.
	ErrSessionDestroyed = errors.ErrSessionDestroyed
)
