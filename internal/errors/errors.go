// Package errors defines the typed errors and sentinels used across the
// agentlink runtime.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// AgentLinkError is the base interface for all runtime errors.
type AgentLinkError interface {
	error
	IsAgentLinkError() bool
}

// Compile-time verification that all error types implement AgentLinkError.
var (
	_ AgentLinkError = (*AgentNotFoundError)(nil)
	_ AgentLinkError = (*ConnectionError)(nil)
	_ AgentLinkError = (*ProcessError)(nil)
	_ AgentLinkError = (*ReadinessTimeoutError)(nil)
	_ AgentLinkError = (*QueryTimeoutError)(nil)
	_ AgentLinkError = (*SessionError)(nil)
	_ AgentLinkError = (*JSONDecodeError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrNotConnected indicates the client is not connected.
	ErrNotConnected = errors.New("client not connected")

	// ErrAlreadyConnected indicates a start on an already-started connection.
	ErrAlreadyConnected = errors.New("client already connected")

	// ErrChannelClosed indicates the RPC channel has closed; outstanding
	// requests are rejected with this error when no transport error is known.
	ErrChannelClosed = errors.New("rpc channel closed")

	// ErrRequestTimeout indicates an RPC request timed out.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrSessionDestroyed indicates an operation on a destroyed session.
	ErrSessionDestroyed = errors.New("session destroyed")
)

// AgentNotFoundError indicates the agent executable was not found.
type AgentNotFoundError struct {
	Path string
	Err  error
}

func (e *AgentNotFoundError) Error() string {
	return fmt.Sprintf("agent executable not found at %q: %v", e.Path, e.Err)
}

func (e *AgentNotFoundError) Unwrap() error {
	return e.Err
}

// IsAgentLinkError implements AgentLinkError.
func (e *AgentNotFoundError) IsAgentLinkError() bool { return true }

// ConnectionError indicates failure to establish or keep the transport.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to agent: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsAgentLinkError implements AgentLinkError.
func (e *ConnectionError) IsAgentLinkError() bool { return true }

// ProcessError indicates the agent process exited abnormally.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("agent process failed (exit %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("agent process failed (exit %d): %s", e.ExitCode, e.Stderr)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsAgentLinkError implements AgentLinkError.
func (e *ProcessError) IsAgentLinkError() bool { return true }

// ReadinessTimeoutError indicates the process never announced readiness.
type ReadinessTimeoutError struct {
	Timeout time.Duration
}

func (e *ReadinessTimeoutError) Error() string {
	return fmt.Sprintf("agent process not ready after %s", e.Timeout)
}

// IsAgentLinkError implements AgentLinkError.
func (e *ReadinessTimeoutError) IsAgentLinkError() bool { return true }

// QueryTimeoutError indicates a streaming query exceeded its deadline before
// the session reached an idle event. It is distinct from session-error and
// cancellation failures so callers can tell the abort causes apart.
type QueryTimeoutError struct {
	Timeout time.Duration
}

func (e *QueryTimeoutError) Error() string {
	return fmt.Sprintf("query timed out after %dms", e.Timeout.Milliseconds())
}

// IsAgentLinkError implements AgentLinkError.
func (e *QueryTimeoutError) IsAgentLinkError() bool { return true }

// SessionError carries a session-level error event received from the agent.
type SessionError struct {
	SessionID string
	Message   string
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s: %s", e.SessionID, e.Message)
}

// IsAgentLinkError implements AgentLinkError.
func (e *SessionError) IsAgentLinkError() bool { return true }

// JSONDecodeError indicates a frame from the agent could not be decoded.
// This error preserves the original raw data that failed to parse.
type JSONDecodeError struct {
	RawData string
	Err     error
}

func (e *JSONDecodeError) Error() string {
	return fmt.Sprintf("failed to decode JSON from agent: %v", e.Err)
}

func (e *JSONDecodeError) Unwrap() error {
	return e.Err
}

// IsAgentLinkError implements AgentLinkError.
func (e *JSONDecodeError) IsAgentLinkError() bool { return true }
