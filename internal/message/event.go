// Package message defines the wire-level payload types exchanged with the
// agent process: session events, tool invocations, and tool results.
package message

import "time"

// Well-known event type tags. Any other tag passes through to subscribers
// opaquely.
const (
	// EventError signals a session-level error. The event data carries a
	// "message" field describing the failure.
	EventError = "error"

	// EventIdle signals that the current turn has completed and the session
	// is waiting for input.
	EventIdle = "idle"
)

// SessionEvent is a single event emitted by the agent process for a session.
//
// Events are append-only from the runtime's point of view: the runtime never
// mutates a received event, only forwards it to subscribers.
type SessionEvent struct {
	// ID uniquely identifies the event.
	ID string `json:"id" mapstructure:"id"`

	// Type is the event type tag (e.g. "message", "idle", "error").
	Type string `json:"type" mapstructure:"type"`

	// Data is the opaque event payload.
	Data map[string]any `json:"data,omitempty" mapstructure:"data"`

	// Timestamp is the event time in Unix milliseconds.
	Timestamp int64 `json:"timestamp" mapstructure:"timestamp"`

	// ParentID links a sub-event to its parent turn, if any.
	ParentID string `json:"parentId,omitempty" mapstructure:"parentId"`

	// Ephemeral marks transient streaming-chunk events that are safe to drop
	// for consumers that only want final results.
	Ephemeral bool `json:"ephemeral,omitempty" mapstructure:"ephemeral"`
}

// Time returns the event timestamp as a time.Time.
func (e *SessionEvent) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// ErrorMessage extracts the "message" field from an error event's data.
// Returns the event type if no message is present, so callers always get
// something printable.
func (e *SessionEvent) ErrorMessage() string {
	if m, ok := e.Data["message"].(string); ok && m != "" {
		return m
	}

	return "session error"
}

// EventEnvelope is the params payload of a "session.event" notification.
type EventEnvelope struct {
	SessionID string       `json:"sessionId" mapstructure:"sessionId"`
	Event     SessionEvent `json:"event" mapstructure:"event"`
}

// PingResult is the response payload of a "ping" request.
type PingResult struct {
	Message   string `json:"message" mapstructure:"message"`
	Timestamp int64  `json:"timestamp" mapstructure:"timestamp"`
}
