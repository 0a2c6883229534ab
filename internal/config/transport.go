// Package config provides configuration types for the agentlink runtime.
package config

import "context"

// Transport defines the interface for agent process communication.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods.
//
// The default implementations are the stdio and TCP transports, which
// frame JSON-RPC messages over the process pipes or a localhost socket.
type Transport interface {
	// Start initializes the transport and prepares it for communication.
	// This is called before any messages are sent or received.
	Start(ctx context.Context) error

	// ReadMessages returns channels for receiving messages and errors.
	// The message channel yields one decoded JSON object per frame.
	// The error channel yields any errors that occur during reading.
	// Both channels are closed when reading completes or an error occurs.
	ReadMessages(ctx context.Context) (<-chan map[string]any, <-chan error)

	// SendMessage sends a single framed JSON message to the agent process.
	// The data should be a complete JSON object (newline is appended if missing).
	// This method must be safe for concurrent use.
	SendMessage(ctx context.Context, data []byte) error

	// Close terminates the transport and releases resources.
	// It's safe to call Close multiple times.
	Close() error

	// IsReady returns true if the transport is ready for communication.
	IsReady() bool
}

// TransportMode selects how the client talks to the agent process.
type TransportMode string

const (
	// TransportStdio frames messages over the process's stdin/stdout pipes.
	TransportStdio TransportMode = "stdio"

	// TransportTCP dials a localhost port announced by the process on stdout.
	TransportTCP TransportMode = "tcp"
)
