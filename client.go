package agentlink

import (
	"context"

	"github.com/pilotdesk/agentlink-go/internal/client"
)

// ConnectionState is the client's connection state.
type ConnectionState = client.State

const (
	// StateDisconnected is the initial state, and the state after Stop.
	StateDisconnected = client.StateDisconnected

	// StateConnecting covers process spawn and transport establishment.
	StateConnecting = client.StateConnecting

	// StateConnected means the RPC channel is live.
	StateConnected = client.StateConnected

	// StateError means the last start attempt failed.
	StateError = client.StateError
)

// Client supervises one agent process and multiplexes sessions over a single
// framed JSON-RPC channel.
//
// A client starts disconnected. Start connects explicitly; with auto-start
// enabled (the default), CreateSession connects lazily on first use. With
// auto-restart enabled (also the default), the client reconnects after an
// unexpected process exit or channel close.
//
// Example usage:
//
//	client := agentlink.NewClient(
//	    agentlink.WithExecutable("/usr/local/bin/agentd"),
//	    agentlink.WithLogger(slog.Default()),
//	)
//
//	sess, err := client.CreateSession(ctx, agentlink.SessionConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	off := sess.On(func(event *agentlink.SessionEvent) {
//	    // process event...
//	})
//	defer off()
//
//	if _, err := sess.Send(ctx, agentlink.SendOptions{Prompt: "Hello"}); err != nil {
//	    log.Fatal(err)
//	}
//
//	if errs := client.Stop(ctx); len(errs) > 0 {
//	    client.ForceStop()
//	}
type Client interface {
	// Start connects to the agent process: spawn (unless a transport was
	// injected), transport establishment, and channel startup. A no-op when
	// already connected.
	// Returns AgentNotFoundError if the executable is missing,
	// ReadinessTimeoutError if the process never becomes ready, and
	// ConnectionError on other failures.
	Start(ctx context.Context) error

	// Stop performs a graceful shutdown: every live session is destroyed
	// (with retries), then the channel, transport, and process are torn down.
	// All failures are collected and returned; an empty slice signals a clean
	// shutdown. Stop never panics or aborts early.
	Stop(ctx context.Context) []error

	// ForceStop unconditionally tears everything down without remote session
	// destroys. All errors are swallowed. Use when Stop is unavailable or has
	// already failed.
	ForceStop()

	// CreateSession creates a session on the agent process and registers it
	// locally before returning, so no event for it can be missed. Fails with
	// ErrNotConnected when disconnected and auto-start is disabled.
	CreateSession(ctx context.Context, cfg SessionConfig) (*Session, error)

	// Session looks up a live session by identifier.
	Session(id string) (*Session, bool)

	// Ping round-trips a message through the agent process. Useful as a
	// liveness probe.
	Ping(ctx context.Context, message string) (*PingResult, error)

	// State returns the current connection state.
	State() ConnectionState
}

// NewClient creates a disconnected client configured by the given options:
//
//	client := agentlink.NewClient(
//	    agentlink.WithExecutable("/usr/local/bin/agentd"),
//	    agentlink.WithTCP(),
//	)
func NewClient(opts ...Option) Client {
	return newClientImpl(applyOptions(opts))
}
