package agentlink

import (
	"context"

	"github.com/pilotdesk/agentlink-go/internal/client"
)

// clientWrapper wraps the internal client to adapt it to the public interface.
type clientWrapper struct {
	impl *client.Client
}

// Compile-time check that *clientWrapper implements the Client interface.
var _ Client = (*clientWrapper)(nil)

// newClientImpl creates the internal client implementation.
func newClientImpl(options *Options) Client {
	return &clientWrapper{impl: client.New(options)}
}

// Start connects to the agent process.
func (c *clientWrapper) Start(ctx context.Context) error {
	return c.impl.Start(ctx)
}

// Stop performs a graceful shutdown and returns all collected failures.
func (c *clientWrapper) Stop(ctx context.Context) []error {
	return c.impl.Stop(ctx)
}

// ForceStop unconditionally tears everything down.
func (c *clientWrapper) ForceStop() {
	c.impl.ForceStop()
}

// CreateSession creates and registers a session on the agent process.
func (c *clientWrapper) CreateSession(ctx context.Context, cfg SessionConfig) (*Session, error) {
	return c.impl.CreateSession(ctx, cfg)
}

// Session looks up a live session by identifier.
func (c *clientWrapper) Session(id string) (*Session, bool) {
	return c.impl.Session(id)
}

// Ping round-trips a message through the agent process.
func (c *clientWrapper) Ping(ctx context.Context, message string) (*PingResult, error) {
	return c.impl.Ping(ctx, message)
}

// State returns the current connection state.
func (c *clientWrapper) State() ConnectionState {
	return c.impl.State()
}
