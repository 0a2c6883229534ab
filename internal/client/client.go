// Package client implements the composition root: it owns the process
// supervisor, the RPC channel, and the session registry, and drives the
// connection state machine including reconnection.
package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pilotdesk/agentlink-go/internal/config"
	"github.com/pilotdesk/agentlink-go/internal/dispatch"
	"github.com/pilotdesk/agentlink-go/internal/errors"
	"github.com/pilotdesk/agentlink-go/internal/message"
	"github.com/pilotdesk/agentlink-go/internal/proc"
	"github.com/pilotdesk/agentlink-go/internal/rpc"
	"github.com/pilotdesk/agentlink-go/internal/session"
	"github.com/pilotdesk/agentlink-go/internal/transport"

	"github.com/mitchellh/mapstructure"
)

// State is the client connection state. Transitions drive reconnection
// eligibility: only a connected client reconnects on unexpected close.
type State string

const (
	// StateDisconnected is the initial state, and the state after stop().
	StateDisconnected State = "disconnected"

	// StateConnecting covers spawn and transport establishment.
	StateConnecting State = "connecting"

	// StateConnected means the RPC channel is live.
	StateConnected State = "connected"

	// StateError means the last start attempt failed.
	StateError State = "error"
)

const (
	// createSessionTimeout bounds the session.create round-trip.
	createSessionTimeout = 30 * time.Second

	// pingTimeout bounds the ping round-trip.
	pingTimeout = 10 * time.Second

	// destroyAttempts is how many times stop() retries a session destroy.
	destroyAttempts = 3

	// destroyBackoffBase seeds the exponential backoff between destroy
	// attempts (100ms, 200ms).
	destroyBackoffBase = 100 * time.Millisecond
)

// Client owns the supervisor, the transport, the RPC channel, and the session
// registry. The external process and the transport belong to exactly one
// Client; sessions multiplex over its single channel.
type Client struct {
	log     *slog.Logger
	options *config.Options

	registry   *session.Registry
	dispatcher *dispatch.Dispatcher

	mu        sync.Mutex
	state     State
	sup       *proc.Supervisor
	transport config.Transport
	channel   *rpc.Channel
}

// New creates a disconnected client. A nil options pointer resolves to the
// documented defaults; a nil logger disables logging.
func New(options *config.Options) *Client {
	if options == nil {
		options = config.Default()
	}

	log := options.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &Client{
		log:      log.With("component", "client"),
		options:  options,
		registry: session.NewRegistry(log),
		state:    StateDisconnected,
	}

	c.dispatcher = dispatch.New(log, c.registry, options.CanInvokeTool)

	return c
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Start connects to the agent process. A no-op if already connected.
// On failure the state moves to error and the failure is returned.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateConnected {
		return nil
	}

	c.state = StateConnecting

	if err := c.connectLocked(ctx); err != nil {
		c.state = StateError

		return err
	}

	c.state = StateConnected
	c.log.Info("Client connected")

	return nil
}

// connectLocked spawns the process (unless a transport was injected), brings
// the transport up, and starts the RPC channel. Caller holds c.mu.
func (c *Client) connectLocked(ctx context.Context) error {
	tr := c.options.Transport

	if tr == nil {
		sup := proc.New(c.log, c.options)
		sup.OnExit(func(err error) { c.onUnexpectedClose("process exit", err) })

		if err := sup.Start(ctx); err != nil {
			return fmt.Errorf("start agent process: %w", err)
		}

		c.sup = sup

		if c.options.TransportMode == config.TransportTCP {
			tr = transport.NewTCP(c.log, sup.Port())
		} else {
			tr = transport.NewStdio(c.log, sup)
		}
	} else {
		c.log.Debug("Using injected custom transport")
	}

	if err := tr.Start(ctx); err != nil {
		if c.sup != nil {
			_ = c.sup.Stop()
		}

		return fmt.Errorf("start transport: %w", err)
	}

	c.transport = tr

	channel := rpc.NewChannel(c.log, tr)
	channel.HandleNotification("session.event", c.handleSessionEvent)
	channel.HandleRequest("tool.call", c.dispatcher.HandleToolCall)

	if err := channel.Start(ctx); err != nil {
		_ = tr.Close()

		if c.sup != nil {
			_ = c.sup.Stop()
		}

		return fmt.Errorf("start rpc channel: %w", err)
	}

	c.channel = channel

	go c.watchChannel(channel)

	return nil
}

// handleSessionEvent decodes a session.event notification and routes it to
// the owning session's subscribers.
func (c *Client) handleSessionEvent(params map[string]any) {
	var envelope message.EventEnvelope

	if err := mapstructure.Decode(params, &envelope); err != nil {
		c.log.Warn("Malformed session.event notification", "error", err)

		return
	}

	c.registry.Dispatch(&envelope)
}

// watchChannel waits for the channel to close and triggers reconnection when
// the close was unexpected.
func (c *Client) watchChannel(channel *rpc.Channel) {
	<-channel.Done()
	c.onUnexpectedClose("channel closed", channel.Err())
}

// onUnexpectedClose handles process exit or channel close. If the client was
// connected and auto-restart is enabled, a best-effort reconnect runs on its
// own goroutine; failures are swallowed, there is no synchronous caller to
// report to.
func (c *Client) onUnexpectedClose(reason string, err error) {
	c.mu.Lock()

	if c.state != StateConnected {
		c.mu.Unlock()

		return
	}

	c.state = StateDisconnected
	c.mu.Unlock()

	c.log.Warn("Connection lost", "reason", reason, "error", err)

	if !c.options.AutoRestart {
		return
	}

	go c.reconnect()
}

// reconnect tears down and restarts the connection, best-effort.
func (c *Client) reconnect() {
	c.log.Info("Reconnecting to agent")

	ctx := context.Background()

	if errs := c.Stop(ctx); len(errs) > 0 {
		c.log.Debug("Errors during reconnect teardown", "errors", errs)
	}

	if err := c.Start(ctx); err != nil {
		c.log.Warn("Reconnect failed, staying disconnected", "error", err)
	}
}

// isConnected reports whether the client is connected.
func (c *Client) isConnected() bool {
	return c.State() == StateConnected
}

// CreateSession creates a session on the agent process and registers it
// locally before returning. If the client is disconnected it starts lazily
// when auto-start is enabled, and fails with ErrNotConnected otherwise.
//
// The session's tool manifest carries only name, description, and parameter
// schema; handlers stay local and are never sent over the wire.
func (c *Client) CreateSession(ctx context.Context, cfg message.SessionConfig) (*session.Session, error) {
	if !c.isConnected() {
		if !c.options.AutoStart {
			return nil, errors.ErrNotConnected
		}

		if err := c.Start(ctx); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()

	if channel == nil {
		return nil, errors.ErrNotConnected
	}

	params := map[string]any{}

	if cfg.Model != "" {
		params["model"] = cfg.Model
	}

	if cfg.SessionID != "" {
		params["sessionId"] = cfg.SessionID
	}

	if len(cfg.Tools) > 0 {
		manifest := make([]map[string]any, 0, len(cfg.Tools))
		for _, tool := range cfg.Tools {
			manifest = append(manifest, map[string]any{
				"name":        tool.Name,
				"description": tool.Description,
				"parameters":  tool.Parameters,
			})
		}

		params["tools"] = manifest
	}

	result, err := channel.Call(ctx, "session.create", params, createSessionTimeout)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	sid, _ := result["sessionId"].(string)
	if sid == "" {
		sid = cfg.SessionID
	}

	if sid == "" {
		sid = uuid.NewString()
		c.log.Warn("Agent did not assign a session id, generated one locally", "session_id", sid)
	}

	s := session.New(c.log, sid, channel)
	s.RegisterTools(cfg.Tools)
	c.registry.Add(s)

	c.log.Info("Session created", "session_id", sid)

	return s, nil
}

// Session looks up a live session by identifier.
func (c *Client) Session(id string) (*session.Session, bool) {
	return c.registry.Get(id)
}

// Ping round-trips a message through the agent process.
func (c *Client) Ping(ctx context.Context, msg string) (*message.PingResult, error) {
	if !c.isConnected() {
		return nil, errors.ErrNotConnected
	}

	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()

	params := map[string]any{}
	if msg != "" {
		params["message"] = msg
	}

	result, err := channel.Call(ctx, "ping", params, pingTimeout)
	if err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}

	var pong message.PingResult

	if err := mapstructure.Decode(result, &pong); err != nil {
		return nil, fmt.Errorf("decode ping result: %w", err)
	}

	return &pong, nil
}

// Stop performs a graceful shutdown: destroy every live session (3 attempts
// each with exponential backoff), then dispose the channel, close the
// transport, and terminate the process, each step independently guarded.
//
// All errors encountered are collected and returned; an empty slice signals a
// clean shutdown. Stop never panics or aborts early.
func (c *Client) Stop(ctx context.Context) []error {
	c.mu.Lock()

	// Leaving connected state first suppresses the reconnect watcher.
	c.state = StateDisconnected

	channel := c.channel
	tr := c.transport
	sup := c.sup

	c.channel = nil
	c.transport = nil
	c.sup = nil

	c.mu.Unlock()

	var errs []error

	for _, s := range c.registry.All() {
		if err := c.destroyWithRetry(ctx, s); err != nil {
			errs = append(errs, fmt.Errorf("destroy session %s: %w", s.ID(), err))
		}

		c.registry.Remove(s.ID())
	}

	if channel != nil {
		channel.Stop()
	}

	if tr != nil {
		if err := tr.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close transport: %w", err))
		}
	}

	if sup != nil {
		if err := sup.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop agent process: %w", err))
		}
	}

	c.log.Info("Client stopped", "errors", len(errs))

	return errs
}

// destroyWithRetry attempts a session destroy up to destroyAttempts times
// with exponential backoff, returning the last failure.
func (c *Client) destroyWithRetry(ctx context.Context, s *session.Session) error {
	var lastErr error

	for attempt := 1; attempt <= destroyAttempts; attempt++ {
		lastErr = s.Destroy(ctx)
		if lastErr == nil {
			return nil
		}

		c.log.Debug("Session destroy failed",
			"session_id", s.ID(),
			"attempt", attempt,
			"error", lastErr,
		)

		if attempt < destroyAttempts {
			delay := destroyBackoffBase * (1 << (attempt - 1))

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return lastErr
			}
		}
	}

	return lastErr
}

// ForceStop unconditionally tears everything down: session bookkeeping is
// cleared without remote destroys, and the transport and process are killed.
// All errors are swallowed. Use when Stop is unavailable or already failed.
func (c *Client) ForceStop() {
	c.mu.Lock()

	c.state = StateDisconnected

	channel := c.channel
	tr := c.transport
	sup := c.sup

	c.channel = nil
	c.transport = nil
	c.sup = nil

	c.mu.Unlock()

	c.registry.Clear()

	if channel != nil {
		channel.Stop()
	}

	if tr != nil {
		_ = tr.Close()
	}

	if sup != nil {
		_ = sup.Stop()
	}

	c.log.Info("Client force-stopped")
}
