// Package session implements the per-conversation façade and the registry
// that multiplexes sessions over the shared RPC channel.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/pilotdesk/agentlink-go/internal/errors"
	"github.com/pilotdesk/agentlink-go/internal/message"
)

const (
	// sendTimeout bounds the session.send round-trip.
	sendTimeout = 30 * time.Second

	// getMessagesTimeout bounds the session.getMessages round-trip.
	getMessagesTimeout = 30 * time.Second

	// destroyTimeout bounds the session.destroy round-trip.
	destroyTimeout = 10 * time.Second
)

// Caller is the slice of the RPC channel a session needs to issue requests.
// Sessions hold the channel by reference only; the client owns it.
type Caller interface {
	Call(ctx context.Context, method string, params any, timeout time.Duration) (map[string]any, error)
}

// EventHandler receives session events in the order the agent emitted them.
type EventHandler func(event *message.SessionEvent)

// Session is one logical conversation multiplexed over the shared channel.
//
// A session is exclusively owned by the registry that created it; callers
// hold a reference for as long as they use it, but lifecycle authority stays
// with the registry.
type Session struct {
	log *slog.Logger
	id  string
	rpc Caller

	mu            sync.Mutex
	nextHandlerID int
	handlers      map[int]EventHandler
	tools         map[string]message.ToolDefinition
	destroyed     bool
}

// New creates a session bound to the shared channel.
func New(log *slog.Logger, id string, rpc Caller) *Session {
	return &Session{
		log:      log.With("component", "session", "session_id", id),
		id:       id,
		rpc:      rpc,
		handlers: make(map[int]EventHandler, 4),
		tools:    make(map[string]message.ToolDefinition, 8),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Send delivers a prompt to the session and returns the message identifier
// assigned by the agent process.
func (s *Session) Send(ctx context.Context, opts message.SendOptions) (string, error) {
	if s.isDestroyed() {
		return "", errors.ErrSessionDestroyed
	}

	params := map[string]any{
		"sessionId": s.id,
		"prompt":    opts.Prompt,
	}

	if len(opts.Attachments) > 0 {
		params["attachments"] = opts.Attachments
	}

	if opts.Mode != "" {
		params["mode"] = string(opts.Mode)
	}

	result, err := s.rpc.Call(ctx, "session.send", params, sendTimeout)
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}

	messageID, _ := result["messageId"].(string)

	s.log.Debug("Prompt sent", "message_id", messageID)

	return messageID, nil
}

// On registers an event handler and returns a function that removes exactly
// that handler. Multiple independent subscribers are supported.
func (s *Session) On(handler EventHandler) func() {
	s.mu.Lock()

	id := s.nextHandlerID
	s.nextHandlerID++
	s.handlers[id] = handler

	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		delete(s.handlers, id)
	}
}

// DispatchEvent forwards an event to every registered handler. A handler that
// panics is isolated: the remaining handlers still run and the dispatch loop
// never crashes. Handlers run in registration-independent but
// delivery-ordered fashion: events reach each handler in the order the agent
// emitted them.
func (s *Session) DispatchEvent(event *message.SessionEvent) {
	s.mu.Lock()

	handlers := make([]EventHandler, 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}

	s.mu.Unlock()

	for _, handler := range handlers {
		s.invoke(handler, event)
	}
}

// invoke runs one handler with panic isolation.
func (s *Session) invoke(handler EventHandler, event *message.SessionEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Warn("Event handler panicked", "event_type", event.Type, "panic", r)
		}
	}()

	handler(event)
}

// RegisterTools replaces the session's tool registrations. Prior mappings are
// cleared on every call, including a call with no tools.
func (s *Session) RegisterTools(tools []message.ToolDefinition) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tools = make(map[string]message.ToolDefinition, len(tools))
	for _, tool := range tools {
		s.tools[tool.Name] = tool
	}
}

// ToolHandler looks up the handler registered for a tool name.
func (s *Session) ToolHandler(name string) (message.ToolHandler, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tool, ok := s.tools[name]
	if !ok || tool.Handler == nil {
		return nil, false
	}

	return tool.Handler, true
}

// Messages fetches the full recorded event list for the session.
func (s *Session) Messages(ctx context.Context) ([]message.SessionEvent, error) {
	if s.isDestroyed() {
		return nil, errors.ErrSessionDestroyed
	}

	params := map[string]any{"sessionId": s.id}

	result, err := s.rpc.Call(ctx, "session.getMessages", params, getMessagesTimeout)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}

	var payload struct {
		Events []message.SessionEvent `mapstructure:"events"`
	}

	if err := mapstructure.Decode(result, &payload); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}

	return payload.Events, nil
}

// Destroy tears the session down remotely and clears the local handler and
// tool maps on success. Destroying an already-destroyed session is a no-op.
func (s *Session) Destroy(ctx context.Context) error {
	s.mu.Lock()

	if s.destroyed {
		s.mu.Unlock()

		return nil
	}

	s.mu.Unlock()

	params := map[string]any{"sessionId": s.id}

	if _, err := s.rpc.Call(ctx, "session.destroy", params, destroyTimeout); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}

	s.Clear()

	return nil
}

// Clear drops local handler and tool maps and marks the session destroyed.
// Used by Destroy on success and by the client's force-stop path.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.destroyed = true
	s.handlers = make(map[int]EventHandler)
	s.tools = make(map[string]message.ToolDefinition)
}

// isDestroyed reports whether Destroy has completed.
func (s *Session) isDestroyed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.destroyed
}
