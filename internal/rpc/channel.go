// Package rpc implements the JSON-RPC channel shared by every session: it
// correlates outgoing requests with responses by id, and delivers inbound
// notifications and requests to registered handlers.
package rpc

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/pilotdesk/agentlink-go/internal/errors"
)

// Transport is the minimal surface the channel needs. It is satisfied by the
// stdio and TCP transports and allows testing with in-memory mocks.
type Transport interface {
	ReadMessages(ctx context.Context) (<-chan map[string]any, <-chan error)
	SendMessage(ctx context.Context, data []byte) error
}

// NotificationHandler receives the params of an inbound notification.
type NotificationHandler func(params map[string]any)

// RequestHandler handles an inbound request from the agent process and
// returns the result payload. Returning a *Error selects the response code;
// any other error is reported as an internal error.
type RequestHandler func(ctx context.Context, params map[string]any) (any, error)

// Channel multiplexes JSON-RPC traffic over a single transport.
//
// The channel is the sole reader of the transport: its read loop routes
// responses to pending calls, notifications to notification handlers, and
// requests to request handlers (each run on its own goroutine so the loop is
// never blocked). When the transport closes or fails, every outstanding call
// is rejected; none is left pending forever.
type Channel struct {
	log       *slog.Logger
	transport Transport

	pendingMu sync.Mutex
	pending   map[string]chan *inboundResponse

	handlersMu    sync.RWMutex
	notifHandlers map[string]NotificationHandler
	reqHandlers   map[string]RequestHandler

	errMu    sync.RWMutex
	fatalErr error

	startMu sync.Mutex
	started bool

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewChannel creates a channel over the given transport. Start must be called
// before any traffic flows.
func NewChannel(log *slog.Logger, transport Transport) *Channel {
	return &Channel{
		log:           log.With("component", "rpc"),
		transport:     transport,
		pending:       make(map[string]chan *inboundResponse, 10),
		notifHandlers: make(map[string]NotificationHandler, 10),
		reqHandlers:   make(map[string]RequestHandler, 10),
		done:          make(chan struct{}),
	}
}

// closeDone closes the done channel exactly once.
func (c *Channel) closeDone() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// setFatalError stores the first fatal error and broadcasts via done.
func (c *Channel) setFatalError(err error) {
	c.errMu.Lock()

	if c.fatalErr == nil {
		c.fatalErr = err
	}

	c.errMu.Unlock()

	c.closeDone()
}

// Err returns the fatal error that closed the channel, if any.
func (c *Channel) Err() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()

	return c.fatalErr
}

// Done returns a channel closed when the RPC channel stops.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Start begins reading frames from the transport and routing them. The
// channel is the transport's sole reader; a second Start is rejected with
// ErrAlreadyConnected.
func (c *Channel) Start(ctx context.Context) error {
	c.startMu.Lock()

	if c.started {
		c.startMu.Unlock()

		return errors.ErrAlreadyConnected
	}

	c.started = true
	c.startMu.Unlock()

	c.log.Debug("Starting RPC channel")

	messages, errs := c.transport.ReadMessages(ctx)

	c.wg.Add(1)

	go c.readLoop(ctx, messages, errs)

	return nil
}

// Stop shuts the channel down and waits for in-flight handler goroutines.
// Safe to call multiple times and on an already-closed channel.
func (c *Channel) Stop() {
	c.log.Debug("Stopping RPC channel")
	c.closeDone()
	c.wg.Wait()
}

// Call sends a request and waits for the matching response.
//
// The request id is a generated ULID; the call resolves when the response
// with the same id arrives, and fails on timeout, context cancellation, or
// channel close (in which case the transport's fatal error is surfaced when
// known).
func (c *Channel) Call(
	ctx context.Context,
	method string,
	params any,
	timeout time.Duration,
) (map[string]any, error) {
	requestID := ulid.Make().String()

	c.log.Debug("Sending request", "request_id", requestID, "method", method)

	responseChan := make(chan *inboundResponse, 1)

	c.pendingMu.Lock()
	c.pending[requestID] = responseChan
	c.pendingMu.Unlock()

	removePending := func() {
		c.pendingMu.Lock()
		delete(c.pending, requestID)
		c.pendingMu.Unlock()
	}

	req := &Request{JSONRPC: Version, ID: requestID, Method: method, Params: params}

	data, err := json.Marshal(req)
	if err != nil {
		removePending()

		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if err := c.transport.SendMessage(ctx, data); err != nil {
		removePending()

		return nil, fmt.Errorf("send request: %w", err)
	}

	select {
	case resp := <-responseChan:
		if resp.err != nil {
			c.log.Warn("Request returned error", "request_id", requestID, "method", method, "error", resp.err)

			return nil, resp.err
		}

		return resp.result, nil

	case <-c.done:
		removePending()

		if err := c.Err(); err != nil {
			return nil, fmt.Errorf("transport error: %w", err)
		}

		return nil, errors.ErrChannelClosed

	case <-time.After(timeout):
		removePending()

		c.log.Warn("Request timed out", "request_id", requestID, "method", method, "timeout", timeout)

		return nil, fmt.Errorf("%w after %s", errors.ErrRequestTimeout, timeout)

	case <-ctx.Done():
		removePending()

		return nil, ctx.Err()
	}
}

// Notify sends a notification (a request without an id); no response is
// expected.
func (c *Channel) Notify(ctx context.Context, method string, params any) error {
	req := &Request{JSONRPC: Version, Method: method, Params: params}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	return c.transport.SendMessage(ctx, data)
}

// HandleNotification registers a handler for inbound notifications with the
// given method. Registering twice replaces the previous handler.
func (c *Channel) HandleNotification(method string, handler NotificationHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	c.notifHandlers[method] = handler
}

// HandleRequest registers a handler for inbound requests with the given
// method. Registering twice replaces the previous handler.
func (c *Channel) HandleRequest(method string, handler RequestHandler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	c.reqHandlers[method] = handler
}

// readLoop routes frames until the transport closes or fails.
func (c *Channel) readLoop(
	ctx context.Context,
	messages <-chan map[string]any,
	errs <-chan error,
) {
	defer c.wg.Done()
	defer c.closeDone()
	defer c.log.Debug("RPC read loop stopped")

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				c.log.Debug("Transport message channel closed")

				return
			}

			c.route(ctx, msg)

		case err, ok := <-errs:
			if !ok {
				return
			}

			if err != nil {
				c.log.Debug("Transport error", "error", err)
				c.setFatalError(err)

				return
			}

		case <-c.done:
			return

		case <-ctx.Done():
			return
		}
	}
}

// route dispatches one decoded frame by shape: method+id is a request,
// method alone is a notification, id alone is a response.
func (c *Channel) route(ctx context.Context, msg map[string]any) {
	method, hasMethod := msg["method"].(string)
	id, hasID := msg["id"]

	switch {
	case hasMethod && hasID:
		c.handleRequest(ctx, method, id, msg)

	case hasMethod:
		c.handleNotification(method, msg)

	case hasID:
		c.handleResponse(id, msg)

	default:
		c.log.Warn("Dropping frame with neither method nor id")
	}
}

// handleResponse routes a response frame to the pending call that owns its id.
func (c *Channel) handleResponse(id any, msg map[string]any) {
	requestID, ok := id.(string)
	if !ok {
		c.log.Warn("Response id is not a string", "id", id)

		return
	}

	c.pendingMu.Lock()

	pending, exists := c.pending[requestID]
	if exists {
		delete(c.pending, requestID)
	}

	c.pendingMu.Unlock()

	if !exists {
		c.log.Warn("No pending request for response", "request_id", requestID)

		return
	}

	// We own the pending entry now; the channel is buffered so this never blocks.
	pending <- decodeInboundResponse(msg)
}

// handleNotification invokes the registered handler synchronously so that
// notification order is preserved per the transport's delivery order.
func (c *Channel) handleNotification(method string, msg map[string]any) {
	c.handlersMu.RLock()
	handler, exists := c.notifHandlers[method]
	c.handlersMu.RUnlock()

	if !exists {
		c.log.Debug("No handler for notification", "method", method)

		return
	}

	params, _ := msg["params"].(map[string]any)

	defer func() {
		if r := recover(); r != nil {
			c.log.Error("Notification handler panicked", "method", method, "panic", r)
		}
	}()

	handler(params)
}

// handleRequest invokes the registered handler on its own goroutine so the
// read loop keeps draining while the handler runs.
func (c *Channel) handleRequest(ctx context.Context, method string, id any, msg map[string]any) {
	c.handlersMu.RLock()
	handler, exists := c.reqHandlers[method]
	c.handlersMu.RUnlock()

	if !exists {
		c.log.Warn("No handler for request method", "method", method)
		c.sendErrorResponse(ctx, id, NewError(CodeMethodNotFound, "method not found: %s", method))

		return
	}

	params, _ := msg["params"].(map[string]any)

	c.wg.Go(func() {
		result, err := handler(ctx, params)
		if err != nil {
			rpcErr, ok := stderrors.AsType[*Error](err)
			if !ok {
				rpcErr = NewError(CodeInternal, "%s", err.Error())
			}

			c.log.Warn("Request handler returned error", "method", method, "error", err)
			c.sendErrorResponse(ctx, id, rpcErr)

			return
		}

		c.sendSuccessResponse(ctx, id, result)
	})
}

// sendSuccessResponse answers an inbound request with a result.
func (c *Channel) sendSuccessResponse(ctx context.Context, id any, result any) {
	resp := &Response{JSONRPC: Version, ID: id, Result: result}

	data, err := json.Marshal(resp)
	if err != nil {
		c.log.Error("Failed to marshal response", "error", err)

		return
	}

	if err := c.transport.SendMessage(ctx, data); err != nil {
		c.log.Error("Failed to send response", "error", err)
	}
}

// sendErrorResponse answers an inbound request with an error.
func (c *Channel) sendErrorResponse(ctx context.Context, id any, rpcErr *Error) {
	resp := &Response{JSONRPC: Version, ID: id, Error: rpcErr}

	data, err := json.Marshal(resp)
	if err != nil {
		c.log.Error("Failed to marshal error response", "error", err)

		return
	}

	if err := c.transport.SendMessage(ctx, data); err != nil {
		if ctx.Err() != nil {
			c.log.Debug("Could not send error response during shutdown", "error", err)

			return
		}

		c.log.Error("Failed to send error response", "error", err)
	}
}
