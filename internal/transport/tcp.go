package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/pilotdesk/agentlink-go/internal/config"
	"github.com/pilotdesk/agentlink-go/internal/errors"
)

// TCP frames messages over a localhost socket to the port the agent process
// announced on its stdout.
type TCP struct {
	framer
	port int
	conn net.Conn
}

// Compile-time verification that TCP implements the Transport interface.
var _ config.Transport = (*TCP)(nil)

// NewTCP creates a TCP transport for the given announced port.
func NewTCP(log *slog.Logger, port int) *TCP {
	return &TCP{
		framer: framer{log: log.With("component", "tcp_transport")},
		port:   port,
	}
}

// Start dials the announced port on the loopback interface.
func (t *TCP) Start(ctx context.Context) error {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(t.port))

	t.log.Debug("Dialing agent", "addr", addr)

	var dialer net.Dialer

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return &errors.ConnectionError{Err: fmt.Errorf("dial %s: %w", addr, err)}
	}

	t.mu.Lock()
	t.conn = conn
	t.r = conn
	t.w = conn
	t.mu.Unlock()

	t.log.Info("Connected to agent", "addr", addr)

	return nil
}

// ReadMessages implements Transport.
func (t *TCP) ReadMessages(ctx context.Context) (<-chan map[string]any, <-chan error) {
	return t.readMessages(ctx)
}

// SendMessage implements Transport.
func (t *TCP) SendMessage(ctx context.Context, data []byte) error {
	return t.sendMessage(ctx, data)
}

// IsReady implements Transport.
func (t *TCP) IsReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.conn != nil && !t.closed
}

// Close closes the socket. Safe to call multiple times.
func (t *TCP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}

	t.closed = true

	if t.conn != nil {
		return t.conn.Close()
	}

	return nil
}
