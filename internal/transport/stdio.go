package transport

import (
	"context"
	"io"
	"log/slog"

	"github.com/pilotdesk/agentlink-go/internal/config"
	"github.com/pilotdesk/agentlink-go/internal/errors"
)

// pipes is the subset of the supervisor the stdio transport needs.
type pipes interface {
	Stdin() io.WriteCloser
	Stdout() io.ReadCloser
}

// Stdio frames messages over the agent process's stdin/stdout pipes.
// The process itself is owned by the supervisor; Close only detaches the
// framing, it does not terminate the process.
type Stdio struct {
	framer
	proc pipes
}

// Compile-time verification that Stdio implements the Transport interface.
var _ config.Transport = (*Stdio)(nil)

// NewStdio creates a stdio transport over the supervisor's pipes.
func NewStdio(log *slog.Logger, proc pipes) *Stdio {
	return &Stdio{
		framer: framer{log: log.With("component", "stdio_transport")},
		proc:   proc,
	}
}

// Start attaches the framer to the process pipes. The pipes exist as soon as
// the process does, so no handshake is needed.
func (t *Stdio) Start(ctx context.Context) error {
	stdin, stdout := t.proc.Stdin(), t.proc.Stdout()
	if stdin == nil || stdout == nil {
		return &errors.ConnectionError{Err: errors.ErrNotConnected}
	}

	t.mu.Lock()
	t.r = stdout
	t.w = stdin
	t.mu.Unlock()

	return nil
}

// ReadMessages implements Transport.
func (t *Stdio) ReadMessages(ctx context.Context) (<-chan map[string]any, <-chan error) {
	return t.readMessages(ctx)
}

// SendMessage implements Transport.
func (t *Stdio) SendMessage(ctx context.Context, data []byte) error {
	return t.sendMessage(ctx, data)
}

// IsReady implements Transport.
func (t *Stdio) IsReady() bool {
	return !t.isClosed()
}

// Close closes the process's stdin pipe. The read side drains until the
// process exits or is killed by the supervisor. Safe to call multiple times.
func (t *Stdio) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}

	t.closed = true

	if c, ok := t.w.(io.Closer); ok && c != nil {
		return c.Close()
	}

	return nil
}
