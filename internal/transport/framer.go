// Package transport provides the stdio and TCP transports that frame JSON-RPC
// messages to and from the agent process, one JSON object per line.
package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pilotdesk/agentlink-go/internal/errors"
)

// maxScanTokenSize is the maximum buffer size for reading a single frame.
const maxScanTokenSize = 1024 * 1024 // 1MB

// framer implements line-delimited JSON framing over a reader/writer pair.
// Both concrete transports embed it.
type framer struct {
	log *slog.Logger

	mu     sync.Mutex
	r      io.Reader
	w      io.Writer
	closed bool
}

// readMessages decodes one JSON object per line into the returned channel.
// Decode failures are reported on the error channel and do not stop reading.
// Both channels are closed when the underlying stream ends.
func (f *framer) readMessages(ctx context.Context) (<-chan map[string]any, <-chan error) {
	messages := make(chan map[string]any)
	errs := make(chan error, 1)

	go func() {
		defer close(messages)
		defer close(errs)

		scanner := bufio.NewScanner(f.r)
		buf := make([]byte, maxScanTokenSize)
		scanner.Buffer(buf, maxScanTokenSize)

		for scanner.Scan() {
			select {
			case <-ctx.Done():
				errs <- ctx.Err()

				return
			default:
			}

			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var msg map[string]any

			if err := json.Unmarshal(line, &msg); err != nil {
				f.log.Debug("Failed to unmarshal frame", "error", err, "frame", string(line))

				errs <- &errors.JSONDecodeError{RawData: string(line), Err: err}

				continue
			}

			select {
			case messages <- msg:
			case <-ctx.Done():
				errs <- ctx.Err()

				return
			}
		}

		if err := scanner.Err(); err != nil {
			f.log.Debug("Frame scanner stopped", "error", err)

			errs <- fmt.Errorf("scanner error: %w", err)
		}
	}()

	return messages, errs
}

// sendMessage writes one framed message, appending the trailing newline if
// missing. Safe for concurrent use; respects context cancellation even during
// a blocked write.
func (f *framer) sendMessage(ctx context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || f.w == nil {
		return errors.ErrChannelClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	// Copy rather than append so the caller's backing array is never mutated.
	if len(data) == 0 || data[len(data)-1] != '\n' {
		framed := make([]byte, len(data)+1)
		copy(framed, data)
		framed[len(data)] = '\n'
		data = framed
	}

	done := make(chan error, 1)

	go func() {
		_, err := f.w.Write(data)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("write frame: %w", err)
		}

		return nil

	case <-ctx.Done():
		// Close the writer to unblock the pending Write.
		if c, ok := f.w.(io.Closer); ok {
			_ = c.Close()
		}

		f.closed = true

		select {
		case <-done:
		case <-time.After(time.Second):
			f.log.Warn("Write goroutine did not exit after close, potential leak")
		}

		return ctx.Err()
	}
}

// markClosed flags the framer closed so later sends fail fast.
func (f *framer) markClosed() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
}

// isClosed reports whether the framer has been closed.
func (f *framer) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closed
}
