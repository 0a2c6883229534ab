package rpc

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pilotdesk/agentlink-go/internal/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

/// mockTransport is an in-memory transport: frames sent by the channel are
// captured, and test code injects inbound frames directly.
type mockTransport struct {
	messages chan map[string]any
	errs     chan error

	mu      sync.Mutex
	sent    []map[string]any
	sendErr error
}

func newMockTransport() *mockTransport {
	return &mockTransport{
		messages: make(chan map[string]any, 16),
		errs:     make(chan error, 1),
	}
}

func (m *mockTransport) ReadMessages(_ context.Context) (<-chan map[string]any, <-chan error) {
	return m.messages, m.errs
}

func (m *mockTransport) SendMessage(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sendErr != nil {
		return m.sendErr
	}

	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		return fmt.Errorf("mock: invalid frame: %w", err)
	}

	m.sent = append(m.sent, frame)

	return nil
}

func (m *mockTransport) sentFrames() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	frames := make([]map[string]any, len(m.sent))
	copy(frames, m.sent)

	return frames
}

// waitForFrames polls until the channel has sent at least n frames.
func waitForFrames(t *testing.T, m *mockTransport, n int) []map[string]any {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		frames := m.sentFrames()
		if len(frames) >= n {
			return frames
		}

		time.Sleep(time.Millisecond)
	}

	t.Fatalf("timed out waiting for %d sent frames", n)

	return nil
}

func startChannel(t *testing.T) (*Channel, *mockTransport) {
	t.Helper()

	transport := newMockTransport()
	channel := NewChannel(testLogger(), transport)

	require.NoError(t, channel.Start(context.Background()))

	return channel, transport
}

func TestChannel_Call_CorrelatesOutOfOrderResponses(t *testing.T) {
	channel, transport := startChannel(t)
	defer channel.Stop()

	ctx := context.Background()

	type outcome struct {
		result map[string]any
		err    error
	}

	results := make(chan outcome, 2)

	for range 2 {
		go func() {
			result, err := channel.Call(ctx, "session.send", map[string]any{}, time.Second)
			results <- outcome{result: result, err: err}
		}()
	}

	frames := waitForFrames(t, transport, 2)

	// Answer in reverse order; each call must still get its own response.
	for i := len(frames) - 1; i >= 0; i-- {
		id := frames[i]["id"].(string)
		transport.messages <- map[string]any{
			"jsonrpc": "2.0",
			"id":      id,
			"result":  map[string]any{"echo": id},
		}
	}

	seen := map[string]bool{}

	for range 2 {
		out := <-results
		require.NoError(t, out.err)

		echo := out.result["echo"].(string)
		seen[echo] = true
	}

	require.Len(t, seen, 2)
}

func TestChannel_Call_ErrorResponse(t *testing.T) {
	channel, transport := startChannel(t)
	defer channel.Stop()

	done := make(chan error, 1)

	go func() {
		_, err := channel.Call(context.Background(), "session.create", nil, time.Second)
		done <- err
	}()

	frames := waitForFrames(t, transport, 1)
	transport.messages <- map[string]any{
		"jsonrpc": "2.0",
		"id":      frames[0]["id"],
		"error":   map[string]any{"code": float64(-32603), "message": "boom"},
	}

	err := <-done
	require.Error(t, err)

	rpcErr, ok := stderrors.AsType[*Error](err)
	require.True(t, ok)
	require.Equal(t, CodeInternal, rpcErr.Code)
	require.Equal(t, "boom", rpcErr.Message)
}

func TestChannel_Call_Timeout(t *testing.T) {
	channel, _ := startChannel(t)
	defer channel.Stop()

	_, err := channel.Call(context.Background(), "ping", nil, 20*time.Millisecond)
	require.ErrorIs(t, err, errors.ErrRequestTimeout)
}

func TestChannel_Call_ContextCancelled(t *testing.T) {
	channel, _ := startChannel(t)
	defer channel.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := channel.Call(ctx, "ping", nil, time.Second)
	require.ErrorIs(t, err, context.Canceled)
}

func TestChannel_Call_RejectedOnTransportClose(t *testing.T) {
	channel, transport := startChannel(t)
	defer channel.Stop()

	done := make(chan error, 1)

	go func() {
		_, err := channel.Call(context.Background(), "ping", nil, 5*time.Second)
		done <- err
	}()

	waitForFrames(t, transport, 1)
	close(transport.messages)

	err := <-done
	require.ErrorIs(t, err, errors.ErrChannelClosed)
}

func TestChannel_Call_RejectedWithFatalError(t *testing.T) {
	channel, transport := startChannel(t)
	defer channel.Stop()

	done := make(chan error, 1)

	go func() {
		_, err := channel.Call(context.Background(), "ping", nil, 5*time.Second)
		done <- err
	}()

	waitForFrames(t, transport, 1)
	transport.errs <- stderrors.New("pipe broke")

	err := <-done
	require.Error(t, err)
	require.Contains(t, err.Error(), "pipe broke")
	require.EqualError(t, channel.Err(), "pipe broke")
}

func TestChannel_Notify_OmitsID(t *testing.T) {
	channel, transport := startChannel(t)
	defer channel.Stop()

	require.NoError(t, channel.Notify(context.Background(), "session.event", map[string]any{"k": "v"}))

	frames := waitForFrames(t, transport, 1)
	require.Equal(t, "session.event", frames[0]["method"])
	require.NotContains(t, frames[0], "id")
}

func TestChannel_Notifications_DeliveredInOrder(t *testing.T) {
	channel, transport := startChannel(t)
	defer channel.Stop()

	var mu sync.Mutex

	var got []float64

	channel.HandleNotification("session.event", func(params map[string]any) {
		mu.Lock()
		defer mu.Unlock()

		got = append(got, params["seq"].(float64))
	})

	const n = 20

	for i := range n {
		transport.messages <- map[string]any{
			"jsonrpc": "2.0",
			"method":  "session.event",
			"params":  map[string]any{"seq": float64(i)},
		}
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(got) == n
	}, 2*time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	for i := range n {
		require.Equal(t, float64(i), got[i])
	}
}

func TestChannel_NotificationHandlerPanic_DoesNotStopLoop(t *testing.T) {
	channel, transport := startChannel(t)
	defer channel.Stop()

	var mu sync.Mutex

	var got int

	channel.HandleNotification("session.event", func(params map[string]any) {
		mu.Lock()
		got++
		mu.Unlock()

		if params["boom"] == true {
			panic("handler exploded")
		}
	})

	transport.messages <- map[string]any{"jsonrpc": "2.0", "method": "session.event", "params": map[string]any{"boom": true}}
	transport.messages <- map[string]any{"jsonrpc": "2.0", "method": "session.event", "params": map[string]any{}}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return got == 2
	}, 2*time.Second, time.Millisecond)
}

func TestChannel_InboundRequest_Success(t *testing.T) {
	channel, transport := startChannel(t)
	defer channel.Stop()

	channel.HandleRequest("tool.call", func(_ context.Context, params map[string]any) (any, error) {
		return map[string]any{"ok": true, "tool": params["toolName"]}, nil
	})

	transport.messages <- map[string]any{
		"jsonrpc": "2.0",
		"id":      "req-1",
		"method":  "tool.call",
		"params":  map[string]any{"toolName": "echo"},
	}

	frames := waitForFrames(t, transport, 1)
	require.Equal(t, "2.0", frames[0]["jsonrpc"])
	require.Equal(t, "req-1", frames[0]["id"])

	result := frames[0]["result"].(map[string]any)
	require.Equal(t, true, result["ok"])
	require.Equal(t, "echo", result["tool"])
}

func TestChannel_InboundRequest_MethodNotFound(t *testing.T) {
	channel, transport := startChannel(t)
	defer channel.Stop()

	transport.messages <- map[string]any{
		"jsonrpc": "2.0",
		"id":      "req-2",
		"method":  "no.such.method",
	}

	frames := waitForFrames(t, transport, 1)
	require.Equal(t, "req-2", frames[0]["id"])

	errObj := frames[0]["error"].(map[string]any)
	require.Equal(t, float64(CodeMethodNotFound), errObj["code"])
}

func TestChannel_InboundRequest_HandlerErrors(t *testing.T) {
	channel, transport := startChannel(t)
	defer channel.Stop()

	channel.HandleRequest("typed", func(_ context.Context, _ map[string]any) (any, error) {
		return nil, NewError(CodeInvalidParams, "bad params")
	})
	channel.HandleRequest("plain", func(_ context.Context, _ map[string]any) (any, error) {
		return nil, stderrors.New("something broke")
	})

	transport.messages <- map[string]any{"jsonrpc": "2.0", "id": "a", "method": "typed"}
	transport.messages <- map[string]any{"jsonrpc": "2.0", "id": "b", "method": "plain"}

	frames := waitForFrames(t, transport, 2)

	byID := map[string]map[string]any{}
	for _, f := range frames {
		byID[f["id"].(string)] = f["error"].(map[string]any)
	}

	require.Equal(t, float64(CodeInvalidParams), byID["a"]["code"])
	require.Equal(t, "bad params", byID["a"]["message"])
	require.Equal(t, float64(CodeInternal), byID["b"]["code"])
	require.Equal(t, "something broke", byID["b"]["message"])
}

func TestChannel_InboundResponseIDEchoedVerbatim(t *testing.T) {
	channel, transport := startChannel(t)
	defer channel.Stop()

	channel.HandleRequest("tool.call", func(_ context.Context, _ map[string]any) (any, error) {
		return map[string]any{}, nil
	})

	// Numeric ids are not something the client generates but must be echoed
	// back exactly as received.
	transport.messages <- map[string]any{
		"jsonrpc": "2.0",
		"id":      float64(42),
		"method":  "tool.call",
	}

	frames := waitForFrames(t, transport, 1)
	require.Equal(t, float64(42), frames[0]["id"])
}

func TestChannel_Start_SecondStartRejected(t *testing.T) {
	channel, _ := startChannel(t)
	defer channel.Stop()

	err := channel.Start(context.Background())
	require.ErrorIs(t, err, errors.ErrAlreadyConnected)
}

func TestChannel_Stop_MultipleCalls(t *testing.T) {
	channel, _ := startChannel(t)

	channel.Stop()
	channel.Stop()
	channel.Stop()

	select {
	case <-channel.Done():
		// Expected
	default:
		t.Fatal("done channel should be closed")
	}
}

func TestChannel_SetFatalError_ConcurrentWithStop(t *testing.T) {
	// Run with: go test -race -count=100
	for range 100 {
		channel, _ := startChannel(t)

		var wg sync.WaitGroup

		wg.Add(2)

		go func() {
			defer wg.Done()

			channel.setFatalError(stderrors.New("transport error"))
		}()

		go func() {
			defer wg.Done()

			channel.Stop()
		}()

		wg.Wait()

		select {
		case <-channel.Done():
			// Expected
		default:
			t.Fatal("done channel should be closed")
		}
	}
}

func TestChannel_FatalError_FirstWins(t *testing.T) {
	channel, _ := startChannel(t)
	defer channel.Stop()

	channel.setFatalError(stderrors.New("first error"))
	require.EqualError(t, channel.Err(), "first error")

	channel.setFatalError(stderrors.New("second error"))
	require.EqualError(t, channel.Err(), "first error")
}
