package agentlink

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// scriptedAgent is an injectable transport that plays the agent's side of a
// query: it answers session lifecycle calls and, once the prompt arrives,
// streams a scripted list of events back.
type scriptedAgent struct {
	messages chan map[string]any
	errs     chan error

	// events are emitted, in order, after session.send is acknowledged.
	events []map[string]any

	mu          sync.Mutex
	started     bool
	closed      bool
	failDestroy bool
	destroys    int
}

func newScriptedAgent(events ...map[string]any) *scriptedAgent {
	return &scriptedAgent{
		messages: make(chan map[string]any, 64),
		errs:     make(chan error, 1),
		events:   events,
	}
}

func (a *scriptedAgent) Start(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.started = true

	return nil
}

func (a *scriptedAgent) ReadMessages(_ context.Context) (<-chan map[string]any, <-chan error) {
	return a.messages, a.errs
}

func (a *scriptedAgent) SendMessage(_ context.Context, data []byte) error {
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		return fmt.Errorf("scripted agent: invalid frame: %w", err)
	}

	id, hasID := frame["id"]
	if !hasID {
		return nil
	}

	method, _ := frame["method"].(string)

	switch method {
	case "session.create":
		a.respond(id, map[string]any{"sessionId": "sess-q"})

	case "session.send":
		a.respond(id, map[string]any{"messageId": "msg-1"})

		for _, event := range a.events {
			a.messages <- map[string]any{
				"jsonrpc": "2.0",
				"method":  "session.event",
				"params":  map[string]any{"sessionId": "sess-q", "event": event},
			}
		}

	case "session.destroy":
		a.mu.Lock()
		a.destroys++
		fail := a.failDestroy
		a.mu.Unlock()

		if fail {
			a.messages <- map[string]any{
				"jsonrpc": "2.0",
				"id":      id,
				"error":   map[string]any{"code": float64(-32603), "message": "destroy refused"},
			}

			return nil
		}

		a.respond(id, map[string]any{})

	default:
		a.respond(id, map[string]any{})
	}

	return nil
}

func (a *scriptedAgent) respond(id any, result map[string]any) {
	a.messages <- map[string]any{"jsonrpc": "2.0", "id": id, "result": result}
}

func (a *scriptedAgent) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true

	return nil
}

func (a *scriptedAgent) IsReady() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.started && !a.closed
}

func messageEvent(id, text string) map[string]any {
	return map[string]any{
		"id":        id,
		"type":      "message",
		"data":      map[string]any{"text": text},
		"timestamp": float64(time.Now().UnixMilli()),
	}
}

func idleEvent() map[string]any {
	return map[string]any{"id": "idle-1", "type": "idle"}
}

// collect drains a query iterator into events and errors.
func collect(t *testing.T, prompt string, opts ...Option) ([]*SessionEvent, []error) {
	t.Helper()

	var events []*SessionEvent

	var errs []error

	done := make(chan struct{})

	go func() {
		defer close(done)

		for event, err := range Query(t.Context(), prompt, opts...) {
			if err != nil {
				errs = append(errs, err)

				continue
			}

			events = append(events, event)
		}
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("query did not finish")
	}

	return events, errs
}

func TestQuery_StreamsEventsUntilIdle(t *testing.T) {
	agent := newScriptedAgent(
		messageEvent("e1", "thinking"),
		messageEvent("e2", "the answer is 4"),
		idleEvent(),
	)

	events, errs := collect(t, "What is 2+2?", WithTransport(agent))
	require.Empty(t, errs)
	require.Len(t, events, 2)
	require.Equal(t, "e1", events[0].ID)
	require.Equal(t, "e2", events[1].ID)

	// The idle marker ends the stream without being yielded.
	for _, event := range events {
		require.NotEqual(t, EventIdle, event.Type)
	}

	// The throwaway client is torn down afterwards.
	require.False(t, agent.IsReady())
}

func TestQuery_EphemeralEvents(t *testing.T) {
	chunk := map[string]any{"id": "chunk-1", "type": "message", "ephemeral": true}

	t.Run("included by default", func(t *testing.T) {
		agent := newScriptedAgent(chunk, messageEvent("e1", "done"), idleEvent())

		events, errs := collect(t, "stream it", WithTransport(agent))
		require.Empty(t, errs)
		require.Len(t, events, 2)
		require.Equal(t, "chunk-1", events[0].ID)
		require.True(t, events[0].Ephemeral)
	})

	t.Run("filtered when disabled", func(t *testing.T) {
		agent := newScriptedAgent(chunk, messageEvent("e1", "done"), idleEvent())

		events, errs := collect(t, "stream it", WithTransport(agent), WithIncludeEphemeral(false))
		require.Empty(t, errs)
		require.Len(t, events, 1)
		require.Equal(t, "e1", events[0].ID)
	})
}

func TestQuery_ErrorEventEndsStream(t *testing.T) {
	agent := newScriptedAgent(
		messageEvent("e1", "working"),
		map[string]any{
			"id":   "err-1",
			"type": "error",
			"data": map[string]any{"message": "model exploded"},
		},
		// Anything after the error event must not be yielded.
		messageEvent("e2", "unreachable"),
	)

	events, errs := collect(t, "break", WithTransport(agent))
	require.Len(t, events, 1)
	require.Equal(t, "e1", events[0].ID)

	require.Len(t, errs, 1)

	sessErr, ok := stderrors.AsType[*SessionError](errs[0])
	require.True(t, ok)
	require.Equal(t, "sess-q", sessErr.SessionID)
	require.Contains(t, sessErr.Message, "model exploded")
}

func TestQuery_Timeout(t *testing.T) {
	// No idle event: the stream never ends on its own.
	agent := newScriptedAgent(messageEvent("e1", "still going"))

	events, errs := collect(t, "hang",
		WithTransport(agent),
		WithQueryTimeout(150*time.Millisecond),
	)
	require.Len(t, events, 1)
	require.Len(t, errs, 1)

	toErr, ok := stderrors.AsType[*QueryTimeoutError](errs[0])
	require.True(t, ok)
	require.Equal(t, 150*time.Millisecond, toErr.Timeout)
}

func TestQuery_CleanupFailureYieldsSyntheticEvent(t *testing.T) {
	agent := newScriptedAgent(messageEvent("e1", "fine"), idleEvent())
	agent.failDestroy = true

	events, errs := collect(t, "then fail cleanup", WithTransport(agent))
	require.Empty(t, errs)
	require.Len(t, events, 2)

	last := events[1]
	require.Equal(t, EventError, last.Type)
	require.Contains(t, last.Data["message"], "session cleanup failed")
}

func TestQuery_CleanupFailureReportedAfterErrorEvent(t *testing.T) {
	agent := newScriptedAgent(
		map[string]any{
			"id":   "err-1",
			"type": "error",
			"data": map[string]any{"message": "model exploded"},
		},
	)
	agent.failDestroy = true

	events, errs := collect(t, "break then fail cleanup", WithTransport(agent))

	require.Len(t, errs, 1)

	_, ok := stderrors.AsType[*SessionError](errs[0])
	require.True(t, ok)

	// The failed teardown still surfaces as a final synthetic event.
	require.Len(t, events, 1)
	require.Equal(t, EventError, events[0].Type)
	require.Contains(t, events[0].Data["message"], "session cleanup failed")
}

func TestQuery_CleanupFailureReportedAfterTimeout(t *testing.T) {
	agent := newScriptedAgent(messageEvent("e1", "still going"))
	agent.failDestroy = true

	events, errs := collect(t, "hang then fail cleanup",
		WithTransport(agent),
		WithQueryTimeout(150*time.Millisecond),
	)

	require.Len(t, errs, 1)

	_, ok := stderrors.AsType[*QueryTimeoutError](errs[0])
	require.True(t, ok)

	require.Len(t, events, 2)

	last := events[1]
	require.Equal(t, EventError, last.Type)
	require.Contains(t, last.Data["message"], "session cleanup failed")
}

func TestQuery_BreakStopsEarly(t *testing.T) {
	agent := newScriptedAgent(
		messageEvent("e1", "one"),
		messageEvent("e2", "two"),
		messageEvent("e3", "three"),
		idleEvent(),
	)

	var got []string

	for event, err := range Query(t.Context(), "count", WithTransport(agent)) {
		require.NoError(t, err)

		got = append(got, event.ID)
		if len(got) == 1 {
			break
		}
	}

	require.Equal(t, []string{"e1"}, got)
	require.False(t, agent.IsReady())
}
