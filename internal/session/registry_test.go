package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pilotdesk/agentlink-go/internal/message"
)

func TestRegistry_AddGetRemove(t *testing.T) {
	registry := NewRegistry(testLogger())

	s := New(testLogger(), "sess-1", newFakeCaller())
	registry.Add(s)

	got, ok := registry.Get("sess-1")
	require.True(t, ok)
	require.Same(t, s, got)
	require.Equal(t, 1, registry.Len())

	registry.Remove("sess-1")

	_, ok = registry.Get("sess-1")
	require.False(t, ok)
	require.Equal(t, 0, registry.Len())
}

func TestRegistry_Dispatch_RoutesToOwningSession(t *testing.T) {
	registry := NewRegistry(testLogger())

	first := New(testLogger(), "sess-1", newFakeCaller())
	second := New(testLogger(), "sess-2", newFakeCaller())
	registry.Add(first)
	registry.Add(second)

	var mu sync.Mutex

	got := map[string][]string{}

	subscribe := func(s *Session, id string) {
		s.On(func(event *message.SessionEvent) {
			mu.Lock()
			defer mu.Unlock()

			got[id] = append(got[id], event.ID)
		})
	}

	subscribe(first, "sess-1")
	subscribe(second, "sess-2")

	registry.Dispatch(&message.EventEnvelope{
		SessionID: "sess-1",
		Event:     message.SessionEvent{ID: "e1", Type: "message"},
	})
	registry.Dispatch(&message.EventEnvelope{
		SessionID: "sess-2",
		Event:     message.SessionEvent{ID: "e2", Type: "message"},
	})
	registry.Dispatch(&message.EventEnvelope{
		SessionID: "sess-1",
		Event:     message.SessionEvent{ID: "e3", Type: "idle"},
	})

	mu.Lock()
	defer mu.Unlock()

	require.Equal(t, []string{"e1", "e3"}, got["sess-1"])
	require.Equal(t, []string{"e2"}, got["sess-2"])
}

func TestRegistry_Dispatch_UnknownSessionDropped(t *testing.T) {
	registry := NewRegistry(testLogger())

	require.NotPanics(t, func() {
		registry.Dispatch(&message.EventEnvelope{
			SessionID: "ghost",
			Event:     message.SessionEvent{ID: "e1", Type: "message"},
		})
	})
}

func TestRegistry_Clear_DropsSessionState(t *testing.T) {
	registry := NewRegistry(testLogger())

	s := New(testLogger(), "sess-1", newFakeCaller())
	registry.Add(s)

	registry.Clear()

	require.Equal(t, 0, registry.Len())

	// Cleared sessions are marked destroyed locally.
	_, err := s.Send(t.Context(), message.SendOptions{Prompt: "late"})
	require.Error(t, err)
}
