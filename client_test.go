package agentlink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewClient_Lifecycle(t *testing.T) {
	agent := newScriptedAgent()
	client := NewClient(WithTransport(agent))

	require.Equal(t, StateDisconnected, client.State())

	require.NoError(t, client.Start(t.Context()))
	require.Equal(t, StateConnected, client.State())

	sess, err := client.CreateSession(t.Context(), SessionConfig{})
	require.NoError(t, err)
	require.Equal(t, "sess-q", sess.ID())

	got, ok := client.Session(sess.ID())
	require.True(t, ok)
	require.Same(t, sess, got)

	require.Empty(t, client.Stop(t.Context()))
	require.Equal(t, StateDisconnected, client.State())
	require.False(t, agent.IsReady())
}

func TestWithClient(t *testing.T) {
	agent := newScriptedAgent()

	var seen ConnectionState

	err := WithClient(t.Context(), func(client Client) error {
		seen = client.State()

		_, err := client.CreateSession(t.Context(), SessionConfig{})

		return err
	}, WithTransport(agent))

	require.NoError(t, err)
	require.Equal(t, StateConnected, seen)
	require.False(t, agent.IsReady())
}

func TestWithClient_CallbackErrorPropagates(t *testing.T) {
	agent := newScriptedAgent()

	err := WithClient(t.Context(), func(_ Client) error {
		return context.DeadlineExceeded
	}, WithTransport(agent))

	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.False(t, agent.IsReady())
}

func TestWithClient_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := WithClient(ctx, func(_ Client) error {
		t.Fatal("callback should not run")

		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}
