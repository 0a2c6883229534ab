package transport

import (
	stderrors "errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pilotdesk/agentlink-go/internal/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePipes wires the transport to in-memory pipes: the test writes agent
// output into stdout and reads client frames from stdin.
type fakePipes struct {
	stdinR  *io.PipeReader
	stdinW  *io.PipeWriter
	stdoutR *io.PipeReader
	stdoutW *io.PipeWriter
}

func newFakePipes() *fakePipes {
	f := &fakePipes{}
	f.stdinR, f.stdinW = io.Pipe()
	f.stdoutR, f.stdoutW = io.Pipe()

	return f
}

func (f *fakePipes) Stdin() io.WriteCloser { return f.stdinW }
func (f *fakePipes) Stdout() io.ReadCloser { return f.stdoutR }

func TestStdio_ReadMessages_FramesAndDecodeFailures(t *testing.T) {
	pipes := newFakePipes()

	tr := NewStdio(testLogger(), pipes)
	require.NoError(t, tr.Start(t.Context()))

	messages, errs := tr.ReadMessages(t.Context())

	go func() {
		input := `{"jsonrpc":"2.0","method":"session.event","params":{"n":1}}` + "\n" +
			"\n" + // blank lines are skipped
			"not json at all\n" +
			`{"jsonrpc":"2.0","method":"session.event","params":{"n":2}}` + "\n"

		_, _ = io.Copy(pipes.stdoutW, strings.NewReader(input))
		_ = pipes.stdoutW.Close()
	}()

	var got []map[string]any

	var decodeErr error

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				// errs closes before messages; drain any buffered error.
				for err := range errs {
					if err != nil {
						decodeErr = err
					}
				}

				require.Len(t, got, 2)
				require.Error(t, decodeErr)

				jsonErr, ok := stderrors.AsType[*errors.JSONDecodeError](decodeErr)
				require.True(t, ok)
				require.Equal(t, "not json at all", jsonErr.RawData)

				return
			}

			got = append(got, msg)

		case err := <-errs:
			if err != nil {
				decodeErr = err
			}

		case <-time.After(2 * time.Second):
			t.Fatal("timed out reading frames")
		}
	}
}

func TestStdio_SendMessage_AppendsNewline(t *testing.T) {
	pipes := newFakePipes()

	tr := NewStdio(testLogger(), pipes)
	require.NoError(t, tr.Start(t.Context()))

	lines := make(chan string, 2)

	go func() {
		buf := make([]byte, 4096)

		for {
			n, err := pipes.stdinR.Read(buf)
			if n > 0 {
				lines <- string(buf[:n])
			}

			if err != nil {
				return
			}
		}
	}()

	require.NoError(t, tr.SendMessage(t.Context(), []byte(`{"method":"ping"}`)))
	require.Equal(t, "{\"method\":\"ping\"}\n", <-lines)

	// A payload already carrying the newline is not double-framed.
	require.NoError(t, tr.SendMessage(t.Context(), []byte("{\"method\":\"pong\"}\n")))
	require.Equal(t, "{\"method\":\"pong\"}\n", <-lines)
}

func TestStdio_SendAfterClose(t *testing.T) {
	pipes := newFakePipes()

	tr := NewStdio(testLogger(), pipes)
	require.NoError(t, tr.Start(t.Context()))
	require.True(t, tr.IsReady())

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	require.False(t, tr.IsReady())

	err := tr.SendMessage(t.Context(), []byte(`{}`))
	require.ErrorIs(t, err, errors.ErrChannelClosed)
}

func TestStdio_Start_WithoutPipes(t *testing.T) {
	tr := NewStdio(testLogger(), nilPipes{})

	err := tr.Start(t.Context())
	require.Error(t, err)

	_, ok := stderrors.AsType[*errors.ConnectionError](err)
	require.True(t, ok)
}

type nilPipes struct{}

func (nilPipes) Stdin() io.WriteCloser { return nil }
func (nilPipes) Stdout() io.ReadCloser { return nil }
