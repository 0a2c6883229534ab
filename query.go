package agentlink

import (
	"context"
	"fmt"
	"iter"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/pilotdesk/agentlink-go/internal/client"
	"github.com/pilotdesk/agentlink-go/internal/config"
	"github.com/pilotdesk/agentlink-go/internal/errors"
)

// queryEventBuffer is the capacity of the bridge between the session's event
// handler and the query iterator. A full buffer blocks the handler, applying
// backpressure to the read loop until the consumer catches up.
const queryEventBuffer = 64

// Query runs a one-shot prompt against a throwaway client and session and
// returns an iterator of the events the agent emits, in emission order.
//
// By default, logging is disabled. Use WithLogger to enable logging:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
//	for event, err := range agentlink.Query(ctx, "What is 2+2?",
//	    agentlink.WithExecutable("/usr/local/bin/agentd"),
//	    agentlink.WithLogger(logger),
//	) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    // handle event
//	}
//
// The iterator ends when the agent emits an idle event (the end of the turn),
// when an error event arrives (yielded as a SessionError), when the query
// timeout elapses (yielded as a QueryTimeoutError), or when the caller's
// context is cancelled. Breaking out of the loop stops the query early.
//
// Ephemeral events (streaming chunks) are yielded unless disabled with
// WithIncludeEphemeral(false); all other events always flow through.
//
// The client, session, and agent process created for the query are torn down
// on every exit path. If that teardown itself fails, a final synthetic
// error-type event describing the failure is yielded before the iterator
// ends.
func Query(
	ctx context.Context,
	prompt string,
	opts ...Option,
) iter.Seq2[*SessionEvent, error] {
	return func(yield func(*SessionEvent, error) bool) {
		options := applyOptions(opts)

		log := options.Logger
		if log == nil {
			log = NopLogger()
		}

		log = log.With("component", "query")
		log.Debug("Starting query execution")

		timeout := options.QueryTimeout
		if timeout <= 0 {
			timeout = config.DefaultQueryTimeout
		}

		qctx, cancel := context.WithTimeoutCause(ctx, timeout, &errors.QueryTimeoutError{Timeout: timeout})
		defer cancel()

		cl := client.New(options)

		if err := cl.Start(qctx); err != nil {
			log.Error("Failed to start client", "error", err)
			yield(nil, err)

			return
		}

		sess, err := cl.CreateSession(qctx, SessionConfig{
			Model: options.Model,
			Tools: options.Tools,
		})
		if err != nil {
			_ = cl.Stop(context.Background())
			yield(nil, err)

			return
		}

		// Bridge events from the session's handler to the iterator. The
		// handler runs on the channel's read loop; the qctx guard keeps it
		// from blocking forever once the query is over.
		events := make(chan *SessionEvent, queryEventBuffer)

		off := sess.On(func(event *SessionEvent) {
			select {
			case events <- event:
			case <-qctx.Done():
			}
		})

		// finish tears the query down. When the consumer can still receive
		// and the teardown fails, a synthetic error event reports it.
		finish := func(canYield bool) {
			off()

			if errs := cl.Stop(context.Background()); len(errs) > 0 {
				log.Warn("Query cleanup reported errors", "errors", errs)

				if canYield {
					yield(cleanupEvent(errs), nil)
				}
			}
		}

		// The turn may end while the send round-trip is still in flight;
		// turnFinished suppresses that racing send failure.
		var turnFinished atomic.Bool

		g, gctx := errgroup.WithContext(qctx)

		g.Go(func() error {
			if _, err := sess.Send(gctx, SendOptions{Prompt: prompt}); err != nil {
				if turnFinished.Load() {
					log.Debug("Ignoring send failure after turn finished", "error", err)

					return nil
				}

				return fmt.Errorf("send prompt: %w", err)
			}

			return nil
		})

		defer func() {
			cancel()
			_ = g.Wait()
		}()

		log.Debug("Streaming events", "session_id", sess.ID())

		sendDone := gctx.Done()

		for {
			select {
			case event := <-events:
				switch event.Type {
				case EventIdle:
					turnFinished.Store(true)

					log.Debug("Turn finished")
					finish(true)

					return

				case EventError:
					turnFinished.Store(true)

					sessErr := &errors.SessionError{
						SessionID: sess.ID(),
						Message:   event.ErrorMessage(),
					}

					log.Warn("Query aborted by error event", "error", sessErr)
					finish(yield(nil, sessErr))

					return

				default:
					if event.Ephemeral && !options.IncludeEphemeral {
						continue
					}

					if !yield(event, nil) {
						log.Debug("Yield returned false, stopping iteration")
						finish(false)

						return
					}
				}

			case <-sendDone:
				// Timeout or cancellation takes precedence over the send
				// goroutine's secondary failure.
				if qctx.Err() != nil {
					cause := context.Cause(qctx)

					log.Debug("Query context ended", "cause", cause)
					finish(yield(nil, cause))

					return
				}

				if err := g.Wait(); err != nil {
					log.Error("Failed to send prompt", "error", err)
					finish(yield(nil, err))

					return
				}

				// Send completed; only a timeout or cancellation can still
				// interrupt the event stream.
				sendDone = qctx.Done()
			}
		}
	}
}

// cleanupEvent synthesizes an error-type event describing a failed teardown.
func cleanupEvent(errs []error) *SessionEvent {
	return &SessionEvent{
		ID:        ulid.Make().String(),
		Type:      EventError,
		Data:      map[string]any{"message": fmt.Sprintf("session cleanup failed: %v", errs)},
		Timestamp: time.Now().UnixMilli(),
	}
}
