package agentlink

import (
	"context"
	"fmt"
)

// WithClient manages client lifecycle with automatic cleanup.
//
// This helper creates a client, starts it with the provided options, executes
// the callback function, and ensures proper cleanup when done. A graceful
// Stop runs first; if it reports failures, ForceStop follows.
//
// The callback receives a fully connected Client that is ready for use.
// If the callback returns an error, it is returned to the caller.
// Shutdown failures are logged but do not override the callback's error.
//
// Example usage:
//
//	err := agentlink.WithClient(ctx, func(c agentlink.Client) error {
//	    sess, err := c.CreateSession(ctx, agentlink.SessionConfig{})
//	    if err != nil {
//	        return err
//	    }
//	    _, err = sess.Send(ctx, agentlink.SendOptions{Prompt: "Hello"})
//	    return err
//	},
//	    agentlink.WithExecutable("/usr/local/bin/agentd"),
//	    agentlink.WithLogger(log),
//	)
func WithClient(ctx context.Context, fn func(Client) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	client := newClientImpl(options)
	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start client: %w", err)
	}

	defer func() {
		if errs := client.Stop(context.WithoutCancel(ctx)); len(errs) > 0 {
			log.Warn("failed to stop client cleanly, forcing", "errors", errs)
			client.ForceStop()
		}
	}()

	return fn(client)
}
