// Package agentlink provides a Go client runtime for a conversational agent
// that runs as an external process.
//
// The client spawns and supervises the agent executable, multiplexes any
// number of sessions over a single framed JSON-RPC channel (stdio pipes or a
// localhost TCP socket), dispatches the agent's inbound tool calls to
// caller-supplied handlers, and exposes a cancellable streaming query.
//
// # One-shot queries
//
// For a single prompt-to-idle exchange, use Query:
//
//	ctx := context.Background()
//	for event, err := range agentlink.Query(ctx, "Summarize this repo",
//	    agentlink.WithExecutable("/usr/local/bin/agentd"),
//	) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(event.Type, event.Data)
//	}
//
// Query creates a throwaway client and session, streams events until the
// agent signals the end of the turn, and tears everything down. The query is
// bounded by WithQueryTimeout (60s by default) and by the caller's context.
//
// # Long-lived clients
//
// For multiple concurrent sessions over one agent process, use NewClient:
//
//	client := agentlink.NewClient(
//	    agentlink.WithExecutable("/usr/local/bin/agentd"),
//	    agentlink.WithLogger(slog.Default()),
//	)
//	defer client.ForceStop()
//
//	sess, err := client.CreateSession(ctx, agentlink.SessionConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	off := sess.On(func(event *agentlink.SessionEvent) {
//	    fmt.Println(event.Type)
//	})
//	defer off()
//
//	if _, err := sess.Send(ctx, agentlink.SendOptions{Prompt: "Hello"}); err != nil {
//	    log.Fatal(err)
//	}
//
// # Tools
//
// Sessions may register tools the agent can invoke. Handlers run locally;
// only the tool name, description, and parameter schema cross the wire:
//
//	echo := agentlink.NewTool("echo", "Echo the input back",
//	    agentlink.SimpleSchema(map[string]string{"text": "string"}),
//	    func(ctx context.Context, inv *agentlink.ToolInvocation) (any, error) {
//	        return inv.Arguments["text"].(string), nil
//	    },
//	)
//
//	sess, err := client.CreateSession(ctx, agentlink.SessionConfig{
//	    Tools: []agentlink.ToolDefinition{echo},
//	})
//
// # Logging
//
// Logging is disabled unless a logger is provided with WithLogger:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	client := agentlink.NewClient(agentlink.WithLogger(logger))
//
// # Error handling
//
// Typed errors cover the distinct failure scenarios:
//
//	sess, err := client.CreateSession(ctx, agentlink.SessionConfig{})
//	if err != nil {
//	    if nfErr, ok := errors.AsType[*agentlink.AgentNotFoundError](err); ok {
//	        log.Fatalf("agent executable not found at %s", nfErr.Path)
//	    }
//	    if procErr, ok := errors.AsType[*agentlink.ProcessError](err); ok {
//	        log.Fatalf("agent process failed with exit code %d: %s", procErr.ExitCode, procErr.Stderr)
//	    }
//	    log.Fatal(err)
//	}
package agentlink
