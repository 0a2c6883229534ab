package agentlink

import "github.com/pilotdesk/agentlink-go/internal/config"

// Transport defines the interface for agent process communication.
// Implement this to provide custom transports for testing, mocking,
// or alternative communication methods (e.g., remote connections).
//
// The default implementations frame newline-delimited JSON over the
// supervised process's stdio pipes or a localhost TCP socket. A custom
// transport can be injected via WithTransport, in which case no process
// is spawned.
type Transport = config.Transport
