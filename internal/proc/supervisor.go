// Package proc spawns and supervises the external agent process.
package proc

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pilotdesk/agentlink-go/internal/config"
	"github.com/pilotdesk/agentlink-go/internal/errors"
)

// maxStderrBufferSize caps the stderr buffer used for error reporting.
// Stderr reading continues past the cap so the child never blocks.
const maxStderrBufferSize = 10 * 1024 * 1024 // 10MB

// portAnnouncement matches the readiness line the agent prints in TCP mode.
var portAnnouncement = regexp.MustCompile(`listening on port (\d+)`)

// Supervisor spawns the agent process with the managed flags for the chosen
// transport mode, resolves readiness, and monitors for unexpected exit.
type Supervisor struct {
	log     *slog.Logger
	options *config.Options

	onExit func(err error)

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  io.ReadCloser
	port    int
	closing bool

	stderrMu  sync.Mutex
	stderrBuf strings.Builder
}

// New creates a supervisor for the configured agent executable.
func New(log *slog.Logger, options *config.Options) *Supervisor {
	return &Supervisor{
		log:     log.With("component", "supervisor"),
		options: options,
	}
}

// OnExit registers a callback invoked when the process exits after a
// successful start. The callback receives the wait error, or nil for a clean
// exit. It is not invoked for exits triggered by Stop(). Must be set before
// Start().
func (s *Supervisor) OnExit(fn func(err error)) {
	s.onExit = fn
}

// BuildArgs constructs the managed argument list: server-mode flag, log level,
// and the transport selection, followed by any caller-supplied extra args.
func BuildArgs(options *config.Options) []string {
	args := []string{
		"--serve",
		"--log-level", options.LogLevel,
	}

	if options.TransportMode == config.TransportTCP {
		args = append(args, "--port", strconv.Itoa(options.Port))
	} else {
		args = append(args, "--stdio")
	}

	return append(args, options.Args...)
}

// buildEnv merges the caller's extra environment into the inherited one.
func buildEnv(options *config.Options) []string {
	env := os.Environ()
	for k, v := range options.Env {
		env = append(env, k+"="+v)
	}

	return env
}

// Start spawns the agent process and waits for readiness.
//
// In stdio mode readiness resolves immediately after spawn: the pipes exist as
// soon as the process does. In TCP mode the process's stdout is scanned for a
// "listening on port <N>" line, capturing N as the port to dial; readiness
// fails if the process exits first or the timeout elapses.
func (s *Supervisor) Start(ctx context.Context) error {
	executable := s.options.ExecutablePath
	if executable == "" {
		// Bare names go through the usual PATH lookup in exec.Command.
		executable = config.DefaultExecutable
	}

	s.log.Info("Starting agent process", "path", executable, "mode", s.options.TransportMode)

	args := BuildArgs(s.options)
	s.log.Debug("Built command arguments", "args", args)

	//nolint:gosec // G204: spawning the configured agent executable is the point
	cmd := exec.Command(executable, args...)
	cmd.Dir = s.options.Cwd
	cmd.Env = buildEnv(s.options)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &errors.ConnectionError{Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &errors.ConnectionError{Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &errors.ConnectionError{Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		s.log.Error("Failed to start agent process", "error", err)

		if stderrors.Is(err, exec.ErrNotFound) || stderrors.Is(err, os.ErrNotExist) {
			return &errors.AgentNotFoundError{Path: executable, Err: err}
		}

		return &errors.ConnectionError{Err: fmt.Errorf("start process: %w", err)}
	}

	s.mu.Lock()
	s.cmd = cmd
	s.stdin = stdin
	s.stdout = stdout
	s.mu.Unlock()

	go s.readStderr(stderr)

	s.log.Info("Agent process started", "pid", cmd.Process.Pid)

	exited := make(chan *errors.ProcessError, 1)

	go s.monitor(cmd, exited)

	if s.options.TransportMode == config.TransportTCP {
		return s.awaitPortAnnouncement(ctx, stdout, exited)
	}

	return nil
}

// awaitPortAnnouncement scans stdout for the readiness line in TCP mode.
func (s *Supervisor) awaitPortAnnouncement(
	ctx context.Context,
	stdout io.Reader,
	exited <-chan *errors.ProcessError,
) error {
	timeout := s.options.ReadyTimeout
	if timeout <= 0 {
		timeout = config.DefaultReadyTimeout
	}

	portCh := make(chan int, 1)

	go func() {
		scanner := bufio.NewScanner(stdout)
		announced := false

		for scanner.Scan() {
			line := scanner.Text()

			if !announced {
				if m := portAnnouncement.FindStringSubmatch(line); m != nil {
					port, err := strconv.Atoi(m[1])
					if err == nil {
						announced = true
						portCh <- port

						continue
					}
				}
			}

			// Keep draining so the child never blocks on a full pipe.
			s.log.Debug("Agent stdout", "line", line)
		}
	}()

	select {
	case port := <-portCh:
		s.mu.Lock()
		s.port = port
		s.mu.Unlock()

		s.log.Info("Agent announced TCP port", "port", port)

		return nil

	case perr := <-exited:
		s.log.Error("Agent process exited before readiness", "exit_code", perr.ExitCode)

		return perr

	case <-time.After(timeout):
		s.log.Error("Timed out waiting for port announcement", "timeout", timeout)

		return &errors.ReadinessTimeoutError{Timeout: timeout}

	case <-ctx.Done():
		return ctx.Err()
	}
}

// monitor waits for process exit and reports it. Before readiness the exit is
// delivered on the exited channel; after that the OnExit callback fires unless
// the exit was triggered by Stop().
func (s *Supervisor) monitor(cmd *exec.Cmd, exited chan<- *errors.ProcessError) {
	err := cmd.Wait()

	exitCode := 0
	if exitErr, ok := stderrors.AsType[*exec.ExitError](err); ok {
		exitCode = exitErr.ExitCode()
	}

	s.stderrMu.Lock()
	stderrOut := s.stderrBuf.String()
	s.stderrMu.Unlock()

	perr := &errors.ProcessError{ExitCode: exitCode, Stderr: stderrOut, Err: err}

	select {
	case exited <- perr:
	default:
	}

	s.mu.Lock()
	closing := s.closing
	s.mu.Unlock()

	if closing {
		s.log.Debug("Agent process terminated during shutdown")

		return
	}

	if err != nil {
		s.log.Error("Agent process exited unexpectedly", "exit_code", exitCode, "stderr", stderrOut)
	} else {
		s.log.Info("Agent process exited")
	}

	if s.onExit != nil {
		if err != nil {
			s.onExit(perr)
		} else {
			s.onExit(nil)
		}
	}
}

// readStderr buffers stderr for error reporting, capped at
// maxStderrBufferSize. Reading continues past the cap so the child never
// blocks on a full pipe.
func (s *Supervisor) readStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()

		s.stderrMu.Lock()

		if s.stderrBuf.Len() < maxStderrBufferSize {
			if s.stderrBuf.Len() > 0 {
				s.stderrBuf.WriteString("\n")
			}

			s.stderrBuf.WriteString(line)
		}

		s.stderrMu.Unlock()
	}

	if err := scanner.Err(); err != nil {
		s.log.Debug("Stderr scanner error", "error", err)
	}
}

// Port returns the TCP port captured from the readiness announcement.
func (s *Supervisor) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.port
}

// Stdin returns the process's stdin pipe for the stdio transport.
func (s *Supervisor) Stdin() io.WriteCloser {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stdin
}

// Stdout returns the process's stdout pipe for the stdio transport.
func (s *Supervisor) Stdout() io.ReadCloser {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stdout
}

// Running reports whether the process has been started and not stopped.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cmd != nil && s.cmd.Process != nil && !s.closing
}

// Stop terminates the agent process. Safe to call multiple times or on an
// already-exited process; the OnExit callback is suppressed.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closing = true

	if s.cmd != nil && s.cmd.Process != nil {
		s.log.Debug("Killing agent process", "pid", s.cmd.Process.Pid)

		if err := s.cmd.Process.Kill(); err != nil && !stderrors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("kill agent process (pid %d): %w", s.cmd.Process.Pid, err)
		}
	}

	return nil
}
