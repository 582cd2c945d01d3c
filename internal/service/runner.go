package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	ErrNotStarted = errors.New("process not started")
	ErrInProgress = errors.New("process in progress")
)

const (
	eventBuffer  = 64
	maxLineBytes = 1024 * 1024
	stdinGrace   = time.Second
)

// Command is the launch configuration of a subprocess. Path, Dir and Args
// are passed to the OS as they are. Env is appended to the environment of
// the current process.
type Command struct {
	Path  string
	Dir   string
	Args  []string
	Env   []string
	// Stdin is copied to the process. The stdin pipe is never closed while
	// the process runs, some dev servers exit on EOF. A Stdin implementing
	// io.Closer is closed once the process exits, which unblocks a pending
	// Read on a source that never ends.
	Stdin io.Reader
}

// Runner is a thin wrapper around os/exec, which turns a process into an
// ordered stream of Events. The process is started in its own process
// group, so Kill terminates its descendants too.
type Runner struct {
	mx    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

func NewRunner() *Runner {
	return &Runner{}
}

// Start runs the process and returns its events. It returns ErrInProgress or
// an exec error, otherwise the channel, which is closed after EventExited.
// The caller must consume the channel until it is closed.
func (r *Runner) Start(ctx context.Context, proto Command) (<-chan Event, error) {
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.cmd != nil {
		return nil, ErrInProgress
	}

	cmd := exec.Command(proto.Path, proto.Args...)
	cmd.Dir = proto.Dir
	cmd.Env = append(os.Environ(), proto.Env...)
	cmd.SysProcAttr = sysProcAttr()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	slog.DebugContext(ctx, "starting process", "path", proto.Path, "args", proto.Args, "dir", proto.Dir)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	r.cmd = cmd
	r.stdin = stdin

	var copied chan struct{}
	if proto.Stdin != nil {
		copied = make(chan struct{})
		go func() {
			defer close(copied)
			_, err := io.Copy(stdin, proto.Stdin)
			if err != nil && !errors.Is(err, os.ErrClosed) && !errors.Is(err, io.ErrClosedPipe) {
				slog.DebugContext(ctx, "copying stdin", "error", err)
			}
		}()
	}

	events := make(chan Event, eventBuffer)
	events <- Event{Kind: EventStarted, PID: cmd.Process.Pid}
	go r.wait(ctx, cmd, proto.Stdin, copied, stdout, stderr, events)
	return events, nil
}

func (r *Runner) wait(ctx context.Context, cmd *exec.Cmd, src io.Reader, copied <-chan struct{}, stdout, stderr io.Reader, events chan<- Event) {
	defer close(events)

	// all reads must finish before cmd.Wait closes the pipes
	var g errgroup.Group
	g.Go(func() error {
		return scanLines(stdout, EventStdout, events)
	})
	g.Go(func() error {
		return scanLines(stderr, EventStderr, events)
	})
	scanErr := g.Wait()

	// the leader stays unreaped until cmd.Wait, Kill must not outlive it
	// and signal a recycled process group
	if werr := awaitExit(cmd.Process); werr != nil {
		slog.DebugContext(ctx, "waiting for exit", "error", werr)
	}
	r.mx.Lock()
	if r.stdin != nil {
		_ = r.stdin.Close()
	}
	r.cmd = nil
	r.stdin = nil
	r.mx.Unlock()

	err := cmd.Wait()

	if closer, ok := src.(io.Closer); ok {
		_ = closer.Close()
		select {
		case <-copied:
		case <-time.After(stdinGrace):
			// a blocking file read is not interrupted by Close
			slog.DebugContext(ctx, "stdin copy still blocked after close")
		}
	}

	exited := Event{Kind: EventExited, ExitCode: -1}
	if cmd.ProcessState != nil {
		exited.ExitCode = cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	switch {
	case err != nil && !errors.As(err, &exitErr):
		exited.Err = err
	case scanErr != nil:
		exited.Err = scanErr
	}
	if exited.Err != nil {
		slog.DebugContext(ctx, "process wait", "error", exited.Err)
	}
	events <- exited
}

func scanLines(rd io.Reader, kind EventKind, events chan<- Event) error {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		events <- Event{Kind: kind, Text: scanner.Text()}
	}
	err := scanner.Err()
	if err == nil {
		return nil
	}
	// keep the pipe drained, otherwise the child blocks on a full buffer
	_, _ = io.Copy(io.Discard, rd)
	return fmt.Errorf("reading %s: %w", kind, err)
}

// Kill terminates the running process and its process group.
// Returns ErrNotStarted when there is no running process.
func (r *Runner) Kill() error {
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.cmd == nil || r.cmd.Process == nil {
		return ErrNotStarted
	}
	return killTree(r.cmd.Process)
}

// PID returns the id of the running process or 0.
func (r *Runner) PID() int {
	r.mx.Lock()
	defer r.mx.Unlock()
	if r.cmd == nil || r.cmd.Process == nil {
		return 0
	}
	return r.cmd.Process.Pid
}
