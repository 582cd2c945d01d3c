package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/CZERTAINLY/devserver/internal/classify"
	"github.com/CZERTAINLY/devserver/internal/log"
	"github.com/CZERTAINLY/devserver/internal/model"
)

var (
	ErrLaunch         = errors.New("launch failed")
	ErrExitedNotReady = errors.New("dev server exited without reporting an url")
	ErrAlreadyStarted = errors.New("dev server already started")
	ErrStopped        = errors.New("dev server stopped")
)

// DevServer supervises one dev server session: it runs the process, finds
// the URL in its output and kills the process tree on Stop. An instance is
// single use, a new session needs a NewDevServer.
type DevServer struct {
	id       uuid.UUID
	runner   *Runner
	stop     *fuse
	ready    *readyGate
	done     chan struct{}
	state    atomic.Int32
	pid      atomic.Int64
	exitCode atomic.Int64
	classify func(line string) (model.URL, error)

	startMx sync.Mutex
	started bool
	err     error // launch error, written before done is closed
}

func NewDevServer() *DevServer {
	d := &DevServer{
		id:       uuid.New(),
		runner:   NewRunner(),
		stop:     newFuse(),
		ready:    newReadyGate(),
		done:     make(chan struct{}),
		classify: classify.URL,
	}
	d.exitCode.Store(-1)
	return d
}

// ID identifies the session in logs.
func (d *DevServer) ID() uuid.UUID {
	return d.id
}

// Start launches the process and returns once it runs. The event loop
// continues in a separate goroutine until the process exits, Stop is called
// or ctx is cancelled, use Wait or Done to observe it.
// A process which can't be started is reported as ErrLaunch.
func (d *DevServer) Start(ctx context.Context, cmd Command) error {
	d.startMx.Lock()
	defer d.startMx.Unlock()
	if d.stop.Fired() {
		return ErrStopped
	}
	if d.started {
		return ErrAlreadyStarted
	}
	d.started = true

	ctx = log.ContextAttrs(ctx, slog.Group("devserver",
		slog.String("session", d.id.String()),
	))
	events, err := d.runner.Start(ctx, cmd)
	if err != nil {
		slog.ErrorContext(ctx, "dev server can't be started", "path", cmd.Path, "error", err)
		d.err = fmt.Errorf("%w: %w", ErrLaunch, err)
		d.setState(StateExited)
		close(d.done)
		return d.err
	}
	d.setState(StateRunning)
	go d.loop(ctx, events)
	return nil
}

// Stop cancels the session. It is safe to call it any time and more than once.
func (d *DevServer) Stop() {
	d.stop.Fire()

	d.startMx.Lock()
	defer d.startMx.Unlock()
	if !d.started {
		d.started = true
		d.setState(StateCancelled)
		close(d.done)
	}
}

// Wait blocks until the event loop ends. A stopped session is not an error,
// only a launch failure is returned.
func (d *DevServer) Wait() error {
	d.startMx.Lock()
	started := d.started
	d.startMx.Unlock()
	if !started {
		return ErrNotStarted
	}
	<-d.done
	return d.err
}

// Done is closed once the session is over.
func (d *DevServer) Done() <-chan struct{} {
	return d.done
}

// Ready is closed once the URL is known.
func (d *DevServer) Ready() <-chan struct{} {
	return d.ready.Wait()
}

// WaitUntilReady blocks until the URL is discovered. It returns
// ErrExitedNotReady if the session ends first and ctx.Err() if ctx is done.
func (d *DevServer) WaitUntilReady(ctx context.Context) (model.URL, error) {
	select {
	case <-d.ready.Wait():
	case <-d.done:
	case <-ctx.Done():
		return model.URL{}, ctx.Err()
	}

	if u, ok := d.ready.URL(); ok {
		return u, nil
	}
	if d.err != nil {
		return model.URL{}, d.err
	}
	return model.URL{}, ErrExitedNotReady
}

// URL returns the discovered URL, false if the dev server is not ready yet.
func (d *DevServer) URL() (model.URL, bool) {
	return d.ready.URL()
}

func (d *DevServer) State() State {
	return State(d.state.Load())
}

// PID returns the process id once started, 0 before.
func (d *DevServer) PID() int {
	return int(d.pid.Load())
}

// ExitCode returns the exit code of a finished process, -1 otherwise.
func (d *DevServer) ExitCode() int {
	return int(d.exitCode.Load())
}

func (d *DevServer) setState(s State) {
	d.state.Store(int32(s))
}

// loop consumes events one at a time, so the first URL wins without
// any further coordination.
func (d *DevServer) loop(ctx context.Context, events <-chan Event) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			d.cancel(ctx, events)
			return
		case <-d.stop.Selectable():
			d.cancel(ctx, events)
			return
		case event, ok := <-events:
			if !ok {
				d.setState(StateExited)
				return
			}
			ctx = d.handle(ctx, event)
			if event.Kind == EventExited {
				// nothing left to cancel, only the close follows
				for range events {
				}
				return
			}
		}
	}
}

func (d *DevServer) handle(ctx context.Context, event Event) context.Context {
	switch event.Kind {
	case EventStarted:
		d.pid.Store(int64(event.PID))
		ctx = log.ContextAttrs(ctx, slog.Int("pid", event.PID))
		slog.InfoContext(ctx, "process started")
	case EventStdout:
		slog.InfoContext(ctx, "stdout", "line", event.Text)
		if classify.HasMarker(event.Text) {
			d.discover(ctx, event.Text)
		}
	case EventStderr:
		slog.InfoContext(ctx, "stderr", "line", event.Text)
	case EventExited:
		d.exitCode.Store(int64(event.ExitCode))
		if event.Err != nil {
			slog.ErrorContext(ctx, "process wait failed", "error", event.Err)
		}
		slog.InfoContext(ctx, "process exited", "exit_code", event.ExitCode)
		if _, ok := d.ready.URL(); !ok {
			slog.WarnContext(ctx, "process exited before reporting an url")
		}
		d.setState(StateExited)
	default:
		slog.WarnContext(ctx, "event not supported: ignoring", "kind", event.Kind)
	}
	return ctx
}

func (d *DevServer) discover(ctx context.Context, line string) {
	if _, ok := d.ready.URL(); ok {
		slog.DebugContext(ctx, "dev server already ready: ignoring url")
		return
	}
	u, err := d.classify(line)
	if err != nil {
		slog.WarnContext(ctx, "can't determine dev server url", "error", err)
		return
	}
	if d.ready.Set(u) {
		slog.InfoContext(ctx, "dev server ready", "url", u.String())
	}
}

// cancel kills the process tree and drains the remaining events, so the
// runner goroutines can end.
func (d *DevServer) cancel(ctx context.Context, events <-chan Event) {
	d.setState(StateCancelling)
	if pid := d.runner.PID(); pid != 0 {
		d.pid.CompareAndSwap(0, int64(pid))
		slog.InfoContext(ctx, "killing process and descendants", "pid", pid)
		err := d.runner.Kill()
		if err != nil && !errors.Is(err, ErrNotStarted) {
			slog.ErrorContext(ctx, "killing process tree failed", "pid", pid, "error", err)
		}
	}
	for event := range events {
		if event.Kind == EventExited {
			d.exitCode.Store(int64(event.ExitCode))
		}
	}
	d.setState(StateCancelled)
}
