package forkcoupled

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/mwri/forkcoupled/internal/errors"
)

// Process is the long-lived handle for a spawned child: pid, command, the
// three coupled streams, and the event bus the host controller subscribes
// to. Its fields are immutable after spawn.
//
// Dropping the handle never kills the child; use Abort for that.
type Process struct {
	log *slog.Logger

	cmd         []string
	ref         any
	ctrlr       any
	timeout     time.Duration
	quashStderr bool
	mergeStderr bool

	pid  int
	proc *os.Process

	stdin  *Stream
	stdout *Stream
	stderr *Stream

	bus *eventBus

	waitOnce  sync.Once
	waitState *os.ProcessState
	waitErr   error
}

// On subscribes a callback to a named event. Callbacks for the same name
// run in registration order, synchronously within the reactor tick that
// produced the event. Subscribe before driving the loop.
func (p *Process) On(event string, fn EventFunc) {
	p.bus.on(event, fn)
}

// emit publishes an event to this handle's subscribers.
func (p *Process) emit(e Event) {
	p.bus.emit(p, e)
}

// WriteStdin emits a write_stdin event with the outbound payload, then
// writes the data to the child's input stream. Data the pipe cannot take
// immediately is buffered and flushed by the reactor; there is no further
// backpressure handling. Returns ErrStdinClosed once the input stream is
// closed.
func (p *Process) WriteStdin(data []byte) error {
	p.emit(Event{Name: EventWriteStdin, Data: data})

	return p.stdin.write(data)
}

// CloseStdin closes the child's input stream once any buffered bytes have
// flushed, signalling end of input. Idempotent.
func (p *Process) CloseStdin() error {
	return p.stdin.closeWhenFlushed()
}

// Abort sends SIGTERM to the child and synchronously waits for it to exit,
// reaping it. The call blocks until the child has actually terminated and
// is not interruptible. Do not call it from a reactor callback that the
// exit itself must unblock.
func (p *Process) Abort() error {
	if p.proc == nil {
		return fmt.Errorf("abort: %w", errors.ErrNotStarted)
	}

	p.log.Debug("Aborting child process", "pid", p.pid)

	if err := p.proc.Signal(unix.SIGTERM); err != nil {
		return &errors.SignalError{Pid: p.pid, Signal: "SIGTERM", Err: err}
	}

	if _, err := p.Wait(); err != nil {
		return fmt.Errorf("reap pid %d: %w", p.pid, err)
	}

	return nil
}

// Wait blocks until the child exits and returns its final state. Safe to
// call more than once and after Abort; the child is reaped exactly once.
func (p *Process) Wait() (*os.ProcessState, error) {
	if p.proc == nil {
		return nil, errors.ErrNotStarted
	}

	p.waitOnce.Do(func() {
		p.waitState, p.waitErr = p.proc.Wait()

		if p.waitErr == nil {
			p.log.Debug("Child process reaped",
				"pid", p.pid, "exit_code", p.waitState.ExitCode())
		}
	})

	return p.waitState, p.waitErr
}

// closeStreams force-closes every stream end without emitting events. Only
// safe once the reactor loop is no longer dispatching for this handle.
func (p *Process) closeStreams() {
	for _, s := range []*Stream{p.stdin, p.stdout, p.stderr} {
		if s != nil {
			s.closeNow()
		}
	}
}

// Cmd returns the full command: executable path followed by arguments.
func (p *Process) Cmd() []string {
	cmd := make([]string, len(p.cmd))
	copy(cmd, p.cmd)

	return cmd
}

// Path returns just the executable path, the first command element.
func (p *Process) Path() string {
	return p.cmd[0]
}

// Ref returns the opaque correlation value supplied at spawn.
func (p *Process) Ref() any {
	return p.ref
}

// Controller returns the opaque controller reference supplied at spawn.
func (p *Process) Controller() any {
	return p.ctrlr
}

// Pid returns the child's process id, or zero when the child never started
// (for example because a pre-exec hook failed).
func (p *Process) Pid() int {
	return p.pid
}

// Stdin returns the child's input stream (write-only, unnamed).
func (p *Process) Stdin() *Stream {
	return p.stdin
}

// Stdout returns the child's output stream.
func (p *Process) Stdout() *Stream {
	return p.stdout
}

// Stderr returns the child's error stream. It is unnamed when quashing and
// named "stdout" when merging.
func (p *Process) Stderr() *Stream {
	return p.stderr
}

// Timeout returns the default stream inactivity timeout.
func (p *Process) Timeout() time.Duration {
	return p.timeout
}

// QuashStderr reports whether the error stream is drained silently.
func (p *Process) QuashStderr() bool {
	return p.quashStderr
}

// MergeStderr reports whether error-stream events are emitted under the
// output stream's name.
func (p *Process) MergeStderr() bool {
	return p.mergeStderr
}
