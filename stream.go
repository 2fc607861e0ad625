package forkcoupled

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/mwri/forkcoupled/internal/errors"
	"github.com/mwri/forkcoupled/reactor"
)

// readChunkSize is how much a monitored stream reads per readiness
// notification. Chunk boundaries carry no meaning to subscribers.
const readChunkSize = 64 * 1024

// Reactor is the readiness loop streams register into. The coordinator
// never drives the loop itself; the host controller does. *reactor.Loop
// satisfies this interface.
type Reactor interface {
	Register(fd int, h reactor.Handler) (*reactor.Registration, error)
}

// Stream is a non-blocking wrapper around one parent-side pipe end,
// integrated into the host reactor. Named streams translate readiness into
// read_<name> and finish_<name> events; unnamed streams (the input stream,
// a quashed error stream) work silently.
//
// All Stream state is touched only on the reactor goroutine, except the
// initial construction and the write path, which the host serializes per
// the single-threaded model.
type Stream struct {
	name string
	f    *os.File
	fd   int
	log  *slog.Logger

	proc *Process
	r    Reactor
	reg  *reactor.Registration

	readable bool
	buf      []byte

	finished bool
	cond     Condition
	closed   bool

	// Write-side state, input stream only.
	wbuf         []byte
	closeOnFlush bool
}

// Compile-time verification that Stream implements the reactor handler.
var _ reactor.Handler = (*Stream)(nil)

// newReadStream wraps a parent-side read end and registers it with the
// reactor. An empty name makes the stream a silent drain.
func newReadStream(r Reactor, f *os.File, name string, timeout time.Duration, p *Process, log *slog.Logger) (*Stream, error) {
	fd, err := rawFd(f)
	if err != nil {
		return nil, err
	}

	s := &Stream{
		name:     name,
		f:        f,
		fd:       fd,
		log:      log,
		proc:     p,
		r:        r,
		readable: true,
		buf:      make([]byte, readChunkSize),
	}

	reg, err := r.Register(fd, s)
	if err != nil {
		return nil, fmt.Errorf("register stream: %w", err)
	}

	s.reg = reg

	if timeout > 0 {
		reg.SetTimeout(timeout)
	}

	return s, nil
}

// newWriteStream wraps the parent-side write end of the child's input pipe.
// It registers with the reactor only while it has buffered bytes to flush,
// so an idle input stream never keeps the loop alive.
func newWriteStream(r Reactor, f *os.File, p *Process, log *slog.Logger) (*Stream, error) {
	fd, err := rawFd(f)
	if err != nil {
		return nil, err
	}

	return &Stream{
		name: "",
		f:    f,
		fd:   fd,
		log:  log,
		proc: p,
		r:    r,
	}, nil
}

// rawFd takes the descriptor out of the Go runtime poller and marks it
// non-blocking, so all further I/O goes through raw syscalls that can never
// park the reactor goroutine.
func rawFd(f *os.File) (int, error) {
	fd := int(f.Fd())

	if err := unix.SetNonblock(fd, true); err != nil {
		return -1, fmt.Errorf("set non-blocking: %w", err)
	}

	return fd, nil
}

// Name returns the stream name ("stdout" or "stderr"), or an empty string
// for unnamed streams. A merged error stream reports "stdout".
func (s *Stream) Name() string {
	return s.name
}

// Readable reads one available chunk and emits a read event, or finishes
// the stream on end-of-file and read errors. Implements reactor.Handler.
func (s *Stream) Readable() {
	if s.finished || !s.readable {
		return
	}

	n, err := unix.Read(s.fd, s.buf)

	switch {
	case n > 0:
		if s.name == "" {
			return // silent drain
		}

		data := make([]byte, n)
		copy(data, s.buf[:n])

		s.log.Debug("Stream chunk read", "stream", s.name, "bytes", n)
		s.proc.emit(Event{Name: readEventName(s.name), Stream: s, Data: data})

	case n == 0 && err == nil:
		s.finish(ConditionClosed, nil)

	case err == unix.EAGAIN || err == unix.EINTR:
		// Spurious wakeup; wait for the next notification.

	default:
		s.finish(ConditionErrored, err)
	}
}

// Writable flushes buffered input-stream bytes. Once drained the stream
// deregisters; a flush error closes it silently. Implements reactor.Handler.
func (s *Stream) Writable() {
	if s.closed || s.readable {
		return
	}

	for len(s.wbuf) > 0 {
		n, err := unix.Write(s.fd, s.wbuf)
		if n > 0 {
			s.wbuf = s.wbuf[n:]
		}

		if err == unix.EAGAIN {
			return // pipe full again, stay registered
		}

		if err == unix.EINTR {
			continue
		}

		if err != nil {
			s.log.Debug("Stdin flush failed, closing input stream", "error", err)
			s.closeNow()

			return
		}
	}

	s.dropRegistration()

	if s.closeOnFlush {
		s.closeNow()
	}
}

// Expired finishes the stream with the timeout condition.
// Implements reactor.Handler.
func (s *Stream) Expired() {
	if s.readable {
		s.finish(ConditionTimedOut, nil)

		return
	}

	// Write streams have no timeout semantics.
}

// write queues data on the input stream, writing as much as the pipe
// accepts immediately and buffering the rest for flush on writability.
func (s *Stream) write(data []byte) error {
	if s.closed {
		return errors.ErrStdinClosed
	}

	// Preserve ordering: never bypass bytes already buffered.
	if len(s.wbuf) == 0 {
		for len(data) > 0 {
			n, err := unix.Write(s.fd, data)
			if n > 0 {
				data = data[n:]
			}

			if err == unix.EAGAIN {
				break
			}

			if err == unix.EINTR {
				continue
			}

			if err != nil {
				s.closeNow()

				return fmt.Errorf("write stdin: %w", err)
			}
		}
	}

	if len(data) > 0 {
		s.wbuf = append(s.wbuf, data...)

		return s.ensureWriteInterest()
	}

	return nil
}

// closeWhenFlushed closes the input stream, deferring until buffered bytes
// have drained. Idempotent.
func (s *Stream) closeWhenFlushed() error {
	if s.closed {
		return nil
	}

	if len(s.wbuf) > 0 {
		s.closeOnFlush = true

		return nil
	}

	s.closeNow()

	return nil
}

// ensureWriteInterest registers the input stream for writability
// notifications while it has buffered bytes.
func (s *Stream) ensureWriteInterest() error {
	if s.reg != nil {
		return nil
	}

	reg, err := s.r.Register(s.fd, s)
	if err != nil {
		return fmt.Errorf("register stdin for flush: %w", err)
	}

	reg.WantRead(false)
	reg.WantWrite(true)
	s.reg = reg

	return nil
}

// finish makes a monitored stream stop: deregister exactly once, close the
// pipe end, then emit the finish event for named streams. Idempotent.
func (s *Stream) finish(cond Condition, err error) {
	if s.finished {
		return
	}

	s.finished = true
	s.cond = cond
	s.dropRegistration()
	s.closed = true
	_ = s.f.Close()

	if s.name == "" {
		return
	}

	s.log.Debug("Stream finished", "stream", s.name, "condition", cond.String(), "error", err)
	s.proc.emit(Event{Name: finishEventName(s.name), Stream: s, Cond: cond, Err: err})
}

// timedOut reports whether the stream finished due to inactivity. Valid to
// read only once the reactor loop has returned.
func (s *Stream) timedOut() bool {
	return s.finished && s.cond == ConditionTimedOut
}

// closeNow closes an unnamed stream silently.
func (s *Stream) closeNow() {
	if s.closed {
		return
	}

	s.closed = true
	s.wbuf = nil
	s.dropRegistration()
	_ = s.f.Close()
}

func (s *Stream) dropRegistration() {
	if s.reg != nil {
		_ = s.reg.Close()
		s.reg = nil
	}
}
