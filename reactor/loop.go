package reactor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Handler receives readiness callbacks for one registered descriptor.
// Callbacks run on the Loop.Run goroutine only.
type Handler interface {
	// Readable is invoked when the descriptor has data, was closed by the
	// peer, or is in an error state while read interest is selected.
	Readable()

	// Writable is invoked when the descriptor accepts writes (or is in an
	// error state) while write interest is selected.
	Writable()

	// Expired is invoked when the registration's inactivity timeout
	// elapses. It fires at most once per arming; SetTimeout re-arms.
	Expired()
}

// Loop is a single-threaded poll(2) readiness loop.
type Loop struct {
	log *slog.Logger

	mu     sync.Mutex
	regs   map[int]*Registration
	stop   bool
	closed bool

	wakeR int
	wakeW int
}

// New creates a Loop. A nil logger disables logging. Close releases the
// loop's internal wake pipe once the loop is no longer needed.
func New(log *slog.Logger) (*Loop, error) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return nil, fmt.Errorf("create wake pipe: %w", err)
	}

	for _, fd := range p {
		if err := unix.SetNonblock(fd, true); err != nil {
			_ = unix.Close(p[0])
			_ = unix.Close(p[1])

			return nil, fmt.Errorf("set wake pipe non-blocking: %w", err)
		}
	}

	return &Loop{
		log:   log.With("component", "reactor"),
		regs:  make(map[int]*Registration),
		wakeR: p[0],
		wakeW: p[1],
	}, nil
}

// Register adds a descriptor to the loop with read interest selected and no
// timeout. The descriptor must already be non-blocking; the loop never
// closes it. Registering an already-registered descriptor is an error.
func (l *Loop) Register(fd int, h Handler) (*Registration, error) {
	if fd < 0 {
		return nil, fmt.Errorf("register fd %d: invalid descriptor", fd)
	}

	l.mu.Lock()

	if l.closed {
		l.mu.Unlock()

		return nil, fmt.Errorf("register fd %d: loop closed", fd)
	}

	if _, exists := l.regs[fd]; exists {
		l.mu.Unlock()

		return nil, fmt.Errorf("register fd %d: already registered", fd)
	}

	reg := &Registration{loop: l, fd: fd, h: h, wantRead: true}
	l.regs[fd] = reg
	l.mu.Unlock()

	l.log.Debug("Registered descriptor", "fd", fd)
	l.wake()

	return reg, nil
}

// Run polls registered descriptors and dispatches handler callbacks until
// the context ends, Stop is called, or no registrations remain. It returns
// the context error on cancellation and nil otherwise.
func (l *Loop) Run(ctx context.Context) error {
	// Wake the poller when the context ends so cancellation is prompt.
	watchDone := make(chan struct{})
	defer close(watchDone)

	go func() {
		select {
		case <-ctx.Done():
			l.wake()
		case <-watchDone:
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pfds, order, timeoutMs, running := l.pollSet()
		if !running {
			return nil
		}

		n, err := unix.Poll(pfds, timeoutMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}

			return fmt.Errorf("poll: %w", err)
		}

		if n > 0 && pfds[0].Revents != 0 {
			l.drainWake()
		}

		now := time.Now()
		l.dispatchReady(pfds, order, now)
		l.dispatchExpired(now)
	}
}

// Stop makes the current (or next) Run invocation return. Registrations are
// left in place.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stop = true
	l.mu.Unlock()
	l.wake()
}

// Close releases the loop's wake pipe. The loop must not be running.
func (l *Loop) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true
	_ = unix.Close(l.wakeR)
	_ = unix.Close(l.wakeW)

	return nil
}

// pollSet snapshots the registrations into a poll fd set. The first entry
// is always the wake pipe. Returns running=false when the loop should exit.
func (l *Loop) pollSet() (pfds []unix.PollFd, order []*Registration, timeoutMs int, running bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stop {
		l.stop = false

		return nil, nil, 0, false
	}

	if len(l.regs) == 0 || l.closed {
		return nil, nil, 0, false
	}

	pfds = make([]unix.PollFd, 0, len(l.regs)+1)
	pfds = append(pfds, unix.PollFd{Fd: int32(l.wakeR), Events: unix.POLLIN})
	order = make([]*Registration, 0, len(l.regs))

	var next time.Time

	for _, reg := range l.regs {
		var events int16
		if reg.wantRead {
			events |= unix.POLLIN
		}

		if reg.wantWrite {
			events |= unix.POLLOUT
		}

		pfds = append(pfds, unix.PollFd{Fd: int32(reg.fd), Events: events})
		order = append(order, reg)

		if !reg.deadline.IsZero() && (next.IsZero() || reg.deadline.Before(next)) {
			next = reg.deadline
		}
	}

	timeoutMs = -1

	if !next.IsZero() {
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		// Round up so a deadline never busy-spins the poller.
		timeoutMs = int((wait + time.Millisecond - 1) / time.Millisecond)
	}

	return pfds, order, timeoutMs, true
}

// dispatchReady invokes Readable/Writable for every registration with
// pending readiness. Registrations closed by an earlier callback in the
// same tick are skipped.
func (l *Loop) dispatchReady(pfds []unix.PollFd, order []*Registration, now time.Time) {
	for i, reg := range order {
		revents := pfds[i+1].Revents
		if revents == 0 {
			continue
		}

		l.mu.Lock()
		active := !reg.closed
		wantRead, wantWrite := reg.wantRead, reg.wantWrite

		if active {
			reg.touchLocked(now)
		}
		l.mu.Unlock()

		if !active {
			continue
		}

		// POLLHUP and POLLERR are delivered regardless of the requested
		// events; route them to whichever direction is selected so the
		// handler observes the failure on its next I/O attempt.
		if wantRead && revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			reg.h.Readable()
		}

		if wantWrite && revents&(unix.POLLOUT|unix.POLLHUP|unix.POLLERR) != 0 {
			reg.h.Writable()
		}
	}
}

// dispatchExpired fires Expired for every registration whose deadline has
// passed. The deadline is cleared first so each arming fires at most once.
// Registrations closed by an earlier callback in the same batch are skipped.
func (l *Loop) dispatchExpired(now time.Time) {
	l.mu.Lock()

	var expired []*Registration

	for _, reg := range l.regs {
		if !reg.deadline.IsZero() && !now.Before(reg.deadline) {
			reg.deadline = time.Time{}
			expired = append(expired, reg)
		}
	}
	l.mu.Unlock()

	for _, reg := range expired {
		l.mu.Lock()
		closed := reg.closed
		l.mu.Unlock()

		if closed {
			continue
		}

		reg.h.Expired()
	}
}

// wake interrupts a blocked poll. A full wake pipe already guarantees a
// pending wakeup, so EAGAIN is ignored.
func (l *Loop) wake() {
	l.mu.Lock()
	closed := l.closed
	fd := l.wakeW
	l.mu.Unlock()

	if closed {
		return
	}

	_, _ = unix.Write(fd, []byte{0})
}

func (l *Loop) drainWake() {
	buf := make([]byte, 64)

	for {
		n, err := unix.Read(l.wakeR, buf)
		if n <= 0 || err != nil {
			return
		}
	}
}
