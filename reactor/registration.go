package reactor

import "time"

// Registration is one descriptor's membership in a Loop. A descriptor has
// at most one active registration; Close revokes it.
type Registration struct {
	loop *Loop
	fd   int
	h    Handler

	// The fields below are guarded by loop.mu.
	wantRead  bool
	wantWrite bool
	timeout   time.Duration
	deadline  time.Time
	closed    bool
}

// Fd returns the registered descriptor.
func (r *Registration) Fd() int {
	return r.fd
}

// SetTimeout arms an inactivity timeout: if no readiness is observed for
// the descriptor within d, the handler's Expired callback fires once.
// Readiness re-arms the deadline; a zero or negative d disarms it.
func (r *Registration) SetTimeout(d time.Duration) {
	r.loop.mu.Lock()

	r.timeout = d
	if d > 0 {
		r.deadline = time.Now().Add(d)
	} else {
		r.timeout = 0
		r.deadline = time.Time{}
	}
	r.loop.mu.Unlock()

	r.loop.wake()
}

// WantRead selects or deselects read interest. New registrations start with
// read interest selected.
func (r *Registration) WantRead(want bool) {
	r.loop.mu.Lock()
	r.wantRead = want
	r.loop.mu.Unlock()

	r.loop.wake()
}

// WantWrite selects or deselects write interest.
func (r *Registration) WantWrite(want bool) {
	r.loop.mu.Lock()
	r.wantWrite = want
	r.loop.mu.Unlock()

	r.loop.wake()
}

// Close removes the registration from the loop. It is idempotent and never
// closes the descriptor itself; that remains the owner's job.
func (r *Registration) Close() error {
	r.loop.mu.Lock()

	if r.closed {
		r.loop.mu.Unlock()

		return nil
	}

	r.closed = true
	delete(r.loop.regs, r.fd)
	r.loop.mu.Unlock()

	r.loop.log.Debug("Deregistered descriptor", "fd", r.fd)
	r.loop.wake()

	return nil
}

// touchLocked re-arms the inactivity deadline after observed readiness.
// Callers hold loop.mu.
func (r *Registration) touchLocked(now time.Time) {
	if r.timeout > 0 {
		r.deadline = now.Add(r.timeout)
	}
}
