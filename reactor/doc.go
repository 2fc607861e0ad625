// Package reactor provides a single-threaded readiness loop over raw file
// descriptors, built on poll(2).
//
// A Loop owns all readiness polling: handlers registered with it are only
// ever invoked on the goroutine running Loop.Run, so handler state needs no
// locking. Registrations may be added, adjusted and closed from other
// goroutines; a self-pipe wakes the poller when that happens.
//
// Run returns when its context ends, Stop is called, or the last
// registration is closed. The last case makes "run until every monitored
// stream has finished" the natural host idiom:
//
//	loop, _ := reactor.New(nil)
//	defer loop.Close()
//	// ... register streams ...
//	if err := loop.Run(ctx); err != nil {
//	    // context cancelled or poll failure
//	}
package reactor
