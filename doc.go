// Package forkcoupled launches child processes coupled to the parent by
// three independently monitored, non-blocking standard streams, and reports
// their activity through named events delivered inside a single-threaded
// readiness loop.
//
// # Basic usage
//
// Spawn a child into a reactor loop, subscribe to its events, then drive
// the loop:
//
//	loop, err := reactor.New(nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer loop.Close()
//
//	p, err := forkcoupled.Spawn(loop, []string{"cat"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	p.On(forkcoupled.EventReadStdout, func(p *forkcoupled.Process, e forkcoupled.Event) {
//	    fmt.Printf("child said: %s", e.Data)
//	})
//	p.On(forkcoupled.EventFinishStdout, func(p *forkcoupled.Process, e forkcoupled.Event) {
//	    fmt.Printf("stdout finished: %s\n", e.Cond)
//	})
//
//	if err := p.WriteStdin([]byte("hello\n")); err != nil {
//	    log.Fatal(err)
//	}
//	if err := p.CloseStdin(); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Runs until every monitored stream has finished.
//	if err := loop.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// For one-shot capture of a command's output, Run wraps the full
// spawn/collect/reap cycle:
//
//	out, err := forkcoupled.Run(ctx, []string{"sh", "-c", "echo hi"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(string(out.Stdout))
//
// # Events
//
// A Process emits write_stdin, read_stdout, finish_stdout, read_stderr and
// finish_stderr. Subscribers run synchronously, in registration order, on
// the goroutine driving the reactor loop. When stderr is merged its bytes
// arrive under the stdout event names; when it is quashed it is drained
// silently and the stderr events never fire. Subscribe before driving the
// loop, or events produced in the meantime are lost.
//
// # Lifecycle
//
// Dropping a Process never kills the child; its streams simply emit a final
// finish event when the child lets go of them. Abort sends SIGTERM and
// blocks until the child is reaped. Do not call Abort from an event
// callback that the child's own exit must unblock.
//
// # Logging
//
// For detailed operation tracking, pass a logger with WithLogger:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	p, err := forkcoupled.Spawn(loop, cmd, forkcoupled.WithLogger(logger))
//
// Without it, operation is silent.
package forkcoupled
