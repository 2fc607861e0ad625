package forkcoupled

import (
	"bytes"
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mwri/forkcoupled/internal/errors"
	"github.com/mwri/forkcoupled/reactor"
)

// Output holds the captured result of a one-shot Run.
type Output struct {
	// Stdout is the captured output stream. With WithMergeStderr it also
	// carries the error-stream bytes, interleaved in arrival order.
	Stdout []byte

	// Stderr is the captured error stream. Empty when merging or quashing.
	Stderr []byte

	// ExitCode is the child's exit code.
	ExitCode int

	// Duration is how long the child ran.
	Duration time.Duration
}

// Run spawns cmd on a private reactor loop, writes any configured stdin
// data, captures stdout and stderr until both streams finish, reaps the
// child and returns the collected output.
//
// It is the one-shot counterpart to Spawn: no events, no host loop, just
// the result. Cancelling the context aborts the child. A non-zero exit
// returns the output alongside a *ProcessError carrying the exit code and
// captured stderr.
func Run(ctx context.Context, cmd []string, opts ...Option) (*Output, error) {
	options := applyOptions(opts)

	loop, err := reactor.New(options.logger())
	if err != nil {
		return nil, err
	}
	defer func() { _ = loop.Close() }()

	p, err := Spawn(loop, cmd, opts...)
	if err != nil {
		return nil, err
	}

	var stdout, stderr bytes.Buffer

	p.On(EventReadStdout, func(_ *Process, e Event) {
		stdout.Write(e.Data)
	})
	p.On(EventReadStderr, func(_ *Process, e Event) {
		stderr.Write(e.Data)
	})

	// Nothing more is coming on stdin; let cat-like children see EOF.
	if len(options.StdinData) == 0 {
		_ = p.CloseStdin()
	}

	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		if p.Pid() > 0 {
			_ = p.Abort()
		}

		p.closeStreams()

		return nil, err
	}

	// A stream timeout ends the loop while the child is still running;
	// reaping it directly would block for the child's full lifetime.
	if p.Pid() > 0 && (p.Stdout().timedOut() || p.Stderr().timedOut()) {
		if err := p.Abort(); err != nil {
			p.closeStreams()

			return nil, err
		}
	}

	state, err := p.Wait()
	if err != nil {
		p.closeStreams()

		return nil, err
	}

	out := &Output{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: state.ExitCode(),
		Duration: time.Since(start),
	}

	if !state.Success() {
		return out, &errors.ProcessError{
			ExitCode: state.ExitCode(),
			Stderr:   stderr.String(),
		}
	}

	return out, nil
}
