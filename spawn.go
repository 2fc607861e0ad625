package forkcoupled

import (
	"log/slog"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sys/unix"

	"github.com/mwri/forkcoupled/internal/errors"
	"github.com/mwri/forkcoupled/internal/spawn"
)

// Spawn launches cmd as a child process coupled to the caller by three
// monitored pipes, registering the parent-side ends with the given reactor,
// and returns the process handle.
//
// cmd is the executable path (or bare name, resolved via PATH) followed by
// its arguments. Configuration failures — empty command, quash and merge
// both requested — are reported before any pipe or process is created.
// Pipe and start failures leak nothing.
//
// A pre-exec hook failure is a child-side failure: Spawn still succeeds,
// the returned handle has pid zero, and the monitored streams finish
// immediately with no data.
func Spawn(r Reactor, cmd []string, opts ...Option) (*Process, error) {
	options := applyOptions(opts)

	if len(cmd) == 0 {
		return nil, &errors.ConfigError{Err: errors.ErrEmptyCommand}
	}

	if options.QuashStderr && options.MergeStderr {
		return nil, &errors.ConfigError{Err: errors.ErrStderrModeConflict}
	}

	spawnID := ulid.Make().String()
	log := options.logger().With("component", "spawner", "spawn_id", spawnID)

	argv := make([]string, len(cmd))
	copy(argv, cmd)

	res, err := spawn.Start(log, spawn.Config{
		Argv:    argv,
		Dir:     options.Cwd,
		Env:     options.Env,
		PreExec: options.PreExec,
	})
	if err != nil {
		return nil, err
	}

	p := &Process{
		log:         log,
		cmd:         argv,
		ref:         options.Ref,
		ctrlr:       options.Controller,
		timeout:     options.Timeout,
		quashStderr: options.QuashStderr,
		mergeStderr: options.MergeStderr,
		pid:         res.Pid,
		proc:        res.Proc,
		bus:         newEventBus(),
	}

	streamLog := options.logger().With("component", "stream", "spawn_id", spawnID)

	if err := p.buildStreams(r, res, options, streamLog); err != nil {
		p.teardown(res)

		return nil, err
	}

	if p.proc != nil {
		log.Info("Child process spawned", "path", p.Path(), "pid", p.pid)
	}

	// With no child on the other end the initial write would only hit a
	// broken pipe; the pid-zero handle stays usable either way.
	if len(options.StdinData) > 0 && p.proc != nil {
		if err := p.WriteStdin(options.StdinData); err != nil {
			p.teardown(res)

			return nil, err
		}

		_ = p.CloseStdin()
	}

	return p, nil
}

// buildStreams wraps the parent-side pipe ends into monitored streams.
// The input stream is unnamed and write-only. The error stream's name
// follows the stderr mode: "stderr" when separate, "stdout" when merging,
// unnamed (a silent drain) when quashing.
func (p *Process) buildStreams(r Reactor, res *spawn.Result, options *Options, log *slog.Logger) error {
	var err error

	if p.stdin, err = newWriteStream(r, res.Stdin, p, log); err != nil {
		return err
	}

	stdoutTimeout := options.Timeout
	if options.StdoutTimeout > 0 {
		stdoutTimeout = options.StdoutTimeout
	}

	if p.stdout, err = newReadStream(r, res.Stdout, "stdout", stdoutTimeout, p, log); err != nil {
		return err
	}

	stderrName := "stderr"

	switch {
	case options.QuashStderr:
		stderrName = ""
	case options.MergeStderr:
		stderrName = "stdout"
	}

	stderrTimeout := options.Timeout
	if options.StderrTimeout > 0 {
		stderrTimeout = options.StderrTimeout
	}

	if p.stderr, err = newReadStream(r, res.Stderr, stderrName, stderrTimeout, p, log); err != nil {
		return err
	}

	return nil
}

// teardown releases a partially built handle: deregister and close every
// stream end, and make sure a started child is not left running unreaped.
func (p *Process) teardown(res *spawn.Result) {
	p.closeStreams()

	// Ends never wrapped into a stream still need closing.
	if p.stdin == nil {
		_ = res.Stdin.Close()
	}

	if p.stdout == nil {
		_ = res.Stdout.Close()
	}

	if p.stderr == nil {
		_ = res.Stderr.Close()
	}

	if p.proc != nil {
		_ = p.proc.Signal(unix.SIGKILL)
		_, _ = p.Wait()
	}
}
