package spawn

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/mwri/forkcoupled/internal/errors"
)

// ChildStdio is the child-side stdio trio as it will appear on file
// descriptors 0, 1 and 2 of the child process.
type ChildStdio struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

// PreExecFunc is a hook run after the child's standard streams are fixed and
// before the command is executed. Hooks observe the child-side pipe ends,
// not the parent's streams. A non-nil return aborts the bootstrap: the
// command is never executed.
type PreExecFunc func(stdio ChildStdio) error

// Config captures everything the child bootstrap needs. It is assembled
// completely before the process is created; nothing in it is shared with
// the parent path afterwards.
type Config struct {
	// Argv is the command: executable path or name first, then arguments.
	Argv []string
	// Dir is the child working directory. Empty means inherit.
	Dir string
	// Env is extra environment for the child, merged over the parent's.
	Env map[string]string
	// PreExec hooks run in order against the child-side stdio trio.
	PreExec []PreExecFunc
}

// Result is the parent-side outcome of a spawn. Stdin is the write end of
// the child's input pipe; Stdout and Stderr are the read ends of its output
// pipes. When a pre-exec hook aborted the bootstrap, Proc is nil and Pid is
// zero but the parent-side ends are still returned so their monitors can
// observe the immediate close.
type Result struct {
	Proc   *os.Process
	Pid    int
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

// Start creates the pipes, runs the pre-exec hooks and starts the command
// with its standard streams redirected onto the child-side pipe ends.
//
// A hook failure is a child-side failure: it is logged, the child-side ends
// are closed so the parent-side monitors see end-of-stream immediately, and
// Start returns a Result with no process rather than an error.
//
// A start failure closes all six pipe ends, so no descriptors leak on that
// path.
func Start(log *slog.Logger, cfg Config) (*Result, error) {
	path, err := resolvePath(cfg.Argv[0])
	if err != nil {
		return nil, &errors.StartError{Path: cfg.Argv[0], Err: err}
	}

	pipes, err := NewPipes()
	if err != nil {
		return nil, err
	}

	stdio := ChildStdio{Stdin: pipes.InR, Stdout: pipes.OutW, Stderr: pipes.ErrW}

	for i, hook := range cfg.PreExec {
		if err := hook(stdio); err != nil {
			log.Warn("Pre-exec hook failed, child aborted before exec",
				"hook", i, "error", err)
			pipes.CloseChildEnds()

			return parentResult(pipes, nil), nil
		}
	}

	attr := &os.ProcAttr{
		Dir:   cfg.Dir,
		Env:   buildEnv(cfg.Env),
		Files: pipes.ChildEnds(),
	}

	proc, err := os.StartProcess(path, cfg.Argv, attr)
	if err != nil {
		pipes.CloseAll()

		return nil, &errors.StartError{Path: path, Err: err}
	}

	pipes.CloseChildEnds()
	log.Debug("Child process started", "path", path, "pid", proc.Pid)

	return parentResult(pipes, proc), nil
}

func parentResult(pipes *Pipes, proc *os.Process) *Result {
	res := &Result{
		Proc:   proc,
		Stdin:  pipes.InW,
		Stdout: pipes.OutR,
		Stderr: pipes.ErrR,
	}
	if proc != nil {
		res.Pid = proc.Pid
	}

	return res
}

// resolvePath resolves a bare executable name through PATH. Names containing
// a path separator are used as-is.
func resolvePath(name string) (string, error) {
	if strings.ContainsRune(name, os.PathSeparator) {
		return name, nil
	}

	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("look up executable: %w", err)
	}

	return path, nil
}

// buildEnv merges extra variables over the parent environment. A nil map
// means the child inherits the parent environment unchanged.
func buildEnv(extra map[string]string) []string {
	if len(extra) == 0 {
		return nil // ProcAttr treats nil as "inherit"
	}

	env := os.Environ()
	for k, v := range extra {
		env = append(env, k+"="+v)
	}

	return env
}
